package registration

import (
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/pkg/database"
	"github.com/mitchellh/mapstructure"
	"reflect"
	"strings"
	"time"
)

const (
	insertPlayerSQL = `INSERT INTO players (fullName, dni, phone, email, playerType, teamName, category, jerseyNumber, socioName, socioDni, socioPhone, dniPlayerPath, dniSocioPath) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	listPlayersSQL  = `SELECT * FROM players ORDER BY createdAt DESC, id DESC`
	deletePlayerSQL = `DELETE FROM players WHERE id = ?`
	countByTeamSQL  = `SELECT teamName, COUNT(*) AS count FROM players GROUP BY teamName`
	countByCatSQL   = `SELECT category, COUNT(*) AS count FROM players GROUP BY category`
	countTotalSQL   = `SELECT COUNT(*) AS total FROM players`
)

// Timestamp layouts a backend may hand back as text instead of time.Time.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999-07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// Repository holds the players SQL. It only speaks through database.Store, so it never knows the backend.
type Repository struct {
	db database.Store
}

func NewRepository(db database.Store) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Insert(ctx context.Context, p Player) (int64, error) {
	res, err := r.db.Execute(ctx, insertPlayerSQL,
		p.FullName, p.Dni, p.Phone, p.Email, p.PlayerType, p.TeamName, p.Category, p.JerseyNumber,
		p.SocioName, p.SocioDni, p.SocioPhone, p.DniPlayerPath, p.DniSocioPath)
	if err != nil {
		return 0, fmt.Errorf("Repository.Insert failed: %w", err)
	}

	return res.InsertedID, nil
}

func (r *Repository) List(ctx context.Context) ([]Player, error) {
	rows, err := r.db.QueryAll(ctx, listPlayersSQL)
	if err != nil {
		return nil, fmt.Errorf("Repository.List failed: %w", err)
	}

	players := make([]Player, 0, len(rows))
	if err := decodeRows(rows, &players); err != nil {
		return nil, fmt.Errorf("Repository.List failed: %w", err)
	}

	return players, nil
}

func (r *Repository) Delete(ctx context.Context, id int64) error {
	if _, err := r.db.Execute(ctx, deletePlayerSQL, id); err != nil {
		return fmt.Errorf("Repository.Delete failed: %w", err)
	}
	return nil
}

func (r *Repository) CountByTeam(ctx context.Context) ([]TeamCount, error) {
	rows, err := r.db.QueryAll(ctx, countByTeamSQL)
	if err != nil {
		return nil, fmt.Errorf("Repository.CountByTeam failed: %w", err)
	}

	out := make([]TeamCount, 0, len(rows))
	if err := decodeRows(rows, &out); err != nil {
		return nil, fmt.Errorf("Repository.CountByTeam failed: %w", err)
	}

	return out, nil
}

func (r *Repository) CountByCategory(ctx context.Context) ([]CategoryCount, error) {
	rows, err := r.db.QueryAll(ctx, countByCatSQL)
	if err != nil {
		return nil, fmt.Errorf("Repository.CountByCategory failed: %w", err)
	}

	out := make([]CategoryCount, 0, len(rows))
	if err := decodeRows(rows, &out); err != nil {
		return nil, fmt.Errorf("Repository.CountByCategory failed: %w", err)
	}

	return out, nil
}

// CountTotal yields 0 when the backend returns no row at all.
func (r *Repository) CountTotal(ctx context.Context) (int64, error) {
	row, err := r.db.QueryOne(ctx, countTotalSQL)
	if err != nil {
		return 0, fmt.Errorf("Repository.CountTotal failed: %w", err)
	}
	if row == nil {
		return 0, nil
	}

	var out struct {
		Total int64 `mapstructure:"total"`
	}
	if err := decode(row, &out); err != nil {
		return 0, fmt.Errorf("Repository.CountTotal failed: %w", err)
	}

	return out.Total, nil
}

func decodeRows(rows []database.Row, out interface{}) error {
	input := make([]map[string]interface{}, len(rows))
	for i, row := range rows {
		input[i] = row
	}
	return decode(input, out)
}

func decode(input interface{}, out interface{}) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       textToTimeHook,
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return err
	}
	return dec.Decode(input)
}

func textToTimeHook(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Time{}) {
		return data, nil
	}

	var s string
	switch v := data.(type) {
	case string:
		s = v
	case []byte:
		s = string(v)
	default:
		return data, nil
	}

	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}

	return nil, fmt.Errorf("unrecognised timestamp %q", s)
}
