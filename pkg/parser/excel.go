package parser

import (
	"errors"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/pkg/registration"
	"github.com/xuri/excelize/v2"
	"io"
	"strings"
)

const (
	// Files longer than this are refused outright, nobody registers that many players by hand.
	MAX_ROWS = 1500

	// Rows with more filled cells than this are counted as suspicious; too many of them block the file.
	MAX_LEN_OF_ROW                         = 30
	COUNTS_OF_LONG_ROWS_BEFORE_BLOCK_EXCEL = 10
)

var (
	ErrEmptyWorkbook = errors.New("workbook has no player rows")
	ErrTooManyRows   = errors.New("workbook has too many rows")
	ErrSpam          = errors.New("workbook has too many oversized rows")
)

// Header aliases per canonical field. The first header found in the sheet wins.
var headerAliases = map[string][]string{
	"fullName":     {"NOMBRE COMPLETO", "NAME", "fullName"},
	"dni":          {"CÉDULA", "DNI", "dni"},
	"phone":        {"TELÉFONO", "PHONE", "phone"},
	"email":        {"EMAIL", "email"},
	"teamName":     {"EQUIPO", "TEAM", "teamName"},
	"category":     {"CATEGORÍA", "CATEGORY", "category"},
	"playerType":   {"TIPO", "TYPE", "playerType"},
	"jerseyNumber": {"CAMISETA", "NUMBER", "jerseyNumber"},
}

// ParseXlsx reads the first sheet of the workbook. The first row is the header, every following
// non-blank row becomes a player. Category and player type are lower-cased, player type defaults to socio.
func ParseXlsx(r io.Reader) ([]registration.Player, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("excelize.OpenReader failed: %w", err)
	}

	defer func() {
		_ = f.Close()
	}()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrEmptyWorkbook
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("f.GetRows failed: %w", err)
	}

	if len(rows) > MAX_ROWS {
		return nil, ErrTooManyRows
	}

	return parseRows(rows)
}

func parseRows(rows [][]string) ([]registration.Player, error) {
	if len(rows) < 2 {
		return nil, ErrEmptyWorkbook
	}

	columns := headerIndex(rows[0])
	players := make([]registration.Player, 0, len(rows)-1)
	countOfVeryLongRows := 0

	for _, row := range rows[1:] {
		if isBlank(row) {
			continue
		}

		if len(row) > MAX_LEN_OF_ROW {
			countOfVeryLongRows++
			if countOfVeryLongRows > COUNTS_OF_LONG_ROWS_BEFORE_BLOCK_EXCEL {
				return nil, ErrSpam
			}
		}

		cell := func(field string) string {
			i, ok := columns[field]
			if !ok || i >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[i])
		}

		playerType := strings.ToLower(cell("playerType"))
		if playerType == "" {
			playerType = registration.PLAYER_TYPE_SOCIO
		}

		players = append(players, registration.Player{
			FullName:     cell("fullName"),
			Dni:          cell("dni"),
			Phone:        cell("phone"),
			Email:        cell("email"),
			TeamName:     cell("teamName"),
			Category:     strings.ToLower(cell("category")),
			PlayerType:   playerType,
			JerseyNumber: cell("jerseyNumber"),
		})
	}

	if len(players) == 0 {
		return nil, ErrEmptyWorkbook
	}

	return players, nil
}

// headerIndex maps canonical field names to column positions.
func headerIndex(header []string) map[string]int {
	position := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, seen := position[h]; !seen {
			position[h] = i
		}
	}

	columns := make(map[string]int, len(headerAliases))
	for field, aliases := range headerAliases {
		for _, alias := range aliases {
			if i, ok := position[alias]; ok {
				columns[field] = i
				break
			}
		}
	}
	return columns
}

func isBlank(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}
