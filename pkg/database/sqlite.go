package database

import (
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"os"
	"path/filepath"
)

type Sqlite struct {
	DB *sqlx.DB
}

// NewSqlite opens (and creates if needed) the database file and brings the players table up to date.
func NewSqlite(ctx context.Context, path string) (*Sqlite, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("NewSqlite failed: %w", err)
		}
	}

	db, err := sqlx.ConnectContext(ctx, "sqlite3", path+"?_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("NewSqlite failed: %w", err)
	}

	// A single connection keeps writers serialized, the file engine allows only one anyway.
	db.SetMaxOpenConns(1)

	s := &Sqlite{DB: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("NewSqlite failed: %w", err)
	}

	return s, nil
}

func (s *Sqlite) Backend() string {
	return config.BACKEND_SQLITE
}

func (s *Sqlite) Close() {
	s.DB.Close()
}

func (s *Sqlite) Execute(ctx context.Context, query string, args ...interface{}) (Result, error) {
	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return Result{}, fmt.Errorf("Sqlite.Execute failed: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return Result{}, fmt.Errorf("Sqlite.Execute failed: %w", err)
	}

	return Result{InsertedID: id}, nil
}

func (s *Sqlite) QueryAll(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := s.DB.QueryxContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("Sqlite.QueryAll failed: %w", err)
	}
	defer rows.Close()

	out := make([]Row, 0)
	for rows.Next() {
		m := make(map[string]interface{})
		if err := rows.MapScan(m); err != nil {
			return nil, fmt.Errorf("Sqlite.QueryAll failed: %w", err)
		}

		for k, v := range m {
			if b, ok := v.([]byte); ok {
				m[k] = string(b)
			}
		}
		out = append(out, Row(m))
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Sqlite.QueryAll failed: %w", err)
	}

	return out, nil
}

func (s *Sqlite) QueryOne(ctx context.Context, query string, args ...interface{}) (Row, error) {
	rows, err := s.QueryAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (s *Sqlite) migrate(ctx context.Context) error {
	if _, err := s.DB.ExecContext(ctx, createPlayersSqlite); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}

	for _, column := range optionalColumns {
		_, err := s.DB.ExecContext(ctx, fmt.Sprintf("ALTER TABLE players ADD COLUMN %s TEXT", column))
		if err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}

	return nil
}
