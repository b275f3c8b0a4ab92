package database

import (
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/log/zapadapter"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"
	"strings"
	"time"
)

type Postgres struct {
	Pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{Pool: pool}
}

func PoolCreation(ctx context.Context, logger *zap.Logger, conf *config.Entity) (*pgxpool.Pool, error) {
	dbConf, err := pgxpool.ParseConfig(conf.DB.URL)
	if err != nil {
		return nil, fmt.Errorf("poolCreation failed: %w", err)
	}
	dbConf.ConnConfig.Logger = zapadapter.NewLogger(logger)
	dbConf.ConnConfig.LogLevel = pgx.LogLevelError
	dbConf.MaxConnIdleTime = time.Second * 10
	if conf.DB.ConnLifeTime > 0 {
		dbConf.MaxConnLifetime = time.Duration(conf.DB.ConnLifeTime) * time.Minute
	}
	if conf.DB.MaxOpenConns > 0 {
		dbConf.MaxConns = conf.DB.MaxOpenConns
	}
	if conf.DB.MinConns > 0 && conf.DB.MinConns <= dbConf.MaxConns {
		dbConf.MinConns = conf.DB.MinConns
	}

	pool, err := pgxpool.ConnectConfig(ctx, dbConf)
	if err != nil {
		return nil, fmt.Errorf("poolCreation failed: %w", err)
	}

	return pool, nil
}

func (p *Postgres) Backend() string {
	return config.BACKEND_POSTGRES
}

func (p *Postgres) Close() {
	p.Pool.Close()
}

func (p *Postgres) Execute(ctx context.Context, query string, args ...interface{}) (Result, error) {
	q, returning := rewriteForPostgres(query)

	if !returning {
		if _, err := p.Pool.Exec(ctx, q, args...); err != nil {
			return Result{}, fmt.Errorf("Postgres.Execute failed: %w", err)
		}
		return Result{}, nil
	}

	var id int64
	if err := p.Pool.QueryRow(ctx, q, args...).Scan(&id); err != nil {
		return Result{}, fmt.Errorf("Postgres.Execute failed: %w", err)
	}

	return Result{InsertedID: id}, nil
}

func (p *Postgres) QueryAll(ctx context.Context, query string, args ...interface{}) ([]Row, error) {
	rows, err := p.Pool.Query(ctx, sqlx.Rebind(sqlx.DOLLAR, query), args...)
	if err != nil {
		return nil, fmt.Errorf("Postgres.QueryAll failed: %w", err)
	}
	defer rows.Close()

	fields := rows.FieldDescriptions()
	names := make([]string, len(fields))
	for i, f := range fields {
		names[i] = string(f.Name)
	}

	out := make([]Row, 0)

	for rows.Next() {
		values, err := rows.Values()
		if err != nil {
			return nil, fmt.Errorf("Postgres.QueryAll failed: %w", err)
		}

		row, err := buildRow(names, values)
		if err != nil {
			return nil, fmt.Errorf("Postgres.QueryAll failed: %w", err)
		}
		out = append(out, row)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("Postgres.QueryAll failed: %w", err)
	}

	return out, nil
}

func (p *Postgres) QueryOne(ctx context.Context, query string, args ...interface{}) (Row, error) {
	rows, err := p.QueryAll(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

func (p *Postgres) migrate(ctx context.Context) error {
	if _, err := p.Pool.Exec(ctx, createPlayersPostgres); err != nil {
		return fmt.Errorf("migrate failed: %w", err)
	}

	for _, column := range optionalColumns {
		_, err := p.Pool.Exec(ctx, fmt.Sprintf("ALTER TABLE players ADD COLUMN IF NOT EXISTS %s TEXT", column))
		if err != nil && !isDuplicateColumn(err) {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}

	return nil
}

// buildRow pairs the column names of a result set with one row of values.
func buildRow(names []string, values []interface{}) (Row, error) {
	if len(names) != len(values) {
		return nil, fmt.Errorf("buildRow: %d columns but %d values", len(names), len(values))
	}

	row := make(Row, len(names))
	for i, name := range names {
		row[name] = values[i]
	}

	return Normalize(row), nil
}

// rewriteForPostgres turns `?` placeholders into $1..$n and makes inserts report the generated key.
func rewriteForPostgres(query string) (string, bool) {
	q := sqlx.Rebind(sqlx.DOLLAR, query)

	if !strings.HasPrefix(strings.ToLower(strings.TrimSpace(q)), "insert") {
		return q, false
	}

	return strings.TrimRight(strings.TrimSpace(q), ";") + " RETURNING id", true
}
