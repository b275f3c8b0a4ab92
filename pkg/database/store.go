package database

import (
	"context"
	"fmt"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"go.uber.org/zap"
)

// Row is a single result row keyed by canonical column name.
type Row map[string]interface{}

type Result struct {
	InsertedID int64
}

// Store runs `?`-parameterized SQL against whichever backend was chosen at start-up.
// Every statement is its own implicit transaction.
type Store interface {
	Execute(ctx context.Context, query string, args ...interface{}) (Result, error)
	QueryAll(ctx context.Context, query string, args ...interface{}) ([]Row, error)
	// QueryOne returns nil, nil when the query yields no row.
	QueryOne(ctx context.Context, query string, args ...interface{}) (Row, error)
	Backend() string
	Close()
}

// Open picks the backend once: DATABASE_URL present means Postgres, otherwise the local SQLite file.
func Open(ctx context.Context, logger *zap.Logger, conf *config.Entity) (Store, error) {
	switch conf.Backend() {
	case config.BACKEND_POSTGRES:
		pool, err := PoolCreation(ctx, logger, conf)
		if err != nil {
			return nil, fmt.Errorf("Open failed: %w", err)
		}

		db := NewPostgres(pool)
		if err := db.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("Open failed: %w", err)
		}

		logger.Info("Using PostgreSQL backend")
		return db, nil
	default:
		db, err := NewSqlite(ctx, conf.DB.SqlitePath)
		if err != nil {
			return nil, fmt.Errorf("Open failed: %w", err)
		}

		logger.Info("Using local SQLite backend", zap.String("file", conf.DB.SqlitePath))
		return db, nil
	}
}
