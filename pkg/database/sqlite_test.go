package database

import (
	"context"
	"github.com/Geniuskaa/buenafe_registration/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"path/filepath"
	"testing"
	"time"
)

func newTestSqlite(t *testing.T) *Sqlite {
	t.Helper()

	db, err := NewSqlite(context.Background(), filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(db.Close)

	return db
}

func TestSqlite_ExecuteReturnsIncreasingIDs(t *testing.T) {
	db := newTestSqlite(t)
	ctx := context.Background()

	var last int64
	for i := 0; i < 5; i++ {
		res, err := db.Execute(ctx, "INSERT INTO players (fullName, teamName) VALUES (?, ?)", "Jugador", "halcones")
		require.NoError(t, err)
		assert.Greater(t, res.InsertedID, last)
		last = res.InsertedID
	}
}

func TestSqlite_IDsAreNotReused(t *testing.T) {
	db := newTestSqlite(t)
	ctx := context.Background()

	first, err := db.Execute(ctx, "INSERT INTO players (fullName) VALUES (?)", "A")
	require.NoError(t, err)

	_, err = db.Execute(ctx, "DELETE FROM players WHERE id = ?", first.InsertedID)
	require.NoError(t, err)

	second, err := db.Execute(ctx, "INSERT INTO players (fullName) VALUES (?)", "B")
	require.NoError(t, err)
	assert.Greater(t, second.InsertedID, first.InsertedID)
}

func TestSqlite_QueryRows(t *testing.T) {
	db := newTestSqlite(t)
	ctx := context.Background()

	_, err := db.Execute(ctx, "INSERT INTO players (fullName, dni, socioName) VALUES (?, ?, ?)", "Ana Gomez", "1234567", nil)
	require.NoError(t, err)

	row, err := db.QueryOne(ctx, "SELECT * FROM players WHERE dni = ?", "1234567")
	require.NoError(t, err)
	require.NotNil(t, row)

	assert.Equal(t, "Ana Gomez", row["fullName"])
	assert.Nil(t, row["socioName"])
	assert.IsType(t, time.Time{}, row["createdAt"])

	total, err := db.QueryOne(ctx, "SELECT COUNT(*) AS total FROM players")
	require.NoError(t, err)
	assert.Equal(t, int64(1), total["total"])
}

func TestSqlite_QueryOneAbsent(t *testing.T) {
	db := newTestSqlite(t)

	row, err := db.QueryOne(context.Background(), "SELECT * FROM players WHERE id = ?", 999)
	require.NoError(t, err)
	assert.Nil(t, row)
}

func TestSqlite_QueryError(t *testing.T) {
	db := newTestSqlite(t)

	_, err := db.QueryAll(context.Background(), "SELECT * FROM missing_table")
	assert.Error(t, err)
}

func TestSqlite_ReopenKeepsDataAndSchema(t *testing.T) {
	path := filepath.Join(t.TempDir(), "afemec.db")
	ctx := context.Background()

	db, err := NewSqlite(ctx, path)
	require.NoError(t, err)
	_, err = db.Execute(ctx, "INSERT INTO players (fullName, dniPlayerPath) VALUES (?, ?)", "A", "/UPLOAD/x.png")
	require.NoError(t, err)
	db.Close()

	db, err = NewSqlite(ctx, path)
	require.NoError(t, err)
	defer db.Close()

	rows, err := db.QueryAll(ctx, "SELECT fullName, dniPlayerPath FROM players")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "/UPLOAD/x.png", rows[0]["dniPlayerPath"])
}

func TestOpen_WithoutDatabaseURLUsesSqlite(t *testing.T) {
	conf := &config.Entity{DB: config.Database{SqlitePath: filepath.Join(t.TempDir(), "data", "afemec.db")}}

	store, err := Open(context.Background(), zap.NewNop(), conf)
	require.NoError(t, err)
	defer store.Close()

	assert.Equal(t, config.BACKEND_SQLITE, store.Backend())
}
