package repository

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *sqlx.DB {
	t.Helper()

	dsn := "file:" + filepath.Join(t.TempDir(), "providerlab.db") + "?_pragma=foreign_keys(1)"
	db, err := Open(context.Background(), DriverSQLite, dsn, PoolConfig{})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	m, err := NewMigrator(db, nil)
	require.NoError(t, err)
	require.NoError(t, m.Up(context.Background()))

	return db
}
