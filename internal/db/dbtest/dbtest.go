// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/rpattn/projectledger/internal/db"
)

// Open returns a connection to a freshly migrated SQLite database in a
// per-test temporary directory. The connection is closed on cleanup.
func Open(t testing.TB) *db.Connection {
	t.Helper()

	cfg := db.Config{
		Driver: db.DriverSQLite,
		Path:   filepath.Join(t.TempDir(), "ledger.db"),
	}
	logger := zaptest.NewLogger(t)
	require.NoError(t, db.RunMigrations(cfg, db.Up, logger))

	conn, err := db.NewConnection(context.Background(), cfg, logger)
	require.NoError(t, err)
	t.Cleanup(conn.Close)
	return conn
}
