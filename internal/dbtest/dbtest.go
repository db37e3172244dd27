// Package dbtest opens throwaway SQLite databases for package tests.
package dbtest

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/database"
)

// Open returns a SQLite database in a temp dir, closed when the test ends.
func Open(t testing.TB) *sqlx.DB {
	t.Helper()
	db, err := database.Connect(database.Config{
		Driver: database.DriverSQLite,
		DSN:    filepath.Join(t.TempDir(), "fap.db"),
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// Scope wraps db in a fresh transaction scope.
func Scope(db *sqlx.DB) *txn.Scope {
	return txn.NewScope(txn.FromDB(db), nil)
}

// EnsureCatalog creates every table of c in db.
func EnsureCatalog(t testing.TB, db *sqlx.DB, c *metadata.Catalog) {
	t.Helper()
	require.NoError(t, store.EnsureCatalog(context.Background(), Scope(db), c))
}
