package database

import (
	"path/filepath"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectSQLite(t *testing.T) {
	db, err := Connect(Config{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "fap.db")})
	require.NoError(t, err)
	defer db.Close()

	assert.Equal(t, DriverSQLite, db.DriverName())
	assert.Equal(t, sqlx.QUESTION, sqlx.BindType(db.DriverName()))

	var one int
	require.NoError(t, db.Get(&one, "SELECT 1"))
	assert.Equal(t, 1, one)
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("DATABASE_DRIVER", "SQLite")
	t.Setenv("DATABASE_URL", "")
	t.Setenv("DATABASE_MAX_CONNS", "9")
	cfg := ConfigFromEnv()
	assert.Equal(t, DriverSQLite, cfg.Driver)
	assert.Equal(t, "fap.db", cfg.DSN)
	assert.Equal(t, 9, cfg.MaxConns)
}

func TestQuoteLiteral(t *testing.T) {
	assert.Equal(t, "'Asia/O''Shanghai'", quoteLiteral("Asia/O'Shanghai"))
	assert.True(t, IsPostgres(DriverPgx))
	assert.False(t, IsPostgres(DriverSQLite))
}
