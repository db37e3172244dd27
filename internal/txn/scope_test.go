package txn

import (
	"context"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/database"
)

type countingTx struct {
	*sqlx.Tx
	src *countingSource
}

func (t *countingTx) Commit() error {
	t.src.commits.Add(1)
	if t.src.failCommit {
		_ = t.Tx.Rollback()
		return errors.New("commit refused")
	}
	return t.Tx.Commit()
}

func (t *countingTx) Rollback() error {
	t.src.rollbacks.Add(1)
	return t.Tx.Rollback()
}

type countingSource struct {
	*sqlx.DB
	begins, commits, rollbacks atomic.Int32
	failCommit                 bool
}

func (s *countingSource) Begin(ctx context.Context) (Tx, error) {
	s.begins.Add(1)
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return &countingTx{Tx: tx, src: s}, nil
}

func openSource(t *testing.T) *countingSource {
	t.Helper()
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, DSN: filepath.Join(t.TempDir(), "txn.db")})
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = db.Exec("CREATE TABLE t (v INTEGER)")
	require.NoError(t, err)
	return &countingSource{DB: db}
}

func insert(t *testing.T, s *Scope, v int) {
	t.Helper()
	require.NoError(t, s.Do(func(ext sqlx.ExtContext) error {
		_, err := ext.ExecContext(context.Background(), "INSERT INTO t (v) VALUES (?)", v)
		return err
	}))
}

func count(t *testing.T, db *sqlx.DB) int {
	t.Helper()
	var n int
	require.NoError(t, db.Get(&n, "SELECT count(*) FROM t"))
	return n
}

func TestNestedBeginCommitsOnce(t *testing.T) {
	src := openSource(t)
	s := NewScope(src, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, s.Begin(ctx))
	}
	assert.Equal(t, 3, s.Depth())
	insert(t, s, 1)

	require.NoError(t, s.Commit())
	require.NoError(t, s.Commit())
	assert.Equal(t, int32(0), src.commits.Load())
	require.NoError(t, s.Commit())

	assert.Equal(t, int32(1), src.begins.Load())
	assert.Equal(t, int32(1), src.commits.Load())
	assert.Equal(t, 0, s.Depth())
	assert.False(t, s.Active())
	assert.Equal(t, 1, count(t, src.DB))
}

func TestRollbackAtAnyDepthAbortsAll(t *testing.T) {
	src := openSource(t)
	s := NewScope(src, nil)
	ctx := context.Background()

	require.NoError(t, s.Begin(ctx))
	require.NoError(t, s.Begin(ctx))
	insert(t, s, 1)
	require.NoError(t, s.Rollback())

	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, int32(1), src.rollbacks.Load())
	assert.Equal(t, int32(0), src.commits.Load())
	assert.Equal(t, 0, count(t, src.DB))

	// the outer frame unwinding is harmless
	require.NoError(t, s.Rollback())
	assert.Equal(t, int32(1), src.rollbacks.Load())
	err := s.Commit()
	assert.ErrorIs(t, err, dberr.ErrTransaction)

	// a fresh unit can start afterwards
	require.NoError(t, s.Begin(ctx))
	insert(t, s, 2)
	require.NoError(t, s.Commit())
	assert.Equal(t, 1, count(t, src.DB))
}

func TestFailedCommitRollsBack(t *testing.T) {
	src := openSource(t)
	src.failCommit = true
	s := NewScope(src, nil)

	require.NoError(t, s.Begin(context.Background()))
	insert(t, s, 1)
	err := s.Commit()
	assert.ErrorIs(t, err, dberr.ErrTransaction)
	assert.Equal(t, int32(1), src.rollbacks.Load())
	assert.Equal(t, 0, s.Depth())
}

func TestRunRollsBackOnError(t *testing.T) {
	src := openSource(t)
	s := NewScope(src, nil)
	boom := errors.New("boom")

	err := Run(context.Background(), s, func(ctx context.Context) error {
		insert(t, s, 1)
		return Run(ctx, s, func(context.Context) error { return boom })
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), src.rollbacks.Load())
	assert.Equal(t, 0, count(t, src.DB))

	require.NoError(t, Run(context.Background(), s, func(context.Context) error {
		insert(t, s, 1)
		return nil
	}))
	assert.Equal(t, 1, count(t, src.DB))
}

func TestRunRollsBackOnPanic(t *testing.T) {
	src := openSource(t)
	s := NewScope(src, nil)
	assert.Panics(t, func() {
		_ = Run(context.Background(), s, func(context.Context) error {
			insert(t, s, 1)
			panic("bad")
		})
	})
	assert.Equal(t, 0, s.Depth())
	assert.Equal(t, 0, count(t, src.DB))
}

func TestReleaseKeepsOpenUnit(t *testing.T) {
	src := openSource(t)
	s := NewScope(src, nil)
	require.NoError(t, s.Begin(context.Background()))
	s.Release()
	assert.True(t, s.Active())
	require.NoError(t, s.Commit())
	s.Release()
	assert.False(t, s.Active())
}

func TestContextCarriesScope(t *testing.T) {
	s := NewScope(openSource(t), nil)
	ctx := With(context.Background(), s)
	got, ok := From(ctx)
	require.True(t, ok)
	assert.Same(t, s, got)

	_, ok = From(context.Background())
	assert.False(t, ok)
}
