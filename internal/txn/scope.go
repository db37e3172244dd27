package txn

import (
	"context"
	"sync"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
)

// Tx is a physical transaction.
type Tx interface {
	sqlx.ExtContext
	Commit() error
	Rollback() error
}

// Source executes statements outside a transaction and starts new ones.
type Source interface {
	sqlx.ExtContext
	Begin(ctx context.Context) (Tx, error)
}

type dbSource struct {
	*sqlx.DB
}

func (s dbSource) Begin(ctx context.Context) (Tx, error) {
	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	return tx, nil
}

// FromDB adapts a connection pool into a Source.
func FromDB(db *sqlx.DB) Source {
	return dbSource{DB: db}
}

// Scope is a reentrant transaction handle. Begin and Commit calls nest;
// only the outermost pair touches the database. Any Rollback aborts the
// whole unit and resets the depth to zero.
type Scope struct {
	src Source
	log *zap.Logger

	mu    sync.Mutex
	depth int
	tx    Tx

	// exec serializes statements issued through an open transaction.
	exec sync.Mutex
}

func NewScope(src Source, log *zap.Logger) *Scope {
	if log == nil {
		log = zap.NewNop()
	}
	return &Scope{src: src, log: log}
}

// Depth is the current nesting level.
func (s *Scope) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.depth
}

// Active reports whether a physical transaction is open.
func (s *Scope) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tx != nil
}

// Begin opens the physical transaction at depth zero and increments the depth.
func (s *Scope) Begin(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		tx, err := s.src.Begin(ctx)
		if err != nil {
			return dberr.Transaction(err, "begin")
		}
		s.tx = tx
		metrics.Transactions.WithLabelValues("begin").Inc()
	}
	s.depth++
	return nil
}

// Commit decrements the depth and commits when it reaches zero. A failed
// commit is rolled back and reported.
func (s *Scope) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 || s.tx == nil {
		return dberr.Transaction(nil, "commit without begin")
	}
	s.depth--
	if s.depth > 0 {
		return nil
	}
	tx := s.tx
	s.tx = nil
	if err := tx.Commit(); err != nil {
		if rerr := tx.Rollback(); rerr != nil {
			s.log.Warn("rollback after failed commit", zap.Error(rerr))
		}
		metrics.Transactions.WithLabelValues("rollback").Inc()
		return dberr.Transaction(err, "commit")
	}
	metrics.Transactions.WithLabelValues("commit").Inc()
	return nil
}

// Rollback aborts the physical transaction regardless of depth. It is a
// no-op when nothing is open.
func (s *Scope) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.tx == nil {
		s.depth = 0
		return nil
	}
	tx := s.tx
	s.tx = nil
	s.depth = 0
	metrics.Transactions.WithLabelValues("rollback").Inc()
	if err := tx.Rollback(); err != nil {
		s.log.Error("rollback failed", zap.Error(err))
		return dberr.Transaction(err, "rollback")
	}
	return nil
}

// Release drops a finished transaction handle. It does nothing while a
// unit of work is still open.
func (s *Scope) Release() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.depth == 0 {
		s.tx = nil
	}
}

// Do runs fn against the open transaction, or the source when none is open.
// Calls through a transaction are serialized; fn must not call Do again.
func (s *Scope) Do(fn func(ext sqlx.ExtContext) error) error {
	s.mu.Lock()
	tx := s.tx
	s.mu.Unlock()
	if tx == nil {
		return fn(s.src)
	}
	s.exec.Lock()
	defer s.exec.Unlock()
	return fn(tx)
}

type scopeKey struct{}

// With returns a child context carrying s.
func With(ctx context.Context, s *Scope) context.Context {
	return context.WithValue(ctx, scopeKey{}, s)
}

// From returns the scope carried by ctx.
func From(ctx context.Context) (*Scope, bool) {
	s, ok := ctx.Value(scopeKey{}).(*Scope)
	return s, ok && s != nil
}

// Run executes fn inside one unit of work on s, rolling back when fn
// fails or panics.
func Run(ctx context.Context, s *Scope, fn func(ctx context.Context) error) error {
	if err := s.Begin(ctx); err != nil {
		return err
	}
	defer func() {
		if p := recover(); p != nil {
			_ = s.Rollback()
			panic(p)
		}
	}()
	if err := fn(ctx); err != nil {
		if rerr := s.Rollback(); rerr != nil {
			s.log.Warn("rollback after error", zap.Error(rerr), zap.NamedError("cause", err))
		}
		return err
	}
	return s.Commit()
}
