package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	fapentity "github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sequence/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
)

var (
	// ErrNotFound is returned when the sequence has never been used.
	ErrNotFound = errors.New("sequence not found")
	// ErrExists is returned by Create when the sequence is already present.
	ErrExists = errors.New("sequence exists")
)

// SequenceRepo persists CfgSequenceRule rows through a caller supplied executor.
type SequenceRepo struct{}

func NewSequenceRepo() *SequenceRepo {
	return &SequenceRepo{}
}

// EnsureTable creates the sequence table if missing.
func (r *SequenceRepo) EnsureTable(ctx context.Context, ex store.Executor) error {
	cols := []fapentity.FapColumn{
		{ColName: "Id", ColType: "bigint"},
		{ColName: "SeqName", ColType: "string"},
		{ColName: "CurrValue", ColType: "int"},
		{ColName: "MinValue", ColType: "int"},
		{ColName: "StepBy", ColType: "int"},
	}
	if err := store.EnsureTable(ctx, ex, entity.CfgSequenceRule{}.TableName(), cols); err != nil {
		return err
	}
	return ex.Do(func(ext sqlx.ExtContext) error {
		_, err := ext.ExecContext(ctx, "CREATE UNIQUE INDEX IF NOT EXISTS uq_cfgsequencerule_name ON CfgSequenceRule (SeqName)")
		return err
	})
}

// Get loads the sequence named name.
func (r *SequenceRepo) Get(ctx context.Context, ex store.Executor, name string) (*entity.CfgSequenceRule, error) {
	var s entity.CfgSequenceRule
	err := ex.Do(func(ext sqlx.ExtContext) error {
		q := ext.Rebind("SELECT Id, SeqName, CurrValue, MinValue, StepBy FROM CfgSequenceRule WHERE SeqName = ?")
		return ext.QueryRowxContext(ctx, q, name).Scan(&s.Id, &s.SeqName, &s.CurrValue, &s.MinValue, &s.StepBy)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get sequence %s: %w", name, err)
	}
	return &s, nil
}

// Create inserts s and sets its Id. It returns ErrExists when a row named
// s.SeqName is already present.
func (r *SequenceRepo) Create(ctx context.Context, ex store.Executor, s *entity.CfgSequenceRule) error {
	err := ex.Do(func(ext sqlx.ExtContext) error {
		q := ext.Rebind("INSERT INTO CfgSequenceRule (SeqName, CurrValue, MinValue, StepBy) VALUES (?, ?, ?, ?) " +
			"ON CONFLICT (SeqName) DO NOTHING RETURNING Id")
		return ext.QueryRowxContext(ctx, q, s.SeqName, s.CurrValue, s.MinValue, s.StepBy).Scan(&s.Id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return ErrExists
	}
	if err != nil {
		return fmt.Errorf("create sequence %s: %w", s.SeqName, err)
	}
	return nil
}

// Increment advances the sequence named name by its step in one statement
// and returns the new value. A step below 1 counts as 1.
func (r *SequenceRepo) Increment(ctx context.Context, ex store.Executor, name string) (int, error) {
	var v int
	err := ex.Do(func(ext sqlx.ExtContext) error {
		q := ext.Rebind("UPDATE CfgSequenceRule SET CurrValue = CurrValue + CASE WHEN StepBy > 0 THEN StepBy ELSE 1 END " +
			"WHERE SeqName = ? RETURNING CurrValue")
		return ext.QueryRowxContext(ctx, q, name).Scan(&v)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return 0, ErrNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment sequence %s: %w", name, err)
	}
	return v, nil
}
