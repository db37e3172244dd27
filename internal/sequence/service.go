package sequence

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sequence/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sequence/repo"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
)

// allocMu serializes allocations within the process. Across processes the
// single-statement increment relies on the row lock the store takes.
var allocMu sync.Mutex

// Allocator hands out strictly increasing values per sequence name.
type Allocator struct {
	repo *repo.SequenceRepo
	log  *zap.Logger
}

func NewAllocator(log *zap.Logger) *Allocator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Allocator{repo: repo.NewSequenceRepo(), log: log}
}

// EnsureSchema creates the sequence table.
func (a *Allocator) EnsureSchema(ctx context.Context, ex store.Executor) error {
	return a.repo.EnsureTable(ctx, ex)
}

// Next returns the next value of name. A sequence used for the first time
// is created and yields 1. Writes go through ex, so they join the caller's
// transaction when one is open.
func (a *Allocator) Next(ctx context.Context, ex store.Executor, name string) (int, error) {
	if strings.TrimSpace(name) == "" {
		return 0, dberr.InvalidInput(entity.CfgSequenceRule{}.TableName(), "sequence name is required")
	}
	allocMu.Lock()
	defer allocMu.Unlock()

	v, err := a.repo.Increment(ctx, ex, name)
	if errors.Is(err, repo.ErrNotFound) {
		s := &entity.CfgSequenceRule{SeqName: name, CurrValue: 1, MinValue: 0, StepBy: 1}
		err = a.repo.Create(ctx, ex, s)
		switch {
		case err == nil:
			a.log.Debug("sequence created", zap.String("sequence", name))
			v = s.CurrValue
		case errors.Is(err, repo.ErrExists):
			v, err = a.repo.Increment(ctx, ex, name)
		}
	}
	if err != nil {
		return 0, err
	}
	metrics.SequenceAllocations.WithLabelValues(name).Inc()
	return v, nil
}
