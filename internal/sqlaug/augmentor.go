package sqlaug

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

// Parameter names bound by the visibility predicate.
const (
	ParamCurrentDate = "CurrentDate"
	ParamDr          = "Dr"
)

// Flags select optional rewrites.
type Flags struct {
	// DisplayCodes adds a <Col>MC display column for every referenced column.
	DisplayCodes bool
	// ID adds the Id column when the select list lacks it.
	ID bool
}

type Option func(*Flags)

func WithDisplayCodes() Option { return func(f *Flags) { f.DisplayCodes = true } }

func WithID() Option { return func(f *Flags) { f.ID = true } }

// FlagsOf folds opts.
func FlagsOf(opts []Option) Flags {
	var f Flags
	for _, o := range opts {
		if o != nil {
			o(&f)
		}
	}
	return f
}

// Parser rewrites a statement so only current, live rows are visible.
type Parser interface {
	Parse(sql string, flags Flags) (string, error)
}

// Augmentor wraps caller SQL with the visibility predicate and binds its parameters.
type Augmentor struct {
	parser Parser
	clock  utilities.Clock
	log    *zap.Logger
}

func New(parser Parser, clock utilities.Clock, log *zap.Logger) *Augmentor {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Augmentor{parser: parser, clock: clock, log: log}
}

// CurrentDate is the instant visibility is evaluated at: the replay date of
// ctx when set, otherwise now.
func (a *Augmentor) CurrentDate(ctx context.Context) string {
	if h := appctx.From(ctx).HistoryDateTime; h != "" {
		return h
	}
	return utilities.FormatDateTime(a.clock())
}

// Wrap returns the rewritten statement and a parameter map holding the
// caller's values plus CurrentDate and Dr unless the caller set them.
// The caller's map is not modified.
func (a *Augmentor) Wrap(ctx context.Context, sql string, params map[string]any, opts ...Option) (string, map[string]any, error) {
	out := make(map[string]any, len(params)+2)
	for k, v := range params {
		out[k] = v
	}
	if _, ok := out[ParamCurrentDate]; !ok {
		out[ParamCurrentDate] = a.CurrentDate(ctx)
	}
	if _, ok := out[ParamDr]; !ok {
		out[ParamDr] = 0
	}
	a.log.Debug("augmenting sql", zap.String("sql", sql))
	rewritten, err := a.parser.Parse(sql, FlagsOf(opts))
	if err != nil {
		return "", nil, fmt.Errorf("augment sql: %w", err)
	}
	a.log.Debug("augmented sql", zap.String("original", sql), zap.String("sql", rewritten))
	return rewritten, out, nil
}
