// Package dbcontext is the persistence gateway: metadata driven insert,
// update, delete and query for typed entities and dynamic records.
package dbcontext

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/initializer"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/interceptor"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sequence"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/trace"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

// DbContext orchestrates the initializer, interceptors and trace engine
// over one database. It is safe for concurrent use; each call runs on its
// own transaction scope unless ctx already carries one.
type DbContext struct {
	src       txn.Source
	catalog   *metadata.Catalog
	aug       *sqlaug.Augmentor
	init      *initializer.Initializer
	trace     *trace.Engine
	alloc     *sequence.Allocator
	bills     *sequence.Generator
	registry  *interceptor.Registry
	container interceptor.Container
	clock     utilities.Clock
	log       *zap.Logger
}

var _ interceptor.Gateway = (*DbContext)(nil)

type options struct {
	log       *zap.Logger
	clock     utilities.Clock
	ids       utilities.IDGenerator
	parser    sqlaug.Parser
	registry  *interceptor.Registry
	container interceptor.Container
	providers map[string]initializer.DefaultProvider
}

type Option func(*options)

func WithLogger(l *zap.Logger) Option { return func(o *options) { o.log = l } }

func WithClock(c utilities.Clock) Option { return func(o *options) { o.clock = c } }

func WithIDGenerator(g utilities.IDGenerator) Option { return func(o *options) { o.ids = g } }

// WithParser replaces the default SQL rewrite parser.
func WithParser(p sqlaug.Parser) Option { return func(o *options) { o.parser = p } }

// WithInterceptors sets the registry DataInterceptor names resolve against.
func WithInterceptors(r *interceptor.Registry) Option { return func(o *options) { o.registry = r } }

// WithContainer sets the services handed to interceptor factories.
func WithContainer(c interceptor.Container) Option { return func(o *options) { o.container = c } }

// WithDefaultProvider registers a DefaultValueClass provider.
func WithDefaultProvider(name string, p initializer.DefaultProvider) Option {
	return func(o *options) { o.providers[name] = p }
}

func New(src txn.Source, catalog *metadata.Catalog, opts ...Option) *DbContext {
	o := &options{
		log:       zap.NewNop(),
		clock:     time.Now,
		ids:       utilities.NewSnowflakeID,
		providers: make(map[string]initializer.DefaultProvider),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.parser == nil {
		o.parser = sqlaug.NewParser(catalog)
	}
	if o.registry == nil {
		o.registry = interceptor.NewRegistry(o.log)
	}
	if o.container == nil {
		o.container = interceptor.Services{}
	}

	d := &DbContext{
		src:       src,
		catalog:   catalog,
		registry:  o.registry,
		container: o.container,
		clock:     o.clock,
		log:       o.log,
	}
	d.aug = sqlaug.New(o.parser, o.clock, o.log)
	d.alloc = sequence.NewAllocator(o.log)
	d.bills = sequence.NewGenerator(d.alloc, catalog, o.clock)
	d.init = initializer.New(catalog, d.bills,
		initializer.WithClock(o.clock),
		initializer.WithIDGenerator(o.ids),
		initializer.WithLogger(o.log),
	)
	for name, p := range o.providers {
		d.init.RegisterProvider(name, p)
	}
	d.trace = trace.NewEngine(d.aug, catalog, o.clock, o.log)
	return d
}

// Catalog returns the metadata the context was built with.
func (d *DbContext) Catalog() *metadata.Catalog { return d.catalog }

// NextSequence allocates the next value of the named sequence.
func (d *DbContext) NextSequence(ctx context.Context, name string) (int, error) {
	var v int
	err := d.write(ctx, "next_sequence", "", func(ctx context.Context, sc *txn.Scope) error {
		var err error
		v, err = d.alloc.Next(ctx, sc, name)
		return err
	})
	return v, err
}

// GenerateBillCode allocates the bill codes of table, keyed by field. It
// returns nil for tables that are not numbered.
func (d *DbContext) GenerateBillCode(ctx context.Context, table string) (map[string]string, error) {
	t, err := d.table(table)
	if err != nil {
		return nil, err
	}
	var codes map[string]string
	err = d.write(ctx, "bill_code", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		var err error
		codes, err = d.bills.Generate(ctx, sc, t.TableName)
		return err
	})
	return codes, err
}

// EnsureSchema creates the sequence table and every catalog table.
func (d *DbContext) EnsureSchema(ctx context.Context) error {
	ctx, sc := d.scope(ctx)
	defer sc.Release()
	if err := d.alloc.EnsureSchema(ctx, sc); err != nil {
		return err
	}
	return store.EnsureCatalog(ctx, sc, d.catalog)
}

// InTransaction runs fn in one unit of work. Gateway calls made with the
// ctx fn receives join it, and any error rolls all of them back.
func (d *DbContext) InTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	ctx, sc := d.scope(ctx)
	defer sc.Release()
	return txn.Run(ctx, sc, fn)
}

// scope returns the scope carried by ctx, or a fresh one attached to the
// returned context.
func (d *DbContext) scope(ctx context.Context) (context.Context, *txn.Scope) {
	if sc, ok := txn.From(ctx); ok {
		return ctx, sc
	}
	sc := txn.NewScope(d.src, d.log)
	return txn.With(ctx, sc), sc
}

// write runs fn in a unit of work and records the outcome.
func (d *DbContext) write(ctx context.Context, op, table string, fn func(ctx context.Context, sc *txn.Scope) error) error {
	start := time.Now()
	ctx, sc := d.scope(ctx)
	err := txn.Run(ctx, sc, func(ctx context.Context) error { return fn(ctx, sc) })
	sc.Release()
	metrics.Observe(op, table, start, err)
	if err != nil {
		d.log.Debug("write failed", zap.String("operation", op), zap.String("table", table), zap.Error(err))
	}
	return err
}

// read runs fn on the scope of ctx without opening a transaction.
func (d *DbContext) read(ctx context.Context, op, table string, fn func(ctx context.Context, sc *txn.Scope) error) error {
	start := time.Now()
	ctx, sc := d.scope(ctx)
	err := fn(ctx, sc)
	metrics.Observe(op, table, start, err)
	return err
}

// table looks up the metadata of name.
func (d *DbContext) table(name string) (entity.FapTable, error) {
	if strings.TrimSpace(name) == "" {
		return entity.FapTable{}, dberr.InvalidInput("", "table name is required")
	}
	if !metadata.ValidIdentifier(name) {
		return entity.FapTable{}, dberr.InvalidInput(name, "invalid table name")
	}
	t, ok := d.catalog.Table(name)
	if !ok {
		return entity.FapTable{}, dberr.NotFound(name, "", "metadata not found")
	}
	return t, nil
}

// hooks resolves a fresh interceptor for t, or a no-op one.
func (d *DbContext) hooks(t entity.FapTable) interceptor.Interceptor {
	return interceptor.OrNop(d.registry.Resolve(t.DataInterceptor, interceptor.Env{
		Logger:    d.log,
		Gateway:   d,
		Container: d.container,
	}))
}

// columns keeps the keys declared for table, minus Id.
func (d *DbContext) columns(table string, keys []string) []string {
	cols := d.catalog.Columns(table)
	allowed := make(map[string]bool, len(cols))
	for _, c := range cols {
		allowed[strings.ToLower(c.ColName)] = true
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if strings.EqualFold(k, metadata.ColID) {
			continue
		}
		if len(cols) == 0 || allowed[strings.ToLower(k)] {
			out = append(out, k)
		}
	}
	return out
}
