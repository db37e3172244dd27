package initializer

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sequence"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

// Catalog is the metadata the initializer reads.
type Catalog interface {
	Table(name string) (entity.FapTable, bool)
	Columns(table string) []entity.FapColumn
}

// BillCoder produces bill codes for a table, keyed by field.
type BillCoder interface {
	Generate(ctx context.Context, ex store.Executor, table string) (map[string]string, error)
}

// DefaultProvider computes the default of a column whose DefaultValueClass names it.
type DefaultProvider func(ctx context.Context, col entity.FapColumn) (any, error)

// Initializer fills system columns, column defaults and bill codes.
type Initializer struct {
	catalog Catalog
	bills   BillCoder
	ids     utilities.IDGenerator
	clock   utilities.Clock
	log     *zap.Logger

	mu        sync.RWMutex
	providers map[string]DefaultProvider
}

type Option func(*Initializer)

func WithClock(c utilities.Clock) Option { return func(i *Initializer) { i.clock = c } }

func WithIDGenerator(g utilities.IDGenerator) Option { return func(i *Initializer) { i.ids = g } }

func WithLogger(l *zap.Logger) Option { return func(i *Initializer) { i.log = l } }

func New(catalog Catalog, bills BillCoder, opts ...Option) *Initializer {
	i := &Initializer{
		catalog:   catalog,
		bills:     bills,
		ids:       utilities.NewSnowflakeID,
		clock:     time.Now,
		log:       zap.NewNop(),
		providers: make(map[string]DefaultProvider),
	}
	for _, o := range opts {
		o(i)
	}
	return i
}

// RegisterProvider binds a DefaultValueClass name to p.
func (i *Initializer) RegisterProvider(name string, p DefaultProvider) {
	i.mu.Lock()
	defer i.mu.Unlock()
	i.providers[strings.ToLower(name)] = p
}

func (i *Initializer) provider(name string) (DefaultProvider, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	p, ok := i.providers[strings.ToLower(name)]
	return p, ok
}

// EntityToInsert prepares a typed entity for insertion.
func (i *Initializer) EntityToInsert(ctx context.Context, ex store.Executor, e record.Entity) error {
	f, err := record.FieldsOf(e)
	if err != nil {
		return err
	}
	b := e.SystemFields()
	ac := appctx.From(ctx)
	now := i.clock()
	if strings.TrimSpace(b.Fid) == "" {
		b.Fid = i.ids()
	}
	b.CreateDate = utilities.FormatDateTime(now)
	b.UpdateDate = b.CreateDate
	b.EnableDate = utilities.LastSecond(now)
	b.DisableDate = utilities.PermanentDateTime
	b.Ts = utilities.Timestamp(now)
	b.Dr = 0
	b.CreateBy = ac.EmpUid
	b.CreateName = ac.EmpName
	b.UpdateBy = ac.EmpUid
	b.UpdateName = ac.EmpName
	b.OrgUid = ac.OrgUid
	b.GroupUid = ac.GroupUid
	return i.fill(ctx, ex, f, false)
}

// DynamicToInsert prepares a record for insertion.
func (i *Initializer) DynamicToInsert(ctx context.Context, ex store.Executor, rec *record.Record) error {
	ac := appctx.From(ctx)
	now := i.clock()
	if !rec.Present(metadata.ColFid) {
		rec.Set(metadata.ColFid, i.ids())
	}
	created := utilities.FormatDateTime(now)
	rec.Set(metadata.ColCreateDate, created)
	rec.Set(metadata.ColUpdateDate, created)
	rec.Set(metadata.ColEnableDate, utilities.LastSecond(now))
	rec.Set(metadata.ColDisableDate, utilities.PermanentDateTime)
	rec.Set(metadata.ColTs, utilities.Timestamp(now))
	rec.Set(metadata.ColDr, 0)
	rec.Set(metadata.ColCreateBy, ac.EmpUid)
	rec.Set(metadata.ColCreateName, ac.EmpName)
	rec.Set(metadata.ColUpdateBy, ac.EmpUid)
	rec.Set(metadata.ColUpdateName, ac.EmpName)
	rec.Set(metadata.ColOrgUid, ac.OrgUid)
	rec.Set(metadata.ColGroupUid, ac.GroupUid)
	return i.fill(ctx, ex, rec, true)
}

// EntityToUpdate stamps the audit fields and timestamp of a typed entity.
func (i *Initializer) EntityToUpdate(ctx context.Context, e record.Entity) {
	b := e.SystemFields()
	ac := appctx.From(ctx)
	now := i.clock()
	b.Ts = utilities.Timestamp(now)
	b.UpdateBy = ac.EmpUid
	b.UpdateName = ac.EmpName
	b.UpdateDate = utilities.FormatDateTime(now)
}

// DynamicToUpdate stamps the audit fields of a record. Ts is left alone so
// a caller supplied value survives.
func (i *Initializer) DynamicToUpdate(ctx context.Context, rec *record.Record) {
	ac := appctx.From(ctx)
	rec.Set(metadata.ColUpdateBy, ac.EmpUid)
	rec.Set(metadata.ColUpdateName, ac.EmpName)
	rec.Set(metadata.ColUpdateDate, utilities.FormatDateTime(i.clock()))
}

// fill applies column defaults, then bill codes and the draft status of bill
// tables. A non-blank value already present always wins; on typed entities a
// numeric zero counts as unset. Typed entities only receive values for fields
// they declare; records take every value.
func (i *Initializer) fill(ctx context.Context, ex store.Executor, f record.Fields, dynamic bool) error {
	table := f.TableName()
	blank := record.IsBlank
	if !dynamic {
		blank = record.IsUnset
	}
	for _, col := range i.catalog.Columns(table) {
		if col.IsSystem() || !col.HasDefault() {
			continue
		}
		if v, ok := f.Lookup(col.ColName); ok && !blank(v) {
			continue
		}
		if !dynamic {
			if _, declared := f.Lookup(col.ColName); !declared {
				continue
			}
		}
		v, ok := i.DefaultValue(ctx, col)
		if !ok {
			continue
		}
		f.Assign(col.ColName, v)
	}

	if sequence.SkipsNumbering(table) {
		return nil
	}
	if t, ok := i.catalog.Table(table); ok && t.IsBill() {
		if v, ok := f.Lookup(metadata.ColBillStatus); (ok || dynamic) && blank(v) {
			f.Assign(metadata.ColBillStatus, metadata.BillDraft)
		}
	}
	if i.bills == nil {
		return nil
	}
	codes, err := i.bills.Generate(ctx, ex, table)
	if err != nil {
		return err
	}
	for field, code := range codes {
		v, ok := f.Lookup(field)
		if !ok && !dynamic {
			continue
		}
		if !blank(v) {
			continue
		}
		f.Assign(field, code)
	}
	return nil
}

// DefaultValue resolves the default of col. The second result is false when
// the column gets no value.
func (i *Initializer) DefaultValue(ctx context.Context, col entity.FapColumn) (any, bool) {
	if name := strings.TrimSpace(col.DefaultValueClass); name != "" {
		p, ok := i.provider(name)
		if !ok {
			i.log.Warn("unknown default value class",
				zap.String("table", col.TableName), zap.String("column", col.ColName), zap.String("class", name))
			return nil, false
		}
		v, err := p(ctx, col)
		if err != nil {
			i.log.Warn("default value provider failed",
				zap.String("table", col.TableName), zap.String("column", col.ColName), zap.Error(err))
			return nil, false
		}
		return v, true
	}

	def := strings.TrimSpace(col.ColDefault)
	ac := appctx.From(ctx)
	display := strings.HasSuffix(col.ColName, "MC")
	switch {
	case def == "":
		return nil, false
	case strings.HasPrefix(strings.ToLower(def), entity.DefaultSQLPrefix):
		return nil, false
	case strings.EqualFold(def, entity.DefaultCurrentDate):
		return utilities.FormatDateTime(i.clock()), true
	case strings.EqualFold(def, entity.DefaultCurrentEmployee):
		if display {
			return nil, false
		}
		return ac.EmpUid, true
	case strings.EqualFold(def, entity.DefaultCurrentUser):
		if display {
			return nil, false
		}
		return ac.UserUid, true
	case strings.EqualFold(def, entity.DefaultCurrentDept):
		if display {
			return nil, false
		}
		return ac.DeptUid, true
	case strings.EqualFold(def, entity.DefaultCurrentDeptCode):
		return ac.DeptCode, true
	default:
		return col.ColDefault, true
	}
}
