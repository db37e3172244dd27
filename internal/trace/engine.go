package trace

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metrics"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/utilities"
)

// Columns supplies the declared columns of a table.
type Columns interface {
	Columns(table string) []entity.FapColumn
}

// Engine applies updates and deletes either in place or as new versions.
// A traced change closes the current version at now and opens a new one
// valid from now to the permanent date, inside one transaction.
type Engine struct {
	aug     *sqlaug.Augmentor
	columns Columns
	clock   utilities.Clock
	log     *zap.Logger
}

func NewEngine(aug *sqlaug.Augmentor, columns Columns, clock utilities.Clock, log *zap.Logger) *Engine {
	if clock == nil {
		clock = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Engine{aug: aug, columns: columns, clock: clock, log: log}
}

// Current loads the version of fid visible now.
func (t *Engine) Current(ctx context.Context, sc *txn.Scope, table, fid string) (*record.Record, error) {
	return t.currentBy(ctx, sc, table, metadata.ColFid, fid)
}

// CurrentByID loads the row with id if it is the visible version.
func (t *Engine) CurrentByID(ctx context.Context, sc *txn.Scope, table string, id int64) (*record.Record, error) {
	return t.currentBy(ctx, sc, table, metadata.ColID, id)
}

func (t *Engine) currentBy(ctx context.Context, sc *txn.Scope, table, col string, v any) (*record.Record, error) {
	if !metadata.ValidIdentifier(table) {
		return nil, dberr.InvalidInput(table, "invalid table name")
	}
	q := fmt.Sprintf("SELECT * FROM %s WHERE %s = :%s", table, col, col)
	q, params, err := t.aug.Wrap(ctx, q, map[string]any{col: v})
	if err != nil {
		return nil, err
	}
	rows, err := store.Query(ctx, sc, table, q, params)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}
	return rows[0], nil
}

// UpdateEntity persists a changed typed entity. On success the entity's Id
// is that of the row now holding the current version.
func (t *Engine) UpdateEntity(ctx context.Context, sc *txn.Scope, e record.Entity, traced bool) error {
	table := record.TableNameOf(e)
	b := e.SystemFields()
	if !traced {
		if b.Id == 0 {
			if err := t.resolveEntityID(ctx, sc, table, b); err != nil {
				return err
			}
		}
		rec := record.ToRecord(e)
		n, err := store.Update(ctx, sc, table, rec, withoutID(t.declared(table, rec.Keys())))
		if err != nil {
			return err
		}
		if n == 0 {
			return dberr.NotFound(table, fmt.Sprint(b.Id), "no row to update")
		}
		return nil
	}

	if strings.TrimSpace(b.Fid) == "" {
		return dberr.InvalidInput(table, "traced update requires %s", metadata.ColFid)
	}
	old, err := t.Current(ctx, sc, table, b.Fid)
	if err != nil {
		return err
	}
	if old == nil {
		return dberr.NotFound(table, b.Fid, "no current version")
	}
	now := t.clock()
	stamp := utilities.FormatDateTime(now)
	b.EnableDate = stamp
	b.DisableDate = utilities.PermanentDateTime
	b.UpdateDate = stamp
	b.Ts = utilities.Timestamp(now)

	return txn.Run(ctx, sc, func(ctx context.Context) error {
		if err := t.closeVersion(ctx, sc, table, old, stamp); err != nil {
			return err
		}
		rec := record.ToRecord(e)
		id, err := store.Insert(ctx, sc, table, rec, withoutID(t.declared(table, rec.Keys())))
		if err != nil {
			return err
		}
		b.Id = id
		metrics.TraceVersions.WithLabelValues("update").Inc()
		return nil
	})
}

// DeleteEntity removes a typed entity. A traced delete writes a Dr=1 marker
// version; an untraced one flags the row in place.
func (t *Engine) DeleteEntity(ctx context.Context, sc *txn.Scope, e record.Entity, traced bool) error {
	table := record.TableNameOf(e)
	b := e.SystemFields()
	ac := appctx.From(ctx)
	now := t.clock()
	stamp := utilities.FormatDateTime(now)

	if !traced {
		if b.Id == 0 {
			if err := t.resolveEntityID(ctx, sc, table, b); err != nil {
				return err
			}
		}
		b.Dr = 1
		b.DisableDate = utilities.PermanentDateTime
		b.Ts = utilities.Timestamp(now)
		b.UpdateBy, b.UpdateName, b.UpdateDate = ac.EmpUid, ac.EmpName, stamp
		rec := record.ToRecord(e)
		n, err := store.Update(ctx, sc, table, rec, withoutID(t.declared(table, rec.Keys())))
		if err != nil {
			return err
		}
		if n == 0 {
			return dberr.NotFound(table, fmt.Sprint(b.Id), "no row to delete")
		}
		return nil
	}

	var (
		old *record.Record
		err error
	)
	switch {
	case strings.TrimSpace(b.Fid) != "":
		old, err = t.Current(ctx, sc, table, b.Fid)
	case b.Id != 0:
		old, err = t.CurrentByID(ctx, sc, table, b.Id)
	default:
		return dberr.InvalidInput(table, "delete requires %s or %s", metadata.ColFid, metadata.ColID)
	}
	if err != nil {
		return err
	}
	if old == nil {
		return dberr.NotFound(table, b.Fid, "no current version")
	}

	return txn.Run(ctx, sc, func(ctx context.Context) error {
		if err := t.closeVersion(ctx, sc, table, old, stamp); err != nil {
			return err
		}
		b.Fid = old.GetString(metadata.ColFid)
		b.Dr = 1
		b.EnableDate = stamp
		b.DisableDate = utilities.PermanentDateTime
		b.Ts = utilities.Timestamp(now)
		b.UpdateBy, b.UpdateName, b.UpdateDate = ac.EmpUid, ac.EmpName, stamp
		rec := record.ToRecord(e)
		id, err := store.Insert(ctx, sc, table, rec, withoutID(t.declared(table, rec.Keys())))
		if err != nil {
			return err
		}
		b.Id = id
		metrics.TraceVersions.WithLabelValues("delete").Inc()
		return nil
	})
}

// UpdateDynamic persists a changed record and returns the Id of the row
// holding the current version. The record must carry Fid.
func (t *Engine) UpdateDynamic(ctx context.Context, sc *txn.Scope, rec *record.Record, traced bool) (int64, error) {
	table := rec.TableName()
	fid := rec.GetString(metadata.ColFid)
	old, err := t.Current(ctx, sc, table, fid)
	if err != nil {
		return 0, err
	}
	if old == nil {
		return 0, dberr.NotFound(table, fid, "no current version")
	}
	oldID := old.GetInt64(metadata.ColID)

	if !traced {
		rec.Set(metadata.ColID, oldID)
		n, err := store.Update(ctx, sc, table, rec, t.declared(table, rec.Keys()))
		if err != nil {
			return 0, err
		}
		if n == 0 {
			return 0, dberr.NotFound(table, fid, "no row to update")
		}
		return oldID, nil
	}

	now := t.clock()
	stamp := utilities.FormatDateTime(now)
	next := old.Clone()
	for _, k := range rec.Keys() {
		if strings.EqualFold(k, metadata.ColID) {
			continue
		}
		next.Set(k, rec.Get(k))
	}
	next.Set(metadata.ColEnableDate, stamp)
	next.Set(metadata.ColDisableDate, utilities.PermanentDateTime)
	next.Set(metadata.ColTs, utilities.Timestamp(now))

	var id int64
	err = txn.Run(ctx, sc, func(ctx context.Context) error {
		if err := t.closeVersion(ctx, sc, table, old, stamp); err != nil {
			return err
		}
		var err error
		id, err = store.Insert(ctx, sc, table, next, withoutID(t.declared(table, next.Keys())))
		if err != nil {
			return err
		}
		metrics.TraceVersions.WithLabelValues("update").Inc()
		return nil
	})
	if err != nil {
		return 0, err
	}
	rec.Set(metadata.ColID, id)
	return id, nil
}

// DeleteDynamic removes the row identified by the record's Id, or by its
// Fid when Id is absent. It returns the Id of the row recording the delete.
func (t *Engine) DeleteDynamic(ctx context.Context, sc *txn.Scope, rec *record.Record, traced bool) (int64, error) {
	table := rec.TableName()
	var (
		old *record.Record
		err error
		key string
	)
	if rec.HasID() {
		key = rec.GetString(metadata.ColID)
		old, err = t.CurrentByID(ctx, sc, table, rec.GetInt64(metadata.ColID))
	} else {
		key = rec.GetString(metadata.ColFid)
		old, err = t.Current(ctx, sc, table, key)
	}
	if err != nil {
		return 0, err
	}
	if old == nil {
		return 0, dberr.NotFound(table, key, "no current version")
	}
	ac := appctx.From(ctx)
	now := t.clock()
	stamp := utilities.FormatDateTime(now)

	if !traced {
		upd := record.New(table).
			Set(metadata.ColID, old.GetInt64(metadata.ColID)).
			Set(metadata.ColDr, 1).
			Set(metadata.ColDisableDate, utilities.PermanentDateTime).
			Set(metadata.ColTs, utilities.Timestamp(now)).
			Set(metadata.ColUpdateBy, ac.EmpUid).
			Set(metadata.ColUpdateName, ac.EmpName).
			Set(metadata.ColUpdateDate, stamp)
		if _, err := store.Update(ctx, sc, table, upd, upd.Keys()); err != nil {
			return 0, err
		}
		return old.GetInt64(metadata.ColID), nil
	}

	marker := old.Clone()
	marker.Set(metadata.ColDr, 1)
	marker.Set(metadata.ColEnableDate, stamp)
	marker.Set(metadata.ColDisableDate, utilities.PermanentDateTime)
	marker.Set(metadata.ColTs, utilities.Timestamp(now))
	marker.Set(metadata.ColUpdateBy, ac.EmpUid)
	marker.Set(metadata.ColUpdateName, ac.EmpName)
	marker.Set(metadata.ColUpdateDate, stamp)

	var id int64
	err = txn.Run(ctx, sc, func(ctx context.Context) error {
		if err := t.closeVersion(ctx, sc, table, old, stamp); err != nil {
			return err
		}
		var err error
		id, err = store.Insert(ctx, sc, table, marker, withoutID(t.declared(table, marker.Keys())))
		if err != nil {
			return err
		}
		metrics.TraceVersions.WithLabelValues("delete").Inc()
		return nil
	})
	return id, err
}

// closeVersion ends the validity of old at stamp, leaving its Dr untouched.
// Only an open version is closed: a version already closed by another writer
// yields NotFound.
func (t *Engine) closeVersion(ctx context.Context, sc *txn.Scope, table string, old *record.Record, stamp string) error {
	if !metadata.ValidIdentifier(table) {
		return dberr.InvalidInput(table, "invalid table name")
	}
	q := fmt.Sprintf("UPDATE %s SET %s = :Stamp WHERE %s = :%s AND %s = :Permanent",
		table, metadata.ColDisableDate, metadata.ColID, metadata.ColID, metadata.ColDisableDate)
	n, err := store.Exec(ctx, sc, q, map[string]any{
		"Stamp":        stamp,
		metadata.ColID: old.GetInt64(metadata.ColID),
		"Permanent":    utilities.PermanentDateTime,
	})
	if err != nil {
		return fmt.Errorf("close version of %s: %w", table, err)
	}
	if n == 0 {
		return dberr.NotFound(table, old.GetString(metadata.ColFid), "current version vanished")
	}
	return nil
}

func (t *Engine) resolveEntityID(ctx context.Context, sc *txn.Scope, table string, b *record.BaseModel) error {
	if strings.TrimSpace(b.Fid) == "" {
		return dberr.InvalidInput(table, "requires %s or %s", metadata.ColID, metadata.ColFid)
	}
	cur, err := t.Current(ctx, sc, table, b.Fid)
	if err != nil {
		return err
	}
	if cur == nil {
		return dberr.NotFound(table, b.Fid, "no current version")
	}
	b.Id = cur.GetInt64(metadata.ColID)
	return nil
}

// declared keeps the keys the catalog declares for table. Without declared
// columns every key is kept.
func (t *Engine) declared(table string, keys []string) []string {
	cols := t.columns.Columns(table)
	if len(cols) == 0 {
		return keys
	}
	allowed := make(map[string]bool, len(cols))
	for _, c := range cols {
		allowed[strings.ToLower(c.ColName)] = true
	}
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if allowed[strings.ToLower(k)] {
			out = append(out, k)
		}
	}
	return out
}

func withoutID(keys []string) []string {
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if !strings.EqualFold(k, metadata.ColID) {
			out = append(out, k)
		}
	}
	return out
}
