package dbcontext

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/interceptor"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
)

func (d *DbContext) recordTable(rec *record.Record) (entity.FapTable, error) {
	if rec == nil {
		return entity.FapTable{}, dberr.InvalidInput("", "record is required")
	}
	return d.table(rec.TableName())
}

// InsertDynamic initializes rec, inserts it and returns the new Id, which
// is also set on rec.
func (d *DbContext) InsertDynamic(ctx context.Context, rec *record.Record) (int64, error) {
	t, err := d.recordTable(rec)
	if err != nil {
		return 0, err
	}
	var id int64
	err = d.write(ctx, "insert_dynamic", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		ic := d.hooks(t)
		if err := d.init.DynamicToInsert(ctx, sc, rec); err != nil {
			return err
		}
		if err := ic.BeforeDynamicInsert(ctx, rec); err != nil {
			return err
		}
		var err error
		if id, err = d.insertRecord(ctx, sc, t.TableName, rec); err != nil {
			return err
		}
		return ic.AfterDynamicInsert(ctx, rec)
	})
	return id, err
}

// InsertDynamicBatch inserts recs in one unit of work. Initialization and
// before hooks run concurrently per record; the inserts then run in order.
// Any failure rolls back the whole batch.
func (d *DbContext) InsertDynamicBatch(ctx context.Context, recs []*record.Record) error {
	tables, err := d.recordTables(recs)
	if err != nil || len(recs) == 0 {
		return err
	}
	return d.write(ctx, "insert_dynamic_batch", tables[0].TableName, func(ctx context.Context, sc *txn.Scope) error {
		hooks := make([]interceptor.Interceptor, len(recs))
		g, gctx := errgroup.WithContext(ctx)
		for i, rec := range recs {
			g.Go(func() error {
				hooks[i] = d.hooks(tables[i])
				if err := d.init.DynamicToInsert(gctx, sc, rec); err != nil {
					return err
				}
				return hooks[i].BeforeDynamicInsert(gctx, rec)
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, rec := range recs {
			if _, err := d.insertRecord(ctx, sc, tables[i].TableName, rec); err != nil {
				return fmt.Errorf("batch record %d: %w", i, err)
			}
			if err := hooks[i].AfterDynamicInsert(ctx, rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DbContext) insertRecord(ctx context.Context, sc *txn.Scope, table string, rec *record.Record) (int64, error) {
	id, err := store.Insert(ctx, sc, table, rec, d.columns(table, rec.Keys()))
	if err != nil {
		return 0, err
	}
	rec.Set(metadata.ColID, id)
	return id, nil
}

// UpdateDynamic writes the fields of rec to the current version of its
// Fid. A record carrying only Id has its Fid resolved first. On traced
// tables rec receives the Id of the new version.
func (d *DbContext) UpdateDynamic(ctx context.Context, rec *record.Record) error {
	t, err := d.recordTable(rec)
	if err != nil {
		return err
	}
	return d.write(ctx, "update_dynamic", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		return d.updateRecord(ctx, sc, t, rec)
	})
}

// UpdateDynamicBatch updates recs in one unit of work.
func (d *DbContext) UpdateDynamicBatch(ctx context.Context, recs []*record.Record) error {
	tables, err := d.recordTables(recs)
	if err != nil || len(recs) == 0 {
		return err
	}
	return d.write(ctx, "update_dynamic_batch", tables[0].TableName, func(ctx context.Context, sc *txn.Scope) error {
		for i, rec := range recs {
			if err := d.updateRecord(ctx, sc, tables[i], rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DbContext) updateRecord(ctx context.Context, sc *txn.Scope, t entity.FapTable, rec *record.Record) error {
	if err := d.resolveFid(ctx, sc, t.TableName, rec); err != nil {
		return err
	}
	ic := d.hooks(t)
	d.init.DynamicToUpdate(ctx, rec)
	if err := ic.BeforeDynamicUpdate(ctx, rec); err != nil {
		return err
	}
	if _, err := d.trace.UpdateDynamic(ctx, sc, rec, t.IsTraceable()); err != nil {
		return err
	}
	return ic.AfterDynamicUpdate(ctx, rec)
}

// resolveFid fills the Fid of rec from its Id when it is missing.
func (d *DbContext) resolveFid(ctx context.Context, sc *txn.Scope, table string, rec *record.Record) error {
	if rec.Present(metadata.ColFid) {
		return nil
	}
	if !rec.HasID() {
		return dberr.InvalidInput(table, "record requires %s or %s", metadata.ColFid, metadata.ColID)
	}
	q := fmt.Sprintf("SELECT %s FROM %s WHERE %s = :%s", metadata.ColFid, table, metadata.ColID, metadata.ColID)
	v, err := store.Scalar(ctx, sc, q, map[string]any{metadata.ColID: rec.GetInt64(metadata.ColID)})
	if err != nil {
		return err
	}
	if record.IsBlank(v) {
		return dberr.NotFound(table, rec.GetString(metadata.ColID), "no row with this Id")
	}
	rec.Set(metadata.ColFid, record.ToString(v))
	return nil
}

// DeleteDynamic deletes the row identified by rec's Id, or its Fid.
func (d *DbContext) DeleteDynamic(ctx context.Context, rec *record.Record) error {
	t, err := d.recordTable(rec)
	if err != nil {
		return err
	}
	return d.write(ctx, "delete_dynamic", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		return d.deleteRecord(ctx, sc, t, rec)
	})
}

// DeleteDynamicBatch deletes recs in one unit of work.
func (d *DbContext) DeleteDynamicBatch(ctx context.Context, recs []*record.Record) error {
	tables, err := d.recordTables(recs)
	if err != nil || len(recs) == 0 {
		return err
	}
	return d.write(ctx, "delete_dynamic_batch", tables[0].TableName, func(ctx context.Context, sc *txn.Scope) error {
		for i, rec := range recs {
			if err := d.deleteRecord(ctx, sc, tables[i], rec); err != nil {
				return err
			}
		}
		return nil
	})
}

func (d *DbContext) deleteRecord(ctx context.Context, sc *txn.Scope, t entity.FapTable, rec *record.Record) error {
	if !rec.HasID() && !rec.Present(metadata.ColFid) {
		return dberr.InvalidInput(t.TableName, "record requires %s or %s", metadata.ColFid, metadata.ColID)
	}
	ic := d.hooks(t)
	if err := ic.BeforeDynamicDelete(ctx, rec); err != nil {
		return err
	}
	id, err := d.trace.DeleteDynamic(ctx, sc, rec, t.IsTraceable())
	if err != nil {
		return err
	}
	rec.Set(metadata.ColID, id)
	return ic.AfterDynamicDelete(ctx, rec)
}

func (d *DbContext) recordTables(recs []*record.Record) ([]entity.FapTable, error) {
	out := make([]entity.FapTable, len(recs))
	for i, rec := range recs {
		t, err := d.recordTable(rec)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}
