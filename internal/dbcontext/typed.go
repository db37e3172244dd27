package dbcontext

import (
	"context"
	"fmt"
	"reflect"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
)

// Typed operations take T as a pointer to a struct embedding
// record.BaseModel, e.g. Insert[*Order](ctx, d, o).

func newEntity[T record.Entity]() (T, error) {
	var zero T
	rt := reflect.TypeOf(zero)
	if rt == nil || rt.Kind() != reflect.Pointer || rt.Elem().Kind() != reflect.Struct {
		return zero, dberr.InvalidInput("", "entity type %s must be a pointer to a struct", typeName(rt))
	}
	return reflect.New(rt.Elem()).Interface().(T), nil
}

func typeName(rt reflect.Type) string {
	if rt == nil {
		return "interface"
	}
	return rt.String()
}

func tableOf[T record.Entity]() (string, error) {
	e, err := newEntity[T]()
	if err != nil {
		return "", err
	}
	return record.TableNameOf(e), nil
}

// tableName is tableOf for error messages after T has been checked.
func tableName[T record.Entity]() string {
	name, _ := tableOf[T]()
	return name
}

// entityTable resolves the catalog table of T and rejects nil entities.
func entityTable[T record.Entity](d *DbContext, es []T) (entity.FapTable, error) {
	name, err := tableOf[T]()
	if err != nil {
		return entity.FapTable{}, err
	}
	for i, e := range es {
		if isNil(e) {
			return entity.FapTable{}, dberr.InvalidInput(name, "entity %d is nil", i)
		}
	}
	return d.table(name)
}

// Insert initializes e and inserts it, setting its Id.
func Insert[T record.Entity](ctx context.Context, d *DbContext, e T) error {
	return InsertBatch(ctx, d, []T{e})
}

// InsertBatch inserts es in one unit of work.
func InsertBatch[T record.Entity](ctx context.Context, d *DbContext, es []T) error {
	t, err := entityTable(d, es)
	if err != nil || len(es) == 0 {
		return err
	}
	return d.write(ctx, "insert", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		for _, e := range es {
			ic := d.hooks(t)
			if err := d.init.EntityToInsert(ctx, sc, e); err != nil {
				return err
			}
			if err := ic.BeforeEntityInsert(ctx, e); err != nil {
				return err
			}
			rec := record.ToRecord(e)
			id, err := store.Insert(ctx, sc, t.TableName, rec, d.columns(t.TableName, rec.Keys()))
			if err != nil {
				return err
			}
			e.SystemFields().Id = id
			if err := ic.AfterEntityInsert(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Update persists e. On traced tables e ends up holding the new version's Id.
func Update[T record.Entity](ctx context.Context, d *DbContext, e T) error {
	return UpdateBatch(ctx, d, []T{e})
}

// UpdateBatch updates es in one unit of work.
func UpdateBatch[T record.Entity](ctx context.Context, d *DbContext, es []T) error {
	t, err := entityTable(d, es)
	if err != nil || len(es) == 0 {
		return err
	}
	return d.write(ctx, "update", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		for _, e := range es {
			ic := d.hooks(t)
			d.init.EntityToUpdate(ctx, e)
			if err := ic.BeforeEntityUpdate(ctx, e); err != nil {
				return err
			}
			if err := d.trace.UpdateEntity(ctx, sc, e, t.IsTraceable()); err != nil {
				return err
			}
			if err := ic.AfterEntityUpdate(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// Delete removes e. On traced tables a deleted marker version is written.
func Delete[T record.Entity](ctx context.Context, d *DbContext, e T) error {
	return DeleteBatch(ctx, d, []T{e})
}

// DeleteBatch deletes es in one unit of work.
func DeleteBatch[T record.Entity](ctx context.Context, d *DbContext, es []T) error {
	t, err := entityTable(d, es)
	if err != nil || len(es) == 0 {
		return err
	}
	return d.write(ctx, "delete", t.TableName, func(ctx context.Context, sc *txn.Scope) error {
		for _, e := range es {
			ic := d.hooks(t)
			if err := ic.BeforeEntityDelete(ctx, e); err != nil {
				return err
			}
			if err := d.trace.DeleteEntity(ctx, sc, e, t.IsTraceable()); err != nil {
				return err
			}
			if err := ic.AfterEntityDelete(ctx, e); err != nil {
				return err
			}
		}
		return nil
	})
}

// DeleteByFid deletes the visible version of fid.
func DeleteByFid[T record.Entity](ctx context.Context, d *DbContext, fid string) error {
	return d.InTransaction(ctx, func(ctx context.Context) error {
		e, err := GetByFid[T](ctx, d, fid)
		if err != nil {
			return err
		}
		if isNil(e) {
			return dberr.NotFound(tableName[T](), fid, "no current version")
		}
		return Delete(ctx, d, e)
	})
}

// DeleteByID deletes the row with surrogate key id.
func DeleteByID[T record.Entity](ctx context.Context, d *DbContext, id int64) error {
	return d.InTransaction(ctx, func(ctx context.Context) error {
		e, err := Get[T](ctx, d, id)
		if err != nil {
			return err
		}
		if isNil(e) {
			return dberr.NotFound(tableName[T](), fmt.Sprint(id), "no row with this Id")
		}
		return Delete(ctx, d, e)
	})
}

// Get returns the row with surrogate key id, or a nil T.
func Get[T record.Entity](ctx context.Context, d *DbContext, id int64) (T, error) {
	var zero T
	table, err := tableOf[T]()
	if err != nil {
		return zero, err
	}
	rec, err := d.Get(ctx, table, id)
	return scanOne[T](rec, err)
}

// GetByFid returns the visible version of fid, or a nil T.
func GetByFid[T record.Entity](ctx context.Context, d *DbContext, fid string, opts ...sqlaug.Option) (T, error) {
	var zero T
	table, err := tableOf[T]()
	if err != nil {
		return zero, err
	}
	rec, err := d.GetByFid(ctx, table, fid, opts...)
	return scanOne[T](rec, err)
}

// Query runs an augmented SELECT and scans every row into T.
func Query[T record.Entity](ctx context.Context, d *DbContext, sql string, params map[string]any, opts ...sqlaug.Option) ([]T, error) {
	table, err := tableOf[T]()
	if err != nil {
		return nil, err
	}
	rows, err := d.query(ctx, "query", table, sql, params, opts...)
	if err != nil {
		return nil, err
	}
	return scanAll[T](rows)
}

// QueryAll returns every visible row of T's table.
func QueryAll[T record.Entity](ctx context.Context, d *DbContext, opts ...sqlaug.Option) ([]T, error) {
	return QueryWhere[T](ctx, d, "", nil, opts...)
}

// QueryWhere returns the visible rows of T's table matching where.
func QueryWhere[T record.Entity](ctx context.Context, d *DbContext, where string, params map[string]any, opts ...sqlaug.Option) ([]T, error) {
	table, err := tableOf[T]()
	if err != nil {
		return nil, err
	}
	rows, err := d.QueryWhere(ctx, table, where, params, opts...)
	if err != nil {
		return nil, err
	}
	return scanAll[T](rows)
}

func QueryFirst[T record.Entity](ctx context.Context, d *DbContext, sql string, params map[string]any, opts ...sqlaug.Option) (T, error) {
	rows, err := Query[T](ctx, d, sql, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return first(rows, tableName[T](), true)
}

func QueryFirstOrDefault[T record.Entity](ctx context.Context, d *DbContext, sql string, params map[string]any, opts ...sqlaug.Option) (T, error) {
	rows, err := Query[T](ctx, d, sql, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return first(rows, tableName[T](), false)
}

func QuerySingle[T record.Entity](ctx context.Context, d *DbContext, sql string, params map[string]any, opts ...sqlaug.Option) (T, error) {
	rows, err := Query[T](ctx, d, sql, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return single(rows, tableName[T](), true)
}

func QuerySingleOrDefault[T record.Entity](ctx context.Context, d *DbContext, sql string, params map[string]any, opts ...sqlaug.Option) (T, error) {
	rows, err := Query[T](ctx, d, sql, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return single(rows, tableName[T](), false)
}

// QueryFirstOrDefaultWhere returns the first visible row matching where, or a nil T.
func QueryFirstOrDefaultWhere[T record.Entity](ctx context.Context, d *DbContext, where string, params map[string]any, opts ...sqlaug.Option) (T, error) {
	rows, err := QueryWhere[T](ctx, d, where, params, opts...)
	if err != nil {
		var zero T
		return zero, err
	}
	return first(rows, tableName[T](), false)
}

// Count returns the number of visible rows of T's table matching where.
func Count[T record.Entity](ctx context.Context, d *DbContext, where string, params map[string]any) (int64, error) {
	table, err := tableOf[T]()
	if err != nil {
		return 0, err
	}
	return d.Count(ctx, table, where, params)
}

// Sum totals column over the visible rows of T's table matching where.
func Sum[T record.Entity](ctx context.Context, d *DbContext, column, where string, params map[string]any) (float64, error) {
	table, err := tableOf[T]()
	if err != nil {
		return 0, err
	}
	return d.Sum(ctx, table, column, where, params)
}

func scanOne[T record.Entity](rec *record.Record, err error) (T, error) {
	var zero T
	if err != nil || rec == nil {
		return zero, err
	}
	e, err := newEntity[T]()
	if err != nil {
		return zero, err
	}
	if err := record.Scan(rec, e); err != nil {
		return zero, err
	}
	return e, nil
}

func scanAll[T record.Entity](rows []*record.Record) ([]T, error) {
	out := make([]T, 0, len(rows))
	for _, rec := range rows {
		e, err := newEntity[T]()
		if err != nil {
			return nil, err
		}
		if err := record.Scan(rec, e); err != nil {
			return nil, fmt.Errorf("scan %s: %w", rec.TableName(), err)
		}
		out = append(out, e)
	}
	return out, nil
}

func isNil[T record.Entity](e T) bool {
	v := reflect.ValueOf(e)
	return !v.IsValid() || (v.Kind() == reflect.Pointer && v.IsNil())
}
