package dbcontext

import (
	"context"
	"fmt"
	"strings"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/sqlaug"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/store"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/txn"
)

// Execute runs a statement and returns the affected row count.
func (d *DbContext) Execute(ctx context.Context, sql string, params map[string]any) (int64, error) {
	var n int64
	err := d.read(ctx, "execute", "", func(ctx context.Context, sc *txn.Scope) error {
		q, p, err := d.aug.Wrap(ctx, sql, params)
		if err != nil {
			return err
		}
		n, err = store.Exec(ctx, sc, q, p)
		return err
	})
	return n, err
}

// ExecuteScalar returns the first column of the first row, or nil.
func (d *DbContext) ExecuteScalar(ctx context.Context, sql string, params map[string]any) (any, error) {
	var v any
	err := d.read(ctx, "execute_scalar", "", func(ctx context.Context, sc *txn.Scope) error {
		q, p, err := d.aug.Wrap(ctx, sql, params)
		if err != nil {
			return err
		}
		v, err = store.Scalar(ctx, sc, q, p)
		return err
	})
	return v, err
}

// DeleteExec physically deletes the rows of table matching where.
func (d *DbContext) DeleteExec(ctx context.Context, table, where string, params map[string]any) (int64, error) {
	if _, err := d.table(table); err != nil {
		return 0, err
	}
	if strings.TrimSpace(where) == "" {
		return 0, dberr.InvalidInput(table, "delete requires a condition")
	}
	var n int64
	err := d.write(ctx, "delete_exec", table, func(ctx context.Context, sc *txn.Scope) error {
		var err error
		n, err = store.Exec(ctx, sc, fmt.Sprintf("DELETE FROM %s WHERE %s", table, where), params)
		return err
	})
	return n, err
}

// Query runs an augmented SELECT and returns every visible row.
func (d *DbContext) Query(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) ([]*record.Record, error) {
	return d.query(ctx, "query", "", sql, params, opts...)
}

func (d *DbContext) query(ctx context.Context, op, table, sql string, params map[string]any, opts ...sqlaug.Option) ([]*record.Record, error) {
	var rows []*record.Record
	err := d.read(ctx, op, table, func(ctx context.Context, sc *txn.Scope) error {
		q, p, err := d.aug.Wrap(ctx, sql, params, opts...)
		if err != nil {
			return err
		}
		rows, err = store.Query(ctx, sc, table, q, p)
		return err
	})
	return rows, err
}

// QueryFirst returns the first row and fails when there is none.
func (d *DbContext) QueryFirst(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) (*record.Record, error) {
	rows, err := d.Query(ctx, sql, params, opts...)
	if err != nil {
		return nil, err
	}
	return first(rows, "", true)
}

// QueryFirstOrDefault returns the first row, or nil when there is none.
func (d *DbContext) QueryFirstOrDefault(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) (*record.Record, error) {
	rows, err := d.Query(ctx, sql, params, opts...)
	if err != nil {
		return nil, err
	}
	return first(rows, "", false)
}

// QuerySingle returns the only row and fails on zero or several rows.
func (d *DbContext) QuerySingle(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) (*record.Record, error) {
	rows, err := d.Query(ctx, sql, params, opts...)
	if err != nil {
		return nil, err
	}
	return single(rows, "", true)
}

// QuerySingleOrDefault returns the only row, nil on zero rows, and fails on several.
func (d *DbContext) QuerySingleOrDefault(ctx context.Context, sql string, params map[string]any, opts ...sqlaug.Option) (*record.Record, error) {
	rows, err := d.Query(ctx, sql, params, opts...)
	if err != nil {
		return nil, err
	}
	return single(rows, "", false)
}

// QueryWhere returns the visible rows of table matching where. An empty
// where returns every visible row.
func (d *DbContext) QueryWhere(ctx context.Context, table, where string, params map[string]any, opts ...sqlaug.Option) ([]*record.Record, error) {
	if _, err := d.table(table); err != nil {
		return nil, err
	}
	return d.query(ctx, "query_where", table, selectFrom(table, where), params, opts...)
}

// QueryFirstOrDefaultWhere returns the first row of QueryWhere, or nil.
func (d *DbContext) QueryFirstOrDefaultWhere(ctx context.Context, table, where string, params map[string]any, opts ...sqlaug.Option) (*record.Record, error) {
	rows, err := d.QueryWhere(ctx, table, where, params, opts...)
	if err != nil {
		return nil, err
	}
	return first(rows, table, false)
}

// Get returns the row with surrogate key id, whatever its validity, or nil.
func (d *DbContext) Get(ctx context.Context, table string, id int64) (*record.Record, error) {
	if _, err := d.table(table); err != nil {
		return nil, err
	}
	var rows []*record.Record
	err := d.read(ctx, "get", table, func(ctx context.Context, sc *txn.Scope) error {
		var err error
		q := fmt.Sprintf("SELECT * FROM %s WHERE %s = :%s", table, metadata.ColID, metadata.ColID)
		rows, err = store.Query(ctx, sc, table, q, map[string]any{metadata.ColID: id})
		return err
	})
	if err != nil {
		return nil, err
	}
	return first(rows, table, false)
}

// GetByFid returns the visible version of fid, or nil.
func (d *DbContext) GetByFid(ctx context.Context, table, fid string, opts ...sqlaug.Option) (*record.Record, error) {
	if _, err := d.table(table); err != nil {
		return nil, err
	}
	if strings.TrimSpace(fid) == "" {
		return nil, dberr.InvalidInput(table, "%s is required", metadata.ColFid)
	}
	where := fmt.Sprintf("%s = :%s", metadata.ColFid, metadata.ColFid)
	rows, err := d.query(ctx, "get_by_fid", table, selectFrom(table, where), map[string]any{metadata.ColFid: fid}, opts...)
	if err != nil {
		return nil, err
	}
	return single(rows, table, false)
}

// Count returns the number of visible rows of table matching where.
func (d *DbContext) Count(ctx context.Context, table, where string, params map[string]any) (int64, error) {
	if _, err := d.table(table); err != nil {
		return 0, err
	}
	v, err := d.scalar(ctx, "count", table, aggregate("COUNT(1)", table, where), params)
	return record.ToInt64(v), err
}

// Sum totals column over the visible rows of table matching where.
func (d *DbContext) Sum(ctx context.Context, table, column, where string, params map[string]any) (float64, error) {
	if _, err := d.table(table); err != nil {
		return 0, err
	}
	if !metadata.ValidIdentifier(column) {
		return 0, dberr.InvalidInput(table, "invalid column %q", column)
	}
	v, err := d.scalar(ctx, "sum", table, aggregate("COALESCE(SUM("+column+"), 0)", table, where), params)
	return record.ToFloat64(v), err
}

func (d *DbContext) scalar(ctx context.Context, op, table, sql string, params map[string]any) (any, error) {
	var v any
	err := d.read(ctx, op, table, func(ctx context.Context, sc *txn.Scope) error {
		q, p, err := d.aug.Wrap(ctx, sql, params)
		if err != nil {
			return err
		}
		v, err = store.Scalar(ctx, sc, q, p)
		return err
	})
	return v, err
}

// History returns every version of fid, deleted markers included, oldest first.
func (d *DbContext) History(ctx context.Context, table, fid string) ([]*record.Record, error) {
	if _, err := d.table(table); err != nil {
		return nil, err
	}
	var rows []*record.Record
	err := d.read(ctx, "history", table, func(ctx context.Context, sc *txn.Scope) error {
		q := fmt.Sprintf("SELECT * FROM %s WHERE %s = :%s ORDER BY %s, %s",
			table, metadata.ColFid, metadata.ColFid, metadata.ColEnableDate, metadata.ColID)
		var err error
		rows, err = store.Query(ctx, sc, table, q, map[string]any{metadata.ColFid: fid})
		return err
	})
	return rows, err
}

func selectFrom(table, where string) string {
	return aggregate("*", table, where)
}

func aggregate(expr, table, where string) string {
	q := fmt.Sprintf("SELECT %s FROM %s", expr, table)
	if strings.TrimSpace(where) != "" {
		q += " WHERE " + where
	}
	return q
}

func first[E any](rows []E, table string, required bool) (E, error) {
	var zero E
	if len(rows) == 0 {
		if required {
			return zero, dberr.NotFound(table, "", "sequence contains no elements")
		}
		return zero, nil
	}
	return rows[0], nil
}

func single[E any](rows []E, table string, required bool) (E, error) {
	if len(rows) > 1 {
		var zero E
		return zero, dberr.InvalidInput(table, "more than one element")
	}
	return first(rows, table, required)
}
