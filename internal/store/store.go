package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/dberr"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/record"
)

// Executor runs statements; *txn.Scope is the production implementation.
type Executor interface {
	Do(fn func(ext sqlx.ExtContext) error) error
}

// Query runs a named-parameter statement and returns every row as a record.
func Query(ctx context.Context, ex Executor, table, query string, params map[string]any) ([]*record.Record, error) {
	var out []*record.Record
	err := ex.Do(func(ext sqlx.ExtContext) error {
		q, args, err := bind(ext, query, params)
		if err != nil {
			return err
		}
		rows, err := ext.QueryxContext(ctx, q, args...)
		if err != nil {
			return fmt.Errorf("query %s: %w", table, err)
		}
		defer rows.Close()
		cols, err := rows.Columns()
		if err != nil {
			return err
		}
		for rows.Next() {
			vals, err := rows.SliceScan()
			if err != nil {
				return fmt.Errorf("scan %s: %w", table, err)
			}
			out = append(out, record.FromColumns(table, cols, vals))
		}
		return rows.Err()
	})
	return out, err
}

// Scalar returns the first column of the first row, or nil when there is none.
func Scalar(ctx context.Context, ex Executor, query string, params map[string]any) (any, error) {
	recs, err := Query(ctx, ex, "", query, params)
	if err != nil || len(recs) == 0 {
		return nil, err
	}
	keys := recs[0].Keys()
	if len(keys) == 0 {
		return nil, nil
	}
	return recs[0].Get(keys[0]), nil
}

// Exec runs a named-parameter statement and returns the affected row count.
func Exec(ctx context.Context, ex Executor, query string, params map[string]any) (int64, error) {
	var n int64
	err := ex.Do(func(ext sqlx.ExtContext) error {
		q, args, err := bind(ext, query, params)
		if err != nil {
			return err
		}
		res, err := ext.ExecContext(ctx, q, args...)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n, err
}

// Insert writes columns of rec into table and returns the generated Id.
func Insert(ctx context.Context, ex Executor, table string, rec *record.Record, columns []string) (int64, error) {
	if err := checkIdentifiers(table, columns); err != nil {
		return 0, err
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = ":" + c
	}
	q := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s",
		table, strings.Join(columns, ", "), strings.Join(names, ", "), metadata.ColID)
	params := paramsFor(rec, columns)

	var id int64
	err := ex.Do(func(ext sqlx.ExtContext) error {
		bq, args, err := bind(ext, q, params)
		if err != nil {
			return err
		}
		if err := ext.QueryRowxContext(ctx, bq, args...).Scan(&id); err != nil {
			return fmt.Errorf("insert %s: %w", table, err)
		}
		return nil
	})
	return id, err
}

// Update writes columns of rec to the row whose Id matches and returns the affected count.
func Update(ctx context.Context, ex Executor, table string, rec *record.Record, columns []string) (int64, error) {
	if err := checkIdentifiers(table, columns); err != nil {
		return 0, err
	}
	if !rec.HasID() {
		return 0, dberr.InvalidInput(table, "update requires %s", metadata.ColID)
	}
	sets := make([]string, 0, len(columns))
	for _, c := range columns {
		if strings.EqualFold(c, metadata.ColID) {
			continue
		}
		sets = append(sets, c+" = :"+c)
	}
	if len(sets) == 0 {
		return 0, dberr.InvalidInput(table, "update without columns")
	}
	idKey := metadata.ColID
	q := fmt.Sprintf("UPDATE %s SET %s WHERE %s = :%s", table, strings.Join(sets, ", "), metadata.ColID, idKey)
	params := paramsFor(rec, columns)
	params[idKey] = rec.Get(metadata.ColID)
	n, err := Exec(ctx, ex, q, params)
	if err != nil {
		return 0, fmt.Errorf("update %s: %w", table, err)
	}
	return n, nil
}

// paramsFor maps each column name, as spelled in columns, to its value in rec.
func paramsFor(rec *record.Record, columns []string) map[string]any {
	params := make(map[string]any, len(columns)+1)
	for _, c := range columns {
		params[c] = rec.Get(c)
	}
	return params
}

func checkIdentifiers(table string, columns []string) error {
	if !metadata.ValidIdentifier(table) {
		return dberr.InvalidInput(table, "invalid table name")
	}
	if len(columns) == 0 {
		return dberr.InvalidInput(table, "no columns")
	}
	for _, c := range columns {
		if !metadata.ValidIdentifier(c) {
			return dberr.InvalidInput(table, "invalid column %q", c)
		}
	}
	return nil
}

func bind(ext sqlx.ExtContext, query string, params map[string]any) (string, []any, error) {
	if params == nil {
		params = map[string]any{}
	}
	q, args, err := sqlx.Named(query, params)
	if err != nil {
		return "", nil, dberr.InvalidInput("", "bind parameters: %v", err)
	}
	return ext.Rebind(q), args, nil
}
