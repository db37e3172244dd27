package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata"
	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
	"github.com/ovaphlow/pitchfork/service-persistence-go/pkg/database"
)

// columnDDL renders a column definition for driver.
func columnDDL(driver string, col entity.FapColumn) string {
	pg := database.IsPostgres(driver)
	if strings.EqualFold(col.ColName, metadata.ColID) {
		if pg {
			return col.ColName + " BIGSERIAL PRIMARY KEY"
		}
		return col.ColName + " INTEGER PRIMARY KEY AUTOINCREMENT"
	}
	var typ string
	switch strings.ToLower(col.ColType) {
	case "bigint", "long":
		typ = "BIGINT"
	case "int", "integer":
		typ = "INTEGER"
	case "double", "decimal", "float", "number":
		typ = "REAL"
		if pg {
			typ = "DOUBLE PRECISION"
		}
	default:
		typ = "TEXT"
	}
	if strings.EqualFold(col.ColName, metadata.ColDr) {
		return col.ColName + " " + typ + " NOT NULL DEFAULT 0"
	}
	return col.ColName + " " + typ
}

// EnsureTable creates table with cols if it does not exist, plus an index on Fid.
func EnsureTable(ctx context.Context, ex Executor, table string, cols []entity.FapColumn) error {
	if !metadata.ValidIdentifier(table) {
		return fmt.Errorf("ensure table: invalid name %q", table)
	}
	if len(cols) == 0 {
		return fmt.Errorf("ensure table %s: no columns", table)
	}
	return ex.Do(func(ext sqlx.ExtContext) error {
		defs := make([]string, 0, len(cols))
		hasFid := false
		for _, c := range cols {
			if !metadata.ValidIdentifier(c.ColName) {
				return fmt.Errorf("ensure table %s: invalid column %q", table, c.ColName)
			}
			if strings.EqualFold(c.ColName, metadata.ColFid) {
				hasFid = true
			}
			defs = append(defs, columnDDL(ext.DriverName(), c))
		}
		ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(defs, ", "))
		if _, err := ext.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("create table %s: %w", table, err)
		}
		if hasFid {
			idx := fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_fid ON %s (%s)", strings.ToLower(table), table, metadata.ColFid)
			if _, err := ext.ExecContext(ctx, idx); err != nil {
				return fmt.Errorf("create index on %s: %w", table, err)
			}
		}
		return nil
	})
}

// ColumnSource supplies declared columns.
type ColumnSource interface {
	Tables() []entity.FapTable
	Columns(table string) []entity.FapColumn
}

// EnsureCatalog creates every table the catalog declares.
func EnsureCatalog(ctx context.Context, ex Executor, c ColumnSource) error {
	for _, t := range c.Tables() {
		if err := EnsureTable(ctx, ex, t.TableName, c.Columns(t.TableName)); err != nil {
			return err
		}
	}
	return nil
}
