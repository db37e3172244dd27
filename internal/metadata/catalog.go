package metadata

import (
	"sort"
	"strings"
	"sync"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
)

// System column names shared by every business table.
const (
	ColID          = "Id"
	ColFid         = "Fid"
	ColCreateDate  = "CreateDate"
	ColUpdateDate  = "UpdateDate"
	ColEnableDate  = "EnableDate"
	ColDisableDate = "DisableDate"
	ColTs          = "Ts"
	ColDr          = "Dr"
	ColCreateBy    = "CreateBy"
	ColCreateName  = "CreateName"
	ColUpdateBy    = "UpdateBy"
	ColUpdateName  = "UpdateName"
	ColOrgUid      = "OrgUid"
	ColGroupUid    = "GroupUid"

	ColBillStatus = "BillStatus"
	BillDraft     = "DRAFT"
)

var systemColumns = []struct{ name, typ string }{
	{ColID, "bigint"},
	{ColFid, "string"},
	{ColCreateDate, "string"},
	{ColUpdateDate, "string"},
	{ColEnableDate, "string"},
	{ColDisableDate, "string"},
	{ColTs, "bigint"},
	{ColDr, "int"},
	{ColCreateBy, "string"},
	{ColCreateName, "string"},
	{ColUpdateBy, "string"},
	{ColUpdateName, "string"},
	{ColOrgUid, "string"},
	{ColGroupUid, "string"},
}

// SystemColumns returns the engine-maintained columns for table.
func SystemColumns(table string) []entity.FapColumn {
	out := make([]entity.FapColumn, 0, len(systemColumns))
	for _, c := range systemColumns {
		out = append(out, entity.FapColumn{TableName: table, ColName: c.name, ColType: c.typ, IsDefaultCol: 1})
	}
	return out
}

// IsSystemColumn reports whether name is one of the engine-maintained columns.
func IsSystemColumn(name string) bool {
	for _, c := range systemColumns {
		if strings.EqualFold(c.name, name) {
			return true
		}
	}
	return false
}

// Catalog is the in-memory metadata store. It is safe for concurrent reads
// once populated; registration takes a write lock.
type Catalog struct {
	mu      sync.RWMutex
	tables  map[string]entity.FapTable
	columns map[string][]entity.FapColumn
	rules   map[string][]entity.CfgBillCodeRule
}

func NewCatalog() *Catalog {
	return &Catalog{
		tables:  make(map[string]entity.FapTable),
		columns: make(map[string][]entity.FapColumn),
		rules:   make(map[string][]entity.CfgBillCodeRule),
	}
}

func key(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// AddTable registers or replaces a table.
func (c *Catalog) AddTable(t entity.FapTable) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tables[key(t.TableName)] = t
}

// AddColumns appends columns; a column already declared for a table is replaced.
func (c *Catalog) AddColumns(cols ...entity.FapColumn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, col := range cols {
		k := key(col.TableName)
		list := c.columns[k]
		replaced := false
		for i := range list {
			if strings.EqualFold(list[i].ColName, col.ColName) {
				list[i] = col
				replaced = true
				break
			}
		}
		if !replaced {
			list = append(list, col)
		}
		c.columns[k] = list
	}
}

// AddBillCodeRules appends numbering rules.
func (c *Catalog) AddBillCodeRules(rules ...entity.CfgBillCodeRule) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, r := range rules {
		k := key(r.BillEntity)
		c.rules[k] = append(c.rules[k], r)
	}
}

// Table returns the table registered under name, ignoring case.
func (c *Catalog) Table(name string) (entity.FapTable, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	t, ok := c.tables[key(name)]
	return t, ok
}

// Columns returns a copy of the declared columns of table.
func (c *Catalog) Columns(table string) []entity.FapColumn {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.columns[key(table)]
	out := make([]entity.FapColumn, len(list))
	copy(out, list)
	return out
}

// Column looks up one declared column.
func (c *Catalog) Column(table, name string) (entity.FapColumn, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, col := range c.columns[key(table)] {
		if strings.EqualFold(col.ColName, name) {
			return col, true
		}
	}
	return entity.FapColumn{}, false
}

// BillCodeRules returns the numbering rules of table.
func (c *Catalog) BillCodeRules(table string) []entity.CfgBillCodeRule {
	c.mu.RLock()
	defer c.mu.RUnlock()
	list := c.rules[key(table)]
	out := make([]entity.CfgBillCodeRule, len(list))
	copy(out, list)
	return out
}

// Tables lists every registered table sorted by name.
func (c *Catalog) Tables() []entity.FapTable {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]entity.FapTable, 0, len(c.tables))
	for _, t := range c.tables {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].TableName < out[j].TableName })
	return out
}
