package entity

import "strings"

// Column default tokens.
const (
	DefaultCurrentDate     = "current-date"
	DefaultCurrentEmployee = "current-employee"
	DefaultCurrentUser     = "current-user"
	DefaultCurrentDept     = "current-dept"
	DefaultCurrentDeptCode = "current-dept-code"
	DefaultSQLPrefix       = "sql:"
)

// FapColumn describes one column of a business table.
type FapColumn struct {
	TableName         string `yaml:"table_name" json:"tableName" db:"TableName"`
	ColName           string `yaml:"col_name" json:"colName" db:"ColName"`
	ColComment        string `yaml:"col_comment" json:"colComment" db:"ColComment"`
	ColType           string `yaml:"col_type" json:"colType" db:"ColType"`
	IsDefaultCol      int    `yaml:"is_default_col" json:"isDefaultCol" db:"IsDefaultCol"`
	ColDefault        string `yaml:"col_default" json:"colDefault" db:"ColDefault"`
	DefaultValueClass string `yaml:"default_value_class" json:"defaultValueClass" db:"DefaultValueClass"`
	RefTable          string `yaml:"ref_table" json:"refTable" db:"RefTable"`
	RefID             string `yaml:"ref_id" json:"refId" db:"RefID"`
	RefName           string `yaml:"ref_name" json:"refName" db:"RefName"`
}

// IsSystem reports whether the column is maintained by the engine.
func (c *FapColumn) IsSystem() bool { return c.IsDefaultCol == 1 }

// HasReference reports whether a display-name lookup is declared.
func (c *FapColumn) HasReference() bool {
	return c.RefTable != "" && c.RefID != "" && c.RefName != ""
}

// HasDefault reports whether the initializer has anything to fill in.
func (c *FapColumn) HasDefault() bool {
	return strings.TrimSpace(c.ColDefault) != "" || strings.TrimSpace(c.DefaultValueClass) != ""
}
