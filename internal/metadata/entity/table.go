package entity

import "strings"

// BillFeature marks a table whose rows are business documents.
const BillFeature = "BillFeature"

// FapTable describes one business table.
type FapTable struct {
	TableName       string `yaml:"table_name" json:"tableName" db:"TableName"`
	TableComment    string `yaml:"table_comment" json:"tableComment" db:"TableComment"`
	TableFeature    string `yaml:"table_feature" json:"tableFeature" db:"TableFeature"`
	TraceAble       int    `yaml:"trace_able" json:"traceAble" db:"TraceAble"`
	DataInterceptor string `yaml:"data_interceptor" json:"dataInterceptor" db:"DataInterceptor"`
}

// IsTraceable reports whether updates and deletes keep history.
func (t *FapTable) IsTraceable() bool { return t.TraceAble == 1 }

// IsBill reports whether the table carries BillFeature.
func (t *FapTable) IsBill() bool { return strings.Contains(t.TableFeature, BillFeature) }
