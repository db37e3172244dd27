package metadata

import (
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/metadata/entity"
)

var identifierPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// ValidIdentifier reports whether name can be spliced into SQL as a table or column.
func ValidIdentifier(name string) bool {
	return len(name) <= 128 && identifierPattern.MatchString(name)
}

type tableDoc struct {
	entity.FapTable   `yaml:",inline"`
	SkipSystemColumns bool               `yaml:"skip_system_columns"`
	Columns           []entity.FapColumn `yaml:"columns"`
}

type catalogDoc struct {
	Tables        []tableDoc               `yaml:"tables"`
	BillCodeRules []entity.CfgBillCodeRule `yaml:"bill_code_rules"`
}

// LoadFile reads a YAML catalog from path.
func LoadFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open catalog: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// Load decodes a YAML catalog. Unless a table sets skip_system_columns,
// the system columns are declared for it ahead of its own columns.
func Load(r io.Reader) (*Catalog, error) {
	var doc catalogDoc
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil && err != io.EOF {
		return nil, fmt.Errorf("decode catalog: %w", err)
	}

	c := NewCatalog()
	for i, td := range doc.Tables {
		name := strings.TrimSpace(td.TableName)
		if !ValidIdentifier(name) {
			return nil, fmt.Errorf("tables[%d]: invalid table name %q", i, td.TableName)
		}
		if _, dup := c.Table(name); dup {
			return nil, fmt.Errorf("tables[%d]: duplicate table %q", i, name)
		}
		td.FapTable.TableName = name
		c.AddTable(td.FapTable)
		if !td.SkipSystemColumns {
			c.AddColumns(SystemColumns(name)...)
		}
		for j, col := range td.Columns {
			if !ValidIdentifier(col.ColName) {
				return nil, fmt.Errorf("tables[%d].columns[%d]: invalid column name %q", i, j, col.ColName)
			}
			if col.RefTable != "" && (!ValidIdentifier(col.RefTable) || !ValidIdentifier(col.RefID) || !ValidIdentifier(col.RefName)) {
				return nil, fmt.Errorf("tables[%d].columns[%d]: invalid reference on %q", i, j, col.ColName)
			}
			col.TableName = name
			c.AddColumns(col)
		}
	}
	for i, rule := range doc.BillCodeRules {
		if _, ok := c.Table(rule.BillEntity); !ok {
			return nil, fmt.Errorf("bill_code_rules[%d]: unknown table %q", i, rule.BillEntity)
		}
		if !ValidIdentifier(rule.FieldName) {
			return nil, fmt.Errorf("bill_code_rules[%d]: invalid field %q", i, rule.FieldName)
		}
		c.AddBillCodeRules(rule)
	}
	return c, nil
}
