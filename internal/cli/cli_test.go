package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ovaphlow/pitchfork/service-persistence-go/internal/appctx"
)

const catalogYAML = `
tables:
  - table_name: PurchaseOrder
    table_feature: BillFeature
    trace_able: 1
    columns:
      - col_name: BillCode
      - col_name: OrderNo
      - col_name: BillStatus
  - table_name: Customer
    data_interceptor: audit
    columns:
      - col_name: Name
bill_code_rules:
  - bill_entity: PurchaseOrder
    field_name: OrderNo
    prefix: PO
    sequence_len: 3
`

func writeCatalog(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte(catalogYAML), 0o600))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func dbArgs(t *testing.T) []string {
	return []string{"--driver", "sqlite", "--dsn", filepath.Join(t.TempDir(), "fap.db")}
}

func TestCatalogCheck(t *testing.T) {
	out, err := run(t, "catalog", "check", writeCatalog(t))
	require.NoError(t, err)
	assert.Contains(t, out, "PurchaseOrder\tcolumns=17 traced=true bill=true rules=1")
	assert.Contains(t, out, "2 tables ok")

	out, err = run(t, "--format", "json", "catalog", "check", writeCatalog(t))
	require.NoError(t, err)
	var summary []TableSummary
	require.NoError(t, json.Unmarshal([]byte(out), &summary))
	require.Len(t, summary, 2)
	assert.Equal(t, "Customer", summary[0].Table)
	assert.Equal(t, "audit", summary[0].Interceptor)

	bad := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("tables:\n  - table_name: \"x y\"\n"), 0o600))
	_, err = run(t, "catalog", "check", bad)
	assert.Error(t, err)
}

func TestSequenceNext(t *testing.T) {
	args := append(dbArgs(t), "sequence", "next", "Invoice")
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "1", strings.TrimSpace(out))

	out, err = run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "2", strings.TrimSpace(out))
}

func TestBillCode(t *testing.T) {
	args := append(dbArgs(t), "--catalog", writeCatalog(t), "billcode", "PurchaseOrder")
	out, err := run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "OrderNo=PO001", strings.TrimSpace(out))

	out, err = run(t, args...)
	require.NoError(t, err)
	assert.Equal(t, "OrderNo=PO002", strings.TrimSpace(out))

	_, err = run(t, append(dbArgs(t), "--catalog", writeCatalog(t), "billcode", "Customer")...)
	assert.ErrorContains(t, err, "not numbered")
}

func TestSchemaEnsure(t *testing.T) {
	out, err := run(t, append(dbArgs(t), "--catalog", writeCatalog(t), "schema", "ensure")...)
	require.NoError(t, err)
	assert.Equal(t, "ensured 2 tables", strings.TrimSpace(out))
}

func TestTokenIssue(t *testing.T) {
	out, err := run(t, "token", "issue", "--secret", "s3cret", "--emp", "emp-1", "--org", "org-1")
	require.NoError(t, err)
	ac, err := appctx.ParseToken(strings.TrimSpace(out), []byte("s3cret"))
	require.NoError(t, err)
	assert.Equal(t, "emp-1", ac.EmpUid)
	assert.Equal(t, "org-1", ac.OrgUid)

	t.Setenv("JWT_SECRET", "")
	_, err = run(t, "token", "issue")
	assert.ErrorContains(t, err, "no secret")
}

func TestInvalidFormat(t *testing.T) {
	_, err := run(t, "--format", "xml", "catalog", "check", writeCatalog(t))
	assert.ErrorContains(t, err, "invalid format")
}
