package record

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type employee struct {
	BaseModel
	EmpName  string
	DeptUid  string  `db:"DeptUid"`
	Salary   float64 `db:"Salary"`
	internal string
	Skipped  string `db:"-"`
}

func (employee) TableName() string { return "Employee" }

type plain struct {
	BaseModel
	Code string
}

func TestRecordIsCaseInsensitive(t *testing.T) {
	r := New("Employee")
	r.Set("EmpName", "Ann").Set("empname", "Bob")

	assert.Equal(t, []string{"EmpName"}, r.Keys())
	assert.Equal(t, "Bob", r.Get("EMPNAME"))
	assert.True(t, r.Has("empName"))
	assert.False(t, r.Present("Missing"))

	r.Set("Note", "  ")
	assert.False(t, r.Present("note"))

	r.Set("Qty", 0)
	assert.True(t, r.Present("qty"))
	assert.False(t, r.HasID())
	r.Set("Id", int64(0))
	assert.False(t, r.HasID())
	r.Set("Id", "12")
	assert.True(t, r.HasID())
	r.Remove("Qty")
	r.Remove("Id")

	r.Remove("EMPNAME")
	assert.Equal(t, []string{"Note"}, r.Keys())
}

func TestCloneIsIndependent(t *testing.T) {
	r := New("Employee").Set("Id", int64(1)).Set("Fid", "f1")
	c := r.Clone()
	c.Set("Fid", "f2")

	assert.Equal(t, "f1", r.GetString("Fid"))
	assert.Equal(t, "Employee", c.TableName())
	assert.Equal(t, r.Keys(), c.Keys())
}

func TestMarshalKeepsOrder(t *testing.T) {
	r := New("T").Set("b", 1).Set("a", "x")
	out, err := json.Marshal(r)
	require.NoError(t, err)
	assert.Equal(t, `{"b":1,"a":"x"}`, string(out))
}

func TestEntityRoundTrip(t *testing.T) {
	e := &employee{EmpName: "Ann", DeptUid: "d1", Salary: 12.5, internal: "x", Skipped: "y"}
	e.Fid = "f1"
	e.Ts = 42

	r := ToRecord(e)
	assert.Equal(t, "Employee", r.TableName())
	assert.False(t, r.Has("internal"))
	assert.False(t, r.Has("Skipped"))
	assert.Equal(t, "f1", r.Get("Fid"))

	lower := New("Employee")
	for _, k := range r.Keys() {
		lower.Set(toLower(k), r.Get(k))
	}
	lower.Set("salary", []byte("99.5"))
	lower.Set("ts", "43")

	var back employee
	require.NoError(t, Scan(lower, &back))
	assert.Equal(t, "Ann", back.EmpName)
	assert.Equal(t, "f1", back.Fid)
	assert.Equal(t, 99.5, back.Salary)
	assert.Equal(t, int64(43), back.Ts)
	assert.Empty(t, back.Skipped)
}

func TestFieldsAccessor(t *testing.T) {
	e := &plain{Code: "C1"}
	fs, err := FieldsOf(e)
	require.NoError(t, err)
	assert.Equal(t, "plain", fs.TableName())

	v, ok := fs.Lookup("code")
	require.True(t, ok)
	assert.Equal(t, "C1", v)

	assert.True(t, fs.Assign("dr", int64(1)))
	assert.Equal(t, 1, e.Dr)
	assert.False(t, fs.Assign("BillCode", "X"))

	_, err = FieldsOf(plain{})
	assert.Error(t, err)

	assert.Contains(t, Columns(e), "GroupUid")
	assert.Same(t, &e.BaseModel, e.SystemFields())
}

func TestBlankAndConversions(t *testing.T) {
	assert.True(t, IsBlank(nil))
	assert.True(t, IsBlank(" "))
	assert.False(t, IsBlank(int64(0)))
	assert.True(t, IsUnset(int64(0)))
	assert.True(t, IsUnset(""))
	assert.False(t, IsUnset(2.5))
	assert.False(t, IsBlank("x"))
	assert.False(t, IsBlank(3))

	assert.Equal(t, int64(7), ToInt64("7"))
	assert.Equal(t, int64(7), ToInt64(json.Number("7")))
	assert.Equal(t, 1.5, ToFloat64([]byte("1.5")))
	assert.Equal(t, "", ToString(nil))
}

func toLower(s string) string {
	b := []byte(s)
	for i, c := range b {
		if c >= 'A' && c <= 'Z' {
			b[i] = c + 32
		}
	}
	return string(b)
}
