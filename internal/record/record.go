package record

import (
	"bytes"
	"encoding/json"
	"strings"
	"sync"
)

// Record is a dynamic row bound to a table. Column lookup ignores case while
// the original spelling and insertion order are kept for SQL and JSON output.
type Record struct {
	mu       sync.RWMutex
	table    string
	columns  map[string]any
	lowerKey map[string]string
	keys     []string
}

// New returns an empty record for table.
func New(table string) *Record {
	return &Record{
		table:    table,
		columns:  make(map[string]any),
		lowerKey: make(map[string]string),
	}
}

// FromMap builds a record from m. Keys are added in sorted order so the
// result is deterministic.
func FromMap(table string, m map[string]any) *Record {
	r := New(table)
	for _, k := range sortedKeys(m) {
		r.Set(k, m[k])
	}
	return r
}

// FromColumns builds a record from a scanned row, normalizing driver values.
func FromColumns(table string, cols []string, vals []any) *Record {
	r := New(table)
	for i, c := range cols {
		if i < len(vals) {
			r.Set(c, normalize(vals[i]))
		}
	}
	return r
}

func (r *Record) TableName() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.table
}

func (r *Record) SetTableName(table string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.table = table
}

// Set stores value under column, reusing the existing spelling if present.
func (r *Record) Set(column string, value any) *Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	lk := strings.ToLower(column)
	if existing, ok := r.lowerKey[lk]; ok {
		r.columns[existing] = value
		return r
	}
	r.columns[column] = value
	r.lowerKey[lk] = column
	r.keys = append(r.keys, column)
	return r
}

// Get returns the value of column or nil.
func (r *Record) Get(column string) any {
	v, _ := r.Lookup(column)
	return v
}

// Lookup returns the value of column and whether it exists.
func (r *Record) Lookup(column string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	k, ok := r.lowerKey[strings.ToLower(column)]
	if !ok {
		return nil, false
	}
	return r.columns[k], true
}

// Assign sets column; it always succeeds for a record.
func (r *Record) Assign(column string, value any) bool {
	r.Set(column, value)
	return true
}

func (r *Record) Has(column string) bool {
	_, ok := r.Lookup(column)
	return ok
}

// Present reports whether column exists with a non-blank value.
func (r *Record) Present(column string) bool {
	v, ok := r.Lookup(column)
	return ok && !IsBlank(v)
}

// HasID reports whether the record carries a positive Id.
func (r *Record) HasID() bool {
	return r.GetInt64("Id") > 0
}

// Remove deletes column.
func (r *Record) Remove(column string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	lk := strings.ToLower(column)
	k, ok := r.lowerKey[lk]
	if !ok {
		return
	}
	delete(r.columns, k)
	delete(r.lowerKey, lk)
	for i, key := range r.keys {
		if key == k {
			r.keys = append(r.keys[:i], r.keys[i+1:]...)
			break
		}
	}
}

// Keys returns column names in insertion order.
func (r *Record) Keys() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, len(r.keys))
	copy(out, r.keys)
	return out
}

// Len is the number of columns.
func (r *Record) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.keys)
}

// ToMap copies the columns into a plain map.
func (r *Record) ToMap() map[string]any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]any, len(r.columns))
	for k, v := range r.columns {
		out[k] = v
	}
	return out
}

// Clone returns a shallow copy with the same table and column order.
func (r *Record) Clone() *Record {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c := New(r.table)
	for _, k := range r.keys {
		c.columns[k] = r.columns[k]
		c.lowerKey[strings.ToLower(k)] = k
		c.keys = append(c.keys, k)
	}
	return c
}

func (r *Record) GetString(column string) string { return ToString(r.Get(column)) }

func (r *Record) GetInt64(column string) int64 { return ToInt64(r.Get(column)) }

func (r *Record) GetInt(column string) int { return int(ToInt64(r.Get(column))) }

// MarshalJSON writes the columns in insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range r.keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		kb, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		vb, err := json.Marshal(r.columns[k])
		if err != nil {
			return nil, err
		}
		buf.Write(kb)
		buf.WriteByte(':')
		buf.Write(vb)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
