package record

import (
	"fmt"
	"reflect"
	"strings"
	"sync"
)

// Fields gives uniform column access over typed entities and records.
type Fields interface {
	TableName() string
	Lookup(column string) (any, bool)
	Assign(column string, value any) bool
}

type fieldInfo struct {
	column string
	index  []int
}

type structInfo struct {
	fields  []fieldInfo
	byLower map[string]int
}

var structCache sync.Map // reflect.Type -> *structInfo

func infoOf(t reflect.Type) *structInfo {
	if v, ok := structCache.Load(t); ok {
		return v.(*structInfo)
	}
	info := &structInfo{byLower: make(map[string]int)}
	collectFields(t, nil, info)
	v, _ := structCache.LoadOrStore(t, info)
	return v.(*structInfo)
}

func collectFields(t reflect.Type, parent []int, info *structInfo) {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		idx := append(append([]int{}, parent...), i)
		tag := f.Tag.Get("db")
		if tag == "-" {
			continue
		}
		if f.Anonymous && f.Type.Kind() == reflect.Struct && tag == "" {
			collectFields(f.Type, idx, info)
			continue
		}
		if !f.IsExported() {
			continue
		}
		name := f.Name
		if tag != "" {
			name = strings.Split(tag, ",")[0]
		}
		lk := strings.ToLower(name)
		if _, dup := info.byLower[lk]; dup {
			continue
		}
		info.byLower[lk] = len(info.fields)
		info.fields = append(info.fields, fieldInfo{column: name, index: idx})
	}
}

type structFields struct {
	table string
	v     reflect.Value
	info  *structInfo
}

// FieldsOf wraps a pointer to a struct.
func FieldsOf(e any) (Fields, error) {
	rv := reflect.ValueOf(e)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return nil, fmt.Errorf("record: %T is not a pointer to struct", e)
	}
	return &structFields{table: TableNameOf(e), v: rv.Elem(), info: infoOf(rv.Elem().Type())}, nil
}

func (s *structFields) TableName() string { return s.table }

func (s *structFields) Lookup(column string) (any, bool) {
	i, ok := s.info.byLower[strings.ToLower(column)]
	if !ok {
		return nil, false
	}
	return s.v.FieldByIndex(s.info.fields[i].index).Interface(), true
}

// Assign sets column when the struct declares it and the value converts.
func (s *structFields) Assign(column string, value any) bool {
	i, ok := s.info.byLower[strings.ToLower(column)]
	if !ok {
		return false
	}
	return assign(s.v.FieldByIndex(s.info.fields[i].index), value) == nil
}

// Columns lists the mapped column names of e in declaration order.
func Columns(e any) []string {
	rt := reflect.TypeOf(e)
	for rt.Kind() == reflect.Pointer {
		rt = rt.Elem()
	}
	info := infoOf(rt)
	out := make([]string, len(info.fields))
	for i, f := range info.fields {
		out[i] = f.column
	}
	return out
}

// ToRecord copies every mapped field of the struct pointed to by e.
func ToRecord(e any) *Record {
	rv := reflect.Indirect(reflect.ValueOf(e))
	info := infoOf(rv.Type())
	r := New(TableNameOf(e))
	for _, f := range info.fields {
		r.Set(f.column, rv.FieldByIndex(f.index).Interface())
	}
	return r
}

// Scan copies the columns of src into the struct pointed to by dst,
// matching names without regard to case. Unknown columns are ignored.
func Scan(src *Record, dst any) error {
	fs, err := FieldsOf(dst)
	if err != nil {
		return err
	}
	sf := fs.(*structFields)
	for _, k := range src.Keys() {
		i, ok := sf.info.byLower[strings.ToLower(k)]
		if !ok {
			continue
		}
		if err := assign(sf.v.FieldByIndex(sf.info.fields[i].index), src.Get(k)); err != nil {
			return fmt.Errorf("record: column %s: %w", k, err)
		}
	}
	return nil
}

func assign(field reflect.Value, value any) error {
	if !field.CanSet() {
		return fmt.Errorf("field not settable")
	}
	value = normalize(value)
	if value == nil {
		field.Set(reflect.Zero(field.Type()))
		return nil
	}
	src := reflect.ValueOf(value)
	if src.Type().AssignableTo(field.Type()) {
		field.Set(src)
		return nil
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(ToString(value))
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		field.SetInt(ToInt64(value))
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		field.SetUint(uint64(ToInt64(value)))
	case reflect.Float32, reflect.Float64:
		field.SetFloat(ToFloat64(value))
	case reflect.Bool:
		s := strings.ToLower(ToString(value))
		field.SetBool(s == "true" || ToInt64(value) != 0)
	case reflect.Pointer:
		elem := reflect.New(field.Type().Elem())
		if err := assign(elem.Elem(), value); err != nil {
			return err
		}
		field.Set(elem)
	default:
		if src.Type().ConvertibleTo(field.Type()) {
			field.Set(src.Convert(field.Type()))
			return nil
		}
		return fmt.Errorf("cannot assign %T to %s", value, field.Type())
	}
	return nil
}
