package handlers

import (
	"fmt"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// table is one rendered block of a report: a header row plus string cells.
type table struct {
	Title   string
	Columns []string
	Rows    [][]string
}

// tablesOf flattens report rows into tables. A slice of structs becomes one
// table with a column per JSON field. A single struct becomes a field/value
// table, followed by one table per nested slice field.
func tablesOf(rows any) []table {
	v := reflect.ValueOf(rows)
	for v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return nil
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Slice:
		return []table{sliceTable("", v)}
	case reflect.Struct:
		kv := table{Columns: []string{"field", "value"}}
		var nested []table
		for _, f := range fieldsOf(v.Type()) {
			fv := v.Field(f.index)
			if fv.Kind() == reflect.Slice {
				nested = append(nested, sliceTable(f.name, fv))
				continue
			}
			kv.Rows = append(kv.Rows, []string{f.name, formatCell(fv)})
		}
		return append([]table{kv}, nested...)
	default:
		return []table{{Columns: []string{"value"}, Rows: [][]string{{formatCell(v)}}}}
	}
}

func sliceTable(title string, v reflect.Value) table {
	t := table{Title: title}
	elem := v.Type().Elem()
	if elem.Kind() != reflect.Struct {
		t.Columns = []string{"value"}
		for i := 0; i < v.Len(); i++ {
			t.Rows = append(t.Rows, []string{formatCell(v.Index(i))})
		}
		return t
	}

	fields := fieldsOf(elem)
	for _, f := range fields {
		t.Columns = append(t.Columns, f.name)
	}
	for i := 0; i < v.Len(); i++ {
		row := make([]string, len(fields))
		for j, f := range fields {
			row[j] = formatCell(v.Index(i).Field(f.index))
		}
		t.Rows = append(t.Rows, row)
	}
	return t
}

type field struct {
	name  string
	index int
}

func fieldsOf(t reflect.Type) []field {
	var out []field
	for i := 0; i < t.NumField(); i++ {
		sf := t.Field(i)
		if !sf.IsExported() {
			continue
		}
		name, _, _ := strings.Cut(sf.Tag.Get("json"), ",")
		if name == "-" {
			continue
		}
		if name == "" {
			name = sf.Name
		}
		out = append(out, field{name: name, index: i})
	}
	return out
}

func formatCell(v reflect.Value) string {
	if v.Kind() == reflect.Pointer {
		if v.IsNil() {
			return ""
		}
		v = v.Elem()
	}
	if ts, ok := v.Interface().(time.Time); ok {
		return ts.Format(time.DateTime)
	}
	switch v.Kind() {
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(v.Float(), 'f', 2, 64)
	case reflect.String:
		return v.String()
	default:
		return fmt.Sprint(v.Interface())
	}
}
