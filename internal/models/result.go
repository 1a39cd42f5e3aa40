package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Field is one column of a ResultRow.
type Field struct {
	Name  string
	Value interface{}
}

// ResultRow keeps columns in the order the data store reported them.
type ResultRow []Field

// Get looks a column up by name, case-insensitively.
func (r ResultRow) Get(name string) (interface{}, bool) {
	for _, f := range r {
		if strings.EqualFold(f.Name, name) {
			return f.Value, true
		}
	}
	return nil, false
}

func (r ResultRow) Columns() []string {
	cols := make([]string, len(r))
	for i, f := range r {
		cols[i] = f.Name
	}
	return cols
}

// MarshalJSON writes an object with keys in column order.
func (r ResultRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, f := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(f.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(f.Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// ResultSet is rectangular: every row carries Columns in order.
type ResultSet struct {
	Columns []string    `json:"columns"`
	Rows    []ResultRow `json:"rows"`
}

func (s ResultSet) Len() int { return len(s.Rows) }

func (s ResultSet) IsEmpty() bool { return len(s.Rows) == 0 }

// First returns the first row, or nil.
func (s ResultSet) First() ResultRow {
	if len(s.Rows) == 0 {
		return nil
	}
	return s.Rows[0]
}

// NewResultSet builds a set from column names and value rows.
func NewResultSet(columns []string, values ...[]interface{}) ResultSet {
	rs := ResultSet{Columns: columns, Rows: make([]ResultRow, 0, len(values))}
	for _, vals := range values {
		row := make(ResultRow, len(columns))
		for i, c := range columns {
			var v interface{}
			if i < len(vals) {
				v = vals[i]
			}
			row[i] = Field{Name: c, Value: v}
		}
		rs.Rows = append(rs.Rows, row)
	}
	return rs
}
