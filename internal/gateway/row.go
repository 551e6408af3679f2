// AngelaMos | 2026
// row.go

package gateway

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/jmoiron/sqlx"
)

// Row is one result row as an ordered column-to-value mapping. Column
// names are lower-cased; values are passed through exactly as the
// driver produced them.
type Row struct {
	columns []string
	values  []any
	index   map[string]int
}

func NewRow(columns []string, values []any) Row {
	r := Row{
		columns: make([]string, len(columns)),
		values:  values,
		index:   make(map[string]int, len(columns)),
	}
	for i, c := range columns {
		name := normalizeColumn(c)
		r.columns[i] = name
		if _, dup := r.index[name]; !dup {
			r.index[name] = i
		}
	}
	return r
}

func normalizeColumn(c string) string {
	return strings.ToLower(strings.TrimSpace(c))
}

func (r Row) Columns() []string {
	return r.columns
}

func (r Row) Values() []any {
	return r.values
}

func (r Row) Len() int {
	return len(r.columns)
}

// Get looks a column up case-insensitively. The first occurrence wins
// when a join produced duplicate names.
func (r Row) Get(column string) (any, bool) {
	i, ok := r.index[normalizeColumn(column)]
	if !ok {
		return nil, false
	}
	return r.values[i], true
}

// Int64 is an explicit accessor for integer columns. MySQL's text
// protocol reports integers as []byte, so both shapes are accepted here
// rather than coercing at normalization time.
func (r Row) Int64(column string) (int64, bool) {
	v, ok := r.Get(column)
	if !ok {
		return 0, false
	}
	switch n := v.(type) {
	case int64:
		return n, true
	case int32:
		return int64(n), true
	case int:
		return int64(n), true
	case []byte:
		parsed, err := strconv.ParseInt(string(n), 10, 64)
		return parsed, err == nil
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		return parsed, err == nil
	default:
		return 0, false
	}
}

func (r Row) String(column string) (string, bool) {
	v, ok := r.Get(column)
	if !ok {
		return "", false
	}
	switch s := v.(type) {
	case string:
		return s, true
	case []byte:
		return string(s), true
	default:
		return "", false
	}
}

// Map copies the row into an unordered map.
func (r Row) Map() map[string]any {
	m := make(map[string]any, len(r.columns))
	for i, c := range r.columns {
		if _, seen := m[c]; !seen {
			m[c] = r.values[i]
		}
	}
	return m
}

// MarshalJSON keeps column order.
func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, c := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')

		v := r.values[i]
		if b, ok := v.([]byte); ok {
			v = string(b)
		}
		val, err := json.Marshal(v)
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// normalize drains rows into Rows. The result is never nil.
func normalize(rows *sqlx.Rows) ([]Row, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	out := make([]Row, 0)
	for rows.Next() {
		values, scanErr := rows.SliceScan()
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, NewRow(columns, values))
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return out, nil
}
