// Package dataset provides the small column-oriented table the audit
// pipeline is built on: loading from CSV/XLSX, column normalization,
// left joins, grouped means, sorting, and persistence.
package dataset

import (
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"gonum.org/v1/gonum/stat"
)

// NA is the missing-value marker. It round-trips as an empty CSV cell.
const NA = ""

// Row is a single record keyed by normalized column name.
type Row map[string]string

// Float parses the named cell as a float64. The second return is false for
// missing or unparseable values.
func (r Row) Float(col string) (float64, bool) {
	raw := strings.TrimSpace(r[col])
	if raw == NA {
		return 0, false
	}
	raw = strings.ReplaceAll(raw, ",", "")
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(v) {
		return 0, false
	}
	return v, true
}

// String returns the named cell trimmed of surrounding whitespace.
func (r Row) String(col string) string {
	return strings.TrimSpace(r[col])
}

// IsNA reports whether the named cell is missing.
func (r Row) IsNA(col string) bool {
	return strings.TrimSpace(r[col]) == NA
}

// Table is an ordered set of columns over a slice of rows. Column order is
// significant: it is the order cells are written in.
type Table struct {
	Columns []string
	Rows    []Row
}

// New returns an empty table with the given column order.
func New(columns ...string) *Table {
	return &Table{Columns: columns}
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.Rows) }

// HasColumn reports whether the table carries the named column.
func (t *Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// RequireColumns fails fast when any of the named columns is absent,
// naming both the column and the source the table was loaded from.
func (t *Table) RequireColumns(source string, names ...string) error {
	for _, n := range names {
		if !t.HasColumn(n) {
			return eris.Errorf(
				"dataset: column %q not found in %s after normalization (have: %s); fix the source header and rerun",
				n, source, strings.Join(t.Columns, ", "))
		}
	}
	return nil
}

// Append adds a row. Cells for unknown columns are ignored at write time.
func (t *Table) Append(r Row) { t.Rows = append(t.Rows, r) }

// AddColumn appends a column with every cell set to value. Adding an
// existing column overwrites its cells.
func (t *Table) AddColumn(name, value string) {
	if !t.HasColumn(name) {
		t.Columns = append(t.Columns, name)
	}
	for _, r := range t.Rows {
		r[name] = value
	}
}

// Rename renames columns in place per the given old→new mapping. Unknown
// old names are ignored, matching lenient source headers.
func (t *Table) Rename(mapping map[string]string) {
	for i, c := range t.Columns {
		if n, ok := mapping[c]; ok {
			t.Columns[i] = n
		}
	}
	for _, r := range t.Rows {
		for old, n := range mapping {
			if v, ok := r[old]; ok {
				r[n] = v
				delete(r, old)
			}
		}
	}
}

// Select returns a new table restricted to the named columns, in the given
// order. A missing column is an error naming the source.
func (t *Table) Select(source string, names ...string) (*Table, error) {
	if err := t.RequireColumns(source, names...); err != nil {
		return nil, err
	}
	out := New(append([]string(nil), names...)...)
	for _, r := range t.Rows {
		nr := make(Row, len(names))
		for _, n := range names {
			nr[n] = r[n]
		}
		out.Append(nr)
	}
	return out, nil
}

// LeftJoinOn joins right onto t by equality on key, preserving every left
// row exactly once. Unmatched keys leave the right-side columns missing.
// Right-side duplicates keep the first occurrence. Join keys are compared
// case-folded so source-specific casing does not drop matches.
func (t *Table) LeftJoinOn(right *Table, key string, leftSource, rightSource string) (*Table, error) {
	if err := t.RequireColumns(leftSource, key); err != nil {
		return nil, err
	}
	if err := right.RequireColumns(rightSource, key); err != nil {
		return nil, err
	}

	var extra []string
	for _, c := range right.Columns {
		if c != key {
			extra = append(extra, c)
		}
	}

	idx := make(map[string]Row, len(right.Rows))
	for _, r := range right.Rows {
		k := FoldKey(r.String(key))
		if _, seen := idx[k]; !seen && k != NA {
			idx[k] = r
		}
	}

	out := New(append(append([]string(nil), t.Columns...), extra...)...)
	for _, l := range t.Rows {
		nr := make(Row, len(out.Columns))
		for _, c := range t.Columns {
			nr[c] = l[c]
		}
		if match, ok := idx[FoldKey(l.String(key))]; ok {
			for _, c := range extra {
				nr[c] = match[c]
			}
		} else {
			for _, c := range extra {
				nr[c] = NA
			}
		}
		out.Append(nr)
	}
	return out, nil
}

// GroupMeanBy aggregates valueCol to one row per distinct key: the
// arithmetic mean of the parseable values, missing values ignored. Keys
// whose every value is missing aggregate to NA.
func (t *Table) GroupMeanBy(key, valueCol, source string) (*Table, error) {
	if err := t.RequireColumns(source, key, valueCol); err != nil {
		return nil, err
	}

	groups := make(map[string][]float64)
	display := make(map[string]string)
	var order []string
	for _, r := range t.Rows {
		k := FoldKey(r.String(key))
		if k == NA {
			continue
		}
		if _, seen := display[k]; !seen {
			display[k] = r.String(key)
			order = append(order, k)
			groups[k] = nil
		}
		if v, ok := r.Float(valueCol); ok {
			groups[k] = append(groups[k], v)
		}
	}

	out := New(key, valueCol)
	for _, k := range order {
		val := NA
		if vs := groups[k]; len(vs) > 0 {
			val = FormatFloat(stat.Mean(vs, nil))
		}
		out.Append(Row{key: display[k], valueCol: val})
	}
	return out, nil
}

// SortByFloatDesc stable-sorts rows by the named column, descending.
// Rows with a missing or unparseable value sort after all parseable rows,
// keeping their relative order.
func (t *Table) SortByFloatDesc(col string) {
	sort.SliceStable(t.Rows, func(i, j int) bool {
		a, aok := t.Rows[i].Float(col)
		b, bok := t.Rows[j].Float(col)
		if aok != bok {
			return aok
		}
		return a > b
	})
}

// Filter returns a new table with the rows keep reports true for.
func (t *Table) Filter(keep func(Row) bool) *Table {
	out := New(append([]string(nil), t.Columns...)...)
	for _, r := range t.Rows {
		if keep(r) {
			out.Append(r)
		}
	}
	return out
}

// FormatFloat renders a float the way table cells store numbers.
func FormatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
