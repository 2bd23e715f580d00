// Package table holds the in-memory tabular value passed between the loader,
// the inference engine, canonicalization and the analytics.
//
// A Table is column-oriented and immutable from the caller's point of view:
// accessors return copies, and "mutations" (WithColumn) return a new Table
// that shares the untouched column slices with its parent. Because no code
// path ever writes into a shared column slice, a Table can be read from
// several goroutines at once.
package table

import (
	"fmt"
	"sort"
)

// Record is a single row keyed by column name.
type Record map[string]any

// Table is an ordered set of named columns of equal length.
type Table struct {
	columns []string
	index   map[string]int
	data    [][]any // data[col][row]
	rows    int
}

// FromRows builds a Table from positional rows aligned with columns.
//
// Short rows are padded with nil and surplus cells are dropped, matching the
// best-effort sampling behavior of the loaders. Duplicate column names are
// made unique by appending ".1", ".2", ... to later occurrences.
func FromRows(columns []string, rows [][]any) *Table {
	cols := uniqueNames(columns)
	t := &Table{
		columns: cols,
		index:   make(map[string]int, len(cols)),
		data:    make([][]any, len(cols)),
		rows:    len(rows),
	}
	for i, c := range cols {
		t.index[c] = i
		t.data[i] = make([]any, len(rows))
	}
	for r, row := range rows {
		for c := range cols {
			if c < len(row) {
				t.data[c][r] = row[c]
			}
		}
	}
	return t
}

// FromRecords builds a Table from keyed records.
//
// When columns is empty the column set is the union of all record keys in
// sorted order, so the result is deterministic.
func FromRecords(columns []string, recs []Record) *Table {
	if len(columns) == 0 {
		seen := make(map[string]struct{})
		for _, r := range recs {
			for k := range r {
				if _, ok := seen[k]; ok {
					continue
				}
				seen[k] = struct{}{}
				columns = append(columns, k)
			}
		}
		sort.Strings(columns)
	}
	rows := make([][]any, len(recs))
	for i, r := range recs {
		row := make([]any, len(columns))
		for c, name := range columns {
			row[c] = r[name]
		}
		rows[i] = row
	}
	return FromRows(columns, rows)
}

// FromColumns builds a Table from named column slices. The column order is
// the order of names; every slice is copied and padded to the longest one.
func FromColumns(names []string, cols map[string][]any) *Table {
	n := 0
	for _, name := range names {
		if l := len(cols[name]); l > n {
			n = l
		}
	}
	names = uniqueNames(names)
	t := &Table{
		columns: names,
		index:   make(map[string]int, len(names)),
		data:    make([][]any, len(names)),
		rows:    n,
	}
	for i, name := range names {
		t.index[name] = i
		col := make([]any, n)
		copy(col, cols[name])
		t.data[i] = col
	}
	return t
}

// Len returns the number of rows.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return t.rows
}

// Columns returns a copy of the column names in table order.
func (t *Table) Columns() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.columns...)
}

// Has reports whether a column with exactly this name exists.
func (t *Table) Has(name string) bool {
	if t == nil {
		return false
	}
	_, ok := t.index[name]
	return ok
}

// Column returns a copy of the named column.
func (t *Table) Column(name string) ([]any, bool) {
	if t == nil {
		return nil, false
	}
	i, ok := t.index[name]
	if !ok {
		return nil, false
	}
	return append([]any(nil), t.data[i]...), true
}

// Value returns the cell at (name, row), or nil when either is out of range.
func (t *Table) Value(name string, row int) any {
	if t == nil || row < 0 || row >= t.rows {
		return nil
	}
	i, ok := t.index[name]
	if !ok {
		return nil
	}
	return t.data[i][row]
}

// Record returns row as a Record.
func (t *Table) Record(row int) Record {
	if t == nil || row < 0 || row >= t.rows {
		return nil
	}
	out := make(Record, len(t.columns))
	for i, c := range t.columns {
		out[c] = t.data[i][row]
	}
	return out
}

// Rows returns the table as positional rows in column order.
func (t *Table) Rows() [][]any {
	if t == nil {
		return nil
	}
	out := make([][]any, t.rows)
	for r := 0; r < t.rows; r++ {
		row := make([]any, len(t.columns))
		for c := range t.columns {
			row[c] = t.data[c][r]
		}
		out[r] = row
	}
	return out
}

// NonNullCount returns how many cells of the named column are not nil.
func (t *Table) NonNullCount(name string) int {
	if t == nil {
		return 0
	}
	i, ok := t.index[name]
	if !ok {
		return 0
	}
	n := 0
	for _, v := range t.data[i] {
		if v != nil {
			n++
		}
	}
	return n
}

// WithColumn returns a new Table with the named column set to values.
//
// An existing column keeps its position; a new column is appended. values is
// copied and padded with nil (or truncated) to the table length. The receiver
// is left untouched.
func (t *Table) WithColumn(name string, values []any) *Table {
	if t == nil {
		return FromColumns([]string{name}, map[string][]any{name: values})
	}
	col := make([]any, t.rows)
	copy(col, values)

	out := &Table{
		columns: append([]string(nil), t.columns...),
		index:   make(map[string]int, len(t.columns)+1),
		data:    append([][]any(nil), t.data...),
		rows:    t.rows,
	}
	for k, v := range t.index {
		out.index[k] = v
	}
	if i, ok := out.index[name]; ok {
		out.data[i] = col
		return out
	}
	out.index[name] = len(out.columns)
	out.columns = append(out.columns, name)
	out.data = append(out.data, col)
	return out
}

// String renders a short description used in logs.
func (t *Table) String() string {
	return fmt.Sprintf("table(rows=%d cols=%d)", t.Len(), len(t.Columns()))
}

func uniqueNames(in []string) []string {
	out := make([]string, len(in))
	seen := make(map[string]int, len(in))
	for i, name := range in {
		n, dup := seen[name]
		seen[name] = n + 1
		if !dup {
			out[i] = name
			continue
		}
		cand := fmt.Sprintf("%s.%d", name, n)
		for {
			if _, taken := seen[cand]; !taken {
				break
			}
			n++
			cand = fmt.Sprintf("%s.%d", name, n)
		}
		seen[cand] = 1
		out[i] = cand
	}
	return out
}
