package storage

import (
	"fmt"
	"strings"
)

// ColumnType is a logical column type. Each backend maps it to its own SQL
// type.
type ColumnType string

const (
	// TypeText is free text of any length.
	TypeText ColumnType = "text"
	// TypeKey is a short string usable in UNIQUE constraints (hashes, ids).
	TypeKey ColumnType = "key"
	// TypeFloat is a double precision number.
	TypeFloat ColumnType = "float"
	// TypeTimestamp is an instant in time.
	TypeTimestamp ColumnType = "timestamp"
)

// KeyLength is the maximum length of a TypeKey value.
const KeyLength = 64

// TableSpec describes a table to create.
type TableSpec struct {
	Name        string           `json:"name"`
	Columns     []ColumnSpec     `json:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty"`
}

// ColumnSpec describes one column. Columns are nullable unless NotNull is
// set.
type ColumnSpec struct {
	Name    string     `json:"name"`
	Type    ColumnType `json:"type"`
	NotNull bool       `json:"not_null,omitempty"`
}

// ConstraintSpec describes a table constraint. Only "unique" is supported.
type ConstraintSpec struct {
	Kind    string   `json:"kind"`
	Columns []string `json:"columns"`
}

// Unique returns a unique constraint over cols.
func Unique(cols ...string) ConstraintSpec {
	return ConstraintSpec{Kind: "unique", Columns: cols}
}

// Validate checks the parts of spec every backend relies on.
func (t TableSpec) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return fmt.Errorf("storage: table name is empty")
	}
	if len(t.Columns) == 0 {
		return fmt.Errorf("storage: table %s: no columns", t.Name)
	}
	seen := make(map[string]bool, len(t.Columns))
	for _, c := range t.Columns {
		name := strings.ToLower(strings.TrimSpace(c.Name))
		if name == "" {
			return fmt.Errorf("storage: table %s: column name is empty", t.Name)
		}
		if seen[name] {
			return fmt.Errorf("storage: table %s: duplicate column %q", t.Name, c.Name)
		}
		seen[name] = true
		switch c.Type {
		case TypeText, TypeKey, TypeFloat, TypeTimestamp:
		default:
			return fmt.Errorf("storage: table %s: column %s: unsupported type %q", t.Name, c.Name, c.Type)
		}
	}
	for _, con := range t.Constraints {
		if !strings.EqualFold(con.Kind, "unique") {
			return fmt.Errorf("storage: table %s: unsupported constraint kind %q", t.Name, con.Kind)
		}
		if len(con.Columns) == 0 {
			return fmt.Errorf("storage: table %s: unique constraint requires columns", t.Name)
		}
		for _, col := range con.Columns {
			if !seen[strings.ToLower(strings.TrimSpace(col))] {
				return fmt.Errorf("storage: table %s: constraint column %q not defined", t.Name, col)
			}
		}
	}
	return nil
}

// IndexColumns maps column name to position.
func IndexColumns(columns []string) map[string]int {
	m := make(map[string]int, len(columns))
	for i, c := range columns {
		m[c] = i
	}
	return m
}

// IndicesFor returns the positions of required within columns, or an error
// naming the first missing one.
func IndicesFor(required []string, columns []string) ([]int, error) {
	idx := IndexColumns(columns)
	out := make([]int, len(required))
	for i, c := range required {
		p, ok := idx[c]
		if !ok {
			return nil, fmt.Errorf("storage: column %q not present in columns", c)
		}
		out[i] = p
	}
	return out, nil
}

// DedupeRows keeps the first row for each distinct value of the columns at
// keyIdx, preserving input order. Keys are compared with NormalizeKey.
func DedupeRows(rows [][]any, keyIdx []int) [][]any {
	if len(keyIdx) == 0 {
		return rows
	}
	seen := make(map[string]struct{}, len(rows))
	out := make([][]any, 0, len(rows))
	var b strings.Builder
	for _, row := range rows {
		b.Reset()
		for i, p := range keyIdx {
			if i > 0 {
				b.WriteByte(0x1f)
			}
			b.WriteString(NormalizeKey(row[p]))
		}
		k := b.String()
		if _, dup := seen[k]; dup {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, row)
	}
	return out
}

// Chunk splits rows so that no statement binds more than maxParams
// parameters.
func Chunk(rows [][]any, columns, maxParams int) [][][]any {
	if len(rows) == 0 {
		return nil
	}
	per := maxParams / max(1, columns)
	if per < 1 {
		per = 1
	}
	out := make([][][]any, 0, (len(rows)+per-1)/per)
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		out = append(out, rows[start:end])
	}
	return out
}
