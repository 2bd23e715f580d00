package transformer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"

	"salescanon/internal/table"
)

// Hash computes a deterministic SHA-256 hash from selected fields and writes it
// into a target field on each record.
//
// It gives stored canonical rows a stable, always-non-null dedupe key, so a
// file that is loaded twice does not duplicate rows even when natural-key
// columns are NULL (Postgres treats NULLs as distinct for UNIQUE constraints).
//
// Canonicalization rules:
//   - Fields are concatenated in the given order using Separator.
//   - Missing or nil values are encoded as a single NUL byte (0x00) so missing
//     differs from empty-string.
//   - Common types are converted without fmt.Sprint.
//   - time.Time values are encoded as RFC3339Nano in UTC.
//   - Output is a lowercase hex string (length 64).
type Hash struct {
	// Fields is the ordered list of input fields used to compute the hash.
	Fields []string

	// TargetField is where Apply stores the computed hash.
	TargetField string

	// IncludeFieldNames includes "field=value" in the canonical form.
	// This reduces accidental collisions when many fields are missing/empty.
	IncludeFieldNames bool

	// Separator used between field components in the canonical string.
	// If empty, defaults to ASCII Unit Separator (0x1f).
	Separator string

	// Overwrite controls whether an existing TargetField is replaced.
	Overwrite bool

	// TrimSpace trims leading/trailing whitespace of string values.
	TrimSpace bool
}

// Apply computes hashes and mutates records in-place.
func (h Hash) Apply(in []table.Record) []table.Record {
	if len(in) == 0 || h.TargetField == "" || len(h.Fields) == 0 {
		return in
	}
	for _, r := range in {
		if r == nil {
			continue
		}
		if !h.Overwrite {
			if _, exists := r[h.TargetField]; exists {
				continue
			}
		}
		r[h.TargetField] = h.Record(r)
	}
	return in
}

// Record returns the hex hash of the configured fields of r.
func (h Hash) Record(r table.Record) string {
	return h.sum(func(i int) (any, bool) {
		v, ok := r[h.Fields[i]]
		return v, ok
	})
}

// Row returns the hex hash of the configured fields looked up by name in a
// positional row aligned with columns. Fields missing from columns hash as
// missing.
func (h Hash) Row(columns []string, row []any) string {
	idx := make([]int, len(h.Fields))
	for i, f := range h.Fields {
		idx[i] = indexOf(columns, f)
	}
	return h.sum(func(i int) (any, bool) {
		j := idx[i]
		if j < 0 || j >= len(row) {
			return nil, false
		}
		return row[j], true
	})
}

func (h Hash) sum(get func(i int) (any, bool)) string {
	sep := h.Separator
	if sep == "" {
		sep = "\x1f"
	}

	var b strings.Builder
	b.Grow(len(h.Fields) * 20)

	for i, f := range h.Fields {
		if i > 0 {
			b.WriteString(sep)
		}
		if h.IncludeFieldNames {
			b.WriteString(f)
			b.WriteByte('=')
		}
		v, ok := get(i)
		if !ok || v == nil {
			b.WriteByte('\x00')
			continue
		}
		appendCanonicalValue(&b, v, h.TrimSpace)
	}

	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

func indexOf(cols []string, name string) int {
	if name == "" {
		return -1
	}
	for i, c := range cols {
		if c == name {
			return i
		}
	}
	return -1
}

// appendCanonicalValue appends a stable, canonical representation of v.
func appendCanonicalValue(b *strings.Builder, v any, trimSpace bool) {
	switch t := v.(type) {
	case nil:
		b.WriteByte('\x00')

	case string:
		if trimSpace && hasEdgeSpace(t) {
			t = strings.TrimSpace(t)
		}
		b.WriteString(t)

	case []byte:
		s := string(t)
		if trimSpace && hasEdgeSpace(s) {
			s = strings.TrimSpace(s)
		}
		b.WriteString(s)

	case bool:
		b.WriteString(strconv.FormatBool(t))

	case int:
		b.WriteString(strconv.Itoa(t))
	case int32:
		b.WriteString(strconv.FormatInt(int64(t), 10))
	case int64:
		b.WriteString(strconv.FormatInt(t, 10))
	case uint64:
		b.WriteString(strconv.FormatUint(t, 10))

	case float32:
		b.WriteString(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		b.WriteString(strconv.FormatFloat(t, 'g', -1, 64))

	case time.Time:
		tt := t
		if !tt.IsZero() {
			tt = tt.UTC()
		}
		b.WriteString(tt.Format(time.RFC3339Nano))

	default:
		b.WriteString(fmt.Sprint(t))
	}
}

func hasEdgeSpace(s string) bool {
	if s == "" {
		return false
	}
	return s[0] == ' ' || s[len(s)-1] == ' ' || s[0] == '\t' || s[len(s)-1] == '\t'
}
