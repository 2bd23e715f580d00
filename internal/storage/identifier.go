package storage

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxIdentifierBytes is the longest identifier emitted. It is the Postgres
// limit and fits SQL Server and SQLite as well.
const MaxIdentifierBytes = 63

// NormalizeIdentifier turns an arbitrary column header into a safe lowercase
// SQL identifier: separators become '_', other punctuation is dropped,
// leading digits get a "c_" prefix, and the result is truncated to
// MaxIdentifierBytes. Empty results become "column".
func NormalizeIdentifier(s string) string {
	s = strings.TrimSpace(strings.ToLower(s))
	var b strings.Builder
	b.Grow(len(s))
	lastUnderscore := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.' || r == '/' || r == '\\' || r == ':' || r == ';':
			if !lastUnderscore {
				b.WriteByte('_')
				lastUnderscore = true
			}
		}
	}
	out := strings.Trim(b.String(), "_")
	if out == "" {
		return "column"
	}
	if out[0] >= '0' && out[0] <= '9' {
		out = "c_" + out
	}
	return TruncateIdentifier(out, MaxIdentifierBytes)
}

// TruncateIdentifier cuts s to at most n bytes without splitting a UTF-8
// sequence.
func TruncateIdentifier(s string, n int) string {
	if len(s) <= n {
		return s
	}
	cut := n
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut]
}

// UniqueIdentifiers normalizes names and resolves collisions with numeric
// suffixes ("amount", "amount_2", ...). The result is aligned with names.
func UniqueIdentifiers(names []string) []string {
	out := make([]string, len(names))
	used := make(map[string]bool, len(names))
	for i, n := range names {
		id := NormalizeIdentifier(n)
		cand := id
		for k := 2; used[cand]; k++ {
			suffix := fmt.Sprintf("_%d", k)
			cand = TruncateIdentifier(id, MaxIdentifierBytes-len(suffix)) + suffix
		}
		used[cand] = true
		out[i] = cand
	}
	return out
}

// NormalizeKey converts a value to a canonical string form for in-memory key
// comparison, so drivers returning []byte and callers passing string agree.
func NormalizeKey(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	case int64:
		return fmt.Sprintf("%d", t)
	case int:
		return fmt.Sprintf("%d", t)
	case float64:
		return fmt.Sprintf("%g", t)
	case time.Time:
		return t.UTC().Format(time.RFC3339Nano)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}
