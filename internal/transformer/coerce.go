// Package transformer holds the value-level transforms shared by
// canonicalization and loading: numeric and identity coercion, and
// deterministic row hashing.
package transformer

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// nullTokens are strings that spreadsheet and database exports use for a
// missing value. They are compared case-insensitively after trimming.
var nullTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"nan":  {},
	"null": {},
	"none": {},
	"nil":  {},
	"-":    {},
	"--":   {},
}

// IsNullToken reports whether s is one of the textual null markers.
func IsNullToken(s string) bool {
	_, ok := nullTokens[strings.ToLower(strings.TrimSpace(s))]
	return ok
}

// ParseNumber converts v to a float64.
//
// Strings are accepted with surrounding space, currency symbols, thousands
// separators and accounting-style negatives ("(12.50)"). Booleans, NaN and
// infinities are rejected.
func ParseNumber(v any) (float64, bool) {
	switch t := v.(type) {
	case nil:
		return 0, false
	case float64:
		return t, !math.IsNaN(t) && !math.IsInf(t, 0)
	case float32:
		f := float64(t)
		return f, !math.IsNaN(f) && !math.IsInf(f, 0)
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	case json.Number:
		f, err := t.Float64()
		return f, err == nil
	case string:
		return parseNumberString(t)
	case []byte:
		return parseNumberString(string(t))
	default:
		return 0, false
	}
}

func parseNumberString(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if IsNullToken(s) {
		return 0, false
	}

	neg := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		neg = true
		s = strings.TrimSpace(s[1 : len(s)-1])
	}

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch r {
		case '$', '€', '£', '¥', ',', ' ', '\u00a0', '\'':
			continue
		}
		b.WriteRune(r)
	}
	clean := b.String()
	if strings.HasSuffix(clean, "-") && !strings.HasPrefix(clean, "-") {
		neg = !neg
		clean = strings.TrimSuffix(clean, "-")
	}
	if clean == "" {
		return 0, false
	}

	f, err := strconv.ParseFloat(clean, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	if neg {
		f = -f
	}
	return f, true
}

// Float64s coerces a column to float64 values. Unparseable entries become
// nil; the output has the same length as values.
func Float64s(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		if f, ok := ParseNumber(v); ok {
			out[i] = f
		}
	}
	return out
}

// NumericRatio returns the share of non-null values that parse as numbers.
// A column without non-null values has ratio 0.
func NumericRatio(values []any) float64 {
	seen, ok := 0, 0
	for _, v := range values {
		if IsBlank(v) {
			continue
		}
		seen++
		if _, parsed := ParseNumber(v); parsed {
			ok++
		}
	}
	if seen == 0 {
		return 0
	}
	return float64(ok) / float64(seen)
}

// Identity renders an identity value (customer, product) as a trimmed string.
// Blank values and null tokens become nil. Integral floats drop their
// fraction so a JSON 17850 and a CSV "17850" compare equal.
func Identity(v any) any {
	switch t := v.(type) {
	case nil:
		return nil
	case string:
		s := strings.TrimSpace(t)
		if IsNullToken(s) {
			return nil
		}
		return s
	case []byte:
		return Identity(string(t))
	case float64:
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return nil
		}
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return Identity(float64(t))
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case int32:
		return strconv.FormatInt(int64(t), 10)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		var b strings.Builder
		appendCanonicalValue(&b, t, true)
		return strings.TrimSpace(b.String())
	}
}

// Identities applies Identity to every value of a column.
func Identities(values []any) []any {
	out := make([]any, len(values))
	for i, v := range values {
		out[i] = Identity(v)
	}
	return out
}

// IsBlank reports whether v carries no value: nil, an empty string or a
// textual null token.
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return IsNullToken(t)
	case []byte:
		return IsNullToken(string(t))
	case float64:
		return math.IsNaN(t)
	default:
		return false
	}
}
