package transformer

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
)

func TestParseNumber(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		in     any
		want   float64
		wantOK bool
	}{
		{"float", 2.5, 2.5, true},
		{"int", 3, 3, true},
		{"int64", int64(-7), -7, true},
		{"json number", json.Number("12.75"), 12.75, true},
		{"plain string", "10", 10, true},
		{"spaced string", "  4.5 ", 4.5, true},
		{"currency", "$1,234.50", 1234.5, true},
		{"euro", "€ 99", 99, true},
		{"accounting negative", "(12.50)", -12.5, true},
		{"trailing minus", "15-", -15, true},
		{"exponent", "1e3", 1000, true},
		{"nil", nil, 0, false},
		{"empty", "", 0, false},
		{"na token", "N/A", 0, false},
		{"text", "abc", 0, false},
		{"bool", true, 0, false},
		{"nan", math.NaN(), 0, false},
		{"inf string", "Inf", 0, false},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, ok := ParseNumber(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%#v) ok=%v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Fatalf("ParseNumber(%#v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFloat64s_NullsPreserved(t *testing.T) {
	t.Parallel()

	got := Float64s([]any{"2", nil, "x", 3})
	want := []any{2.0, nil, nil, 3.0}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Float64s() = %v, want %v", got, want)
	}
}

func TestNumericRatio(t *testing.T) {
	t.Parallel()

	if got := NumericRatio([]any{"1", "2", "x", nil, ""}); got != 2.0/3.0 {
		t.Fatalf("NumericRatio() = %v, want 2/3", got)
	}
	if got := NumericRatio([]any{nil, "NA"}); got != 0 {
		t.Fatalf("NumericRatio(all null) = %v, want 0", got)
	}
}

func TestIdentity(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   any
		want any
	}{
		{" C1 ", "C1"},
		{"", nil},
		{"   ", nil},
		{"null", nil},
		{nil, nil},
		{17850.0, "17850"},
		{12.5, "12.5"},
		{int64(42), "42"},
		{json.Number("17850"), "17850"},
	}
	for _, tt := range tests {
		if got := Identity(tt.in); got != tt.want {
			t.Fatalf("Identity(%#v) = %#v, want %#v", tt.in, got, tt.want)
		}
	}
}
