package transformer

import (
	"testing"
	"time"

	"salescanon/internal/table"
)

func TestHash_Deterministic_WithTrim(t *testing.T) {
	h := Hash{
		Fields:            []string{"Customer", "Product", "Date", "Total_Sales"},
		TargetField:       "row_hash",
		IncludeFieldNames: true,
		TrimSpace:         true,
		Overwrite:         true,
	}

	r1 := table.Record{
		"Customer":    " 17850 ",
		"Product":     "WHITE HANGING HEART T-LIGHT HOLDER",
		"Date":        time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		"Total_Sales": 15.3,
	}
	r2 := table.Record{
		"Customer":    "17850",
		"Product":     "WHITE HANGING HEART T-LIGHT HOLDER",
		"Date":        time.Date(2010, 12, 1, 8, 26, 0, 0, time.UTC),
		"Total_Sales": 15.3,
	}

	h.Apply([]table.Record{r1, r2})

	s1, ok := r1["row_hash"].(string)
	if !ok || s1 == "" {
		t.Fatalf("expected row_hash string, got=%T val=%v", r1["row_hash"], r1["row_hash"])
	}
	if len(s1) != 64 {
		t.Fatalf("expected sha256 hex length 64, got %d (%q)", len(s1), s1)
	}
	if s2 := r2["row_hash"].(string); s1 != s2 {
		t.Fatalf("expected same hash after trimming; s1=%q s2=%q", s1, s2)
	}
}

func TestHash_ChangesWhenFieldChanges(t *testing.T) {
	h := Hash{Fields: []string{"Customer", "Product"}, TargetField: "row_hash", Overwrite: true}

	a := table.Record{"Customer": "A", "Product": "X"}
	b := table.Record{"Customer": "A", "Product": "Y"}
	h.Apply([]table.Record{a, b})

	if a["row_hash"] == b["row_hash"] {
		t.Fatalf("expected different hashes when inputs differ; both=%v", a["row_hash"])
	}
}

func TestHash_MissingVsEmptyDifferent(t *testing.T) {
	h := Hash{Fields: []string{"Customer", "Product"}, IncludeFieldNames: true}

	missing := h.Record(table.Record{"Customer": "A"})
	empty := h.Record(table.Record{"Customer": "A", "Product": ""})
	if missing == empty {
		t.Fatalf("expected different hashes for missing vs empty; got=%v", missing)
	}
}

func TestHash_IncludeFieldNamesChangesHash(t *testing.T) {
	r := table.Record{"Quantity": int64(6), "UnitPrice": 2.55}
	a := Hash{Fields: []string{"Quantity", "UnitPrice"}}.Record(r)
	b := Hash{Fields: []string{"Quantity", "UnitPrice"}, IncludeFieldNames: true}.Record(r)
	if a == b {
		t.Fatalf("expected different hashes when IncludeFieldNames changes; got same=%q", a)
	}
}

func TestHash_OverwriteFalsePreservesExisting(t *testing.T) {
	h := Hash{Fields: []string{"Customer"}, TargetField: "row_hash"}

	r := table.Record{"Customer": "A", "row_hash": "preexisting"}
	h.Apply([]table.Record{r})

	if got := r["row_hash"]; got != "preexisting" {
		t.Fatalf("expected preexisting preserved, got=%v", got)
	}
}

func TestHash_RowMatchesRecord(t *testing.T) {
	h := Hash{Fields: []string{"Customer", "Total_Sales", "Missing"}, IncludeFieldNames: true}

	columns := []string{"Total_Sales", "Customer"}
	row := []any{20.0, "C1"}
	rec := table.Record{"Total_Sales": 20.0, "Customer": "C1"}

	if got, want := h.Row(columns, row), h.Record(rec); got != want {
		t.Fatalf("Row() = %q, Record() = %q; want equal", got, want)
	}
}

func BenchmarkHashRow(b *testing.B) {
	h := Hash{
		Fields:            []string{"Date", "Customer", "Product", "Total_Sales", "Quantity", "UnitPrice"},
		IncludeFieldNames: true,
		TrimSpace:         true,
	}
	columns := h.Fields
	row := []any{time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC), "C1", "P1", 20.0, 2.0, 10.0}

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = h.Row(columns, row)
	}
}
