package table

import (
	"reflect"
	"testing"
)

func TestFromRows_PadsTruncatesAndDedups(t *testing.T) {
	t.Parallel()

	tb := FromRows([]string{"a", "b", "a"}, [][]any{
		{1, 2, 3, 4},
		{5},
	})

	if got, want := tb.Columns(), []string{"a", "b", "a.1"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns() = %v, want %v", got, want)
	}
	if tb.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", tb.Len())
	}
	if got, want := tb.Rows(), [][]any{{1, 2, 3}, {5, nil, nil}}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Rows() = %v, want %v", got, want)
	}
}

func TestFromRecords_UnionOfKeysSorted(t *testing.T) {
	t.Parallel()

	tb := FromRecords(nil, []Record{
		{"b": 1},
		{"a": "x", "c": 2.5},
	})
	if got, want := tb.Columns(), []string{"a", "b", "c"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("Columns() = %v, want %v", got, want)
	}
	if got := tb.Record(0); !reflect.DeepEqual(got, Record{"a": nil, "b": 1, "c": nil}) {
		t.Fatalf("Record(0) = %v", got)
	}
}

func TestWithColumn_LeavesParentUntouched(t *testing.T) {
	t.Parallel()

	parent := FromColumns([]string{"q", "p"}, map[string][]any{
		"q": {2, 3},
		"p": {10, 5},
	})

	child := parent.WithColumn("total", []any{20, 15})
	if parent.Has("total") {
		t.Fatalf("parent gained column from WithColumn")
	}
	if got, want := child.Columns(), []string{"q", "p", "total"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("child Columns() = %v, want %v", got, want)
	}

	replaced := child.WithColumn("q", []any{7})
	if got, want := replaced.Columns(), []string{"q", "p", "total"}; !reflect.DeepEqual(got, want) {
		t.Fatalf("replaced Columns() = %v, want %v", got, want)
	}
	if got, _ := replaced.Column("q"); !reflect.DeepEqual(got, []any{7, nil}) {
		t.Fatalf("replaced q = %v, want [7 <nil>]", got)
	}
	if got, _ := child.Column("q"); !reflect.DeepEqual(got, []any{2, 3}) {
		t.Fatalf("child q changed to %v", got)
	}
}

func TestColumn_ReturnsCopy(t *testing.T) {
	t.Parallel()

	tb := FromRows([]string{"x"}, [][]any{{1}, {2}})
	col, ok := tb.Column("x")
	if !ok {
		t.Fatalf("Column(x) missing")
	}
	col[0] = 99
	if v := tb.Value("x", 0); v != 1 {
		t.Fatalf("Value(x,0) = %v after mutating copy, want 1", v)
	}
	if _, ok := tb.Column("nope"); ok {
		t.Fatalf("Column(nope) ok=true")
	}
}

func TestNonNullCount(t *testing.T) {
	t.Parallel()

	tb := FromRows([]string{"x", "y"}, [][]any{{1, nil}, {nil, nil}, {3, nil}})
	if got := tb.NonNullCount("x"); got != 2 {
		t.Fatalf("NonNullCount(x) = %d, want 2", got)
	}
	if got := tb.NonNullCount("y"); got != 0 {
		t.Fatalf("NonNullCount(y) = %d, want 0", got)
	}
	if got := tb.NonNullCount("missing"); got != 0 {
		t.Fatalf("NonNullCount(missing) = %d, want 0", got)
	}
}

func TestNilTable(t *testing.T) {
	t.Parallel()

	var tb *Table
	if tb.Len() != 0 || tb.Has("x") || tb.Columns() != nil || tb.Value("x", 0) != nil {
		t.Fatalf("nil table accessors should be zero-valued")
	}
	if got := tb.WithColumn("x", []any{1}); got.Len() != 1 {
		t.Fatalf("nil.WithColumn Len() = %d, want 1", got.Len())
	}
}
