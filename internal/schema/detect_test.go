package schema

import (
	"fmt"
	"reflect"
	"testing"
	"time"

	"salescanon/internal/table"
)

func retailSample(n int) *table.Table {
	rows := make([][]any, n)
	for i := range rows {
		rows[i] = []any{
			i + 1,                               // id: unique
			fmt.Sprintf("2024-01-%02d", i%28+1), // order date
			fmt.Sprintf("C%d", i%3),             // customer: 3 distinct
			fmt.Sprintf("Product %d", i),        // product: unique text
			float64(i) * 1.5,                    // revenue
			nil,                                 // empty
		}
	}
	return table.FromRows([]string{"id", "Order Date", "Customer", "Product", "Revenue", "Notes"}, rows)
}

func TestDetectCandidates_ContentClasses(t *testing.T) {
	t.Parallel()

	c := DetectCandidates(retailSample(40))

	if want := []string{"id", "Revenue"}; !reflect.DeepEqual(c.Numeric, want) {
		t.Fatalf("Numeric = %v, want %v", c.Numeric, want)
	}
	if want := []string{"Order Date"}; !reflect.DeepEqual(c.Dates, want) {
		t.Fatalf("Dates = %v, want %v", c.Dates, want)
	}
	if want := []string{"Customer", "Product"}; !reflect.DeepEqual(c.Text, want) {
		t.Fatalf("Text = %v, want %v", c.Text, want)
	}
	// 3 distinct customers over 40 rows is below 10%.
	if want := []string{"Customer"}; !reflect.DeepEqual(c.Categorical, want) {
		t.Fatalf("Categorical = %v, want %v", c.Categorical, want)
	}
	if want := []string{"id"}; !reflect.DeepEqual(c.IDs, want) {
		t.Fatalf("IDs = %v, want %v", c.IDs, want)
	}
}

func TestDetectCandidates_MultipleCandidatesPerRole(t *testing.T) {
	t.Parallel()

	c := DetectCandidates(header("Ship Date", "Order Date", "Total Price", "Unit Price", "Price"))

	if want := []string{"Order Date", "Ship Date"}; !reflect.DeepEqual(c.Roles[Date], want) {
		t.Fatalf("Date candidates = %v, want %v", c.Roles[Date], want)
	}
	if want := []string{"Unit Price", "Price"}; !reflect.DeepEqual(c.Roles[UnitPrice], want) {
		t.Fatalf("UnitPrice candidates = %v, want %v", c.Roles[UnitPrice], want)
	}
	if want := []string{"Total Price"}; !reflect.DeepEqual(c.Roles[TotalSales], want) {
		t.Fatalf("Total_Sales candidates = %v, want %v", c.Roles[TotalSales], want)
	}
}

func TestProfile_CountsAndKinds(t *testing.T) {
	t.Parallel()

	tb := table.FromRows(
		[]string{"when", "amount", "label", "blank"},
		[][]any{
			{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "10", "a", nil},
			{time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC), "", "a", ""},
			{nil, "12.5", "b", "NA"},
		},
	)

	got := Profile(tb)
	want := []ColumnProfile{
		{Name: "when", Kind: ColumnDate, NonNull: 2, Nulls: 1, Distinct: 2},
		{Name: "amount", Kind: ColumnNumeric, NonNull: 2, Nulls: 1, Distinct: 2},
		{Name: "label", Kind: ColumnText, NonNull: 3, Nulls: 0, Distinct: 2},
		{Name: "blank", Kind: ColumnEmpty, NonNull: 0, Nulls: 3, Distinct: 0},
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Profile() =\n%+v\nwant\n%+v", got, want)
	}
}

func TestProfile_DistinctIsBounded(t *testing.T) {
	t.Parallel()

	rows := make([][]any, distinctCapPerColumn+5)
	for i := range rows {
		rows[i] = []any{fmt.Sprintf("v%d", i)}
	}
	p := Profile(table.FromRows([]string{"v"}, rows))[0]
	if !p.DistinctCapped || p.Distinct != distinctCapPerColumn {
		t.Fatalf("Profile() = %+v, want capped at %d", p, distinctCapPerColumn)
	}
	if p.NonNull != len(rows) {
		t.Fatalf("NonNull = %d, want %d", p.NonNull, len(rows))
	}
}
