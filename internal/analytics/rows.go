package analytics

import (
	"time"

	"salescanon/internal/datenorm"
	"salescanon/internal/schema"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// sale is one canonical row with its nullable fields unpacked.
type sale struct {
	date      time.Time
	hasDate   bool
	customer  string
	product   string
	amount    float64
	hasAmount bool
}

// sales unpacks the canonical columns of t. Missing columns leave the
// corresponding fields unset. Values that are not already canonical are
// coerced leniently so a hand-built table behaves like a canonicalized one.
func sales(t *table.Table) []sale {
	n := t.Len()
	out := make([]sale, n)
	for i := 0; i < n; i++ {
		s := &out[i]
		s.date, s.hasDate = asTime(t.Value(string(schema.Date), i))
		s.customer = asIdentity(t.Value(string(schema.Customer), i))
		s.product = asIdentity(t.Value(string(schema.Product), i))
		s.amount, s.hasAmount = transformer.ParseNumber(t.Value(string(schema.TotalSales), i))
	}
	return out
}

func asTime(v any) (time.Time, bool) {
	switch x := v.(type) {
	case nil:
		return time.Time{}, false
	case time.Time:
		return x, !x.IsZero()
	default:
		return datenorm.ParseValue(v, datenorm.Options{})
	}
}

func asIdentity(v any) string {
	s, _ := transformer.Identity(v).(string)
	return s
}

// monthStart returns the calendar month of t as its first day in UTC. The
// month is read from t's own wall clock; the fixed location keeps month
// keys comparable when rows carry different zones.
func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole days from a to b.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a).Hours() / 24)
}
