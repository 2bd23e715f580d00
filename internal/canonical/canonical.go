// Package canonical rewrites a raw sales table into the canonical shape that
// every metric consumes, and provides the validation primitive metrics call
// before computing.
//
// The canonical table is the raw table plus one column per resolved role,
// named after the role (Date, Customer, Product, Total_Sales, Quantity,
// UnitPrice). Original columns are never removed or renamed, and a column
// that already carries a canonical name is never overwritten by a copy.
// Canonicalize returns a new table; its input is left untouched.
package canonical

import (
	"salescanon/internal/datenorm"
	"salescanon/internal/schema"
	"salescanon/internal/table"
	"salescanon/internal/transformer"
)

// Options control canonicalization.
type Options struct {
	// Dates is the date policy used to parse the Date column.
	Dates datenorm.Options

	// Inferrer is used by Run. Nil means a default Inferrer with Dates as
	// its date policy.
	Inferrer *schema.Inferrer
}

// Canonicalize applies m to t and returns the canonical table.
//
// For each resolved role the source column is copied under the canonical
// name, unless a column with that exact name already exists. Date values are
// parsed, numeric roles coerced to float64 and identity roles to trimmed
// strings; anything unparseable becomes nil. When Total_Sales is neither
// resolved nor present but Quantity and UnitPrice are, it is derived as
// Quantity × UnitPrice, and a null operand yields a null product.
//
// Canonicalizing a canonical table is a no-op.
func Canonicalize(t *table.Table, m schema.Mapping, opt Options) *table.Table {
	out := t
	for _, role := range schema.Roles() {
		name := string(role)
		src, ok := m.Column(role)
		if !ok || out.Has(name) {
			continue
		}
		values, ok := t.Column(src)
		if !ok {
			continue
		}
		out = out.WithColumn(name, values)
	}

	if !out.Has(string(schema.TotalSales)) && out.Has(string(schema.Quantity)) && out.Has(string(schema.UnitPrice)) {
		q, _ := out.Column(string(schema.Quantity))
		p, _ := out.Column(string(schema.UnitPrice))
		out = out.WithColumn(string(schema.TotalSales), multiply(q, p))
	}

	for _, role := range schema.Roles() {
		name := string(role)
		values, ok := out.Column(name)
		if !ok {
			continue
		}
		out = out.WithColumn(name, coerce(role, values, opt.Dates))
	}
	return out
}

// Run infers the mapping of t and canonicalizes it.
func Run(t *table.Table, opt Options) (schema.Mapping, *table.Table) {
	in := opt.Inferrer
	if in == nil {
		in = &schema.Inferrer{DateOptions: opt.Dates}
	}
	m := in.Infer(t)
	return m, Canonicalize(t, m, opt)
}

func coerce(role schema.Role, values []any, dates datenorm.Options) []any {
	switch role.Kind() {
	case schema.KindTime:
		parsed := datenorm.Parse(values, dates)
		out := make([]any, len(parsed))
		for i, nt := range parsed {
			if nt.Valid {
				out[i] = nt.Time
			}
		}
		return out
	case schema.KindNumeric:
		return transformer.Float64s(values)
	default:
		return transformer.Identities(values)
	}
}

func multiply(q, p []any) []any {
	out := make([]any, len(q))
	for i := range q {
		if i >= len(p) {
			break
		}
		a, okA := transformer.ParseNumber(q[i])
		b, okB := transformer.ParseNumber(p[i])
		if okA && okB {
			out[i] = a * b
		}
	}
	return out
}
