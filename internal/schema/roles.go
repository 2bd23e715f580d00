// Package schema infers which columns of an arbitrary sales table carry the
// canonical roles (transaction date, customer, product, sales amount,
// quantity and unit price).
//
// Inference is name-first: each role owns an ordered list of exact names and
// an ordered list of keywords. Exact names are trusted as-is. Keyword matches
// are only accepted when the column content fits the role, so a generic name
// such as "period" is not claimed as a date unless its values parse as dates.
// Roles that match nothing are absent from the Mapping; that is not an error.
package schema

import (
	"strings"
	"unicode"

	"golang.org/x/text/cases"
)

// Role is a canonical semantic column. The string value is the canonical
// column name written by canonicalization and read by every consumer.
type Role string

const (
	Date       Role = "Date"
	Customer   Role = "Customer"
	Product    Role = "Product"
	TotalSales Role = "Total_Sales"
	Quantity   Role = "Quantity"
	UnitPrice  Role = "UnitPrice"
)

// Kind is the semantic type of a role.
type Kind int

const (
	KindTime Kind = iota
	KindIdentity
	KindNumeric
)

// Roles returns all roles in resolution order.
func Roles() []Role {
	return []Role{Date, Customer, Product, TotalSales, Quantity, UnitPrice}
}

// ParseRole returns the role with the given canonical name, compared
// case-insensitively and ignoring separators.
func ParseRole(s string) (Role, bool) {
	n := normalizeName(s)
	for _, r := range Roles() {
		if normalizeName(string(r)) == n {
			return r, true
		}
	}
	return "", false
}

// Kind returns the semantic type of r.
func (r Role) Kind() Kind {
	switch r {
	case Date:
		return KindTime
	case Customer, Product:
		return KindIdentity
	default:
		return KindNumeric
	}
}

// Mapping binds roles to original column names. At most one column per role.
type Mapping map[Role]string

// Column returns the column bound to r.
func (m Mapping) Column(r Role) (string, bool) {
	c, ok := m[r]
	return c, ok && c != ""
}

// Missing returns the roles without a column, in resolution order.
func (m Mapping) Missing() []Role {
	var out []Role
	for _, r := range Roles() {
		if _, ok := m.Column(r); !ok {
			out = append(out, r)
		}
	}
	return out
}

// String renders the mapping in resolution order, e.g.
// "Date=Order Date Customer=Customer Name".
func (m Mapping) String() string {
	parts := make([]string, 0, len(m))
	for _, r := range Roles() {
		if c, ok := m.Column(r); ok {
			parts = append(parts, string(r)+"="+c)
		}
	}
	return strings.Join(parts, " ")
}

// RolePatterns are the ordered name patterns of one role, most specific
// first. Patterns are compared in normalized form, so "order_date",
// "Order Date" and "orderdate" are the same pattern.
type RolePatterns struct {
	Exact    []string `yaml:"exact" json:"exact"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Patterns holds the pattern lists of every role.
type Patterns map[Role]RolePatterns

// DefaultPatterns returns the built-in pattern lists. The caller owns the
// returned value.
func DefaultPatterns() Patterns {
	return Patterns{
		Date: {
			Exact: []string{
				"order_date", "invoice_date", "transaction_date", "sale_date",
				"sales_date", "purchase_date", "order_datetime", "date",
			},
			Keywords: []string{"date", "timestamp", "time", "day", "period"},
		},
		Customer: {
			Exact: []string{
				"customer_id", "customer_name", "client_id", "client_name",
				"buyer_id", "customer", "client", "buyer",
			},
			Keywords: []string{"customer", "client", "buyer", "account", "member"},
		},
		Product: {
			Exact: []string{
				"product_name", "product_id", "stock_code", "sku", "item_name",
				"item_id", "description", "product", "item",
			},
			Keywords: []string{"product", "item", "sku", "stock", "article"},
		},
		TotalSales: {
			Exact: []string{
				"total_sales", "sales_amount", "total_amount", "total_revenue",
				"revenue", "net_sales", "sales", "amount", "total",
			},
			Keywords: []string{"revenue", "sales", "amount", "total", "turnover"},
		},
		Quantity: {
			Exact: []string{
				"quantity", "qty", "units_sold", "quantity_sold", "units",
			},
			Keywords: []string{"quantity", "qty", "units", "pieces", "volume"},
		},
		UnitPrice: {
			Exact: []string{
				"unit_price", "price_per_unit", "unit_cost", "price_each", "price",
			},
			Keywords: []string{"price", "cost", "rate"},
		},
	}
}

// Merge returns a copy of p where every role present in over replaces the
// corresponding list. Empty lists in over keep the list of p.
func (p Patterns) Merge(over Patterns) Patterns {
	out := make(Patterns, len(p))
	for r, rp := range p {
		out[r] = RolePatterns{
			Exact:    append([]string(nil), rp.Exact...),
			Keywords: append([]string(nil), rp.Keywords...),
		}
	}
	for r, rp := range over {
		cur := out[r]
		if len(rp.Exact) > 0 {
			cur.Exact = append([]string(nil), rp.Exact...)
		}
		if len(rp.Keywords) > 0 {
			cur.Keywords = append([]string(nil), rp.Keywords...)
		}
		out[r] = cur
	}
	return out
}

// compiled returns normalized, de-duplicated pattern lists with list order
// preserved.
func (rp RolePatterns) compiled() (exact, keywords []string) {
	return normalizeAll(rp.Exact), normalizeAll(rp.Keywords)
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]struct{}, len(in))
	for _, s := range in {
		n := normalizeName(s)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// normalizeName folds case and drops every rune that is not a letter or a
// digit, so "Order Date", "order_date", "ORDER-DATE" and "OrderDate" compare
// equal.
func normalizeName(s string) string {
	s = cases.Fold().String(strings.TrimSpace(s))
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}
