package analytics

import (
	"fmt"
	"sort"

	"salescanon/internal/schema"
	"salescanon/internal/table"
)

// Share is one entity's part of total revenue.
type Share struct {
	Name    string  `json:"name"`
	Revenue float64 `json:"revenue"`
	Percent float64 `json:"percent"`
}

// Concentration describes how revenue spreads over customers or products.
type Concentration struct {
	Dimension schema.Role `json:"dimension"`
	Total     float64     `json:"total"`
	Shares    []Share     `json:"shares"`

	// TopN is the number of leading entities summed in TopPercent.
	TopN       int     `json:"top_n"`
	TopPercent float64 `json:"top_percent"`

	// HHI is the Herfindahl-Hirschman index on the 0..10000 scale.
	HHI float64 `json:"hhi"`
}

// ProductDependency lists products whose revenue share exceeds
// DependencyPercent, largest first. The denominator is all non-null sales,
// including rows without a product.
func (a *Analyzer) ProductDependency(t *table.Table) Result[[]Share] {
	limit := a.thresholds().DependencyPercent
	return measure(a, "product_dependency", t, []schema.Role{schema.Product, schema.TotalSales}, func() ([]Share, error) {
		shares, _, err := revenueShares(sales(t), func(s sale) string { return s.product })
		if err != nil {
			return nil, err
		}
		out := []Share{}
		for _, sh := range shares {
			if sh.Percent > limit {
				out = append(out, sh)
			}
		}
		return out, nil
	})
}

// Concentration reports revenue shares by dim, which must be Customer or
// Product.
func (a *Analyzer) Concentration(t *table.Table, dim schema.Role) Result[Concentration] {
	metric := "concentration"
	var key func(sale) string
	switch dim {
	case schema.Customer:
		metric = "customer_concentration"
		key = func(s sale) string { return s.customer }
	case schema.Product:
		metric = "product_concentration"
		key = func(s sale) string { return s.product }
	}
	topN := a.thresholds().TopN

	return measure(a, metric, t, []schema.Role{dim, schema.TotalSales}, func() (Concentration, error) {
		if key == nil {
			return Concentration{}, fmt.Errorf("unsupported dimension %q", dim)
		}
		shares, total, err := revenueShares(sales(t), key)
		if err != nil {
			return Concentration{}, err
		}

		c := Concentration{Dimension: dim, Total: total, Shares: shares, TopN: topN}
		if c.TopN > len(shares) {
			c.TopN = len(shares)
		}
		for i, sh := range shares {
			if i < c.TopN {
				c.TopPercent += sh.Percent
			}
			c.HHI += sh.Percent * sh.Percent
		}
		c.TopPercent = round2(c.TopPercent)
		c.HHI = round2(c.HHI)
		return c, nil
	})
}

// revenueShares sums non-null sales per key, largest first. Rows with an
// empty key count toward the total only. A non-positive total is not enough
// data.
func revenueShares(rows []sale, key func(sale) string) ([]Share, float64, error) {
	var total float64
	sums := make(map[string]float64)
	for _, s := range rows {
		if !s.hasAmount {
			continue
		}
		total += s.amount
		if k := key(s); k != "" {
			sums[k] += s.amount
		}
	}
	if total <= 0 {
		return nil, 0, errNotEnoughData
	}

	out := make([]Share, 0, len(sums))
	for name, rev := range sums {
		out = append(out, Share{Name: name, Revenue: rev, Percent: rev * 100 / total})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Revenue != out[j].Revenue {
			return out[i].Revenue > out[j].Revenue
		}
		return out[i].Name < out[j].Name
	})
	return out, total, nil
}
