package analytics

import (
	"math"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"salescanon/internal/schema"
	"salescanon/internal/table"
)

// MonthRevenue is the revenue booked in one calendar month.
type MonthRevenue struct {
	Month   time.Time `json:"month"`
	Revenue float64   `json:"revenue"`
}

// Trend is the least-squares slope of monthly revenue.
type Trend struct {
	// Slope is the revenue change per month.
	Slope     float64 `json:"slope"`
	Direction string  `json:"direction"` // up, down or flat
	Months    int     `json:"months"`
}

// Alert is a month-over-month revenue decline beyond the threshold.
type Alert struct {
	// Product is empty for the overall alert.
	Product       string    `json:"product,omitempty"`
	Month         time.Time `json:"month"`
	Previous      float64   `json:"previous"`
	Current       float64   `json:"current"`
	ChangePercent float64   `json:"change_percent"`
}

var revenueRoles = []schema.Role{schema.Date, schema.TotalSales}

// MonthlyRevenue sums Total_Sales per calendar month, oldest first. Months
// without dated sales are absent.
func (a *Analyzer) MonthlyRevenue(t *table.Table) Result[[]MonthRevenue] {
	return measure(a, "monthly_revenue", t, revenueRoles, func() ([]MonthRevenue, error) {
		return monthly(sales(t)), nil
	})
}

// MonthlyGrowth is the change of the last month against the previous one,
// in percent rounded to two decimals. A zero previous month yields 0.
func (a *Analyzer) MonthlyGrowth(t *table.Table) Result[float64] {
	return measure(a, "monthly_growth", t, revenueRoles, func() (float64, error) {
		m := monthly(sales(t))
		if len(m) < 2 {
			return 0, errNotEnoughData
		}
		return growth(m[len(m)-2].Revenue, m[len(m)-1].Revenue), nil
	})
}

// RevenueTrend fits a line through monthly revenue. It needs three months.
// The trend is flat when the slope is within 1% of the mean monthly revenue.
func (a *Analyzer) RevenueTrend(t *table.Table) Result[Trend] {
	return measure(a, "revenue_trend", t, revenueRoles, func() (Trend, error) {
		m := monthly(sales(t))
		if len(m) < 3 {
			return Trend{}, errNotEnoughData
		}
		ys := make([]float64, len(m))
		for i, mr := range m {
			ys[i] = mr.Revenue
		}
		slope, mean := leastSquares(ys)
		tr := Trend{Slope: slope, Months: len(m), Direction: "flat"}
		switch band := 0.01 * math.Abs(mean); {
		case slope > band:
			tr.Direction = "up"
		case slope < -band:
			tr.Direction = "down"
		}
		return tr, nil
	})
}

// RevenueDeclineAlerts compares the last two months of the dataset overall
// and, when Product is present, per product. Products without revenue in
// the previous month are skipped. The overall alert comes first, then
// products from the steepest decline.
func (a *Analyzer) RevenueDeclineAlerts(t *table.Table) Result[[]Alert] {
	limit := a.thresholds().DeclinePercent
	return measure(a, "revenue_decline_alerts", t, revenueRoles, func() ([]Alert, error) {
		rows := sales(t)
		m := monthly(rows)
		if len(m) < 2 {
			return nil, errNotEnoughData
		}
		prev, last := m[len(m)-2], m[len(m)-1]

		alerts := []Alert{}
		if prev.Revenue != 0 {
			if g := growth(prev.Revenue, last.Revenue); g < limit {
				alerts = append(alerts, Alert{Month: last.Month, Previous: prev.Revenue, Current: last.Revenue, ChangePercent: g})
			}
		}

		type pair struct{ prev, last float64 }
		byProduct := make(map[string]*pair)
		for _, s := range rows {
			if !s.hasDate || !s.hasAmount || s.product == "" {
				continue
			}
			p := byProduct[s.product]
			if p == nil {
				p = &pair{}
				byProduct[s.product] = p
			}
			switch monthStart(s.date) {
			case prev.Month:
				p.prev += s.amount
			case last.Month:
				p.last += s.amount
			}
		}

		var perProduct []Alert
		for name, p := range byProduct {
			if p.prev == 0 {
				continue
			}
			if g := growth(p.prev, p.last); g < limit {
				perProduct = append(perProduct, Alert{Product: name, Month: last.Month, Previous: p.prev, Current: p.last, ChangePercent: g})
			}
		}
		sort.Slice(perProduct, func(i, j int) bool {
			if perProduct[i].ChangePercent != perProduct[j].ChangePercent {
				return perProduct[i].ChangePercent < perProduct[j].ChangePercent
			}
			return perProduct[i].Product < perProduct[j].Product
		})
		return append(alerts, perProduct...), nil
	})
}

// RecentRevenue sums Total_Sales dated within the last RecentDays before now.
func (a *Analyzer) RecentRevenue(t *table.Table) Result[float64] {
	since := a.now().AddDate(0, 0, -a.thresholds().RecentDays)
	return measure(a, "recent_revenue", t, revenueRoles, func() (float64, error) {
		var sum float64
		for _, s := range sales(t) {
			if s.hasDate && s.hasAmount && !s.date.Before(since) {
				sum += s.amount
			}
		}
		return sum, nil
	})
}

// monthly groups dated sales by calendar month.
func monthly(rows []sale) []MonthRevenue {
	sums := make(map[time.Time]float64)
	for _, s := range rows {
		if !s.hasDate || !s.hasAmount {
			continue
		}
		sums[monthStart(s.date)] += s.amount
	}
	out := make([]MonthRevenue, 0, len(sums))
	for m, v := range sums {
		out = append(out, MonthRevenue{Month: m, Revenue: v})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Month.Before(out[j].Month) })
	return out
}

// growth returns the percent change from prev to cur, rounded to two
// decimals. prev == 0 yields 0.
func growth(prev, cur float64) float64 {
	if prev == 0 {
		return 0
	}
	return round2((cur - prev) * 100 / prev)
}

func round2(f float64) float64 {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return f
	}
	return decimal.NewFromFloat(f).Round(2).InexactFloat64()
}

// leastSquares returns the slope of y over x = 0..n-1 and the mean of y.
func leastSquares(ys []float64) (slope, mean float64) {
	n := float64(len(ys))
	var sx, sy, sxy, sxx float64
	for i, y := range ys {
		x := float64(i)
		sx += x
		sy += y
		sxy += x * y
		sxx += x * x
	}
	mean = sy / n
	den := n*sxx - sx*sx
	if den == 0 {
		return 0, mean
	}
	return (n*sxy - sx*sy) / den, mean
}
