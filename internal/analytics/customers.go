package analytics

import (
	"sort"
	"time"

	"salescanon/internal/schema"
	"salescanon/internal/table"
)

// Risk categories.
const (
	RiskHigh   = "High"
	RiskMedium = "Medium"
	RiskLow    = "Low"
)

// CustomerRisk is the churn-risk score of one customer.
type CustomerRisk struct {
	Customer          string    `json:"customer"`
	LastPurchase      time.Time `json:"last_purchase"`
	DaysSincePurchase int       `json:"days_since_purchase"`
	OrderCount        int       `json:"order_count"`
	TotalRevenue      float64   `json:"total_revenue"`
	Score             int       `json:"score"`
	Category          string    `json:"category"`
}

// activity aggregates the dated rows of one customer.
type activity struct {
	last    time.Time
	orders  int
	revenue float64
}

func customerActivity(rows []sale) map[string]*activity {
	acts := make(map[string]*activity)
	for _, s := range rows {
		if s.customer == "" || !s.hasDate {
			continue
		}
		a := acts[s.customer]
		if a == nil {
			a = &activity{last: s.date}
			acts[s.customer] = a
		}
		if s.date.After(a.last) {
			a.last = s.date
		}
		a.orders++
		if s.hasAmount {
			a.revenue += s.amount
		}
	}
	return acts
}

// ChurnedCustomers lists customers whose last purchase is more than
// ChurnDays before now, sorted by name.
func (a *Analyzer) ChurnedCustomers(t *table.Table) Result[[]string] {
	cutoff := a.now().AddDate(0, 0, -a.thresholds().ChurnDays)
	return measure(a, "churned_customers", t, []schema.Role{schema.Date, schema.Customer}, func() ([]string, error) {
		out := []string{}
		for name, act := range customerActivity(sales(t)) {
			if act.last.Before(cutoff) {
				out = append(out, name)
			}
		}
		sort.Strings(out)
		return out, nil
	})
}

// ChurnRisk scores every customer with a fixed point system:
//
//	days since last purchase  > 90: 40, > 60: 25, > 30: 10
//	order count               <= 2: 30, <= 5: 15
//	revenue vs customer mean  < half: 30, < mean: 15
//
// Scores are capped at 100. High is 70 and above, Medium 40 and above.
// Results are ordered by score, highest first, then by customer.
func (a *Analyzer) ChurnRisk(t *table.Table) Result[[]CustomerRisk] {
	now := a.now()
	roles := []schema.Role{schema.Date, schema.Customer, schema.TotalSales}
	return measure(a, "churn_risk", t, roles, func() ([]CustomerRisk, error) {
		acts := customerActivity(sales(t))
		if len(acts) == 0 {
			return nil, errNotEnoughData
		}

		var total float64
		for _, act := range acts {
			total += act.revenue
		}
		mean := total / float64(len(acts))

		out := make([]CustomerRisk, 0, len(acts))
		for name, act := range acts {
			r := CustomerRisk{
				Customer:          name,
				LastPurchase:      act.last,
				DaysSincePurchase: daysBetween(act.last, now),
				OrderCount:        act.orders,
				TotalRevenue:      act.revenue,
			}
			r.Score = riskScore(r.DaysSincePurchase, r.OrderCount, r.TotalRevenue, mean)
			r.Category = riskCategory(r.Score)
			out = append(out, r)
		}
		sort.Slice(out, func(i, j int) bool {
			if out[i].Score != out[j].Score {
				return out[i].Score > out[j].Score
			}
			return out[i].Customer < out[j].Customer
		})
		return out, nil
	})
}

func riskScore(days, orders int, revenue, mean float64) int {
	score := 0
	switch {
	case days > 90:
		score += 40
	case days > 60:
		score += 25
	case days > 30:
		score += 10
	}
	switch {
	case orders <= 2:
		score += 30
	case orders <= 5:
		score += 15
	}
	switch {
	case revenue < mean/2:
		score += 30
	case revenue < mean:
		score += 15
	}
	if score > 100 {
		score = 100
	}
	return score
}

func riskCategory(score int) string {
	switch {
	case score >= 70:
		return RiskHigh
	case score >= 40:
		return RiskMedium
	default:
		return RiskLow
	}
}
