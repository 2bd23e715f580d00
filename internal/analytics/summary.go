package analytics

import (
	"fmt"
	"time"

	"salescanon/internal/schema"
	"salescanon/internal/table"
)

// KPIs are the headline numbers of a dataset. Fields whose role is absent
// stay zero.
type KPIs struct {
	TotalRevenue    float64   `json:"total_revenue"`
	Rows            int       `json:"rows"`
	Transactions    int       `json:"transactions"`
	AverageSale     float64   `json:"average_sale"`
	UniqueCustomers int       `json:"unique_customers"`
	UniqueProducts  int       `json:"unique_products"`
	FirstDate       time.Time `json:"first_date"`
	LastDate        time.Time `json:"last_date"`
}

// KPISummary needs only Total_Sales. Average sale is over non-null sales.
func (a *Analyzer) KPISummary(t *table.Table) Result[KPIs] {
	return measure(a, "kpi_summary", t, []schema.Role{schema.TotalSales}, func() (KPIs, error) {
		k := KPIs{Rows: t.Len()}
		customers := make(map[string]struct{})
		products := make(map[string]struct{})
		for _, s := range sales(t) {
			if s.hasAmount {
				k.TotalRevenue += s.amount
				k.Transactions++
			}
			if s.customer != "" {
				customers[s.customer] = struct{}{}
			}
			if s.product != "" {
				products[s.product] = struct{}{}
			}
			if s.hasDate {
				if k.FirstDate.IsZero() || s.date.Before(k.FirstDate) {
					k.FirstDate = s.date
				}
				if s.date.After(k.LastDate) {
					k.LastDate = s.date
				}
			}
		}
		if k.Transactions > 0 {
			k.AverageSale = k.TotalRevenue / float64(k.Transactions)
		}
		k.UniqueCustomers = len(customers)
		k.UniqueProducts = len(products)
		return k, nil
	})
}

// Report bundles every metric for one table.
type Report struct {
	KPIs                  Result[KPIs]           `json:"kpis"`
	MonthlyRevenue        Result[[]MonthRevenue] `json:"monthly_revenue"`
	MonthlyGrowth         Result[float64]        `json:"monthly_growth"`
	Trend                 Result[Trend]          `json:"trend"`
	DeclineAlerts         Result[[]Alert]        `json:"decline_alerts"`
	RecentRevenue         Result[float64]        `json:"recent_revenue"`
	ChurnedCustomers      Result[[]string]       `json:"churned_customers"`
	ChurnRisk             Result[[]CustomerRisk] `json:"churn_risk"`
	ProductDependency     Result[[]Share]        `json:"product_dependency"`
	CustomerConcentration Result[Concentration]  `json:"customer_concentration"`
	ProductConcentration  Result[Concentration]  `json:"product_concentration"`
	Insights              []string               `json:"insights"`
}

// All computes every metric sequentially. Metrics that cannot run are
// reported in their Result; All itself never fails.
func (a *Analyzer) All(t *table.Table) Report {
	r := Report{
		KPIs:                  a.KPISummary(t),
		MonthlyRevenue:        a.MonthlyRevenue(t),
		MonthlyGrowth:         a.MonthlyGrowth(t),
		Trend:                 a.RevenueTrend(t),
		DeclineAlerts:         a.RevenueDeclineAlerts(t),
		RecentRevenue:         a.RecentRevenue(t),
		ChurnedCustomers:      a.ChurnedCustomers(t),
		ChurnRisk:             a.ChurnRisk(t),
		ProductDependency:     a.ProductDependency(t),
		CustomerConcentration: a.Concentration(t, schema.Customer),
		ProductConcentration:  a.Concentration(t, schema.Product),
	}
	r.Insights = Insights(r, a.thresholds())
	return r
}

// Insights turns a report into rule-based recommendations. Metrics that are
// not OK contribute nothing. When no rule fires a single all-clear line is
// returned.
func Insights(r Report, th Thresholds) []string {
	th = th.withDefaults()
	var out []string

	if r.MonthlyGrowth.OK() {
		switch g := r.MonthlyGrowth.Value; {
		case g < th.DeclinePercent:
			out = append(out, fmt.Sprintf("Alert: revenue declined by %.1f%% month-over-month. Consider promotional campaigns.", -g))
		case g > th.GrowthPercent:
			out = append(out, fmt.Sprintf("Excellent: revenue grew by %.1f%% month-over-month. Scale successful strategies.", g))
		}
	}

	if r.ProductDependency.OK() {
		for _, sh := range r.ProductDependency.Value {
			out = append(out, fmt.Sprintf("Risk: %s contributes %.1f%% of total revenue. Consider portfolio diversification.", sh.Name, sh.Percent))
		}
	}

	if r.ChurnedCustomers.OK() && len(r.ChurnedCustomers.Value) > 0 {
		out = append(out, fmt.Sprintf("Action: %d customers haven't purchased in %d+ days. Initiate retention campaigns.", len(r.ChurnedCustomers.Value), th.ChurnDays))
	}

	if r.RecentRevenue.OK() && r.RecentRevenue.Value == 0 {
		out = append(out, "Note: no recent sales data available. Check data pipeline connectivity.")
	}

	if len(out) == 0 {
		out = append(out, "Performance: all key metrics are within normal ranges. Continue monitoring trends.")
	}
	return out
}
