package main

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"salescanon/internal/analytics"
	"salescanon/internal/schema"
	salestable "salescanon/internal/table"
	"salescanon/internal/transformer"
)

var headingStyle = lipgloss.NewStyle().Bold(true).Underline(true)

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...)
}

func heading(w io.Writer, title string) {
	fmt.Fprintln(w, headingStyle.Render(title))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printMatches(w io.Writer, matches []schema.Match) error {
	resolved := make(map[schema.Role]schema.Match, len(matches))
	for _, m := range matches {
		resolved[m.Role] = m
	}
	tbl := newTable("ROLE", "COLUMN", "LAYER", "PATTERN")
	for _, r := range schema.Roles() {
		m, ok := resolved[r]
		if !ok {
			tbl.Row(string(r), "-", "unresolved", "")
			continue
		}
		tbl.Row(string(r), m.Column, string(m.Layer), m.Pattern)
	}
	_, err := fmt.Fprintln(w, tbl.String())
	return err
}

func printDetection(w io.Writer, c schema.Candidates, profile []schema.ColumnProfile) error {
	heading(w, "Columns")
	cols := newTable("COLUMN", "KIND", "NON-NULL", "NULLS", "DISTINCT")
	for _, p := range profile {
		distinct := strconv.Itoa(p.Distinct)
		if p.DistinctCapped {
			distinct += "+"
		}
		cols.Row(p.Name, string(p.Kind), strconv.Itoa(p.NonNull), strconv.Itoa(p.Nulls), distinct)
	}
	fmt.Fprintln(w, cols.String())

	heading(w, "Candidates")
	cands := newTable("GROUP", "COLUMNS")
	cands.Row("numeric", joinOrDash(c.Numeric))
	cands.Row("dates", joinOrDash(c.Dates))
	cands.Row("text", joinOrDash(c.Text))
	cands.Row("categorical", joinOrDash(c.Categorical))
	cands.Row("ids", joinOrDash(c.IDs))
	for _, r := range schema.Roles() {
		cands.Row("role "+string(r), joinOrDash(c.Roles[r]))
	}
	_, err := fmt.Fprintln(w, cands.String())
	return err
}

func printReport(w io.Writer, r analytics.Report) error {
	heading(w, "Summary")
	if k := r.KPIs; k.OK() {
		kpis := newTable("KPI", "VALUE")
		kpis.Row("Total revenue", analytics.FormatCurrency(k.Value.TotalRevenue))
		kpis.Row("Transactions", analytics.FormatNumber(float64(k.Value.Transactions)))
		kpis.Row("Average sale", analytics.FormatCurrency(k.Value.AverageSale))
		kpis.Row("Customers", strconv.Itoa(k.Value.UniqueCustomers))
		kpis.Row("Products", strconv.Itoa(k.Value.UniqueProducts))
		if !k.Value.FirstDate.IsZero() {
			kpis.Row("Period", k.Value.FirstDate.Format(time.DateOnly)+" .. "+k.Value.LastDate.Format(time.DateOnly))
		}
		fmt.Fprintln(w, kpis.String())
	} else {
		fmt.Fprintf(w, "unavailable: %s\n", k.Reason)
	}

	heading(w, "Metrics")
	m := newTable("METRIC", "STATUS", "VALUE")
	m.Row(metricRow("monthly growth", r.MonthlyGrowth, func(v float64) string { return fmt.Sprintf("%.2f%%", v) })...)
	m.Row(metricRow("trend", r.Trend, func(v analytics.Trend) string {
		return fmt.Sprintf("%s (slope %s/month over %d months)", v.Direction, analytics.FormatCurrency(v.Slope), v.Months)
	})...)
	m.Row(metricRow("recent revenue", r.RecentRevenue, analytics.FormatCurrency)...)
	m.Row(metricRow("decline alerts", r.DeclineAlerts, func(v []analytics.Alert) string { return strconv.Itoa(len(v)) })...)
	m.Row(metricRow("churned customers", r.ChurnedCustomers, func(v []string) string { return strconv.Itoa(len(v)) })...)
	m.Row(metricRow("product dependency", r.ProductDependency, func(v []analytics.Share) string {
		names := make([]string, len(v))
		for i, s := range v {
			names[i] = fmt.Sprintf("%s %.1f%%", s.Name, s.Percent)
		}
		return joinOrDash(names)
	})...)
	m.Row(metricRow("customer concentration", r.CustomerConcentration, concentrationText)...)
	m.Row(metricRow("product concentration", r.ProductConcentration, concentrationText)...)
	fmt.Fprintln(w, m.String())

	heading(w, "Insights")
	for _, s := range r.Insights {
		fmt.Fprintf(w, "- %s\n", s)
	}
	return nil
}

func metricRow[T any](name string, res analytics.Result[T], render func(T) string) []string {
	if !res.OK() {
		return []string{name, res.Status.String(), res.Reason}
	}
	return []string{name, res.Status.String(), render(res.Value)}
}

func concentrationText(c analytics.Concentration) string {
	return fmt.Sprintf("top %d hold %.1f%%, HHI %.0f", c.TopN, c.TopPercent, c.HHI)
}

func joinOrDash(s []string) string {
	if len(s) == 0 {
		return "-"
	}
	return strings.Join(s, ", ")
}

// writeCSV writes t with a header row. Times are RFC 3339, numbers use the
// shortest exact form, and nil is an empty cell.
func writeCSV(w io.Writer, t *salestable.Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns()); err != nil {
		return err
	}
	rec := make([]string, len(t.Columns()))
	for _, row := range t.Rows() {
		for i, v := range row {
			rec[i] = csvCell(v)
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func writeCSVFile(path string, t *salestable.Table) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeCSV(f, t); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func csvCell(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case time.Time:
		return x.Format(time.RFC3339)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		if s, ok := transformer.Identity(v).(string); ok {
			return s
		}
		return ""
	}
}
