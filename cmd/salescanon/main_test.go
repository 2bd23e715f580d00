package main

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"salescanon/internal/schema"
)

const salesCSV = `Order Date,Client,Item,Amount
05/01/2024,Acme,Widget,120.50
19/01/2024,Globex,Gadget,80
02/02/2024,Acme,Widget,99.99
15/03/2024,Initech,Gizmo,NA
`

func writeTemp(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// run executes the CLI with a silent logger and returns stdout and stderr.
func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Setenv("METRICS_BACKEND", "")
	t.Setenv("SALESCANON_STORAGE_KIND", "")
	t.Setenv("SALESCANON_DSN", "")

	return runApp(t, &app{logger: zap.NewNop()}, args...)
}

func runApp(t *testing.T, a *app, args ...string) (string, string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd(a)
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := execute(context.Background(), a, root)
	return out.String(), errOut.String(), err
}

func TestInfer_JSON(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "infer", "--json", in)
	require.NoError(t, err)

	var matches []schema.Match
	require.NoError(t, json.Unmarshal([]byte(out), &matches))
	got := map[schema.Role]string{}
	for _, m := range matches {
		got[m.Role] = m.Column
	}
	assert.Equal(t, "Order Date", got[schema.Date])
	assert.Equal(t, "Client", got[schema.Customer])
	assert.Equal(t, "Item", got[schema.Product])
	assert.Equal(t, "Amount", got[schema.TotalSales])
}

func TestInfer_Table(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "infer", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Order Date")
	assert.Contains(t, out, "unresolved")
}

func TestDetect(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "detect", in)
	require.NoError(t, err)
	assert.Contains(t, out, "Columns")
	assert.Contains(t, out, "Candidates")
	assert.Contains(t, out, "Amount")
}

func TestCanonicalize_CSVToStdout(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "canonicalize", in)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Order Date,Client,Item,Amount,Date,Customer,Product,Total_Sales", lines[0])
	assert.Equal(t, "05/01/2024,Acme,Widget,120.50,2024-01-05T00:00:00Z,Acme,Widget,120.5", lines[1])
	assert.True(t, strings.HasSuffix(lines[4], ",Initech,Gizmo,"), lines[4])
}

func TestCanonicalize_MonthFirstFromConfig(t *testing.T) {
	in := writeTemp(t, "sales.csv", "Date,Amount\n01/05/2024,1\n")
	cfg := writeTemp(t, "cfg.yaml", "dates:\n  month_first: true\n")

	out, _, err := run(t, "--config", cfg, "canonicalize", in)
	require.NoError(t, err)
	assert.Contains(t, out, "2024-01-05T00:00:00Z")
}

func TestCanonicalize_Parquet(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)
	dst := filepath.Join(t.TempDir(), "sales.parquet")

	_, _, err := run(t, "canonicalize", "--out", dst, in)
	require.NoError(t, err)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "PAR1", string(data[:4]))
}

func TestReport_JSON(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "report", "--json", "--as-of", "2024-04-01", in)
	require.NoError(t, err)

	var rep struct {
		KPIs struct {
			Status string `json:"status"`
			Value  struct {
				TotalRevenue float64 `json:"total_revenue"`
				Transactions int     `json:"transactions"`
			} `json:"value"`
		} `json:"kpis"`
		MonthlyGrowth struct {
			Status string `json:"status"`
		} `json:"monthly_growth"`
		Insights []string `json:"insights"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &rep))
	assert.Equal(t, "ok", rep.KPIs.Status)
	assert.InDelta(t, 300.49, rep.KPIs.Value.TotalRevenue, 1e-9)
	assert.Equal(t, 3, rep.KPIs.Value.Transactions)
	assert.Equal(t, "ok", rep.MonthlyGrowth.Status)
	assert.NotEmpty(t, rep.Insights)
}

func TestReport_Text(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	out, _, err := run(t, "report", "--as-of", "2024-04-01", in)
	require.NoError(t, err)
	assert.Contains(t, out, "$300.49")
	assert.Contains(t, out, "Insights")
}

func TestReport_BadAsOf(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)

	_, _, err := run(t, "report", "--as-of", "April", in)
	assert.Error(t, err)
}

func TestLoad_SQLiteIsIdempotent(t *testing.T) {
	in := writeTemp(t, "sales.csv", salesCSV)
	db := filepath.Join(t.TempDir(), "sales.db")
	cfg := writeTemp(t, "cfg.yaml", "storage:\n  kind: sqlite\n  dsn: "+db+"\n  table: sales\n")

	out, _, err := run(t, "--config", cfg, "load", in)
	require.NoError(t, err)
	assert.Contains(t, out, "loaded table=sales rows=4 inserted=4 skipped=0")

	out, _, err = run(t, "--config", cfg, "load", "--table", "sales", in)
	require.NoError(t, err)
	assert.Contains(t, out, "inserted=0 skipped=4")
}

func TestValidate(t *testing.T) {
	out, _, err := run(t, "validate")
	require.NoError(t, err)
	assert.Contains(t, out, "configuration is valid: (defaults)")

	bad := writeTemp(t, "bad.yaml", "analytics:\n  top_n: 0\n")
	_, stderr, err := run(t, "--config", bad, "validate")
	require.Error(t, err)
	assert.Contains(t, stderr, "error: analytics.top_n: must be positive")
}

func TestUnsupportedFormat(t *testing.T) {
	in := writeTemp(t, "sales.xlsx", "PK\x03\x04")

	_, _, err := run(t, "infer", in)
	assert.Error(t, err)
}

func TestFailedRunStillClosesMetrics(t *testing.T) {
	t.Setenv("METRICS_BACKEND", "")

	closed := false
	a := &app{logger: zap.NewNop(), closeMetrics: func() { closed = true }}

	_, _, err := runApp(t, a, "infer", filepath.Join(t.TempDir(), "missing.csv"))
	require.Error(t, err)
	assert.True(t, closed, "metrics backend not closed after a failed command")
	assert.Nil(t, a.closeMetrics)
}

func TestTeardownIsIdempotent(t *testing.T) {
	calls := 0
	a := &app{logger: zap.NewNop(), closeMetrics: func() { calls++ }}
	a.teardown()
	a.teardown()
	assert.Equal(t, 1, calls)
}
