package datadog

import (
	"context"
	"errors"
	"net/http"
	"reflect"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"salescanon/internal/metrics"

	"github.com/DataDog/datadog-api-client-go/v2/api/datadogV2"
)

// recordingAPI stands in for the Datadog metrics API and keeps every payload.
type recordingAPI struct {
	mu       sync.Mutex
	payloads []datadogV2.MetricPayload
	err      error
}

func (r *recordingAPI) SubmitMetrics(_ context.Context, body datadogV2.MetricPayload, _ ...datadogV2.SubmitMetricsOptionalParameters) (datadogV2.IntakePayloadAccepted, *http.Response, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payloads = append(r.payloads, body)
	return datadogV2.IntakePayloadAccepted{}, nil, r.err
}

func (r *recordingAPI) calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.payloads)
}

// series returns every submitted series, keyed by metric name and tag set.
func (r *recordingAPI) series() map[string]datadogV2.MetricSeries {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]datadogV2.MetricSeries)
	for _, p := range r.payloads {
		for _, s := range p.Series {
			out[s.Metric+"|"+strings.Join(s.Tags, ",")] = s
		}
	}
	return out
}

var quietTicker = func(time.Duration) *time.Ticker { return time.NewTicker(24 * time.Hour) }

// newQuietBackend builds a backend whose flush loop never fires, so only
// explicit Flush and Close submit.
func newQuietBackend(t *testing.T, api *recordingAPI, tags ...string) *Backend {
	t.Helper()
	b, err := NewBackend(context.Background(), Options{
		JobName:   "salescanon-test",
		Tags:      tags,
		submitter: api,
		now:       func() time.Time { return time.Unix(1_700_000_000, 0) },
		newTicker: quietTicker,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	return b
}

func value(s datadogV2.MetricSeries) float64 {
	if len(s.Points) != 1 || s.Points[0].Value == nil {
		return -1
	}
	return *s.Points[0].Value
}

func TestBuildSeries(t *testing.T) {
	b := &Backend{baseTags: []string{"env:test", "job:salescanon"}}

	snap := newSnapshot()
	snap.stageCounts[pairKey("canonicalize", "ok")] = 2
	snap.stageCounts[pairKey("store", "error")] = 1
	snap.analyticsCounts[pairKey("monthly_growth", "unavailable")] = 1
	snap.rowCounts["inserted"] = 40
	snap.rowCounts["skipped"] = 0
	snap.stageDurations[pairKey("analyze", "ok")] = []float64{0.3, 0.1, 0.2}

	got := b.buildSeries(snap, 42)

	type want struct {
		tags  []string
		typ   datadogV2.MetricIntakeType
		value float64
	}
	wants := map[string]want{
		seriesStageTotal + "/canonicalize": {[]string{"env:test", "job:salescanon", "stage:canonicalize", "status:ok"}, datadogV2.METRICINTAKETYPE_COUNT, 2},
		seriesStageTotal + "/store":        {[]string{"env:test", "job:salescanon", "stage:store", "status:error"}, datadogV2.METRICINTAKETYPE_COUNT, 1},
		seriesAnalyticsTotal:               {[]string{"env:test", "job:salescanon", "metric:monthly_growth", "status:unavailable"}, datadogV2.METRICINTAKETYPE_COUNT, 1},
		seriesRowsTotal:                    {[]string{"env:test", "job:salescanon", "kind:inserted"}, datadogV2.METRICINTAKETYPE_COUNT, 40},
		seriesStageDuration + ".p50":       {[]string{"env:test", "job:salescanon", "stage:analyze", "status:ok"}, datadogV2.METRICINTAKETYPE_GAUGE, 0.2},
		seriesStageDuration + ".max":       {[]string{"env:test", "job:salescanon", "stage:analyze", "status:ok"}, datadogV2.METRICINTAKETYPE_GAUGE, 0.3},
		seriesStageDuration + ".samples":   {[]string{"env:test", "job:salescanon", "stage:analyze", "status:ok"}, datadogV2.METRICINTAKETYPE_GAUGE, 3},
	}

	// 2 stage counts, 1 analytics, 1 non-zero row kind, 6 duration gauges.
	if len(got) != 10 {
		t.Fatalf("series=%d, want 10", len(got))
	}
	seen := 0
	for _, s := range got {
		key := s.Metric
		if s.Metric == seriesStageTotal {
			key += "/" + strings.TrimPrefix(s.Tags[2], "stage:")
		}
		w, ok := wants[key]
		if !ok {
			continue
		}
		seen++
		if !reflect.DeepEqual(s.Tags, w.tags) {
			t.Fatalf("%s tags=%v, want %v", key, s.Tags, w.tags)
		}
		if s.Type == nil || *s.Type != w.typ {
			t.Fatalf("%s type=%v, want %v", key, s.Type, w.typ)
		}
		if v := value(s); v != w.value {
			t.Fatalf("%s value=%v, want %v", key, v, w.value)
		}
		if *s.Points[0].Timestamp != 42 {
			t.Fatalf("%s timestamp=%d, want 42", key, *s.Points[0].Timestamp)
		}
	}
	if seen != len(wants) {
		t.Fatalf("matched %d of %d expected series", seen, len(wants))
	}
}

// TestClose_SubmitsFailedStage runs a failing stage through the package-level
// facade and expects Close to deliver its error count.
func TestClose_SubmitsFailedStage(t *testing.T) {
	t.Setenv("ENV", "ci")
	api := &recordingAPI{}
	b := newQuietBackend(t, api)
	metrics.SetBackend(b)
	t.Cleanup(func() { metrics.SetBackend(nil) })

	metrics.RecordStage("read", 15*time.Millisecond, errors.New("no such file"))
	metrics.AddRows("read", 0)

	if api.calls() != 0 {
		t.Fatalf("submitted before Close: %d", api.calls())
	}
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}

	all := api.series()
	s, ok := all[seriesStageTotal+"|env:ci,job:salescanon-test,stage:read,status:error"]
	if !ok {
		t.Fatalf("no stage error series in %v", all)
	}
	if value(s) != 1 {
		t.Fatalf("stage error count=%v, want 1", value(s))
	}
	for k := range all {
		if strings.HasPrefix(k, seriesRowsTotal) {
			t.Fatalf("zero row count was submitted: %s", k)
		}
	}
}

func TestFlush_ResetsOnSubmitError(t *testing.T) {
	api := &recordingAPI{err: errors.New("403 forbidden")}
	b := newQuietBackend(t, api)
	defer func() { _ = b.Close() }()

	b.IncCounter(metrics.RowsTotal, 12, metrics.Labels{"kind": "canonical"})

	if err := b.Flush(); err == nil || !strings.Contains(err.Error(), "403") {
		t.Fatalf("Flush() err=%v, want submit error", err)
	}
	if !b.buf.isEmpty() {
		t.Fatalf("buffers kept after failed submit")
	}
	if err := b.Flush(); err != nil {
		t.Fatalf("second Flush() err=%v, want nil (nothing buffered)", err)
	}
	if api.calls() != 1 {
		t.Fatalf("submit calls=%d, want 1", api.calls())
	}
}

func TestObservationsOutsideTheFourSeriesAreDropped(t *testing.T) {
	tests := []struct {
		name   string
		record func(b *Backend)
	}{
		{"zero rows", func(b *Backend) { b.IncCounter(metrics.RowsTotal, 0, metrics.Labels{"kind": "read"}) }},
		{"rows without kind", func(b *Backend) { b.IncCounter(metrics.RowsTotal, 5, nil) }},
		{"analytics without metric", func(b *Backend) {
			b.IncCounter(metrics.AnalyticsResultTotal, 1, metrics.Labels{"status": "ok"})
		}},
		{"unknown counter", func(b *Backend) { b.IncCounter("salescanon_bytes_total", 1, nil) }},
		{"unknown histogram", func(b *Backend) { b.ObserveHistogram("parse_seconds", 1, nil) }},
		{"negative duration", func(b *Backend) {
			b.ObserveHistogram(metrics.StageDurationSeconds, -0.5, metrics.Labels{"stage": "export", "status": "ok"})
		}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			api := &recordingAPI{}
			b := newQuietBackend(t, api)
			tc.record(b)
			if err := b.Close(); err != nil {
				t.Fatalf("Close() err=%v", err)
			}
			if api.calls() != 0 {
				t.Fatalf("submitted %d payloads, want none", api.calls())
			}
		})
	}
}

func TestAnalyticsStatusDefaultsToUnknown(t *testing.T) {
	api := &recordingAPI{}
	b := newQuietBackend(t, api)

	b.IncCounter(metrics.AnalyticsResultTotal, 1, metrics.Labels{"metric": "kpi_summary"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}

	if api.calls() != 1 {
		t.Fatalf("submit calls=%d, want 1", api.calls())
	}
	for k := range api.series() {
		if !strings.HasSuffix(k, "metric:kpi_summary,status:unknown") {
			t.Fatalf("series %s, want status:unknown", k)
		}
	}
}

func TestConcurrentRecordingKeepsCounts(t *testing.T) {
	api := &recordingAPI{}
	b := newQuietBackend(t, api)

	workers := runtime.GOMAXPROCS(0) * 4
	const perWorker = 500

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "inserted"})
				b.IncCounter(metrics.AnalyticsResultTotal, 1, metrics.Labels{"metric": "churn_risk", "status": "ok"})
				b.ObserveHistogram(metrics.StageDurationSeconds, 0.01, metrics.Labels{"stage": "store", "status": "ok"})
			}
		}()
	}
	wg.Wait()

	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if api.calls() != 1 {
		t.Fatalf("submit calls=%d, want 1", api.calls())
	}
	want := float64(workers * perWorker)
	for k, s := range api.series() {
		switch {
		case strings.HasPrefix(k, seriesRowsTotal+"|"), strings.HasPrefix(k, seriesAnalyticsTotal+"|"),
			strings.HasPrefix(k, seriesStageDuration+".samples|"):
			if value(s) != want {
				t.Fatalf("%s=%v, want %v", k, value(s), want)
			}
		}
	}
}

func TestFlushLoopSubmitsPeriodically(t *testing.T) {
	api := &recordingAPI{}
	b, err := NewBackend(context.Background(), Options{FlushEvery: 5 * time.Millisecond, submitter: api})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "read"})
	deadline := time.Now().Add(500 * time.Millisecond)
	for api.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(2 * time.Millisecond)
	}
	if api.calls() == 0 {
		_ = b.Close()
		t.Fatalf("flush loop never submitted")
	}

	b.IncCounter(metrics.RowsTotal, 1, metrics.Labels{"kind": "canonical"})
	if err := b.Close(); err != nil {
		t.Fatalf("Close() err=%v", err)
	}
	if api.calls() < 2 {
		t.Fatalf("submit calls=%d, want the loop flush plus the Close flush", api.calls())
	}
}

func TestNewBackend_Defaults(t *testing.T) {
	t.Setenv("ENV", "")
	t.Setenv("DD_ENV", "ci")

	b, err := NewBackend(context.Background(), Options{
		Tags:      []string{"team:sales"},
		submitter: &recordingAPI{},
		newTicker: quietTicker,
	})
	if err != nil {
		t.Fatalf("NewBackend() err=%v", err)
	}
	defer func() { _ = b.Close() }()

	if want := []string{"env:ci", "job:salescanon", "team:sales"}; !reflect.DeepEqual(b.baseTags, want) {
		t.Fatalf("baseTags=%v, want %v", b.baseTags, want)
	}
	if b.flushEvery != time.Minute {
		t.Fatalf("flushEvery=%s, want 1m", b.flushEvery)
	}

	cause := errors.New("no site")
	if err := wrapInitErr(cause); !errors.Is(err, cause) || !strings.HasPrefix(err.Error(), "datadog metrics init: ") {
		t.Fatalf("wrapInitErr()=%v", err)
	}
}

func TestResolveEnvTag(t *testing.T) {
	tests := []struct {
		env, ddEnv, want string
	}{
		{"prod", "staging", "env:prod"},
		{"", "staging", "env:staging"},
		{" ", "\t", "env:unknown"},
		{"", "", "env:unknown"},
	}
	for _, tc := range tests {
		t.Setenv("ENV", tc.env)
		t.Setenv("DD_ENV", tc.ddEnv)
		if got := resolveEnvTag(); got != tc.want {
			t.Fatalf("ENV=%q DD_ENV=%q: resolveEnvTag()=%q, want %q", tc.env, tc.ddEnv, got, tc.want)
		}
	}
}

func TestHelpers(t *testing.T) {
	t.Parallel()

	if a, b := splitPairKey(pairKey("export", "")); a != "export" || b != "" {
		t.Fatalf("pairKey round trip=(%q,%q)", a, b)
	}
	if a, b := splitPairKey("read"); a != "read" || b != "unknown" {
		t.Fatalf("splitPairKey(no separator)=(%q,%q)", a, b)
	}

	durations := []float64{0.1, 0.2, 0.3, 0.4, 0.5}
	for p, want := range map[float64]float64{-1: 0.1, 0.5: 0.3, 0.9: 0.5, 2: 0.5} {
		if got := percentileNearestRank(durations, p); got != want {
			t.Fatalf("percentileNearestRank(p=%v)=%v, want %v", p, got, want)
		}
	}
	if got := percentileNearestRank(nil, 0.5); got != 0 {
		t.Fatalf("percentileNearestRank(nil)=%v, want 0", got)
	}

	var series []datadogV2.MetricSeries
	addPercentiles(&series, nil, seriesStageDuration, nil, 0)
	if len(series) != 0 {
		t.Fatalf("addPercentiles(no samples) appended %d series", len(series))
	}
	unsorted := []float64{0.5, 0.1}
	addPercentiles(&series, nil, seriesStageDuration, unsorted, 0)
	if unsorted[0] != 0.5 {
		t.Fatalf("addPercentiles sorted its input")
	}
}

func TestParseTagsCSV(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in   string
		want []string
	}{
		{"", nil},
		{"env:prod", []string{"env:prod"}},
		{" env:prod , ,region:eu,  ,team:sales ", []string{"env:prod", "region:eu", "team:sales"}},
	}
	for _, tc := range tests {
		if got := ParseTagsCSV(tc.in); !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("ParseTagsCSV(%q)=%v, want %v", tc.in, got, tc.want)
		}
	}
}
