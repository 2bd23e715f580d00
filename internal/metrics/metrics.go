// Package metrics is the process-wide telemetry facade.
//
// Core code records through the package-level helpers; the concrete backend
// (Datadog, or the default nop) is chosen once by the command at startup via
// SetBackend. Business metrics computed from sales data live in
// internal/analytics; this package only counts what the engine did.
package metrics

import (
	"sync"
	"time"
)

// Metric names. They are an operational contract with dashboards.
const (
	StageTotal           = "salescanon_stage_total"
	StageDurationSeconds = "salescanon_stage_duration_seconds"
	AnalyticsResultTotal = "analytics_result_total"
	RowsTotal            = "salescanon_rows_total"
)

// Labels are metric dimensions.
type Labels map[string]string

// Backend receives metric observations.
type Backend interface {
	IncCounter(name string, delta float64, labels Labels)
	ObserveHistogram(name string, value float64, labels Labels)
	Flush() error
}

type nopBackend struct{}

func (nopBackend) IncCounter(string, float64, Labels)       {}
func (nopBackend) ObserveHistogram(string, float64, Labels) {}
func (nopBackend) Flush() error                             { return nil }

var (
	mu      sync.RWMutex
	backend Backend = nopBackend{}
)

// SetBackend installs b as the process-wide backend. Nil restores the nop
// backend.
func SetBackend(b Backend) {
	mu.Lock()
	defer mu.Unlock()
	if b == nil {
		b = nopBackend{}
	}
	backend = b
}

func current() Backend {
	mu.RLock()
	defer mu.RUnlock()
	return backend
}

// IncCounter adds delta to a counter.
func IncCounter(name string, delta float64, labels Labels) {
	current().IncCounter(name, delta, labels)
}

// ObserveHistogram records one sample.
func ObserveHistogram(name string, value float64, labels Labels) {
	current().ObserveHistogram(name, value, labels)
}

// Flush submits buffered observations of the current backend.
func Flush() error {
	return current().Flush()
}

// RecordStage counts one run of a pipeline stage (load, infer, canonicalize,
// analyze, store, export) and records its duration. A nil err is "ok".
func RecordStage(stage string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	l := Labels{"stage": stage, "status": status}
	IncCounter(StageTotal, 1, l)
	ObserveHistogram(StageDurationSeconds, d.Seconds(), l)
}

// RecordAnalytics counts one metric outcome (ok, unavailable, failed).
func RecordAnalytics(metric, status string) {
	IncCounter(AnalyticsResultTotal, 1, Labels{"metric": metric, "status": status})
}

// AddRows counts rows by kind (read, canonical, inserted, skipped).
func AddRows(kind string, n int64) {
	if n <= 0 {
		return
	}
	IncCounter(RowsTotal, float64(n), Labels{"kind": kind})
}
