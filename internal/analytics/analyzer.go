// Package analytics computes business metrics from a canonical sales table.
//
// Every metric checks its role requirements with canonical.Validate before
// touching data and reports a Result instead of an error. A metric never
// panics out of this package: internal failures become StatusFailed.
package analytics

import (
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"salescanon/internal/canonical"
	"salescanon/internal/metrics"
	"salescanon/internal/schema"
	"salescanon/internal/table"
)

// Logger is the minimal logging interface used by the analyzer.
// *log.Logger satisfies this interface.
type Logger interface {
	Printf(format string, v ...any)
}

// Thresholds tune the rule-based metrics. Zero fields take the defaults from
// DefaultThresholds.
type Thresholds struct {
	// ChurnDays is the inactivity window after which a customer counts as
	// churned.
	ChurnDays int `yaml:"churn_days"`

	// DeclinePercent is the month-over-month change (negative) below which a
	// decline alert fires.
	DeclinePercent float64 `yaml:"decline_percent"`

	// GrowthPercent is the month-over-month growth above which Insights
	// praises the period.
	GrowthPercent float64 `yaml:"growth_percent"`

	// DependencyPercent is the revenue share above which a product is a
	// dependency risk.
	DependencyPercent float64 `yaml:"dependency_percent"`

	// RecentDays is the window used for the recent-revenue check.
	RecentDays int `yaml:"recent_days"`

	// TopN is the number of leading entities in a concentration report.
	TopN int `yaml:"top_n"`
}

// DefaultThresholds returns the stock thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		ChurnDays:         60,
		DeclinePercent:    -10,
		GrowthPercent:     20,
		DependencyPercent: 40,
		RecentDays:        30,
		TopN:              5,
	}
}

func (th Thresholds) withDefaults() Thresholds {
	d := DefaultThresholds()
	if th.ChurnDays <= 0 {
		th.ChurnDays = d.ChurnDays
	}
	if th.DeclinePercent == 0 {
		th.DeclinePercent = d.DeclinePercent
	}
	if th.GrowthPercent == 0 {
		th.GrowthPercent = d.GrowthPercent
	}
	if th.DependencyPercent == 0 {
		th.DependencyPercent = d.DependencyPercent
	}
	if th.RecentDays <= 0 {
		th.RecentDays = d.RecentDays
	}
	if th.TopN <= 0 {
		th.TopN = d.TopN
	}
	return th
}

// Analyzer computes metrics over canonical tables. The zero value is ready to
// use: default thresholds, wall-clock time and no logging.
type Analyzer struct {
	Thresholds Thresholds

	// Now is the as-of clock for churn and recency metrics.
	Now func() time.Time

	Logger Logger
}

func (a *Analyzer) logger() func(string, ...any) {
	if a != nil && a.Logger != nil {
		return a.Logger.Printf
	}
	return log.New(io.Discard, "", 0).Printf
}

func (a *Analyzer) now() time.Time {
	if a != nil && a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Analyzer) thresholds() Thresholds {
	if a == nil {
		return DefaultThresholds()
	}
	return a.Thresholds.withDefaults()
}

// measure is the failure boundary shared by every metric. It validates roles,
// runs fn, converts errors and panics into a Result, then logs and counts the
// outcome.
func measure[T any](a *Analyzer, metric string, t *table.Table, roles []schema.Role, fn func() (T, error)) (res Result[T]) {
	logf := a.logger()
	start := time.Now()

	defer func() {
		if r := recover(); r != nil {
			res = failed[T](fmt.Errorf("analytics: %s: panic: %v", metric, r))
		}
		if res.Status == StatusOK {
			logf("analytics: metric=%s status=%s duration=%s", metric, res.Status, time.Since(start))
		} else {
			logf("analytics: metric=%s status=%s reason=%q", metric, res.Status, res.Reason)
		}
		metrics.RecordAnalytics(metric, res.Status.String())
	}()

	if v := canonical.Validate(t, roles...); !v.OK {
		return unavailable[T](v.Reason())
	}

	val, err := fn()
	switch {
	case errors.Is(err, errNotEnoughData):
		return unavailable[T](err.Error())
	case err != nil:
		return failed[T](fmt.Errorf("analytics: %s: %w", metric, err))
	}
	return ok(val)
}
