package config

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"salescanon/internal/schema"
)

// Severity ranks an Issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Path is the dotted YAML key.
type Issue struct {
	Severity Severity
	Path     string
	Message  string
}

func (i Issue) String() string {
	return fmt.Sprintf("%s: %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue is an error.
func HasErrors(issues []Issue) bool {
	for _, i := range issues {
		if i.Severity == SeverityError {
			return true
		}
	}
	return false
}

var (
	storageKinds   = []string{"postgres", "mssql", "sqlite"}
	metricBackends = []string{"", "none", "datadog"}
)

// Validate checks cfg and returns every issue found, errors and warnings
// mixed, in a stable order.
func Validate(cfg *Config) []Issue {
	var out []Issue
	add := func(sev Severity, path, format string, args ...any) {
		out = append(out, Issue{Severity: sev, Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if tz := cfg.Dates.Timezone; tz != "" {
		if _, err := time.LoadLocation(tz); err != nil {
			add(SeverityError, "dates.timezone", "unknown timezone %q", tz)
		}
	}

	if r := cfg.Inference.MinParseRatio; r < 0 || r > 1 {
		add(SeverityError, "inference.min_parse_ratio", "must be within [0, 1], got %g", r)
	}
	roles := make([]string, 0, len(cfg.Inference.Patterns))
	for r := range cfg.Inference.Patterns {
		roles = append(roles, string(r))
	}
	slices.Sort(roles)
	for _, name := range roles {
		path := "inference.patterns." + name
		if mustRole(name) == "" {
			add(SeverityError, path, "unknown role (want one of %s)", roleNames())
			continue
		}
		rp := cfg.Inference.Patterns[schema.Role(name)]
		if len(rp.Exact) == 0 && len(rp.Keywords) == 0 {
			add(SeverityWarning, path, "no patterns given; defaults are kept")
		}
	}

	th := cfg.Analytics
	if th.ChurnDays <= 0 {
		add(SeverityError, "analytics.churn_days", "must be positive")
	}
	if th.RecentDays <= 0 {
		add(SeverityError, "analytics.recent_days", "must be positive")
	}
	if th.TopN <= 0 {
		add(SeverityError, "analytics.top_n", "must be positive")
	}
	if th.DeclinePercent >= 0 {
		add(SeverityWarning, "analytics.decline_percent", "is %g; a decline threshold is usually negative", th.DeclinePercent)
	}
	if th.DependencyPercent <= 0 || th.DependencyPercent > 100 {
		add(SeverityError, "analytics.dependency_percent", "must be within (0, 100]")
	}

	if k := cfg.Storage.Kind; k != "" {
		if !slices.Contains(storageKinds, k) {
			add(SeverityError, "storage.kind", "unsupported kind %q (want one of %s)", k, strings.Join(storageKinds, ", "))
		}
		if strings.TrimSpace(cfg.Storage.DSN) == "" {
			add(SeverityError, "storage.dsn", "required when storage.kind is set")
		}
		if strings.TrimSpace(cfg.Storage.Table) == "" {
			add(SeverityError, "storage.table", "required when storage.kind is set")
		}
	}
	if cfg.Storage.BatchSize < 0 {
		add(SeverityError, "storage.batch_size", "must not be negative")
	}

	if !slices.Contains(metricBackends, cfg.Metrics.Backend) {
		add(SeverityError, "metrics.backend", "unsupported backend %q (want none or datadog)", cfg.Metrics.Backend)
	}
	if cfg.Metrics.FlushEvery < 0 {
		add(SeverityError, "metrics.flush_every", "must not be negative")
	}
	for i, tag := range cfg.Metrics.Tags {
		if !strings.Contains(tag, ":") {
			add(SeverityWarning, fmt.Sprintf("metrics.tags[%d]", i), "tag %q has no key:value form", tag)
		}
	}

	return out
}

// mustRole returns the role spelled exactly as its canonical name, or "".
func mustRole(name string) schema.Role {
	for _, r := range schema.Roles() {
		if string(r) == name {
			return r
		}
	}
	return ""
}

func roleNames() string {
	rs := schema.Roles()
	names := make([]string, len(rs))
	for i, r := range rs {
		names[i] = string(r)
	}
	return strings.Join(names, ", ")
}
