// Package config loads the salescanon YAML configuration.
//
// Precedence is defaults, then the file, then environment variables:
//
//	SALESCANON_DAY_FIRST     "true"/"false"; false switches to month-first dates
//	SALESCANON_STORAGE_KIND  storage backend kind
//	SALESCANON_DSN           storage DSN
//	METRICS_BACKEND          "none" or "datadog"
//	METRICS_TAGS             comma-separated extra tags ("env:prod,team:x")
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"gopkg.in/yaml.v3"

	"salescanon/internal/analytics"
	"salescanon/internal/datenorm"
	"salescanon/internal/metrics/datadog"
	"salescanon/internal/schema"
	"salescanon/internal/storage"
)

// Config is the full application configuration.
type Config struct {
	// Job names the run in logs and metric tags.
	Job string `yaml:"job"`

	Dates     Dates                `yaml:"dates"`
	Inference Inference            `yaml:"inference"`
	Analytics analytics.Thresholds `yaml:"analytics"`
	Storage   Storage              `yaml:"storage"`
	Metrics   Metrics              `yaml:"metrics"`
}

// Dates is the date parsing policy.
type Dates struct {
	// MonthFirst reads ambiguous dates as MM/DD/YYYY. Day-first otherwise.
	MonthFirst bool `yaml:"month_first"`

	// Timezone is an IANA zone for values without an offset. Empty means UTC.
	Timezone string `yaml:"timezone"`
}

// Inference tunes schema inference.
type Inference struct {
	MinParseRatio    float64         `yaml:"min_parse_ratio"`
	ExclusiveColumns bool            `yaml:"exclusive_columns"`
	Patterns         schema.Patterns `yaml:"patterns"`
}

// Storage selects where canonical tables are loaded.
type Storage struct {
	Kind      string `yaml:"kind"`
	DSN       string `yaml:"dsn"`
	Table     string `yaml:"table"`
	BatchSize int    `yaml:"batch_size"`
}

// Metrics selects the telemetry backend.
type Metrics struct {
	Backend    string        `yaml:"backend"`
	Tags       []string      `yaml:"tags"`
	FlushEvery time.Duration `yaml:"flush_every"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Job:       "salescanon",
		Inference: Inference{MinParseRatio: schema.DefaultMinParseRatio},
		Analytics: analytics.DefaultThresholds(),
		Storage: Storage{
			Kind:      "sqlite",
			DSN:       "salescanon.db",
			Table:     "sales",
			BatchSize: 1000,
		},
		Metrics: Metrics{Backend: "none", FlushEvery: 60 * time.Second},
	}
}

// Load reads path over the defaults and applies environment overrides. An
// empty path skips the file. Unknown keys are an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read: %w", err)
		}
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(os.Getenv); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) applyEnvOverrides(getenv func(string) string) error {
	if v := strings.TrimSpace(getenv("SALESCANON_DAY_FIRST")); v != "" {
		dayFirst, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: SALESCANON_DAY_FIRST=%q: %w", v, err)
		}
		c.Dates.MonthFirst = !dayFirst
	}
	if v := strings.TrimSpace(getenv("SALESCANON_STORAGE_KIND")); v != "" {
		c.Storage.Kind = v
	}
	if v := getenv("SALESCANON_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := strings.TrimSpace(getenv("METRICS_BACKEND")); v != "" {
		c.Metrics.Backend = v
	}
	if tags := datadog.ParseTagsCSV(getenv("METRICS_TAGS")); len(tags) > 0 {
		c.Metrics.Tags = append(c.Metrics.Tags, tags...)
	}
	return nil
}

// DateOptions returns the datenorm policy. Validate reports a bad timezone;
// here it falls back to UTC.
func (c *Config) DateOptions() datenorm.Options {
	opt := datenorm.Options{MonthFirst: c.Dates.MonthFirst}
	if c.Dates.Timezone != "" {
		if loc, err := time.LoadLocation(c.Dates.Timezone); err == nil {
			opt.Location = loc
		}
	}
	return opt
}

// Inferrer builds a schema.Inferrer with the configured patterns merged over
// the defaults.
func (c *Config) Inferrer(logger schema.Logger) *schema.Inferrer {
	return &schema.Inferrer{
		Patterns:      schema.DefaultPatterns().Merge(c.Inference.Patterns),
		DateOptions:   c.DateOptions(),
		MinParseRatio: c.Inference.MinParseRatio,
		Exclusive:     c.Inference.ExclusiveColumns,
		Logger:        logger,
	}
}

// StorageConfig returns the storage.New configuration.
func (c *Config) StorageConfig() storage.Config {
	return storage.Config{Kind: c.Storage.Kind, DSN: c.Storage.DSN}
}
