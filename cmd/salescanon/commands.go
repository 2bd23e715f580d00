package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"salescanon/internal/analytics"
	"salescanon/internal/canonical"
	"salescanon/internal/export"
	"salescanon/internal/load"
	"salescanon/internal/loader"
	"salescanon/internal/metrics"
	"salescanon/internal/schema"
	"salescanon/internal/storage"
	"salescanon/internal/table"
)

func (a *app) readInput(cmd *cobra.Command, path string) (*table.Table, error) {
	format, err := loader.ParseFormat(a.format)
	if err != nil {
		return nil, err
	}
	t, err := stage(a, "read", func() (*table.Table, error) {
		return loader.Load(cmd.Context(), path, loader.Options{Format: format, Logger: a.std})
	})
	if err != nil {
		return nil, err
	}
	metrics.AddRows("read", int64(t.Len()))
	return t, nil
}

// canonicalize infers the mapping of t and returns the canonical table.
func (a *app) canonicalize(t *table.Table) (schema.Mapping, *table.Table) {
	type out struct {
		m schema.Mapping
		t *table.Table
	}
	res, _ := stage(a, "canonicalize", func() (out, error) {
		m, ct := canonical.Run(t, canonical.Options{
			Dates:    a.cfg.DateOptions(),
			Inferrer: a.cfg.Inferrer(a.std),
		})
		return out{m, ct}, nil
	})
	metrics.AddRows("canonical", int64(res.t.Len()))
	if missing := res.m.Missing(); len(missing) > 0 {
		a.logger.Info("canonicalize: unresolved roles", zap.Stringer("mapping", res.m), zap.Int("missing", len(missing)))
	}
	return res.m, res.t
}

func newInferCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "infer FILE",
		Short: "Show which column backs each canonical role",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.readInput(cmd, args[0])
			if err != nil {
				return err
			}
			matches, _ := stage(a, "infer", func() ([]schema.Match, error) {
				return a.cfg.Inferrer(a.std).Explain(t), nil
			})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), matches)
			}
			return printMatches(cmd.OutOrStdout(), matches)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newDetectCmd(a *app) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "detect FILE",
		Short: "Classify columns and list role candidates",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.readInput(cmd, args[0])
			if err != nil {
				return err
			}
			in := a.cfg.Inferrer(a.std)
			cands := in.DetectCandidates(t)
			profile := in.Profile(t)
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), struct {
					Candidates schema.Candidates      `json:"candidates"`
					Columns    []schema.ColumnProfile `json:"columns"`
				}{cands, profile})
			}
			return printDetection(cmd.OutOrStdout(), cands, profile)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newCanonicalizeCmd(a *app) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "canonicalize FILE",
		Short: "Write the canonical table as CSV (default) or Parquet",
		Long: `Writes the canonical table to --out. A ".parquet" extension selects Parquet;
anything else, or no --out, writes CSV (to stdout when --out is empty).`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.readInput(cmd, args[0])
			if err != nil {
				return err
			}
			_, ct := a.canonicalize(t)

			_, err = stage(a, "export", func() (struct{}, error) {
				switch {
				case out == "":
					return struct{}{}, writeCSV(cmd.OutOrStdout(), ct)
				case strings.EqualFold(filepath.Ext(out), ".parquet"):
					return struct{}{}, export.WriteParquetFile(out, ct)
				default:
					return struct{}{}, writeCSVFile(out, ct)
				}
			})
			return err
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (.csv or .parquet)")
	return cmd
}

func newReportCmd(a *app) *cobra.Command {
	var (
		asJSON bool
		asOf   string
	)
	cmd := &cobra.Command{
		Use:   "report FILE",
		Short: "Compute sales metrics and insights",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			now := time.Now
			if asOf != "" {
				d, err := time.Parse(time.DateOnly, asOf)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				now = func() time.Time { return d }
			}

			t, err := a.readInput(cmd, args[0])
			if err != nil {
				return err
			}
			_, ct := a.canonicalize(t)

			an := &analytics.Analyzer{Thresholds: a.cfg.Analytics, Now: now, Logger: a.std}
			rep, _ := stage(a, "analyze", func() (analytics.Report, error) {
				return an.All(ct), nil
			})
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), rep)
			}
			return printReport(cmd.OutOrStdout(), rep)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	cmd.Flags().StringVar(&asOf, "as-of", "", "evaluate churn and recency as of this date (YYYY-MM-DD)")
	return cmd
}

func newLoadCmd(a *app) *cobra.Command {
	var (
		tableName string
		batchSize int
	)
	cmd := &cobra.Command{
		Use:   "load FILE",
		Short: "Canonicalize FILE and insert it into the configured database",
		Long: `Creates the target table if needed and inserts the canonical rows.
Rows are keyed by a hash of their content, so loading the same file again
inserts nothing.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := a.readInput(cmd, args[0])
			if err != nil {
				return err
			}
			_, ct := a.canonicalize(t)

			if tableName == "" {
				tableName = a.cfg.Storage.Table
			}
			if batchSize <= 0 {
				batchSize = a.cfg.Storage.BatchSize
			}

			repo, err := storage.New(cmd.Context(), a.cfg.StorageConfig())
			if err != nil {
				return err
			}
			defer repo.Close()

			res, err := load.Canonical(cmd.Context(), repo, tableName, ct, load.Options{
				BatchSize: batchSize,
				Logger:    a.std,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded table=%s rows=%d inserted=%d skipped=%d load_id=%s\n",
				res.Table, res.Rows, res.Inserted, res.Skipped, res.LoadID)
			return nil
		},
	}
	cmd.Flags().StringVar(&tableName, "table", "", "target table (overrides storage.table)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "rows per insert (overrides storage.batch_size)")
	return cmd
}

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration and exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// setup has already printed issues and rejected errors.
			fmt.Fprintf(cmd.OutOrStdout(), "configuration is valid: %s\n", displayPath(a.cfgPath))
			return nil
		},
	}
}
