// Command salescanon infers the schema of a raw sales file, canonicalizes it,
// reports sales metrics and loads the canonical table into a database.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"salescanon/internal/config"
	"salescanon/internal/metrics"
	"salescanon/internal/metrics/datadog"

	// register all backends with the storage factory.
	_ "salescanon/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	if err := execute(ctx, a, newRootCmd(a)); err != nil {
		os.Exit(1)
	}
}

// execute runs the command line and tears the app down afterwards, on
// failure too, so buffered metrics and logs are flushed for failed runs.
func execute(ctx context.Context, a *app, root *cobra.Command) error {
	defer a.teardown()
	return root.ExecuteContext(ctx)
}

// app is the state shared by all subcommands.
type app struct {
	cfgPath        string
	verbose        bool
	metricsBackend string
	format         string

	cfg    *config.Config
	logger *zap.Logger
	// std bridges zap to the Printf-style Logger the internal packages take.
	std *log.Logger

	closeMetrics func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "salescanon",
		Short: "Infer, canonicalize, analyze and load sales datasets",
		Long: `salescanon reads a raw sales file (CSV, JSON or an HTML table), works out
which columns hold the order date, customer, product, sales amount, quantity
and unit price, and rewrites it into a canonical table with the columns
Date, Customer, Product, Total_Sales, Quantity and UnitPrice.

Configuration is read from --config (YAML) with environment overrides.`,
		SilenceUsage:      true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&a.cfgPath, "config", "c", "", "YAML config path (defaults and env only when empty)")
	pf.BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logs")
	pf.StringVar(&a.metricsBackend, "metrics-backend", "", "metrics backend: none or datadog (overrides config)")
	pf.StringVar(&a.format, "format", "auto", "input format: auto, csv, json or html")

	root.AddCommand(
		newInferCmd(a),
		newDetectCmd(a),
		newCanonicalizeCmd(a),
		newReportCmd(a),
		newLoadCmd(a),
		newValidateCmd(a),
	)
	return root
}

func (a *app) setup(cmd *cobra.Command, args []string) error {
	if a.logger == nil {
		zc := zap.NewProductionConfig()
		if a.verbose {
			zc.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err := zc.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		a.logger = logger
	}
	a.std = zap.NewStdLog(a.logger)

	cfg, err := config.Load(a.cfgPath)
	if err != nil {
		return err
	}
	if a.metricsBackend != "" {
		cfg.Metrics.Backend = a.metricsBackend
	}

	issues := config.Validate(cfg)
	for _, iss := range issues {
		fmt.Fprintln(cmd.ErrOrStderr(), iss)
	}
	if config.HasErrors(issues) {
		return fmt.Errorf("configuration is invalid: %s", displayPath(a.cfgPath))
	}
	a.cfg = cfg

	a.setupMetrics(cmd.Context())
	return nil
}

func (a *app) teardown() {
	if a.closeMetrics != nil {
		a.closeMetrics()
		a.closeMetrics = nil
	}
	if a.logger != nil {
		_ = a.logger.Sync()
	}
}

// setupMetrics installs the configured metrics backend. A backend that
// fails to start leaves the nop backend in place.
func (a *app) setupMetrics(ctx context.Context) {
	switch backend := a.cfg.Metrics.Backend; backend {
	case "datadog":
		b, err := datadog.NewBackend(ctx, datadog.Options{
			JobName:    a.cfg.Job,
			Tags:       a.cfg.Metrics.Tags,
			FlushEvery: a.cfg.Metrics.FlushEvery,
		})
		if err != nil {
			a.logger.Warn("metrics: failed to init datadog backend; using nop", zap.Error(err))
			return
		}
		a.logger.Info("metrics: backend=datadog",
			zap.String("job", a.cfg.Job), zap.Strings("tags", a.cfg.Metrics.Tags))
		metrics.SetBackend(b)
		// Close stops the flush loop and submits what is still buffered.
		a.closeMetrics = func() {
			if err := b.Close(); err != nil {
				a.logger.Warn("metrics: datadog close/flush error", zap.Error(err))
			}
			metrics.SetBackend(nil)
		}
	case "", "none":
		a.logger.Debug("metrics: disabled", zap.String("backend", backend))
	default:
		a.logger.Warn("metrics: unknown backend; metrics disabled", zap.String("backend", backend))
	}
}

// stage runs fn and records it as a pipeline stage.
func stage[T any](a *app, name string, fn func() (T, error)) (T, error) {
	start := time.Now()
	v, err := fn()
	d := time.Since(start)
	metrics.RecordStage(name, d, err)
	if err != nil {
		a.logger.Error("stage failed", zap.String("stage", name), zap.Duration("duration", d), zap.Error(err))
	} else {
		a.logger.Debug("stage ok", zap.String("stage", name), zap.Duration("duration", d))
	}
	return v, err
}

func displayPath(p string) string {
	if p == "" {
		return "(defaults)"
	}
	return p
}
