package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"mercator-hq/trafficdump/pkg/capture/engine"
	"mercator-hq/trafficdump/pkg/capture/redact"
	"mercator-hq/trafficdump/pkg/capture/session"
	"mercator-hq/trafficdump/pkg/catalog"
	"mercator-hq/trafficdump/pkg/cli"
	"mercator-hq/trafficdump/pkg/config"
	"mercator-hq/trafficdump/pkg/dump"
	"mercator-hq/trafficdump/pkg/limits/diskbudget"
	"mercator-hq/trafficdump/pkg/proxy"
	"mercator-hq/trafficdump/pkg/report"
	"mercator-hq/trafficdump/pkg/telemetry/health"
	"mercator-hq/trafficdump/pkg/telemetry/logging"
	"mercator-hq/trafficdump/pkg/telemetry/metrics"
	"mercator-hq/trafficdump/pkg/telemetry/tracing"
)

var runFlags struct {
	logDir          string
	sample          int
	limit           int64
	sensitiveFields string
	listenAddress   string
	upstream        string
	logLevel        string
	dryRun          bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the capturing proxy",
	Long: `Start the capturing reverse proxy with the specified configuration.

Flags override the configuration file, which in turn is overridden by
TRAFFICDUMP_* environment variables.

Examples:
  # Start with default config
  trafficdump run --upstream http://127.0.0.1:8081

  # Capture every session into /tmp/dump with a 1 GB budget
  trafficdump run --logdir /tmp/dump --sample 1 --limit 1000000000

  # Redact extra request headers
  trafficdump run --sensitive-fields cookie,set-cookie,x-request-1

  # Validate config without starting the proxy
  trafficdump run --dry-run`,
	RunE: runProxy,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVar(&runFlags.logDir, "logdir", "", "override the replay file directory")
	runCmd.Flags().IntVar(&runFlags.sample, "sample", 0, "capture one of every N sessions")
	runCmd.Flags().Int64Var(&runFlags.limit, "limit", 0, "disk budget in bytes across all replay files")
	runCmd.Flags().StringVar(&runFlags.sensitiveFields, "sensitive-fields", "", "comma-separated header names to redact")
	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.upstream, "upstream", "", "override upstream origin URL")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting the proxy")
}

// loadConfig reads the configuration file with environment overrides and
// applies command-line flags on top.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.FromValidation(err)
	}

	flags := cmd.Flags()
	if flags.Changed("logdir") {
		cfg.Capture.LogDir = runFlags.logDir
	}
	if flags.Changed("sample") {
		cfg.Capture.Sample = runFlags.sample
	}
	if flags.Changed("limit") {
		cfg.Capture.Limit = runFlags.limit
	}
	if flags.Changed("sensitive-fields") {
		cfg.Capture.SensitiveFields = redact.ParseFields(runFlags.sensitiveFields)
	}
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.upstream != "" {
		cfg.Proxy.Upstream = runFlags.upstream
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if verbose {
		cfg.Telemetry.Logging.Level = "debug"
	}

	if err := config.Validate(cfg); err != nil {
		return nil, cli.FromValidation(err)
	}
	return cfg, nil
}

func runProxy(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	logger, redactor, err := logging.FromConfig(cfg.Telemetry.Logging, cfg.Capture.SensitiveFields, nil)
	if err != nil {
		return cli.NewConfigError("telemetry.logging", err.Error())
	}
	slog.SetDefault(logger)

	if runFlags.dryRun {
		fmt.Fprintln(cmd.OutOrStdout(), "✓ Configuration valid")
		return nil
	}

	ctx, stop := cli.SetupSignalHandler(context.Background())
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(&cfg.Telemetry.Metrics, registry)

	tracer, err := tracing.New(&cfg.Telemetry.Tracing, Version)
	if err != nil {
		return cli.NewCommandError("run", fmt.Errorf("failed to initialize tracing: %w", err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		tracer.Shutdown(shutdownCtx)
	}()

	var (
		cat    catalog.Catalog
		seeded int64
	)
	if cfg.Catalog.Enabled {
		cat, err = catalog.Open(cfg.Catalog)
		if err != nil {
			return cli.NewCommandError("run", err)
		}
		defer cat.Close()

		if config.Bool(cfg.Catalog.SeedBudget, true) {
			if seeded, err = cat.TotalBytes(ctx); err != nil {
				return cli.NewCommandError("run", fmt.Errorf("failed to seed disk budget: %w", err))
			}
		}
		slog.Info("capture catalog opened",
			"driver", cfg.Catalog.Driver,
			"path", cfg.Catalog.Path,
			"seeded_bytes", seeded,
		)
	}

	budget := diskbudget.New(diskbudget.Config{
		Limit:          cfg.Capture.Limit,
		InitialUsed:    seeded,
		AlertThreshold: cfg.Capture.AlertThreshold,
	})
	collector.UpdateBudget(budget.Used(), budget.Limit())

	writer, err := dump.NewWriter(dump.Config{
		Layout:       dump.NewLayout(cfg.Capture.LogDir),
		Budget:       budget,
		Policy:       redact.NewPolicy(cfg.Capture.SensitiveFields),
		Catalog:      cat,
		Metrics:      collector,
		Tracer:       tracer,
		QueueSize:    cfg.Capture.QueueSize,
		Workers:      cfg.Capture.Workers,
		WriteTimeout: cfg.Capture.WriteTimeout,
		Logger:       logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	bodies := session.Config{
		DumpBodies:   cfg.Capture.DumpBodies,
		MaxBodyBytes: cfg.Capture.MaxBodyBytes,
	}
	eng, err := engine.New(engine.Config{
		LogDir:  cfg.Capture.LogDir,
		Sample:  cfg.Capture.Sample,
		Limit:   cfg.Capture.Limit,
		Buffer:  bodies,
		Writer:  writer,
		Metrics: collector,
		Logger:  logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}
	defer func() {
		drainCtx, cancel := context.WithTimeout(context.Background(), cfg.Proxy.ShutdownTimeout)
		defer cancel()
		if err := eng.Close(drainCtx); err != nil {
			slog.Error("failed to drain capture queue", "error", err)
		}
	}()

	checker := health.New(2 * time.Second)
	checker.RegisterCheck("disk_budget", health.BudgetCheck(budget))
	checker.RegisterCheck("log_dir", health.LogDirCheck(cfg.Capture.LogDir))
	checker.RegisterCheck("writer_queue", health.QueueCheck(writer))

	reporter := report.NewReporter(budget, eng.Stats, cat, logger).WithMetrics(collector)
	scheduler := report.NewScheduler(reporter, cfg.Report.Schedule)
	if err := scheduler.Start(ctx); err != nil {
		return cli.NewConfigError("report.schedule", err.Error())
	}
	defer scheduler.Stop()

	if _, statErr := os.Stat(cfgFile); statErr == nil {
		watcher, err := config.NewWatcher(cfgFile, 500*time.Millisecond, logger)
		if err != nil {
			slog.Warn("config hot reload disabled", "error", err)
		} else {
			go watcher.Watch(ctx, func(next *config.Config) {
				applyReload(cfg, next, eng, redactor)
			})
		}
	}

	srv, err := proxy.NewServer(proxy.Config{
		Proxy:   &cfg.Proxy,
		Engine:  eng,
		Body:    bodies,
		Metrics: collector,
		Tracer:  tracer,
		Logger:  logger,
	})
	if err != nil {
		return cli.NewConfigError("proxy.upstream", err.Error())
	}

	errChan := make(chan error, 2)
	go func() {
		errChan <- srv.Start(ctx)
	}()

	if cfg.Proxy.AdminAddress != "" {
		admin := proxy.NewAdminServer(proxy.AdminConfig{
			Address:         cfg.Proxy.AdminAddress,
			ShutdownTimeout: cfg.Proxy.ShutdownTimeout,
			Metrics:         collector,
			Health:          checker,
			Budget:          budget,
			Catalog:         cat,
			Version:         versionInfo(),
			Logger:          logger,
		})
		go func() {
			if err := admin.Start(ctx); err != nil {
				errChan <- err
			}
		}()
	}

	printBanner(cmd, cfg)

	err = <-errChan
	stop()
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("proxy stopped with error", "error", err)
		srv.Shutdown(context.Background())
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), "✓ Proxy stopped")
	return nil
}

// applyReload hot-applies the sensitive field list. Other settings need a
// restart and are only reported.
func applyReload(current, next *config.Config, eng *engine.Engine, redactor *logging.Redactor) {
	policy := redact.NewPolicy(next.Capture.SensitiveFields)
	eng.SetPolicy(policy)
	if redactor != nil {
		redactor.SetPolicy(policy)
	}

	if next.Capture.Sample != current.Capture.Sample ||
		next.Capture.Limit != current.Capture.Limit ||
		next.Capture.LogDir != current.Capture.LogDir ||
		next.Proxy.ListenAddress != current.Proxy.ListenAddress ||
		next.Proxy.Upstream != current.Proxy.Upstream {
		slog.Warn("configuration changed outside capture.sensitive_fields; restart to apply")
	}
}

func printBanner(cmd *cobra.Command, cfg *config.Config) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Trafficdump v%s\n", Version)
	fmt.Fprintf(out, "✓ Capturing 1 of every %d sessions into %s (limit %d bytes)\n",
		cfg.Capture.Sample, cfg.Capture.LogDir, cfg.Capture.Limit)
	fmt.Fprintf(out, "✓ Proxy listening on %s -> %s\n", cfg.Proxy.ListenAddress, cfg.Proxy.Upstream)
	if cfg.Proxy.AdminAddress != "" {
		fmt.Fprintf(out, "✓ Metrics endpoint: http://%s/metrics\n", cfg.Proxy.AdminAddress)
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}
