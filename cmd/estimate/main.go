// Command estimate runs the regression stage: fit the panel models over
// every sample, filter, and fixed-effect combination and write the raw
// coefficient tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bankpanel/internal/config"
	"bankpanel/internal/infrastructure"
	"bankpanel/internal/regress"
)

func main() {
	dataDir := flag.String("data", "", "data directory (overrides configuration)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "estimate: %v\n", err)
		os.Exit(1)
	}
	if *dataDir != "" {
		cfg.Paths.DataDir = *dataDir
	}
	if *logLevel != "" {
		cfg.Logging.Level = *logLevel
	}

	logger, err := infrastructure.InitializeLogger(cfg.Logging)
	if err != nil {
		fmt.Fprintf(os.Stderr, "estimate: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths := config.NewPaths(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, runID := infrastructure.NewRunContext(context.Background())
	logger.InfoContext(ctx, "estimate starting",
		slog.String("run_id", runID),
		slog.String("dataset", paths.RegressionDataCSV))

	runner := regress.NewRunner(logger, cfg.Pipeline, paths)
	if err := runner.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "estimation failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "estimate finished",
		slog.String("tables_dir", paths.TablesDir))
}
