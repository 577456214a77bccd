// Command prepare runs the data-preparation stage: parse the raw call
// reports and auxiliary series, derive the regression variables, and write
// the regression dataset with its metadata sidecar.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bankpanel/internal/config"
	"bankpanel/internal/dataprep"
	"bankpanel/internal/infrastructure"
)

func main() {
	dataDir := flag.String("data", "", "data directory (overrides configuration)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "prepare: %v\n", err)
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
		fmt.Fprintf(os.Stderr, "prepare: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths := config.NewPaths(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, runID := infrastructure.NewRunContext(context.Background())
	logger.InfoContext(ctx, "prepare starting",
		slog.String("run_id", runID),
		slog.String("data_dir", cfg.Paths.DataDir))

	preparer := dataprep.NewPreparer(logger, cfg.Pipeline, paths)
	if err := preparer.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "data preparation failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "prepare finished",
		slog.String("output", paths.RegressionDataCSV))
}
