// Command polish runs the table-polishing stage: reformat the raw
// coefficient tables in place and build the composite tables.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"bankpanel/internal/config"
	"bankpanel/internal/infrastructure"
	"bankpanel/internal/polish"
)

func main() {
	dataDir := flag.String("data", "", "data directory (overrides configuration)")
	logLevel := flag.String("log-level", "", "log level: debug, info, warn, error")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "polish: %v\n", err)
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
		fmt.Fprintf(os.Stderr, "polish: failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer infrastructure.CloseLogFile()

	paths := config.NewPaths(cfg.Paths)
	if err := paths.EnsureDirectories(); err != nil {
		logger.Error("failed to create directories", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, runID := infrastructure.NewRunContext(context.Background())
	logger.InfoContext(ctx, "polish starting",
		slog.String("run_id", runID),
		slog.String("tables_dir", paths.TablesDir))

	polisher := polish.NewPolisher(logger, paths)
	if err := polisher.Run(ctx); err != nil {
		logger.ErrorContext(ctx, "table polish failed", slog.Any("error", err))
		os.Exit(1)
	}

	logger.InfoContext(ctx, "polish finished",
		slog.String("final_dir", paths.FinalDir))
}
