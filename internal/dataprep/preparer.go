package dataprep

import (
	"context"
	"log/slog"

	"bankpanel/internal/config"
	"bankpanel/internal/dataset"
)

// OutputColumns is the documented column set of the regression dataset, in
// output order after the bank/quarter identifiers
var OutputColumns = []string{
	"cert",
	"year",
	"quarter",
	"post2008",
	"top25_assets",
	"top10_assets",
	"high_asset_growth",
	"avg_assets",
	"l1_herfdepcty",
	"FF",
	"d_FF",
	"deposit_rate",
	"d_deposit_rate",
	"d_deposit_spread",
	"d_total_deposits",
	"d_savings_deposits",
	"d_time_deposits",
	"d_total_liabilities",
	"d_wholesale_funding",
	"d_total_assets",
	"d_cash",
	"d_total_securities",
	"d_total_loans",
	"d_re_loans",
	"d_ci_loans",
}

// Preparer runs the data-preparation stage: load the raw panel and
// auxiliary series, clean, derive the regression variables, and write the
// regression dataset plus its metadata sidecar.
type Preparer struct {
	logger *slog.Logger
	cfg    config.PipelineConfig
	paths  *config.Paths
}

// NewPreparer creates a preparer for the given configuration
func NewPreparer(logger *slog.Logger, cfg config.PipelineConfig, paths *config.Paths) *Preparer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Preparer{logger: logger, cfg: cfg, paths: paths}
}

// Run executes the full stage. Any returned error is fatal: no partial
// regression dataset is written.
func (p *Preparer) Run(ctx context.Context) error {
	p.logger.InfoContext(ctx, "starting data preparation",
		slog.String("call_reports", p.paths.CallReportsFile),
		slog.String("output", p.paths.RegressionDataCSV))

	panel, err := ParseCallReports(p.paths.CallReportsFile, p.logger)
	if err != nil {
		return err
	}

	panel, err = CleanPanel(panel, p.cfg, p.logger)
	if err != nil {
		return err
	}

	herf, err := LoadHerfindahl(p.paths.HerfindahlFile, p.logger)
	if err != nil {
		return err
	}
	if err := MergeHerfindahl(panel, herf); err != nil {
		return err
	}

	rates, err := BuildQuarterlyRate(RatePaths{
		Target: p.paths.FedTargetFile,
		Lower:  p.paths.FedTargetLowFile,
		Upper:  p.paths.FedTargetHighFile,
	}, p.logger)
	if err != nil {
		return err
	}
	if err := WriteQuarterlyRateCSV(p.paths.QuarterlyRateCSV, rates); err != nil {
		return err
	}
	if err := MergeRates(panel, rates); err != nil {
		return err
	}

	if err := DeriveFeatures(panel, p.cfg, p.logger); err != nil {
		return err
	}

	panel, err = TrimToWindow(panel, p.cfg)
	if err != nil {
		return err
	}

	out, err := panel.Select(OutputColumns)
	if err != nil {
		return err
	}

	meta := dataset.BuildMetadata(out)
	if err := dataset.WriteMetadata(p.paths.NumericColumnsJSON, meta); err != nil {
		return err
	}
	if err := dataset.WriteCSV(p.paths.RegressionDataCSV, out); err != nil {
		return err
	}

	p.logger.InfoContext(ctx, "data preparation complete",
		slog.Int("rows", out.Len()),
		slog.Int("columns", len(OutputColumns)+2),
		slog.String("regression_data", p.paths.RegressionDataCSV),
		slog.String("metadata", p.paths.NumericColumnsJSON))

	return nil
}
