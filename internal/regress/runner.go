package regress

import (
	"context"
	"log/slog"
	"time"

	"bankpanel/internal/config"
	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
	"bankpanel/internal/tables"
)

// Runner executes the estimation stage: load the regression dataset, fit
// every sample, filter, and fixed-effect combination, and write a pair of
// coefficient tables (funding and asset panels) per combination.
type Runner struct {
	logger *slog.Logger
	cfg    config.PipelineConfig
	paths  *config.Paths
}

// NewRunner creates a runner for the given configuration
func NewRunner(logger *slog.Logger, cfg config.PipelineConfig, paths *config.Paths) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{logger: logger, cfg: cfg, paths: paths}
}

// Run executes every combination. The first estimation or rendering error
// aborts the stage; a combination never leaves a single panel file behind.
func (r *Runner) Run(ctx context.Context) error {
	start := time.Now()
	r.logger.InfoContext(ctx, "starting estimation stage",
		slog.String("dataset", r.paths.RegressionDataCSV))

	base, err := r.loadDataset(ctx)
	if err != nil {
		return err
	}

	combinations := 0
	for _, sample := range SampleTags {
		for _, filter := range FilterTags {
			if err := r.runCombination(ctx, base, sample, filter, DefaultFE); err != nil {
				return err
			}
			combinations++
		}
	}

	// The fixed-effect sweep runs on the fully treated full sample only.
	for _, fe := range FESweep {
		if err := r.runCombination(ctx, base, SampleFull, FilterBoth, fe); err != nil {
			return err
		}
		combinations++
	}

	r.logger.InfoContext(ctx, "estimation stage complete",
		slog.Int("combinations", combinations),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}

// loadDataset reads the regression dataset and checks it against its
// metadata sidecar before any estimation starts.
func (r *Runner) loadDataset(ctx context.Context) (*dataset.Frame, error) {
	f, err := dataset.ReadCSV(r.paths.RegressionDataCSV)
	if err != nil {
		return nil, err
	}
	meta, err := dataset.ReadMetadata(r.paths.NumericColumnsJSON)
	if err != nil {
		return nil, err
	}
	for _, col := range append(RequiredColumns(), FlagColumns()...) {
		if !meta.HasNumeric(col) {
			return nil, errors.NewMissingColumnError(col)
		}
		if !f.HasColumn(col) {
			return nil, errors.NewMissingColumnError(col)
		}
	}
	r.logger.InfoContext(ctx, "regression dataset loaded",
		slog.Int("rows", f.Len()),
		slog.Int("columns", len(f.Columns())))
	return f, nil
}

func (r *Runner) runCombination(ctx context.Context, base *dataset.Frame, sample SampleTag, filter FilterTag, fe FESpec) error {
	label := CombinationLabel(sample, filter, fe.Tag)
	logger := r.logger.With(slog.String("combination", label))

	sub, kept, err := BuildSample(base, sample, filter, r.cfg, logger)
	if err != nil {
		return err
	}
	logger.InfoContext(ctx, "sample built",
		slog.Int("rows", sub.Len()),
		slog.Int("complete_rows", kept))

	feInd := tables.FixedEffects{Bank: fe.Bank, BankPost: fe.BankPost, Quarter: fe.Quarter}
	funding, err := r.fitPanel(ctx, sub, PanelAVariables, fe, logger)
	if err != nil {
		return err
	}
	assets, err := r.fitPanel(ctx, sub, PanelBVariables, fe, logger)
	if err != nil {
		return err
	}

	// Render both panels before writing either so a failure cannot leave a
	// combination half on disk.
	fundingTex := tables.RenderPanel(funding, feInd)
	assetsTex := tables.RenderPanel(assets, feInd)

	fundingPath := r.paths.TablePath("A", string(sample), string(filter), fe.Tag)
	assetsPath := r.paths.TablePath("B", string(sample), string(filter), fe.Tag)
	if err := tables.WritePanel(fundingPath, fundingTex); err != nil {
		return err
	}
	if err := tables.WritePanel(assetsPath, assetsTex); err != nil {
		return err
	}
	logger.InfoContext(ctx, "tables written",
		slog.String("funding", fundingPath),
		slog.String("assets", assetsPath))
	return nil
}

func (r *Runner) fitPanel(ctx context.Context, f *dataset.Frame, depVars []string, fe FESpec, logger *slog.Logger) ([]tables.Model, error) {
	models := make([]tables.Model, 0, len(depVars))
	for _, dep := range depVars {
		res, err := Fit(f, dep, fe)
		if err != nil {
			return nil, err
		}
		logger.DebugContext(ctx, "model fitted",
			slog.String("dep_var", dep),
			slog.Int("n", res.N),
			slog.Int("clusters", res.Clusters),
			slog.Float64("interaction", res.Interaction.Estimate))
		models = append(models, toModel(res))
	}
	return models, nil
}

func toModel(res *FitResult) tables.Model {
	return tables.Model{
		Header:        res.DepVar,
		Concentration: tables.Coefficient(res.Concentration),
		Interaction:   tables.Coefficient(res.Interaction),
		Obs:           res.N,
		R2:            res.R2,
		WithinR2:      res.WithinR2,
	}
}
