package polish

import (
	"context"
	"log/slog"
	"time"

	"bankpanel/internal/config"
)

var panels = []string{"A", "B"}

// Polisher runs the table-polishing stage: fix every raw table in place,
// then build the filter, fixed-effect, and robustness composites.
type Polisher struct {
	logger *slog.Logger
	paths  *config.Paths
}

// NewPolisher creates a polisher for the given path layout
func NewPolisher(logger *slog.Logger, paths *config.Paths) *Polisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Polisher{logger: logger, paths: paths}
}

// Run executes the full stage. Every expected raw table must exist; a
// missing one aborts the run with its path.
func (p *Polisher) Run(ctx context.Context) error {
	start := time.Now()
	p.logger.InfoContext(ctx, "starting table polish",
		slog.String("tables_dir", p.paths.TablesDir),
		slog.String("final_dir", p.paths.FinalDir))

	fixed := 0
	for _, panel := range panels {
		for _, s := range sampleRows {
			for _, f := range filterRows {
				path := p.paths.TablePath(panel, s.Tag, f.Tag, "")
				if err := FixTable(path, panel); err != nil {
					return err
				}
				fixed++
			}
		}
		for _, fe := range feRows {
			path := p.paths.TablePath(panel, feSample, feFilter, fe.Tag)
			if err := FixTable(path, panel); err != nil {
				return err
			}
			fixed++
		}
	}
	p.logger.InfoContext(ctx, "raw tables fixed", slog.Int("count", fixed))

	for _, panel := range panels {
		for _, s := range sampleRows {
			if err := buildFilterComposite(p.paths, panel, s.Tag); err != nil {
				return err
			}
		}
		if err := buildFEComposite(p.paths, panel); err != nil {
			return err
		}
		if err := buildRobustnessComposite(p.paths, panel); err != nil {
			return err
		}
	}

	p.logger.InfoContext(ctx, "table polish complete",
		slog.Int("composites", len(panels)*(len(sampleRows)+2)),
		slog.Duration("elapsed", time.Since(start)))
	return nil
}
