package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths resolves every file the pipeline reads or writes.
// This is the single source of truth for file locations across all
// three stages.
type Paths struct {
	DataDir      string
	RawDir       string
	ProcessedDir string
	TablesDir    string
	FinalDir     string
	LogsDir      string

	// Raw inputs
	CallReportsFile   string
	HerfindahlFile    string
	FedTargetFile     string
	FedTargetLowFile  string
	FedTargetHighFile string

	// Stage boundary files
	RegressionDataCSV  string
	NumericColumnsJSON string
	QuarterlyRateCSV   string
}

// NewPaths builds the path layout from configuration. Relative
// subdirectories are resolved against the data directory; the logs
// directory sits beside it.
func NewPaths(cfg PathsConfig) *Paths {
	resolve := func(dir string) string {
		if filepath.IsAbs(dir) {
			return dir
		}
		return filepath.Join(cfg.DataDir, dir)
	}

	rawDir := resolve(cfg.RawDir)
	processedDir := resolve(cfg.ProcessedDir)

	return &Paths{
		DataDir:      cfg.DataDir,
		RawDir:       rawDir,
		ProcessedDir: processedDir,
		TablesDir:    resolve(cfg.TablesDir),
		FinalDir:     resolve(cfg.FinalDir),
		LogsDir:      cfg.LogsDir,

		CallReportsFile:   filepath.Join(rawDir, "call_reports.xlsx"),
		HerfindahlFile:    filepath.Join(rawDir, "l1_herfdepcty.csv"),
		FedTargetFile:     filepath.Join(rawDir, "DFEDTAR.csv"),
		FedTargetLowFile:  filepath.Join(rawDir, "DFEDTARL.csv"),
		FedTargetHighFile: filepath.Join(rawDir, "DFEDTARU.csv"),

		RegressionDataCSV:  filepath.Join(processedDir, "regression_data.csv"),
		NumericColumnsJSON: filepath.Join(processedDir, "numeric_columns.json"),
		QuarterlyRateCSV:   filepath.Join(processedDir, "fed_funds_rate_quarterly.csv"),
	}
}

// EnsureDirectories creates all output directories if they don't exist
func (p *Paths) EnsureDirectories() error {
	directories := []string{
		p.DataDir,
		p.RawDir,
		p.ProcessedDir,
		p.TablesDir,
		p.FinalDir,
		p.LogsDir,
	}

	for _, dir := range directories {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	return nil
}

// TablePath returns the raw coefficient table path for the given panel
// letter, sample tag, filter tag and optional fixed-effect tag.
func (p *Paths) TablePath(panel, sample, filter, feTag string) string {
	name := fmt.Sprintf("t8_%s_%s_%s", panel, sample, filter)
	if feTag != "" {
		name += "_" + feTag
	}
	return filepath.Join(p.TablesDir, name+".tex")
}

// CompositePath returns the path for a composite table under the final
// output directory.
func (p *Paths) CompositePath(name string) string {
	return filepath.Join(p.FinalDir, name+".tex")
}
