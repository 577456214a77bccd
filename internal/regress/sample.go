package regress

import (
	"fmt"
	"log/slog"

	"bankpanel/internal/config"
	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// SampleTag selects the sample restriction
type SampleTag string

const (
	SampleFull    SampleTag = "full"
	SamplePre2008 SampleTag = "pre2008"
	SampleTop25   SampleTag = "top25"
	SampleTop10   SampleTag = "top10"
)

// SampleTags is the sweep order of the sample restrictions
var SampleTags = []SampleTag{SampleFull, SamplePre2008, SampleTop25, SampleTop10}

// FilterTag selects the filter treatment applied after the restriction
type FilterTag string

const (
	FilterNone   FilterTag = "none"
	FilterGrowth FilterTag = "growth"
	FilterWinsor FilterTag = "winsor"
	FilterBoth   FilterTag = "both"
)

// FilterTags is the sweep order of the filter treatments
var FilterTags = []FilterTag{FilterNone, FilterGrowth, FilterWinsor, FilterBoth}

// PanelAVariables are the funding-side dependent variables, in column order
var PanelAVariables = []string{
	"d_total_deposits",
	"d_deposit_spread",
	"d_savings_deposits",
	"d_time_deposits",
	"d_wholesale_funding",
	"d_total_liabilities",
}

// PanelBVariables are the asset-side dependent variables, in column order
var PanelBVariables = []string{
	"d_total_assets",
	"d_cash",
	"d_total_securities",
	"d_total_loans",
	"d_re_loans",
	"d_ci_loans",
}

// DependentVariables returns all dependent variables, panel A then panel B
func DependentVariables() []string {
	out := make([]string, 0, len(PanelAVariables)+len(PanelBVariables))
	out = append(out, PanelAVariables...)
	return append(out, PanelBVariables...)
}

// RequiredColumns returns the columns the intersection mask checks: every
// dependent variable plus the concentration index and the rate change
func RequiredColumns() []string {
	return append(DependentVariables(), ConcentrationColumn, RateChangeColumn)
}

// FlagColumns returns the indicator columns read by the sample
// restrictions, the growth exclusion, and the bank-post fixed effect.
// They must be present before any combination runs.
func FlagColumns() []string {
	return []string{"post2008", "top25_assets", "top10_assets", "high_asset_growth"}
}

// Regressor column names
const (
	ConcentrationColumn = "l1_herfdepcty"
	RateChangeColumn    = "d_FF"
)

// BuildSample derives the estimation sample for one (sample, filter)
// combination. The steps are order-dependent and must not be rearranged:
// the restriction first, then winsorization with bounds computed on the
// restricted rows, then the high-growth exclusion, then the intersection
// mask over the required columns. With the combined filter the winsor
// bounds are therefore computed before the growth exclusion.
// Returns the sample and the intersection count.
func BuildSample(f *dataset.Frame, sample SampleTag, filter FilterTag, cfg config.PipelineConfig, logger *slog.Logger) (*dataset.Frame, int, error) {
	switch filter {
	case FilterNone, FilterGrowth, FilterWinsor, FilterBoth:
	default:
		return nil, 0, errors.NewUnknownTagError("filter", string(filter))
	}

	restricted, err := applyRestriction(f, sample)
	if err != nil {
		return nil, 0, err
	}

	if filter == FilterWinsor || filter == FilterBoth {
		if err := winsorizeDependents(restricted, cfg); err != nil {
			return nil, 0, err
		}
	}

	if filter == FilterGrowth || filter == FilterBoth {
		restricted, err = dropHighGrowth(restricted)
		if err != nil {
			return nil, 0, err
		}
	}

	mask, err := intersectionMask(restricted)
	if err != nil {
		return nil, 0, err
	}
	count := 0
	for _, keep := range mask {
		if keep {
			count++
		}
	}

	logger.Info("built estimation sample",
		slog.String("sample", string(sample)),
		slog.String("filter", string(filter)),
		slog.Int("restricted_rows", restricted.Len()),
		slog.Int("intersection_rows", count))

	out, err := restricted.Filter(mask)
	if err != nil {
		return nil, 0, err
	}
	return out, count, nil
}

// applyRestriction filters rows by the precomputed membership column for
// the sample tag. Unknown tags are a hard error.
func applyRestriction(f *dataset.Frame, sample SampleTag) (*dataset.Frame, error) {
	switch sample {
	case SampleFull:
		return f.Copy(), nil
	case SamplePre2008:
		return filterByFlag(f, "post2008", 0)
	case SampleTop25:
		return filterByFlag(f, "top25_assets", 1)
	case SampleTop10:
		return filterByFlag(f, "top10_assets", 1)
	default:
		return nil, errors.NewUnknownTagError("sample", string(sample))
	}
}

// filterByFlag keeps rows where the flag column equals want
func filterByFlag(f *dataset.Frame, column string, want float64) (*dataset.Frame, error) {
	flag, err := f.Column(column)
	if err != nil {
		return nil, err
	}
	keep := make([]bool, f.Len())
	for i, v := range flag {
		keep[i] = !dataset.IsMissing(v) && v == want
	}
	return f.Filter(keep)
}

// winsorizeDependents clips each dependent variable to its percentile
// bounds computed within the current rows
func winsorizeDependents(f *dataset.Frame, cfg config.PipelineConfig) error {
	for _, name := range DependentVariables() {
		col, err := f.Column(name)
		if err != nil {
			return err
		}
		lo := dataset.Quantile(col, cfg.WinsorLower)
		hi := dataset.Quantile(col, cfg.WinsorUpper)
		if dataset.IsMissing(lo) || dataset.IsMissing(hi) {
			continue
		}
		for i, v := range col {
			col[i] = dataset.Clip(v, lo, hi)
		}
	}
	return nil
}

// dropHighGrowth removes rows flagged by the precomputed high-growth
// indicator
func dropHighGrowth(f *dataset.Frame) (*dataset.Frame, error) {
	flag, err := f.Column("high_asset_growth")
	if err != nil {
		return nil, err
	}
	keep := make([]bool, f.Len())
	for i, v := range flag {
		keep[i] = dataset.IsMissing(v) || v != 1
	}
	return f.Filter(keep)
}

// intersectionMask marks rows with no missing value in any required column
func intersectionMask(f *dataset.Frame) ([]bool, error) {
	mask := make([]bool, f.Len())
	for i := range mask {
		mask[i] = true
	}
	for _, name := range RequiredColumns() {
		col, err := f.Column(name)
		if err != nil {
			return nil, err
		}
		for i, v := range col {
			if dataset.IsMissing(v) {
				mask[i] = false
			}
		}
	}
	return mask, nil
}

// ValidateTags checks a (sample, filter) pair without building anything
func ValidateTags(sample SampleTag, filter FilterTag) error {
	switch sample {
	case SampleFull, SamplePre2008, SampleTop25, SampleTop10:
	default:
		return errors.NewUnknownTagError("sample", string(sample))
	}
	switch filter {
	case FilterNone, FilterGrowth, FilterWinsor, FilterBoth:
	default:
		return errors.NewUnknownTagError("filter", string(filter))
	}
	return nil
}

// String implements fmt.Stringer for log output
func (s SampleTag) String() string { return string(s) }

// String implements fmt.Stringer for log output
func (f FilterTag) String() string { return string(f) }

// CombinationLabel names a (sample, filter, fe) combination for logs and
// errors
func CombinationLabel(sample SampleTag, filter FilterTag, feTag string) string {
	if feTag == "" {
		return fmt.Sprintf("%s/%s", sample, filter)
	}
	return fmt.Sprintf("%s/%s/%s", sample, filter, feTag)
}
