package dataprep

import (
	"fmt"
	"log/slog"
	"math"

	"bankpanel/internal/config"
	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// renameMapping maps raw call-report fields to the report names used in
// the tables
var renameMapping = map[string]string{
	"deposits":    "total_deposits",
	"savdep":      "savings_deposits",
	"timedep":     "time_deposits",
	"liabilities": "total_liabilities",
	"assets":      "total_assets",
	"securities":  "total_securities",
	"loans":       "total_loans",
	"reloans":     "re_loans",
	"ciloans":     "ci_loans",
}

// LogVariables are the level variables converted to log first differences.
// The order fixes the column order of the regression dataset.
var LogVariables = []string{
	"total_deposits",
	"savings_deposits",
	"time_deposits",
	"total_liabilities",
	"wholesale_funding",
	"total_assets",
	"cash",
	"total_securities",
	"total_loans",
	"re_loans",
	"ci_loans",
}

// The certificate recorded for this bank collides with another
// institution's certificate/quarter keys; the repair matches the provider's
// published correction.
const (
	repairBankID = 3637685
	repairedCert = 58647
)

// CleanPanel applies the cleaning rules: commercial-bank charter filter,
// the known certificate repair, the load-year window, and deduplication on
// (bank, quarter) keeping the first occurrence.
func CleanPanel(f *dataset.Frame, cfg config.PipelineConfig, logger *slog.Logger) (*dataset.Frame, error) {
	charter, err := f.Column("chartertype")
	if err != nil {
		return nil, err
	}
	year, err := f.Column("year")
	if err != nil {
		return nil, err
	}
	cert, err := f.Column("cert")
	if err != nil {
		return nil, err
	}

	for i, bank := range f.Banks() {
		if bank == repairBankID {
			cert[i] = repairedCert
		}
	}

	keep := make([]bool, f.Len())
	for i := range keep {
		keep[i] = charter[i] == cfg.CharterType &&
			!dataset.IsMissing(year[i]) &&
			int(year[i]) >= cfg.LoadStartYear && int(year[i]) <= cfg.LoadEndYear
	}
	cleaned, err := f.Filter(keep)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, cleaned.Len())
	dedup := make([]bool, cleaned.Len())
	dropped := 0
	for i, bank := range cleaned.Banks() {
		key := fmt.Sprintf("%d|%s", bank, cleaned.Quarters()[i])
		if seen[key] {
			dropped++
			continue
		}
		seen[key] = true
		dedup[i] = true
	}
	if dropped > 0 {
		logger.Warn("dropped duplicate bank/quarter rows", slog.Int("count", dropped))
		cleaned, err = cleaned.Filter(dedup)
		if err != nil {
			return nil, err
		}
	}

	logger.Info("cleaned raw panel",
		slog.Int("rows_in", f.Len()),
		slog.Int("rows_out", cleaned.Len()),
		slog.Int("duplicates_dropped", dropped))

	return cleaned, nil
}

// MergeHerfindahl joins the lagged concentration index onto the panel by
// (cert, year, quarter). The merge is one-to-one: duplicate keys on the
// panel side are fatal. Keys absent from the series yield missing values.
func MergeHerfindahl(f *dataset.Frame, series map[HerfKey]float64) error {
	cert, err := f.Column("cert")
	if err != nil {
		return err
	}
	year, err := f.Column("year")
	if err != nil {
		return err
	}
	quarter, err := f.Column("quarter")
	if err != nil {
		return err
	}

	seen := make(map[HerfKey]bool, f.Len())
	values := make([]float64, f.Len())
	for i := range values {
		if dataset.IsMissing(cert[i]) || dataset.IsMissing(year[i]) || dataset.IsMissing(quarter[i]) {
			values[i] = dataset.Missing
			continue
		}
		key := HerfKey{Cert: int64(cert[i]), Year: int(year[i]), Quarter: int(quarter[i])}
		if seen[key] {
			return errors.NewValidationError(
				fmt.Sprintf("panel duplicates merge key cert=%d year=%d quarter=%d; one-to-one merge requires unique keys",
					key.Cert, key.Year, key.Quarter))
		}
		seen[key] = true

		if v, ok := series[key]; ok {
			values[i] = v
		} else {
			values[i] = dataset.Missing
		}
	}

	return f.AddColumn("l1_herfdepcty", values)
}

// MergeRates joins the quarterly policy-rate series onto the panel by
// (year, quarter); many panel rows share one rate observation
func MergeRates(f *dataset.Frame, obs []RateObservation) error {
	year, err := f.Column("year")
	if err != nil {
		return err
	}
	quarter, err := f.Column("quarter")
	if err != nil {
		return err
	}

	type ymq struct{ y, q int }
	byQuarter := make(map[ymq]RateObservation, len(obs))
	for _, o := range obs {
		byQuarter[ymq{o.Year, o.Quarter}] = o
	}

	ff := make([]float64, f.Len())
	dff := make([]float64, f.Len())
	for i := range ff {
		if dataset.IsMissing(year[i]) || dataset.IsMissing(quarter[i]) {
			ff[i], dff[i] = dataset.Missing, dataset.Missing
			continue
		}
		o, ok := byQuarter[ymq{int(year[i]), int(quarter[i])}]
		if !ok {
			ff[i], dff[i] = dataset.Missing, dataset.Missing
			continue
		}
		ff[i], dff[i] = o.FF, o.DFF
	}

	if err := f.AddColumn("FF", ff); err != nil {
		return err
	}
	return f.AddColumn("d_FF", dff)
}

// DeriveFeatures computes the regression variables in place. The frame must
// already carry the merged series; rows are reordered by (bank, quarter) so
// within-bank differences follow calendar order.
func DeriveFeatures(f *dataset.Frame, cfg config.PipelineConfig, logger *slog.Logger) error {
	f.SortByBankQuarter()

	if err := deriveSizeFlags(f, cfg, logger); err != nil {
		return err
	}
	if err := deriveDepositSpread(f); err != nil {
		return err
	}

	for from, to := range renameMapping {
		if err := f.RenameColumn(from, to); err != nil {
			return err
		}
	}

	liabilities, err := f.Column("total_liabilities")
	if err != nil {
		return err
	}
	deposits, err := f.Column("total_deposits")
	if err != nil {
		return err
	}
	wholesale := make([]float64, f.Len())
	for i := range wholesale {
		if dataset.IsMissing(liabilities[i]) || dataset.IsMissing(deposits[i]) {
			wholesale[i] = dataset.Missing
			continue
		}
		wholesale[i] = liabilities[i] - deposits[i]
	}
	if err := f.AddColumn("wholesale_funding", wholesale); err != nil {
		return err
	}

	if err := deriveGrowthFlag(f, cfg); err != nil {
		return err
	}
	if err := deriveLogDifferences(f, logger); err != nil {
		return err
	}

	year, err := f.Column("year")
	if err != nil {
		return err
	}
	post := make([]float64, f.Len())
	for i := range post {
		if !dataset.IsMissing(year[i]) && int(year[i]) >= cfg.PostCutoffYear {
			post[i] = 1
		}
	}
	return f.AddColumn("post2008", post)
}

// deriveSizeFlags computes per-bank average assets and the top-25/top-10
// membership flags from percentile thresholds over the bank averages
func deriveSizeFlags(f *dataset.Frame, cfg config.PipelineConfig, logger *slog.Logger) error {
	assets, err := f.Column("assets")
	if err != nil {
		return err
	}

	sums := make(map[int64]float64)
	counts := make(map[int64]int)
	for i, bank := range f.Banks() {
		if dataset.IsMissing(assets[i]) {
			continue
		}
		sums[bank] += assets[i]
		counts[bank]++
	}

	averages := make(map[int64]float64, len(sums))
	perBank := make([]float64, 0, len(sums))
	for bank, sum := range sums {
		avg := sum / float64(counts[bank])
		averages[bank] = avg
		perBank = append(perBank, avg)
	}

	q75 := dataset.Quantile(perBank, cfg.Top25Quantile)
	q90 := dataset.Quantile(perBank, cfg.Top10Quantile)
	logger.Info("asset-size thresholds",
		slog.Int("banks", len(perBank)),
		slog.Float64("q75", q75),
		slog.Float64("q90", q90))

	avgCol := make([]float64, f.Len())
	top25 := make([]float64, f.Len())
	top10 := make([]float64, f.Len())
	for i, bank := range f.Banks() {
		avg, ok := averages[bank]
		if !ok {
			avgCol[i] = dataset.Missing
			continue
		}
		avgCol[i] = avg
		if avg >= q75 {
			top25[i] = 1
		}
		if avg >= q90 {
			top10[i] = 1
		}
	}

	if err := f.AddColumn("avg_assets", avgCol); err != nil {
		return err
	}
	if err := f.AddColumn("top25_assets", top25); err != nil {
		return err
	}
	return f.AddColumn("top10_assets", top10)
}

// deriveDepositSpread computes the annualized deposit rate, its within-bank
// change, and the spread change against the policy rate
func deriveDepositSpread(f *dataset.Frame) error {
	intexp, err := f.Column("intexpdomdep")
	if err != nil {
		return err
	}
	deposits, err := f.Column("deposits")
	if err != nil {
		return err
	}
	dff, err := f.Column("d_FF")
	if err != nil {
		return err
	}

	rate := make([]float64, f.Len())
	for i := range rate {
		if dataset.IsMissing(intexp[i]) || dataset.IsMissing(deposits[i]) || deposits[i] == 0 {
			rate[i] = dataset.Missing
			continue
		}
		rate[i] = 4 * intexp[i] / deposits[i]
	}

	dRate := groupDiff(f.Banks(), rate)
	spread := make([]float64, f.Len())
	for i := range spread {
		if dataset.IsMissing(dff[i]) || dataset.IsMissing(dRate[i]) {
			spread[i] = dataset.Missing
			continue
		}
		spread[i] = dff[i] - dRate[i]
	}

	if err := f.AddColumn("deposit_rate", rate); err != nil {
		return err
	}
	if err := f.AddColumn("d_deposit_rate", dRate); err != nil {
		return err
	}
	return f.AddColumn("d_deposit_spread", spread)
}

// deriveGrowthFlag flags observations whose within-bank asset growth
// reaches the threshold; rows without a computable growth rate are not
// flagged
func deriveGrowthFlag(f *dataset.Frame, cfg config.PipelineConfig) error {
	assets, err := f.Column("total_assets")
	if err != nil {
		return err
	}

	growth := groupPctChange(f.Banks(), assets)
	flag := make([]float64, f.Len())
	for i, g := range growth {
		if !dataset.IsMissing(g) && g >= cfg.GrowthThreshold {
			flag[i] = 1
		}
	}
	return f.AddColumn("high_asset_growth", flag)
}

// deriveLogDifferences replaces each level variable with its within-bank
// log first difference; non-positive levels become missing first
func deriveLogDifferences(f *dataset.Frame, logger *slog.Logger) error {
	for _, name := range LogVariables {
		col, err := f.Column(name)
		if err != nil {
			return err
		}

		logged := make([]float64, len(col))
		nonPositive := 0
		for i, v := range col {
			if dataset.IsMissing(v) {
				logged[i] = dataset.Missing
				continue
			}
			if v <= 0 {
				nonPositive++
				logged[i] = dataset.Missing
				continue
			}
			logged[i] = math.Log(v)
		}
		if nonPositive > 0 {
			logger.Info("non-positive levels set to missing before log",
				slog.String("variable", name),
				slog.Int("count", nonPositive))
		}

		if err := f.AddColumn("d_"+name, groupDiff(f.Banks(), logged)); err != nil {
			return err
		}
		f.DropColumn(name)
	}
	return nil
}

// TrimToWindow restricts the panel to the regression year window
func TrimToWindow(f *dataset.Frame, cfg config.PipelineConfig) (*dataset.Frame, error) {
	year, err := f.Column("year")
	if err != nil {
		return nil, err
	}
	keep := make([]bool, f.Len())
	for i := range keep {
		keep[i] = !dataset.IsMissing(year[i]) &&
			int(year[i]) >= cfg.TrimStartYear && int(year[i]) <= cfg.TrimEndYear
	}
	return f.Filter(keep)
}

// groupDiff computes v[i] - v[i-1] within consecutive rows of the same
// bank; the first row of each bank is missing
func groupDiff(banks []int64, values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i == 0 || banks[i] != banks[i-1] ||
			dataset.IsMissing(values[i]) || dataset.IsMissing(values[i-1]) {
			out[i] = dataset.Missing
			continue
		}
		out[i] = values[i] - values[i-1]
	}
	return out
}

// groupPctChange computes (v[i] - v[i-1]) / v[i-1] within consecutive rows
// of the same bank. A zero base yields an infinite rate, so a bank growing
// from zero assets still trips the high-growth flag.
func groupPctChange(banks []int64, values []float64) []float64 {
	out := make([]float64, len(values))
	for i := range out {
		if i == 0 || banks[i] != banks[i-1] ||
			dataset.IsMissing(values[i]) || dataset.IsMissing(values[i-1]) {
			out[i] = dataset.Missing
			continue
		}
		out[i] = (values[i] - values[i-1]) / values[i-1]
	}
	return out
}
