package dataprep

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// RateObservation is one quarter of the policy-rate series
type RateObservation struct {
	Year    int
	Quarter int
	FF      float64
	DFF     float64
}

// RatePaths names the three daily policy-target exports: the single target
// rate (discontinued at the end of 2008) and the lower/upper band that
// replaced it.
type RatePaths struct {
	Target string
	Lower  string
	Upper  string
}

// BuildQuarterlyRate constructs the quarterly policy-rate series from the
// daily target and band exports. The daily level is the single target where
// published, otherwise the band midpoint; each quarter keeps its last daily
// observation, scaled to a decimal rate, and d_FF is the first difference
// across consecutive quarters.
func BuildQuarterlyRate(paths RatePaths, logger *slog.Logger) ([]RateObservation, error) {
	target, err := readDailySeries(paths.Target)
	if err != nil {
		return nil, err
	}
	lower, err := readDailySeries(paths.Lower)
	if err != nil {
		return nil, err
	}
	upper, err := readDailySeries(paths.Upper)
	if err != nil {
		return nil, err
	}

	daily := make(map[time.Time]float64, len(target)+len(lower))
	for date, v := range target {
		daily[date] = v
	}
	for date, lo := range lower {
		hi, ok := upper[date]
		if !ok {
			continue
		}
		daily[date] = (lo + hi) / 2
	}

	if len(daily) == 0 {
		return nil, errors.NewParsingError("policy-rate series contain no observations", nil)
	}

	// Last observation per quarter
	lastDate := make(map[[2]int]time.Time)
	for date := range daily {
		key := [2]int{date.Year(), quarterOf(date)}
		if prev, ok := lastDate[key]; !ok || date.After(prev) {
			lastDate[key] = date
		}
	}

	obs := make([]RateObservation, 0, len(lastDate))
	for key, date := range lastDate {
		obs = append(obs, RateObservation{
			Year:    key[0],
			Quarter: key[1],
			FF:      daily[date] / 100,
			DFF:     dataset.Missing,
		})
	}
	sort.Slice(obs, func(i, j int) bool {
		if obs[i].Year != obs[j].Year {
			return obs[i].Year < obs[j].Year
		}
		return obs[i].Quarter < obs[j].Quarter
	})

	for i := 1; i < len(obs); i++ {
		obs[i].DFF = obs[i].FF - obs[i-1].FF
	}

	logger.Info("built quarterly policy-rate series",
		slog.Int("quarters", len(obs)),
		slog.Int("daily_observations", len(daily)))

	return obs, nil
}

// WriteQuarterlyRateCSV writes the intermediate quarterly series
func WriteQuarterlyRateCSV(path string, obs []RateObservation) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create output directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to create %s", path), err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	defer writer.Flush()

	if err := writer.Write([]string{"year", "quarter", "FF", "d_FF"}); err != nil {
		return errors.NewStorageError("failed to write CSV header", err)
	}
	for _, o := range obs {
		dff := ""
		if !dataset.IsMissing(o.DFF) {
			dff = strconv.FormatFloat(o.DFF, 'f', -1, 64)
		}
		row := []string{
			strconv.Itoa(o.Year),
			strconv.Itoa(o.Quarter),
			strconv.FormatFloat(o.FF, 'f', -1, 64),
			dff,
		}
		if err := writer.Write(row); err != nil {
			return errors.NewStorageError("failed to write rate record", err)
		}
	}

	return writer.Error()
}

// readDailySeries reads a FRED-style export: observation_date in the first
// column, the series value in the second. Blank values are skipped.
func readDailySeries(path string) (map[time.Time]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFoundError(path)
		}
		return nil, errors.NewStorageError(fmt.Sprintf("failed to open %s", path), err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to read %s", path), err)
	}
	if len(records) < 1 || len(records[0]) < 2 || records[0][0] != "observation_date" {
		return nil, errors.NewParsingError(
			fmt.Sprintf("%s is not an observation_date series export", path), nil)
	}

	series := make(map[time.Time]float64, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < 2 || rec[1] == "" {
			continue
		}
		date, err := time.Parse("2006-01-02", rec[0])
		if err != nil {
			return nil, errors.NewParsingError(
				fmt.Sprintf("%s row %d has invalid date %q", path, i+2, rec[0]), err)
		}
		v, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			continue
		}
		series[date] = v
	}

	return series, nil
}

func quarterOf(date time.Time) int {
	return (int(date.Month())-1)/3 + 1
}
