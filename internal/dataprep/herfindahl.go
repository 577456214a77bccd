package dataprep

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// HerfKey identifies one certificate/quarter in the concentration series
type HerfKey struct {
	Cert    int64
	Year    int
	Quarter int
}

// LoadHerfindahl reads the lagged county deposit Herfindahl series keyed by
// (cert, dateq). Duplicate keys violate the one-to-one merge contract and
// abort the run; rows without a parseable certificate or quarter are
// skipped with a warning.
func LoadHerfindahl(path string, logger *slog.Logger) (map[HerfKey]float64, error) {
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
	if len(records) < 1 {
		return nil, errors.NewParsingError(fmt.Sprintf("%s is empty", path), nil)
	}

	colIdx := make(map[string]int, len(records[0]))
	for j, name := range records[0] {
		colIdx[name] = j
	}
	for _, required := range []string{"cert", "dateq", "l1_herfdepcty"} {
		if _, ok := colIdx[required]; !ok {
			return nil, errors.NewMissingColumnError(required).WithContext("file", path)
		}
	}

	series := make(map[HerfKey]float64, len(records)-1)
	skipped := 0
	for i, rec := range records[1:] {
		cert, err := strconv.ParseInt(rec[colIdx["cert"]], 10, 64)
		if err != nil {
			skipped++
			continue
		}
		year, quarter, err := parseQuarterLabel(rec[colIdx["dateq"]])
		if err != nil {
			skipped++
			continue
		}

		key := HerfKey{Cert: cert, Year: year, Quarter: quarter}
		if _, dup := series[key]; dup {
			return nil, errors.NewValidationError(
				fmt.Sprintf("%s row %d duplicates merge key cert=%d dateq=%s; one-to-one merge requires unique keys",
					path, i+2, cert, rec[colIdx["dateq"]]))
		}

		raw := rec[colIdx["l1_herfdepcty"]]
		if raw == "" {
			series[key] = dataset.Missing
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			series[key] = dataset.Missing
			continue
		}
		series[key] = v
	}

	if skipped > 0 {
		logger.Warn("skipped concentration rows with unparseable keys",
			slog.Int("count", skipped))
	}
	logger.Info("loaded concentration index series", slog.Int("keys", len(series)))

	return series, nil
}

// parseQuarterLabel splits a label like 1993Q1 into year and quarter
func parseQuarterLabel(label string) (int, int, error) {
	if len(label) != 6 || (label[4] != 'Q' && label[4] != 'q') {
		return 0, 0, fmt.Errorf("invalid quarter label %q", label)
	}
	year, err := strconv.Atoi(label[:4])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid year in quarter label %q", label)
	}
	quarter, err := strconv.Atoi(label[5:])
	if err != nil || quarter < 1 || quarter > 4 {
		return 0, 0, fmt.Errorf("invalid quarter in label %q", label)
	}
	return year, quarter, nil
}

// QuarterLabel formats a (year, quarter) pair as 1993Q1
func QuarterLabel(year, quarter int) string {
	return fmt.Sprintf("%dQ%d", year, quarter)
}
