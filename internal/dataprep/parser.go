package dataprep

import (
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"bankpanel/internal/dataset"
	"bankpanel/internal/errors"
)

// rawColumns is the column set extracted from the call-report workbook.
// Everything but the identifiers is numeric; blank and sentinel cells
// become missing values.
var rawColumns = []string{
	"cert",
	"bhcid",
	"chartertype",
	"year",
	"quarter",
	"assets",
	"liabilities",
	"deposits",
	"intexpdomdep",
	"savdep",
	"timedep",
	"cash",
	"securities",
	"loans",
	"reloans",
	"ciloans",
	"fedfundsrepoliab",
	"timedepge100k",
}

// requiredRawColumns must be present or the run aborts; the rest merge as
// missing when absent from the workbook.
var requiredRawColumns = []string{
	"rssdid", "cert", "chartertype", "dateq", "year", "quarter",
	"assets", "liabilities", "deposits", "intexpdomdep", "savdep", "timedep",
	"cash", "securities", "loans", "reloans", "ciloans",
}

// missingSentinels are cell values the data provider uses for absent data
var missingSentinels = map[string]bool{
	"": true, ".": true, "na": true, "n/a": true, "nan": true, "null": true,
}

// ParseCallReports reads the raw call-report workbook and returns the
// bank/quarter panel. The trading sheet is located by probing for a header
// row containing the identifier columns; a workbook without one is
// malformed and aborts the run.
func ParseCallReports(path string, logger *slog.Logger) (*dataset.Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.NewParsingError(fmt.Sprintf("failed to open workbook %s", path), err)
	}
	defer f.Close()

	rows, sheetName, err := findPanelSheet(f)
	if err != nil {
		return nil, err
	}

	logger.Info("found call-report panel sheet",
		slog.String("sheet_name", sheetName),
		slog.Int("total_rows", len(rows)))

	headerRow, columnMap := locateHeader(rows)
	if headerRow < 0 {
		return nil, errors.NewParsingError(
			fmt.Sprintf("could not find header row in workbook %s", path), nil)
	}

	for _, col := range requiredRawColumns {
		if _, ok := columnMap[col]; !ok {
			return nil, errors.NewMissingColumnError(col).WithContext("file", path)
		}
	}

	var banks []int64
	var quarters []string
	values := make(map[string][]float64, len(rawColumns))
	for _, name := range rawColumns {
		values[name] = nil
	}

	skipped := 0
	for i := headerRow + 1; i < len(rows); i++ {
		row := rows[i]
		if isBlankRow(row) {
			continue
		}

		idCell := cellAt(row, columnMap["rssdid"])
		id, err := strconv.ParseInt(strings.ReplaceAll(idCell, ",", ""), 10, 64)
		if err != nil {
			skipped++
			logger.Debug("skipping row with unparseable bank identifier",
				slog.Int("row", i+1),
				slog.String("rssdid", idCell))
			continue
		}

		banks = append(banks, id)
		quarters = append(quarters, normalizeQuarterLabel(cellAt(row, columnMap["dateq"])))
		for _, name := range rawColumns {
			idx, ok := columnMap[name]
			if !ok {
				values[name] = append(values[name], dataset.Missing)
				continue
			}
			values[name] = append(values[name], parseCell(cellAt(row, idx)))
		}
	}

	if len(banks) == 0 {
		return nil, errors.NewParsingError(
			fmt.Sprintf("workbook %s contains no data rows", path), nil)
	}
	if skipped > 0 {
		logger.Warn("skipped rows without a bank identifier", slog.Int("count", skipped))
	}

	frame, err := dataset.NewFrame(banks, quarters)
	if err != nil {
		return nil, err
	}
	for _, name := range rawColumns {
		if err := frame.AddColumn(name, values[name]); err != nil {
			return nil, err
		}
	}

	logger.Info("parsed call-report panel",
		slog.Int("rows", frame.Len()),
		slog.Int("columns", len(rawColumns)+2))

	return frame, nil
}

// findPanelSheet returns the rows of the sheet holding the panel. Common
// sheet names are probed first, then every sheet is scanned for the
// identifier headers.
func findPanelSheet(f *excelize.File) ([][]string, string, error) {
	possibleNames := []string{"call_reports", "Call Reports", "panel", "data", "Sheet1"}

	for _, name := range possibleNames {
		if rows, err := f.GetRows(name); err == nil && len(rows) > 1 {
			return rows, name, nil
		}
	}

	for _, name := range f.GetSheetList() {
		rows, err := f.GetRows(name)
		if err != nil || len(rows) < 2 {
			continue
		}
		for _, row := range rows[:minInt(len(rows), 4)] {
			rowText := strings.ToLower(strings.Join(row, " "))
			if strings.Contains(rowText, "rssdid") && strings.Contains(rowText, "dateq") {
				return rows, name, nil
			}
		}
	}

	return nil, "", errors.NewParsingError("could not find call-report panel sheet in workbook", nil)
}

// locateHeader finds the header row and maps column names to indices
func locateHeader(rows [][]string) (int, map[string]int) {
	for i, row := range rows {
		if len(row) < 3 {
			continue
		}
		rowText := strings.ToLower(strings.Join(row, " "))
		if !strings.Contains(rowText, "rssdid") || !strings.Contains(rowText, "dateq") {
			continue
		}

		columnMap := make(map[string]int, len(row))
		for j, header := range row {
			name := strings.ToLower(strings.TrimSpace(header))
			if name == "" {
				continue
			}
			if _, dup := columnMap[name]; !dup {
				columnMap[name] = j
			}
		}
		return i, columnMap
	}
	return -1, nil
}

// normalizeQuarterLabel rewrites a workbook quarter label to the canonical
// YYYYQn form so within-bank ordering can sort labels lexicographically.
// Labels the quarter grammar does not cover pass through untouched.
func normalizeQuarterLabel(label string) string {
	trimmed := strings.TrimSpace(label)
	if year, quarter, err := parseQuarterLabel(trimmed); err == nil {
		return QuarterLabel(year, quarter)
	}
	return label
}

func cellAt(row []string, idx int) string {
	if idx < len(row) {
		return strings.TrimSpace(row[idx])
	}
	return ""
}

// parseCell coerces a workbook cell to a numeric value; sentinel and
// unparseable cells become missing
func parseCell(cell string) float64 {
	if missingSentinels[strings.ToLower(cell)] {
		return dataset.Missing
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(cell, ",", ""), 64)
	if err != nil {
		return dataset.Missing
	}
	return v
}

func isBlankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
