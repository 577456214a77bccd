package dataprep

import (
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"bankpanel/internal/dataset"
	apperrors "bankpanel/internal/errors"
)

// callReportHeader matches the workbook layout the data provider exports
var callReportHeader = []interface{}{
	"rssdid", "cert", "chartertype", "dateq", "year", "quarter",
	"assets", "liabilities", "deposits", "intexpdomdep", "savdep", "timedep",
	"cash", "securities", "loans", "reloans", "ciloans",
}

func writeWorkbook(t *testing.T, sheet string, header []interface{}, rows [][]interface{}) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	if sheet != "Sheet1" {
		require.NoError(t, f.SetSheetName("Sheet1", sheet))
	}
	require.NoError(t, f.SetSheetRow(sheet, "A1", &header))
	for i, row := range rows {
		cell := fmt.Sprintf("A%d", i+2)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}

	path := filepath.Join(t.TempDir(), "call_reports.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func sampleRow(rssdid int, dateq string, year, quarter int) []interface{} {
	return []interface{}{
		rssdid, 101, 200, dateq, year, quarter,
		100.0, 90.0, 80.0, 1.0, 40.0, 20.0,
		10.0, 30.0, 50.0, 25.0, 15.0,
	}
}

func TestParseCallReports(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", callReportHeader, [][]interface{}{
		sampleRow(1, "2005Q1", 2005, 1),
		sampleRow(1, "2005Q2", 2005, 2),
		sampleRow(2, "2005Q1", 2005, 1),
	})

	f, err := ParseCallReports(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 3, f.Len())
	assert.Equal(t, []int64{1, 1, 2}, f.Banks())
	assert.Equal(t, []string{"2005Q1", "2005Q2", "2005Q1"}, f.Quarters())

	assets, err := f.Column("assets")
	require.NoError(t, err)
	assert.Equal(t, 100.0, assets[0])

	// columns absent from the workbook merge as missing
	bhcid, err := f.Column("bhcid")
	require.NoError(t, err)
	assert.True(t, dataset.IsMissing(bhcid[0]))
}

func TestParseCallReports_NormalizesQuarterLabels(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", callReportHeader, [][]interface{}{
		sampleRow(1, "2005q1", 2005, 1),
		sampleRow(1, " 2005Q2 ", 2005, 2),
		sampleRow(1, "2005-Q3", 2005, 3),
	})

	f, err := ParseCallReports(path, testLogger())
	require.NoError(t, err)
	// unrecognized labels pass through as exported
	assert.Equal(t, []string{"2005Q1", "2005Q2", "2005-Q3"}, f.Quarters())
}

func TestParseCallReports_SentinelCells(t *testing.T) {
	row := sampleRow(1, "2005Q1", 2005, 1)
	row[6] = "n/a" // assets
	row[7] = "."   // liabilities
	path := writeWorkbook(t, "Sheet1", callReportHeader, [][]interface{}{row})

	f, err := ParseCallReports(path, testLogger())
	require.NoError(t, err)

	assets, err := f.Column("assets")
	require.NoError(t, err)
	liabilities, err := f.Column("liabilities")
	require.NoError(t, err)
	assert.True(t, dataset.IsMissing(assets[0]))
	assert.True(t, dataset.IsMissing(liabilities[0]))
}

func TestParseCallReports_SheetByScan(t *testing.T) {
	path := writeWorkbook(t, "export 2014", callReportHeader, [][]interface{}{
		sampleRow(1, "2005Q1", 2005, 1),
	})

	f, err := ParseCallReports(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, 1, f.Len())
}

func TestParseCallReports_SkipsRowsWithoutIdentifier(t *testing.T) {
	bad := sampleRow(1, "2005Q1", 2005, 1)
	bad[0] = "not-a-bank"
	path := writeWorkbook(t, "Sheet1", callReportHeader, [][]interface{}{
		bad,
		sampleRow(2, "2005Q1", 2005, 1),
	})

	f, err := ParseCallReports(path, testLogger())
	require.NoError(t, err)
	assert.Equal(t, []int64{2}, f.Banks())
}

func TestParseCallReports_MissingRequiredColumn(t *testing.T) {
	header := make([]interface{}, 0, len(callReportHeader))
	for _, h := range callReportHeader {
		if h == "deposits" {
			continue
		}
		header = append(header, h)
	}
	path := writeWorkbook(t, "Sheet1", header, [][]interface{}{
		{1, 101, 200, "2005Q1", 2005, 1, 100.0},
	})

	_, err := ParseCallReports(path, testLogger())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeNotFound, appErr.Type)
	assert.Contains(t, err.Error(), "deposits")
}

func TestParseCallReports_NoHeader(t *testing.T) {
	path := writeWorkbook(t, "Sheet1", []interface{}{"alpha", "beta", "gamma"}, [][]interface{}{
		{1, 2, 3},
	})

	_, err := ParseCallReports(path, testLogger())
	require.Error(t, err)
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrTypeParsing, appErr.Type)
}

func TestParseCallReports_AbsentFile(t *testing.T) {
	_, err := ParseCallReports(filepath.Join(t.TempDir(), "nope.xlsx"), testLogger())
	require.Error(t, err)
}
