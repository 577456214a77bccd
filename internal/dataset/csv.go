package dataset

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"bankpanel/internal/errors"
)

const (
	bankIDHeader  = "rssdid"
	quarterHeader = "dateq"
)

// WriteCSV writes the frame as a delimited flat file. The first two columns
// are the row identifiers, followed by the numeric columns in frame order.
// Missing values are written as empty cells.
func WriteCSV(path string, f *Frame) error {
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

	header := append([]string{bankIDHeader, quarterHeader}, f.Columns()...)
	if err := writer.Write(header); err != nil {
		return errors.NewStorageError("failed to write CSV header", err)
	}

	cols := make([][]float64, 0, len(f.order))
	for _, name := range f.order {
		cols = append(cols, f.cols[name])
	}

	row := make([]string, len(header))
	for i := 0; i < f.Len(); i++ {
		row[0] = strconv.FormatInt(f.banks[i], 10)
		row[1] = f.quarters[i]
		for j, col := range cols {
			if IsMissing(col[i]) {
				row[j+2] = ""
			} else {
				row[j+2] = strconv.FormatFloat(col[i], 'f', -1, 64)
			}
		}
		if err := writer.Write(row); err != nil {
			return errors.NewStorageError(fmt.Sprintf("failed to write record %d", i), err)
		}
	}

	return writer.Error()
}

// ReadCSV loads a frame written by WriteCSV. A missing file is a
// missing-upstream-artifact error; malformed content is a parsing error.
// Empty cells and unparseable numerics become missing values.
func ReadCSV(path string) (*Frame, error) {
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
	if len(records) == 0 {
		return nil, errors.NewParsingError(fmt.Sprintf("%s is empty", path), nil)
	}

	header := records[0]
	if len(header) < 2 || header[0] != bankIDHeader || header[1] != quarterHeader {
		return nil, errors.NewParsingError(
			fmt.Sprintf("%s does not start with %s,%s identifier columns", path, bankIDHeader, quarterHeader), nil)
	}

	rows := records[1:]
	banks := make([]int64, len(rows))
	quarters := make([]string, len(rows))
	for i, rec := range rows {
		if len(rec) != len(header) {
			return nil, errors.NewParsingError(
				fmt.Sprintf("%s row %d has %d fields, header has %d", path, i+2, len(rec), len(header)), nil)
		}
		id, err := strconv.ParseInt(rec[0], 10, 64)
		if err != nil {
			return nil, errors.NewParsingError(
				fmt.Sprintf("%s row %d has non-integer %s %q", path, i+2, bankIDHeader, rec[0]), err)
		}
		banks[i] = id
		quarters[i] = rec[1]
	}

	frame, err := NewFrame(banks, quarters)
	if err != nil {
		return nil, err
	}

	for j := 2; j < len(header); j++ {
		col := make([]float64, len(rows))
		for i, rec := range rows {
			if rec[j] == "" {
				col[i] = Missing
				continue
			}
			v, err := strconv.ParseFloat(rec[j], 64)
			if err != nil {
				col[i] = Missing
				continue
			}
			col[i] = v
		}
		if err := frame.AddColumn(header[j], col); err != nil {
			return nil, err
		}
	}

	return frame, nil
}
