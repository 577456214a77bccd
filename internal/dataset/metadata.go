package dataset

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"

	"bankpanel/internal/errors"
)

// Metadata records which regression-data columns are numeric and which of
// those carry only whole values. Downstream readers check it before
// regressing on a column.
type Metadata struct {
	NumericColumns []string `json:"numeric_columns"`
	IntegerColumns []string `json:"integer_columns"`
}

// BuildMetadata derives metadata from a frame. A column is
// integer-convertible when it is numeric and every non-missing entry is a
// finite whole number.
func BuildMetadata(f *Frame) Metadata {
	meta := Metadata{}
	for _, name := range f.Columns() {
		meta.NumericColumns = append(meta.NumericColumns, name)
		col, _ := f.Column(name)
		if isIntegerConvertible(col) {
			meta.IntegerColumns = append(meta.IntegerColumns, name)
		}
	}
	return meta
}

// isIntegerConvertible reports whether all non-missing entries are finite
// whole numbers. All-missing columns do not qualify.
func isIntegerConvertible(col []float64) bool {
	seen := false
	for _, v := range col {
		if IsMissing(v) {
			continue
		}
		if math.IsInf(v, 0) || v != math.Trunc(v) {
			return false
		}
		seen = true
	}
	return seen
}

// HasNumeric reports whether the metadata lists the column as numeric
func (m Metadata) HasNumeric(column string) bool {
	for _, c := range m.NumericColumns {
		if c == column {
			return true
		}
	}
	return false
}

// WriteMetadata writes the metadata sidecar file
func WriteMetadata(path string, meta Metadata) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.NewStorageError("failed to create metadata directory", err)
	}

	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return errors.NewStorageError("failed to encode metadata", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.NewStorageError(fmt.Sprintf("failed to write %s", path), err)
	}
	return nil
}

// ReadMetadata loads the metadata sidecar file
func ReadMetadata(path string) (Metadata, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Metadata{}, errors.NewNotFoundError(path)
		}
		return Metadata{}, errors.NewStorageError(fmt.Sprintf("failed to read %s", path), err)
	}

	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, errors.NewParsingError(fmt.Sprintf("failed to decode %s", path), err)
	}
	return meta, nil
}
