// Package dataset checks a delivery CSV locally before it is uploaded.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
)

// PreviewRows is how many data rows Inspect keeps.
const PreviewRows = 10

var (
	ErrNotCSV         = errors.New("only CSV files are supported")
	ErrMissingColumns = errors.New("missing columns")
	ErrEmpty          = errors.New("file has no header row")
)

// RequiredColumns are the inputs the batch predictor reads from each row.
var RequiredColumns = []string{
	"order_volume",
	"warehouse_time",
	"shipment_distance",
	"traffic_level",
	"weather_indicator",
	"historical_performance",
}

// MissingColumnsError lists the required columns absent from a header.
type MissingColumnsError struct {
	Missing []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing columns: %s", strings.Join(e.Missing, ", "))
}

func (e *MissingColumnsError) Unwrap() error { return ErrMissingColumns }

// Summary describes a CSV that passed inspection.
type Summary struct {
	Rows    int
	Columns []string
	Preview [][]string
}

// CheckName rejects file names without a .csv extension.
func CheckName(name string) error {
	if !strings.EqualFold(filepath.Ext(name), ".csv") {
		return ErrNotCSV
	}
	return nil
}

// Inspect validates name and the header read from r, then counts rows.
func Inspect(name string, r io.Reader) (Summary, error) {
	if err := CheckName(name); err != nil {
		return Summary{}, err
	}

	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return Summary{}, ErrEmpty
	}
	if err != nil {
		return Summary{}, fmt.Errorf("read header of %s: %w", name, err)
	}
	for i := range header {
		header[i] = strings.TrimSpace(strings.TrimPrefix(header[i], "\ufeff"))
	}
	if missing := missingColumns(header); len(missing) > 0 {
		return Summary{}, &MissingColumnsError{Missing: missing}
	}

	summary := Summary{Columns: header}
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return Summary{}, fmt.Errorf("read %s row %d: %w", name, summary.Rows+1, err)
		}
		summary.Rows++
		if len(summary.Preview) < PreviewRows {
			summary.Preview = append(summary.Preview, record)
		}
	}
	return summary, nil
}

func missingColumns(header []string) []string {
	present := make(map[string]bool, len(header))
	for _, col := range header {
		present[col] = true
	}
	var missing []string
	for _, col := range RequiredColumns {
		if !present[col] {
			missing = append(missing, col)
		}
	}
	return missing
}
