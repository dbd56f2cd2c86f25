package export

import (
	"encoding/csv"
	"fmt"
	"io"

	"github.com/roman-kulish/flight-video-sync/internal/telemetry"
)

// RowWriter is implemented by records exported as CSV rows
type RowWriter interface {
	CSVHeader() []string
	CSVRow() []string
}

// WriteCSV writes one row per frame, preceded by the header
func WriteCSV(w io.Writer, p telemetry.Provider) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(telemetry.Telemetry{}.CSVHeader()); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}

	for i := 0; i < p.Len(); i++ {
		var row RowWriter = p.At(i)
		if err := cw.Write(row.CSVRow()); err != nil {
			return fmt.Errorf("writing CSV row %d: %w", i, err)
		}
	}

	cw.Flush()
	return cw.Error()
}
