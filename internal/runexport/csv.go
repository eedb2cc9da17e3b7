package runexport

import (
	"encoding/csv"
	"io"

	"intake/internal/domain"
)

// BOM is the UTF-8 byte order mark written ahead of CSV exports for Excel on Windows.
var BOM = []byte{0xEF, 0xBB, 0xBF}

// Writer wraps csv.Writer for exporting batch outcomes as CSV.
type Writer struct {
	csv *csv.Writer
}

// NewWriter creates a Writer that writes CSV to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{csv: csv.NewWriter(w)}
}

// WriteHeader writes the header row.
func (w *Writer) WriteHeader() error {
	return w.csv.Write(columns)
}

// WriteSummary writes one row per outcome of the batch.
func (w *Writer) WriteSummary(s *domain.BatchSummary) error {
	for i := range s.Outcomes {
		if err := w.csv.Write(outcomeToRow(&s.Outcomes[i])); err != nil {
			return err
		}
	}
	return nil
}

// Flush flushes the underlying csv.Writer buffer.
func (w *Writer) Flush() {
	w.csv.Flush()
}

// Error returns any error from the underlying csv.Writer.
func (w *Writer) Error() error {
	return w.csv.Error()
}
