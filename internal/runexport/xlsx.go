package runexport

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"intake/internal/domain"
)

const (
	outcomesSheet = "Messages"
	totalsSheet   = "Totals"
)

// WriteXLSX renders the batch as a workbook with a per-message sheet and a
// totals sheet, then writes it to w.
func WriteXLSX(w io.Writer, s *domain.BatchSummary) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", outcomesSheet); err != nil {
		return fmt.Errorf("runexport.WriteXLSX: rename sheet: %w", err)
	}
	if err := writeRow(f, outcomesSheet, 1, columns); err != nil {
		return err
	}
	for i := range s.Outcomes {
		if err := writeRow(f, outcomesSheet, i+2, outcomeToRow(&s.Outcomes[i])); err != nil {
			return err
		}
	}
	if err := f.SetPanes(outcomesSheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("runexport.WriteXLSX: freeze header: %w", err)
	}

	if _, err := f.NewSheet(totalsSheet); err != nil {
		return fmt.Errorf("runexport.WriteXLSX: add totals sheet: %w", err)
	}
	totals := [][]interface{}{
		{"Started At", s.StartedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Finished At", s.FinishedAt.UTC().Format("2006-01-02 15:04:05")},
		{"Selected", s.Selected},
		{"Processed", s.Processed},
		{"Needs Review", s.NeedsReview},
		{"Errors", s.Errored},
		{"Skipped", s.Skipped},
		{"Aborted", s.Aborted},
		{"Abort Reason", s.AbortReason},
	}
	for i, row := range totals {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return fmt.Errorf("runexport.WriteXLSX: %w", err)
		}
		if err := f.SetSheetRow(totalsSheet, cell, &row); err != nil {
			return fmt.Errorf("runexport.WriteXLSX: totals row %d: %w", i+1, err)
		}
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("runexport.WriteXLSX: write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, rowNum int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, rowNum)
	if err != nil {
		return fmt.Errorf("runexport.writeRow: %w", err)
	}
	row := make([]interface{}, len(values))
	for i, v := range values {
		row[i] = v
	}
	if err := f.SetSheetRow(sheet, cell, &row); err != nil {
		return fmt.Errorf("runexport.writeRow: row %d: %w", rowNum, err)
	}
	return nil
}
