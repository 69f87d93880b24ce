package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/rpattn/enghistory/internal/domain"
	"github.com/rpattn/enghistory/pkg/history"
)

const historySheet = "History"

var historyHeader = []any{"Path", "Updated At", "Value"}

// WriteHistoryWorkbook renders the record as a single-sheet xlsx workbook,
// one row per change-point.
func WriteHistoryWorkbook(w io.Writer, record *history.Record) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", historySheet); err != nil {
		return fmt.Errorf("failed to name history sheet: %w", err)
	}

	if err := f.SetSheetRow(historySheet, "A1", &historyHeader); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}
	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}
	if err := f.SetCellStyle(historySheet, "A1", "C1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header: %w", err)
	}

	for i, row := range domain.FlattenHistory(record) {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		values := []any{row.Path, row.UpdatedAt, row.Value}
		if err := f.SetSheetRow(historySheet, cell, &values); err != nil {
			return fmt.Errorf("failed to write row %d: %w", i+2, err)
		}
	}

	if err := f.SetColWidth(historySheet, "A", "A", 40); err != nil {
		return fmt.Errorf("failed to size path column: %w", err)
	}
	if err := f.SetColWidth(historySheet, "B", "C", 28); err != nil {
		return fmt.Errorf("failed to size value columns: %w", err)
	}

	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}
