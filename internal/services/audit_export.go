package services

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/charlesng35/hrconsole/internal/models"
)

// AuditWorkbookContentType is the media type of WriteWorkbook output.
const AuditWorkbookContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

const auditSheet = "Activity"

var auditWorkbookHeaders = []string{"Time", "User ID", "Username", "Action", "Resource", "Result", "IP Address", "User Agent", "Metadata"}

func headerRow() []any {
	row := make([]any, len(auditWorkbookHeaders))
	for i, title := range auditWorkbookHeaders {
		row[i] = title
	}
	return row
}

func rowsOf(logs []models.AuditLog) [][]any {
	rows := make([][]any, len(logs))
	for i, entry := range logs {
		rows[i] = auditRow(entry)
	}
	return rows
}

func auditRow(entry models.AuditLog) []any {
	var userID string
	if entry.UserID != nil {
		userID = *entry.UserID
	}
	return []any{
		entry.CreatedAt.UTC().Format(time.RFC3339),
		userID,
		entry.Username,
		entry.Action,
		entry.Resource,
		entry.Result,
		entry.IPAddress,
		entry.UserAgent,
		entry.Metadata,
	}
}

// WriteWorkbook renders logs as a single-sheet xlsx with a frozen, filterable header row.
func WriteWorkbook(w io.Writer, logs []models.AuditLog) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), auditSheet); err != nil {
		return fmt.Errorf("audit workbook: rename sheet: %w", err)
	}

	for i, row := range append([][]any{headerRow()}, rowsOf(logs)...) {
		cell, _ := excelize.CoordinatesToCellName(1, i+1)
		if err := f.SetSheetRow(auditSheet, cell, &row); err != nil {
			return fmt.Errorf("audit workbook: row %d: %w", i+1, err)
		}
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("audit workbook: style: %w", err)
	}
	lastCol, _ := excelize.ColumnNumberToName(len(auditWorkbookHeaders))
	if err := f.SetCellStyle(auditSheet, "A1", lastCol+"1", bold); err != nil {
		return fmt.Errorf("audit workbook: header style: %w", err)
	}
	if err := f.SetPanes(auditSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"}); err != nil {
		return fmt.Errorf("audit workbook: panes: %w", err)
	}

	last, _ := excelize.CoordinatesToCellName(len(auditWorkbookHeaders), len(logs)+1)
	if err := f.AutoFilter(auditSheet, "A1:"+last, nil); err != nil {
		return fmt.Errorf("audit workbook: filter: %w", err)
	}
	if err := f.Write(w); err != nil {
		return fmt.Errorf("audit workbook: write: %w", err)
	}
	return nil
}
