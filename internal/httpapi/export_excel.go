package httpapi

import (
	"fmt"

	"github.com/xuri/excelize/v2"

	"chime/internal/models"
)

// AlarmExportHeader is the column layout of the alarm export.
var AlarmExportHeader = []string{
	"ID",
	"Clock ID",
	"Time",
	"Date",
	"Repeat Days",
	"Enabled",
}

// GenerateAlarmExport builds an xlsx workbook with one row per alarm.
// An empty slice yields a workbook with just the header.
func GenerateAlarmExport(alarms []models.AlarmRecord) ([]byte, error) {
	f := excelize.NewFile()
	// WriteToBuffer needs the file open, so no deferred Close.

	sheetName := "Alarms"
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to create sheet: %w", err)
	}

	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	for col, header := range AlarmExportHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to build header cell: %w", err)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to write header: %w", err)
		}
	}

	for row, alarm := range alarms {
		values := []any{
			alarm.ID,
			alarm.ClockID,
			alarm.Time,
			alarm.Date,
			alarm.RepeatDays,
			alarm.Enabled,
		}
		for col, value := range values {
			cell, err := excelize.CoordinatesToCellName(col+1, row+2)
			if err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to build cell: %w", err)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("failed to write row: %w", err)
			}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("failed to close workbook: %w", err)
	}

	return buf.Bytes(), nil
}
