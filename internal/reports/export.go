// Package reports renders the monthly staff reports into an xlsx
// workbook, one sheet per report.
package reports

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/bpark/internal/domain/activity"
	"github.com/Spok95/bpark/internal/domain/sessions"
)

type Monthly struct {
	DailyParking  []activity.DailyCount
	DailyLateness []activity.DailyCount
	PerSubscriber []sessions.SubscriberHours
	PerSlot       []sessions.SlotHours
}

// WriteWorkbook writes the four reports for the given month under dir
// and returns the file path.
func WriteWorkbook(dir string, year, month int, m Monthly) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := writeDailySheet(f, "Parking per day", m.DailyParking); err != nil {
		return "", err
	}
	if err := writeDailySheet(f, "Lateness per day", m.DailyLateness); err != nil {
		return "", err
	}

	if _, err := f.NewSheet("Hours per subscriber"); err != nil {
		return "", err
	}
	if err := setRow(f, "Hours per subscriber", 1, []any{"subscriber", "name", "total_hours"}); err != nil {
		return "", err
	}
	for i, h := range m.PerSubscriber {
		if err := setRow(f, "Hours per subscriber", i+2, []any{h.SubscriberCode, h.Name, h.TotalHours}); err != nil {
			return "", err
		}
	}

	if _, err := f.NewSheet("Hours per slot"); err != nil {
		return "", err
	}
	if err := setRow(f, "Hours per slot", 1, []any{"slot", "total_hours"}); err != nil {
		return "", err
	}
	for i, h := range m.PerSlot {
		if err := setRow(f, "Hours per slot", i+2, []any{h.Slot, h.TotalHours}); err != nil {
			return "", err
		}
	}

	// The default sheet is replaced by the report sheets.
	if err := f.DeleteSheet("Sheet1"); err != nil {
		return "", err
	}

	path := filepath.Join(dir, fmt.Sprintf("monthly-report-%04d-%02d.xlsx", year, month))
	if err := f.SaveAs(path); err != nil {
		return "", err
	}
	return path, nil
}

func writeDailySheet(f *excelize.File, sheet string, data []activity.DailyCount) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return err
	}
	if err := setRow(f, sheet, 1, []any{"date", "count"}); err != nil {
		return err
	}
	for i, d := range data {
		if err := setRow(f, sheet, i+2, []any{d.Date, d.Count}); err != nil {
			return err
		}
	}
	return nil
}

func setRow(f *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return f.SetSheetRow(sheet, cell, &values)
}
