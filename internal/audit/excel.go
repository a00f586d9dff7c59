package audit

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// maxSheetName is the Excel limit on sheet name length.
const maxSheetName = 31

// Workbook writes tables into sheets of one xlsx file, row by row.
type Workbook struct {
	file  *excelize.File
	sheet string
	row   int
	bold  int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	f := excelize.NewFile()
	bold, _ := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	return &Workbook{file: f, bold: bold}
}

// AddSheet starts a new sheet. The default sheet is reused for the first one.
func (w *Workbook) AddSheet(name string) error {
	if len(name) > maxSheetName {
		name = name[:maxSheetName]
	}
	if w.sheet == "" {
		if err := w.file.SetSheetName("Sheet1", name); err != nil {
			return fmt.Errorf("rename sheet %s: %w", name, err)
		}
	} else if _, err := w.file.NewSheet(name); err != nil {
		return fmt.Errorf("create sheet %s: %w", name, err)
	}
	w.sheet = name
	w.row = 1
	return nil
}

// WriteHeader writes bold column headers.
func (w *Workbook) WriteHeader(columns []string) error {
	values := make([]interface{}, len(columns))
	for i, c := range columns {
		values[i] = c
	}
	row := w.row
	if err := w.WriteRow(values); err != nil {
		return err
	}
	if w.bold != 0 && len(columns) > 0 {
		start, _ := excelize.CoordinatesToCellName(1, row)
		end, _ := excelize.CoordinatesToCellName(len(columns), row)
		_ = w.file.SetCellStyle(w.sheet, start, end, w.bold)
	}
	return nil
}

// WriteRow writes one data row to the current sheet.
func (w *Workbook) WriteRow(values []interface{}) error {
	if w.sheet == "" {
		return fmt.Errorf("no active sheet")
	}
	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.file.SetSheetRow(w.sheet, cell, &values); err != nil {
		return fmt.Errorf("write row %d: %w", w.row, err)
	}
	w.row++
	return nil
}

// Save writes the workbook to wr.
func (w *Workbook) Save(wr io.Writer) error {
	return w.file.Write(wr)
}

// Close releases resources.
func (w *Workbook) Close() error {
	return w.file.Close()
}
