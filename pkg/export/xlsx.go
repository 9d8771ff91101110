package export

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

const (
	defaultSheet  = "Sheet1"
	maxSheetName  = 31
	maxCellLength = 32767
)

// XLSXWriter streams rows into an excelize StreamWriter, which spills to a
// temporary file past its in-memory threshold. The workbook can only be
// serialized once complete, so nothing reaches dst until Close.
type XLSXWriter struct {
	dst    io.Writer
	file   *excelize.File
	stream *excelize.StreamWriter
	row    int
	cells  []any
}

var _ RowWriter = (*XLSXWriter)(nil)

// NewXLSXWriter starts a workbook with a single sheet named after sheetName.
func NewXLSXWriter(dst io.Writer, sheetName string) (*XLSXWriter, error) {
	f := excelize.NewFile()

	sheet := sanitizeSheetName(sheetName)
	if sheet != defaultSheet {
		if err := f.SetSheetName(defaultSheet, sheet); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
	}

	sw, err := f.NewStreamWriter(sheet)
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("create stream writer: %w", err)
	}
	return &XLSXWriter{dst: dst, file: f, stream: sw, row: 1}, nil
}

func (w *XLSXWriter) WriteHeader(columns []string) error {
	style, err := w.file.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"D9E1F2"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	cells := make([]any, len(columns))
	for i, name := range columns {
		cells[i] = excelize.Cell{StyleID: style, Value: name}
	}
	// Panes must be set before the first row.
	if err := w.stream.SetPanes(&excelize.Panes{
		Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze header: %w", err)
	}
	if err := w.stream.SetRow("A1", cells, excelize.RowOpts{StyleID: style}); err != nil {
		return err
	}
	w.row = 2
	return nil
}

func (w *XLSXWriter) WriteRow(values []any) error {
	if cap(w.cells) < len(values) {
		w.cells = make([]any, len(values))
	}
	w.cells = w.cells[:len(values)]
	for i, v := range values {
		w.cells[i] = cellValue(v)
	}

	cell, err := excelize.CoordinatesToCellName(1, w.row)
	if err != nil {
		return err
	}
	if err := w.stream.SetRow(cell, w.cells); err != nil {
		return err
	}
	w.row++
	return nil
}

// Flush is a no-op: a partial workbook is not a valid file.
func (w *XLSXWriter) Flush() error {
	return nil
}

func (w *XLSXWriter) Close() error {
	defer w.file.Close()
	if err := w.stream.Flush(); err != nil {
		return fmt.Errorf("flush stream writer: %w", err)
	}
	if err := w.file.Write(w.dst); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// cellValue keeps numbers, booleans and times native so spreadsheet formulas
// work on them; everything else becomes text.
func cellValue(v any) any {
	switch val := v.(type) {
	case nil:
		return nil
	case int64, int32, int, float64, float32, bool:
		return val
	case time.Time:
		return val
	default:
		s := FormatValue(val)
		if len(s) > maxCellLength {
			s = s[:maxCellLength]
		}
		return s
	}
}

// sanitizeSheetName applies Excel's sheet naming rules.
func sanitizeSheetName(name string) string {
	name = strings.Map(func(r rune) rune {
		switch r {
		case '[', ']', ':', '*', '?', '/', '\\':
			return '_'
		}
		return r
	}, strings.Trim(strings.TrimSpace(name), "'"))
	if name == "" {
		return defaultSheet
	}
	if r := []rune(name); len(r) > maxSheetName {
		name = string(r[:maxSheetName])
	}
	return name
}
