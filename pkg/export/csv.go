package export

import (
	"encoding/csv"
	"io"
	"net/http"
)

// utf8BOM lets spreadsheet applications detect the encoding.
const utf8BOM = "\ufeff"

// CSVOptions controls CSV encoding.
type CSVOptions struct {
	Delimiter rune // defaults to ','
	CRLF      bool
	BOM       bool
}

// CSVWriter writes RFC 4180 CSV. Flush forwards to the destination when it is
// an http.Flusher, so each chunk reaches the client before the next is read.
type CSVWriter struct {
	dst  io.Writer
	csv  *csv.Writer
	bom  bool
	cell []string
}

var _ RowWriter = (*CSVWriter)(nil)

func NewCSVWriter(dst io.Writer, opts CSVOptions) *CSVWriter {
	w := csv.NewWriter(dst)
	if opts.Delimiter != 0 {
		w.Comma = opts.Delimiter
	}
	w.UseCRLF = opts.CRLF
	return &CSVWriter{dst: dst, csv: w, bom: opts.BOM}
}

func (w *CSVWriter) WriteHeader(columns []string) error {
	if w.bom {
		if _, err := io.WriteString(w.dst, utf8BOM); err != nil {
			return err
		}
	}
	return w.csv.Write(columns)
}

func (w *CSVWriter) WriteRow(values []any) error {
	if cap(w.cell) < len(values) {
		w.cell = make([]string, len(values))
	}
	w.cell = w.cell[:len(values)]
	for i, v := range values {
		w.cell[i] = FormatValue(v)
	}
	return w.csv.Write(w.cell)
}

func (w *CSVWriter) Flush() error {
	w.csv.Flush()
	if err := w.csv.Error(); err != nil {
		return err
	}
	if f, ok := w.dst.(http.Flusher); ok {
		f.Flush()
	}
	return nil
}

func (w *CSVWriter) Close() error {
	return w.Flush()
}
