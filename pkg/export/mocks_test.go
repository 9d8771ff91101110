package export

import (
	"errors"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

// sliceRows is an in-memory datasource.Rows.
type sliceRows struct {
	columns []datasource.ColumnInfo
	data    [][]any
	pos     int
	err     error // returned by Err once the data is exhausted
	closed  bool

	onNext func(pos int) // called before each advance
}

func newSliceRows(names []string, data [][]any) *sliceRows {
	cols := make([]datasource.ColumnInfo, len(names))
	for i, n := range names {
		cols[i] = datasource.ColumnInfo{Name: n, Type: "TEXT"}
	}
	return &sliceRows{columns: cols, data: data, pos: -1}
}

func (r *sliceRows) Columns() []datasource.ColumnInfo { return r.columns }

func (r *sliceRows) Next() bool {
	if r.onNext != nil {
		r.onNext(r.pos + 1)
	}
	if r.pos+1 >= len(r.data) {
		return false
	}
	r.pos++
	return true
}

func (r *sliceRows) Values() ([]any, error) {
	if r.pos < 0 || r.pos >= len(r.data) {
		return nil, errors.New("no current row")
	}
	return r.data[r.pos], nil
}

func (r *sliceRows) Err() error { return r.err }

func (r *sliceRows) Close() error {
	r.closed = true
	return nil
}

// recordingWriter captures RowWriter calls.
type recordingWriter struct {
	header  []string
	rows    [][]any
	flushes int
	closed  bool

	failAfter int // WriteRow fails once this many rows are written; 0 disables
}

func (w *recordingWriter) WriteHeader(columns []string) error {
	w.header = columns
	return nil
}

func (w *recordingWriter) WriteRow(values []any) error {
	if w.failAfter > 0 && len(w.rows) >= w.failAfter {
		return errors.New("broken pipe")
	}
	w.rows = append(w.rows, values)
	return nil
}

func (w *recordingWriter) Flush() error {
	w.flushes++
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}
