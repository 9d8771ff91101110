package models

import (
	"bytes"
	"encoding/json"
	"strings"
)

const (
	MinPageLength     = 10
	MaxPageLength     = 100
	DefaultPageLength = MinPageLength
)

// SortDirection is the ORDER BY direction of a grid request.
type SortDirection string

const (
	SortAsc  SortDirection = "ASC"
	SortDesc SortDirection = "DESC"
)

// ExportFormat selects the encoding of a streamed export.
type ExportFormat string

const (
	ExportFormatCSV  ExportFormat = "csv"
	ExportFormatXLSX ExportFormat = "xlsx"
)

// Extension returns the file extension for the format, without the dot.
func (f ExportFormat) Extension() string {
	return string(f)
}

// ContentType returns the MIME type of the format.
func (f ExportFormat) ContentType() string {
	switch f {
	case ExportFormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "text/csv; charset=UTF-8"
	}
}

// ParseExportFormat accepts "csv" and "xlsx" in any case.
func ParseExportFormat(s string) (ExportFormat, bool) {
	switch ExportFormat(strings.ToLower(strings.TrimSpace(s))) {
	case ExportFormatCSV:
		return ExportFormatCSV, true
	case ExportFormatXLSX:
		return ExportFormatXLSX, true
	}
	return "", false
}

// ColumnDescriptor describes one output column of a report's base query.
type ColumnDescriptor struct {
	Name             string `json:"name"`
	Type             string `json:"type,omitempty"`
	IsSearchableText bool   `json:"is_searchable_text"`
}

// ColumnNames returns the names of cols in order.
func ColumnNames(cols []ColumnDescriptor) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

// GridRequest is the decoded page/search/sort state of one grid request.
type GridRequest struct {
	Draw          int
	Start         int64
	Length        int64
	GlobalSearch  string
	ColumnSearch  map[int]string // column index → search term
	SortColumn    int
	SortDirection SortDirection
	Format        ExportFormat // empty for a JSON page
}

// HasFilter reports whether any search term is set.
func (r *GridRequest) HasFilter() bool {
	if r.GlobalSearch != "" {
		return true
	}
	for _, term := range r.ColumnSearch {
		if term != "" {
			return true
		}
	}
	return false
}

// ClampPageLength bounds a requested page length to [MinPageLength, MaxPageLength].
func ClampPageLength(n int64) int64 {
	if n < MinPageLength {
		return MinPageLength
	}
	if n > MaxPageLength {
		return MaxPageLength
	}
	return n
}

// GridResponse is the DataTables response envelope.
type GridResponse struct {
	Draw            int      `json:"draw"`
	RecordsTotal    int64    `json:"recordsTotal"`
	RecordsFiltered int64    `json:"recordsFiltered"`
	Data            []Row    `json:"data"`
	Meta            GridMeta `json:"meta"`
	Error           string   `json:"error,omitempty"`
}

// GridMeta carries report metadata alongside the rows.
type GridMeta struct {
	Columns []string `json:"columns"`
	Title   string   `json:"title"`
}

// NewEmptyGridResponse returns a zero-total response echoing draw.
func NewEmptyGridResponse(draw int, title string) *GridResponse {
	return &GridResponse{
		Draw: draw,
		Data: []Row{},
		Meta: GridMeta{Columns: []string{}, Title: title},
	}
}

// Row is one result record. It encodes as a JSON object whose keys keep column order.
type Row struct {
	columns []string
	values  []any
}

// NewRow pairs column names with values. Both slices must have the same length.
func NewRow(columns []string, values []any) Row {
	return Row{columns: columns, values: values}
}

// Get returns the value of the named column.
func (r Row) Get(column string) (any, bool) {
	for i, c := range r.columns {
		if c == column {
			return r.values[i], true
		}
	}
	return nil, false
}

func (r Row) Values() []any {
	return r.values
}

func (r Row) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, col := range r.columns {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(col)
		if err != nil {
			return nil, err
		}
		var val any
		if i < len(r.values) {
			val = r.values[i]
		}
		encoded, err := json.Marshal(val)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(encoded)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
