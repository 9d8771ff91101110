// Package export streams report result sets to CSV and XLSX without holding
// them in memory.
package export

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
)

const (
	DefaultChunkSize = 5000
	MinChunkSize     = 1000
	MaxChunkSize     = 10000
)

// RowWriter encodes an export. Calls arrive in order: WriteHeader once,
// WriteRow per record with Flush between chunks, then Close.
type RowWriter interface {
	WriteHeader(columns []string) error
	WriteRow(values []any) error
	// Flush pushes buffered bytes toward the client.
	Flush() error
	// Close finishes the document. It is called only after a complete stream.
	Close() error
}

// ClampChunkSize bounds a configured chunk size; zero means the default.
func ClampChunkSize(n int) int {
	switch {
	case n == 0:
		return DefaultChunkSize
	case n < MinChunkSize:
		return MinChunkSize
	case n > MaxChunkSize:
		return MaxChunkSize
	}
	return n
}

// Exporter copies a cursor into a RowWriter one row at a time.
type Exporter struct {
	chunkSize int
	logger    *zap.Logger
}

func NewExporter(chunkSize int, logger *zap.Logger) *Exporter {
	return &Exporter{
		chunkSize: ClampChunkSize(chunkSize),
		logger:    logger.Named("exporter"),
	}
}

func (e *Exporter) ChunkSize() int {
	return e.chunkSize
}

// Export writes a header row and every row of rows to w and returns the number
// of data rows written. rows is always closed. columns defaults to the cursor's
// column names.
//
// A cancelled ctx or a failed write stops the loop with apperrors.ErrExportAborted;
// a cursor failure returns apperrors.ErrExecutionFailed. In both cases w is left
// unclosed so the transport sees a truncated body.
func (e *Exporter) Export(ctx context.Context, rows datasource.Rows, columns []string, w RowWriter) (int64, error) {
	defer rows.Close()

	if len(columns) == 0 {
		for _, col := range rows.Columns() {
			columns = append(columns, col.Name)
		}
	}

	if err := w.WriteHeader(columns); err != nil {
		return 0, e.aborted(ctx, 0, err)
	}

	var n int64
	for rows.Next() {
		if err := ctx.Err(); err != nil {
			return n, e.aborted(ctx, n, err)
		}

		values, err := rows.Values()
		if err != nil {
			return n, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailed, err)
		}
		if err := w.WriteRow(values); err != nil {
			return n, e.aborted(ctx, n, err)
		}
		n++

		if n%int64(e.chunkSize) == 0 {
			if err := w.Flush(); err != nil {
				return n, e.aborted(ctx, n, err)
			}
			e.logger.Debug("Flushed export chunk", zap.Int64("rows", n))
		}
	}

	if err := rows.Err(); err != nil {
		if ctx.Err() != nil {
			return n, e.aborted(ctx, n, err)
		}
		return n, fmt.Errorf("%w: %v", apperrors.ErrExecutionFailed, err)
	}

	if err := w.Close(); err != nil {
		return n, e.aborted(ctx, n, err)
	}
	return n, nil
}

// aborted classifies a stream interruption. Client disconnects are expected and
// logged at debug only.
func (e *Exporter) aborted(ctx context.Context, written int64, cause error) error {
	e.logger.Debug("Export stopped",
		zap.Int64("rows", written),
		zap.Bool("context_done", ctx.Err() != nil),
		zap.Error(cause))
	if errors.Is(cause, apperrors.ErrExportAborted) {
		return cause
	}
	return fmt.Errorf("%w: %v", apperrors.ErrExportAborted, cause)
}
