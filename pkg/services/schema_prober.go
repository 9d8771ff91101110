package services

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// SchemaProber discovers the output columns of a report's base query.
// Probing runs on every request; nothing is cached.
type SchemaProber struct {
	executor datasource.QueryExecutor
	logger   *zap.Logger
}

func NewSchemaProber(executor datasource.QueryExecutor, logger *zap.Logger) *SchemaProber {
	return &SchemaProber{
		executor: executor,
		logger:   logger.Named("schema_prober"),
	}
}

// Probe returns the columns of base in select order. base is the bound query
// with `?` markers (see sql.BindParameters) and args its bind values.
//
// The probe wraps base so that it returns no rows. When the driver reports no
// type for any column, base is run once more capped at one row and every column
// is treated as text-searchable.
//
// Every failure wraps apperrors.ErrProbeFailed.
func (p *SchemaProber) Probe(ctx context.Context, base string, args []any) ([]models.ColumnDescriptor, error) {
	cols, err := p.columns(ctx, "SELECT * FROM ("+base+") AS probe WHERE 1 = 0", args)
	if err != nil {
		return nil, err
	}
	if len(cols) == 0 {
		return []models.ColumnDescriptor{}, nil
	}

	if !anyTyped(cols) {
		p.logger.Debug("Driver reported no column types; probing one row",
			zap.Int("columns", len(cols)))
		cols, err = p.columns(ctx, p.executor.Dialect().LimitOne(base), args)
		if err != nil {
			return nil, err
		}
		out := make([]models.ColumnDescriptor, len(cols))
		for i, col := range cols {
			out[i] = models.ColumnDescriptor{Name: col.Name, IsSearchableText: true}
		}
		return out, nil
	}

	dialect := p.executor.Dialect()
	out := make([]models.ColumnDescriptor, len(cols))
	for i, col := range cols {
		out[i] = models.ColumnDescriptor{
			Name:             col.Name,
			Type:             col.Type,
			IsSearchableText: col.Type == "" || dialect.IsTextType(col.Type),
		}
	}
	return out, nil
}

// columns runs query and returns its column metadata, reading at most one row.
func (p *SchemaProber) columns(ctx context.Context, query string, args []any) ([]datasource.ColumnInfo, error) {
	rendered, err := p.executor.Dialect().PlaceholderFormat().ReplacePlaceholders(query)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrProbeFailed, err)
	}

	rows, err := p.executor.Query(ctx, rendered, args)
	if err != nil {
		p.logger.Warn("Schema probe failed",
			zap.String("sql", logging.SanitizeQuery(rendered)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProbeFailed, logging.SanitizeError(err))
	}
	defer rows.Close()

	cols := rows.Columns()
	// Drain at most one row so drivers that report lazily surface errors.
	if rows.Next() {
		if _, err := rows.Values(); err != nil {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrProbeFailed, logging.SanitizeError(err))
		}
	}
	if err := rows.Err(); err != nil {
		p.logger.Warn("Schema probe failed",
			zap.String("sql", logging.SanitizeQuery(rendered)),
			zap.String("error", logging.SanitizeError(err)))
		return nil, fmt.Errorf("%w: %s", apperrors.ErrProbeFailed, logging.SanitizeError(err))
	}
	return cols, nil
}

func anyTyped(cols []datasource.ColumnInfo) bool {
	for _, col := range cols {
		if col.Type != "" {
			return true
		}
	}
	return false
}
