package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ekaya-inc/ekaya-reports/pkg/apperrors"
	"github.com/ekaya-inc/ekaya-reports/pkg/database"
	"github.com/ekaya-inc/ekaya-reports/pkg/models"
)

// ReportDefinitionStore provides read access to stored report definitions.
// Authoring happens elsewhere; the engine never writes definitions.
type ReportDefinitionStore interface {
	// Get returns the definition whose id or short code is key.
	// Returns apperrors.ErrNotFound when there is none.
	Get(ctx context.Context, key string) (*models.ReportDefinition, error)

	// List returns all definitions ordered by id.
	List(ctx context.Context) ([]*models.ReportDefinition, error)
}

type postgresReportStore struct {
	db *database.DB
}

// NewPostgresReportStore reads definitions from the reports table.
func NewPostgresReportStore(db *database.DB) ReportDefinitionStore {
	return &postgresReportStore{db: db}
}

var _ ReportDefinitionStore = (*postgresReportStore)(nil)

const reportColumns = `id, title, short_code, description, base_sql, parameter_map, created_at, updated_at`

func (s *postgresReportStore) Get(ctx context.Context, key string) (*models.ReportDefinition, error) {
	// An exact id match wins over a short code that happens to equal another id.
	query := `
		SELECT ` + reportColumns + `
		FROM reports
		WHERE id = $1 OR short_code = $1
		ORDER BY (id = $1) DESC
		LIMIT 1`

	def, err := scanReport(s.db.QueryRow(ctx, query, key))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("report %q: %w", key, apperrors.ErrNotFound)
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}
	return def, nil
}

func (s *postgresReportStore) List(ctx context.Context) ([]*models.ReportDefinition, error) {
	query := `SELECT ` + reportColumns + ` FROM reports ORDER BY id`

	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list reports: %w", err)
	}
	defer rows.Close()

	reports := make([]*models.ReportDefinition, 0)
	for rows.Next() {
		def, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}
		reports = append(reports, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating reports: %w", err)
	}
	return reports, nil
}

func scanReport(row pgx.Row) (*models.ReportDefinition, error) {
	var (
		def       models.ReportDefinition
		shortCode *string
		paramsRaw []byte
	)
	err := row.Scan(
		&def.ID, &def.Title, &shortCode, &def.Description, &def.BaseSQL,
		&paramsRaw, &def.CreatedAt, &def.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if shortCode != nil {
		def.ShortCode = *shortCode
	}
	// parameter_map is json, not jsonb, so the raw text keeps declaration order.
	if len(paramsRaw) > 0 {
		if err := json.Unmarshal(paramsRaw, &def.Parameters); err != nil {
			return nil, fmt.Errorf("report %s: invalid parameter_map: %w", def.ID, err)
		}
	}
	return &def, nil
}
