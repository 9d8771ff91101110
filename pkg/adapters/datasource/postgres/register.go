package postgres

import (
	"context"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.Adapter{Type: "postgres", DisplayName: "PostgreSQL", Open: open})
}

func open(ctx context.Context, config map[string]any) (datasource.QueryExecutor, error) {
	cfg, err := FromMap(config)
	if err != nil {
		return nil, err
	}
	return NewQueryExecutor(ctx, cfg)
}
