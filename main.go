package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/mssql"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/postgres"
	_ "github.com/ekaya-inc/ekaya-reports/pkg/adapters/datasource/sqlite"
	"github.com/ekaya-inc/ekaya-reports/pkg/audit"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/database"
	"github.com/ekaya-inc/ekaya-reports/pkg/export"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/repositories"
	"github.com/ekaya-inc/ekaya-reports/pkg/retry"
	"github.com/ekaya-inc/ekaya-reports/pkg/services"
)

// Version is set at build time via ldflags
var Version = "dev"

var configPath string

var rootCmd = &cobra.Command{
	Use:           "ekaya-reports",
	Short:         "Serve parameterized SQL reports as paginated, searchable grids",
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "config.yaml", "path to config file")
	rootCmd.AddCommand(serveCmd, exportCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		pterm.Error.Println(err.Error())
		os.Exit(1)
	}
}

// newLogger returns a development logger for local runs and a production one elsewhere.
func newLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsLocal() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// engine holds everything a command needs to run reports.
type engine struct {
	cfg      *config.Config
	logger   *zap.Logger
	executor datasource.QueryExecutor
	service  services.ReportService
	closers  []func()
}

func (e *engine) Close() {
	for i := len(e.closers) - 1; i >= 0; i-- {
		e.closers[i]()
	}
}

// buildEngine connects the report datasource and the definition store and
// assembles the report service on top of them.
func buildEngine(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*engine, error) {
	e := &engine{cfg: cfg, logger: logger}

	retryCfg := retry.DefaultConfig()
	if cfg.Datasource.ConnectRetries > 0 {
		retryCfg.MaxRetries = cfg.Datasource.ConnectRetries
	}
	retryCfg.OnRetry = func(attempt int, wait time.Duration, err error) {
		logger.Warn("Datasource not reachable, retrying",
			zap.String("type", cfg.Datasource.Type),
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.String("error", logging.SanitizeError(err)))
	}

	executor, err := retry.DoWithResultIfRetryable(ctx, retryCfg, func() (datasource.QueryExecutor, error) {
		return datasource.Open(ctx, cfg.Datasource.Type, cfg.Datasource.AdapterConfig())
	})
	if err != nil {
		return nil, err
	}
	e.executor = executor
	if c, ok := executor.(io.Closer); ok {
		e.closers = append(e.closers, func() { _ = c.Close() })
	}

	store, err := openStore(ctx, e, cfg, logger)
	if err != nil {
		e.Close()
		return nil, err
	}

	exporter := export.NewExporter(cfg.Export.ChunkSize, logger)
	auditor := audit.NewSecurityAuditor(logger)
	e.service = services.NewReportService(store, executor, exporter, auditor, logger)
	return e, nil
}

func openStore(ctx context.Context, e *engine, cfg *config.Config, logger *zap.Logger) (repositories.ReportDefinitionStore, error) {
	switch cfg.Reports.Store {
	case "file":
		store, err := repositories.NewFileReportStore(cfg.Reports.DefinitionsPath, cfg.Reports.SchemaPath, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to load report definitions: %w", err)
		}
		return store, nil
	default:
		db, err := database.NewConnection(ctx, &database.Config{
			URL:            cfg.Database.ConnectionString(),
			MaxConnections: cfg.Database.MaxConnections,
			MinConnections: cfg.Database.MaxIdleConns,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		e.closers = append(e.closers, db.Close)

		if err := database.Migrate(db, logger); err != nil {
			return nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		return repositories.NewPostgresReportStore(db), nil
	}
}
