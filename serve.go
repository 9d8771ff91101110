package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-reports/pkg/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/config"
	"github.com/ekaya-inc/ekaya-reports/pkg/handlers"
	"github.com/ekaya-inc/ekaya-reports/pkg/logging"
	"github.com/ekaya-inc/ekaya-reports/pkg/mcp"
	mcpauth "github.com/ekaya-inc/ekaya-reports/pkg/mcp/auth"
	"github.com/ekaya-inc/ekaya-reports/pkg/middleware"
)

const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the report HTTP server",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.LoadFile(configPath, Version)
		if err != nil {
			return err
		}
		logger, err := newLogger(cfg)
		if err != nil {
			return fmt.Errorf("failed to create logger: %w", err)
		}
		defer func() { _ = logger.Sync() }()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		return serve(ctx, cfg, logger)
	},
}

func serve(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("Configuration loaded",
		zap.String("env", cfg.Env),
		zap.String("base_url", cfg.BaseURL),
		zap.Bool("auth_verification", cfg.Auth.EnableVerification),
		zap.String("reports_store", cfg.Reports.Store),
		zap.String("datasource", cfg.Datasource.Type),
	)
	if cfg.Reports.Store == "postgres" {
		logger.Info("Report definitions database",
			zap.String("dsn", logging.SanitizeConnectionString(cfg.Database.ConnectionString())))
	}

	eng, err := buildEngine(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer eng.Close()

	jwksClient, err := auth.NewJWKSClient(&auth.JWKSConfig{
		EnableVerification: cfg.Auth.EnableVerification,
		JWKSEndpoints:      cfg.Auth.JWKSEndpoints,
		Audience:           cfg.Auth.Audience,
	})
	if err != nil {
		return fmt.Errorf("failed to create JWKS client: %w", err)
	}
	defer jwksClient.Close()

	authService := auth.NewAuthService(jwksClient, logger)
	authMiddleware := auth.NewMiddleware(authService, logger)
	if cfg.Session.Secret == "" {
		logger.Warn("SESSION_SECRET is not set; session cookies are ignored and @session parameters bind NULL")
	}
	sessions := auth.NewSessionStore(cfg.Session.Secret, cfg.Session.CookieName, cfg.TLSCertPath != "", logger)

	mux := http.NewServeMux()

	healthHandler := handlers.NewHealthHandler(cfg, eng.executor, logger)
	healthHandler.RegisterRoutes(mux)

	reportsHandler := handlers.NewReportsHandler(eng.service, cfg.Export, logger)
	guard := authMiddleware.RequireAuth
	if cfg.Auth.RequireTenant {
		guard = authMiddleware.RequireTenant
	}
	reportsHandler.RegisterRoutes(mux, guard)

	if cfg.MCP.Enabled {
		mcpServer := mcp.NewReportServer(cfg.Version, eng.service, logger)
		mcpServer.RegisterRoutes(mux, mcpauth.NewMiddleware(authService, cfg.Auth.RequireTenant, logger).RequireAuth)
	}

	handler := middleware.RequestLogger(logger)(sessions.LoadSession(mux))

	srv := &http.Server{
		Addr:              net.JoinHostPort(cfg.BindAddr, cfg.Port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	printBanner(cfg)

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting ekaya-reports",
			zap.String("addr", srv.Addr),
			zap.String("version", cfg.Version))
		var err error
		if cfg.TLSCertPath != "" {
			err = srv.ListenAndServeTLS(cfg.TLSCertPath, cfg.TLSKeyPath)
		} else {
			err = srv.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	return nil
}

func printBanner(cfg *config.Config) {
	details := fmt.Sprintf("Version:     %s\nListening:   %s\nDatasource:  %s\nDefinitions: %s\nMCP:         %v",
		cfg.Version, cfg.BaseURL, cfg.Datasource.Type, cfg.Reports.Store, cfg.MCP.Enabled)
	pterm.DefaultBox.
		WithTitle(pterm.NewStyle(pterm.FgCyan, pterm.Bold).Sprint("ekaya-reports")).
		WithPadding(1).
		Println(details)
	pterm.Println()
}
