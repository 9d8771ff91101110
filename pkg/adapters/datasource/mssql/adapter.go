package mssql

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strconv"

	_ "github.com/microsoft/go-mssqldb"         // SQL Server driver
	_ "github.com/microsoft/go-mssqldb/azuread" // Azure AD support

	"github.com/ekaya-inc/ekaya-reports/pkg/config"
)

// openDB opens a *sql.DB for cfg using the driver that matches its auth method.
func openDB(cfg *Config) (*sql.DB, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	switch cfg.AuthMethod {
	case AuthSQL:
		return createSQLAuthConnection(cfg)
	case AuthServicePrincipal:
		return createServicePrincipalConnection(cfg)
	default:
		return nil, fmt.Errorf("unsupported auth method: %s", cfg.AuthMethod)
	}
}

func baseQuery(cfg *Config) url.Values {
	query := url.Values{}
	query.Add("database", cfg.Database)
	if cfg.Encrypt {
		query.Add("encrypt", "true")
	} else {
		query.Add("encrypt", "false")
	}
	if cfg.TrustServerCertificate {
		query.Add("TrustServerCertificate", "true")
	}
	if cfg.ConnectionTimeout > 0 {
		query.Add("connection timeout", strconv.Itoa(cfg.ConnectionTimeout))
	}
	return query
}

// buildSQLAuthConnectionString builds a sqlserver:// URL for SQL Server authentication.
func buildSQLAuthConnectionString(cfg *Config) string {
	return fmt.Sprintf("sqlserver://%s:%s@%s:%d?%s",
		url.QueryEscape(cfg.Username),
		url.QueryEscape(cfg.Password),
		config.ResolveHostForDocker(cfg.Host),
		cfg.Port,
		baseQuery(cfg).Encode(),
	)
}

// createSQLAuthConnection creates a connection using SQL Server authentication.
func createSQLAuthConnection(cfg *Config) (*sql.DB, error) {
	db, err := sql.Open("sqlserver", buildSQLAuthConnectionString(cfg))
	if err != nil {
		return nil, fmt.Errorf("open SQL auth connection: %w", err)
	}
	return db, nil
}

// createServicePrincipalConnection creates a connection using Azure AD Service Principal.
func createServicePrincipalConnection(cfg *Config) (*sql.DB, error) {
	query := baseQuery(cfg)
	query.Add("fedauth", "ActiveDirectoryServicePrincipal")
	query.Add("user id", cfg.ClientID+"@"+cfg.TenantID)
	query.Add("password", cfg.ClientSecret)

	connStr := fmt.Sprintf("sqlserver://%s:%d?%s",
		config.ResolveHostForDocker(cfg.Host),
		cfg.Port,
		query.Encode(),
	)

	db, err := sql.Open("azuresql", connStr)
	if err != nil {
		return nil, fmt.Errorf("open service principal connection: %w", err)
	}
	return db, nil
}

// testConnection verifies the database is reachable with valid credentials.
func testConnection(ctx context.Context, db *sql.DB, expectedDB string) error {
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping failed: %w", err)
	}

	var currentDB string
	if err := db.QueryRowContext(ctx, "SELECT DB_NAME()").Scan(&currentDB); err != nil {
		return fmt.Errorf("test query failed: %w", err)
	}
	if expectedDB != "" && currentDB != expectedDB {
		return fmt.Errorf("connected to database %q but expected %q", currentDB, expectedDB)
	}
	return nil
}
