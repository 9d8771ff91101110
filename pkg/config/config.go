package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strings"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

// Config holds all configuration for ekaya-reports.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"3480"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	BaseURL  string `yaml:"base_url" env:"BASE_URL" env-default:""` // Auto-derived from Port if empty
	Version  string `yaml:"-"`                                      // Set at load time, not from config

	// TLS configuration (optional - if both provided, server uses HTTPS)
	TLSCertPath string `yaml:"tls_cert_path" env:"TLS_CERT_PATH" env-default:""`
	TLSKeyPath  string `yaml:"tls_key_path" env:"TLS_KEY_PATH" env-default:""`

	Auth    AuthConfig    `yaml:"auth"`
	Session SessionConfig `yaml:"session"`

	// Database holds report definitions when Reports.Store is "postgres".
	Database DatabaseConfig `yaml:"database"`

	Reports    ReportsConfig    `yaml:"reports"`
	Datasource DatasourceConfig `yaml:"datasource"`
	Export     ExportConfig     `yaml:"export"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// AuthConfig holds authentication-related configuration.
type AuthConfig struct {
	// EnableVerification controls whether JWT tokens are validated.
	// Set to false for local development without auth server.
	EnableVerification bool `yaml:"enable_verification" env:"AUTH_ENABLE_VERIFICATION" env-default:"true"`

	// JWKSEndpointsStr is a comma-separated list of issuer=jwks_url pairs.
	// Format: "issuer1=url1,issuer2=url2"
	JWKSEndpointsStr string `yaml:"jwks_endpoints" env:"JWKS_ENDPOINTS" env-default:"https://auth.ekaya.ai=https://auth.ekaya.ai/.well-known/jwks.json"`

	// Audience, when set, must appear in every token's aud claim.
	Audience string `yaml:"audience" env:"AUTH_AUDIENCE" env-default:""`

	// RequireTenant rejects tokens without a tenant claim on report routes.
	RequireTenant bool `yaml:"require_tenant" env:"AUTH_REQUIRE_TENANT" env-default:"false"`

	// JWKSEndpoints is the parsed map from JWKSEndpointsStr (not from config file).
	JWKSEndpoints map[string]string `yaml:"-"`
}

// SessionConfig configures the cookie session that supplies @session: parameters.
type SessionConfig struct {
	CookieName string `yaml:"cookie_name" env:"SESSION_COOKIE_NAME" env-default:"ekaya_reports_session"`
	Secret     string `yaml:"-" env:"SESSION_SECRET"` // Secret - not in YAML
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"ekaya"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"ekaya_reports"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"10"`
	MaxIdleConns   int32  `yaml:"max_idle_conns" env:"PGMAX_IDLE_CONNS" env-default:"2"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// ReportsConfig selects where report definitions are read from.
type ReportsConfig struct {
	// Store is "postgres" (the reports table) or "file" (a YAML file).
	Store           string `yaml:"store" env:"REPORTS_STORE" env-default:"postgres"`
	DefinitionsPath string `yaml:"definitions_path" env:"REPORTS_DEFINITIONS_PATH" env-default:"reports.yaml"`
	// SchemaPath optionally overrides the embedded JSON schema for the YAML file.
	SchemaPath string `yaml:"schema_path" env:"REPORTS_SCHEMA_PATH" env-default:""`
}

// DatasourceConfig describes the database the report SQL runs against.
type DatasourceConfig struct {
	Type     string `yaml:"type" env:"DATASOURCE_TYPE" env-default:"postgres"` // postgres, mssql, sqlite
	Host     string `yaml:"host" env:"DATASOURCE_HOST" env-default:"localhost"`
	Port     int    `yaml:"port" env:"DATASOURCE_PORT" env-default:"0"` // 0 uses the adapter default
	User     string `yaml:"user" env:"DATASOURCE_USER" env-default:""`
	Password string `yaml:"-" env:"DATASOURCE_PASSWORD"` // Secret - not in YAML
	Database string `yaml:"database" env:"DATASOURCE_DATABASE" env-default:""`
	SSLMode  string `yaml:"ssl_mode" env:"DATASOURCE_SSL_MODE" env-default:""`
	// Path is the database file for sqlite.
	Path string `yaml:"path" env:"DATASOURCE_PATH" env-default:""`
	// PoolMaxConns is the maximum number of connections in the datasource pool.
	PoolMaxConns int32 `yaml:"pool_max_conns" env:"DATASOURCE_POOL_MAX_CONNS" env-default:"10"`
	// PoolMinConns is the minimum number of connections in the datasource pool.
	PoolMinConns int32 `yaml:"pool_min_conns" env:"DATASOURCE_POOL_MIN_CONNS" env-default:"1"`
	// ConnectRetries is how many times startup retries a datasource that is not yet reachable.
	ConnectRetries int `yaml:"connect_retries" env:"DATASOURCE_CONNECT_RETRIES" env-default:"5"`
}

// ExportConfig tunes streaming exports.
type ExportConfig struct {
	ChunkSize    int    `yaml:"chunk_size" env:"EXPORT_CHUNK_SIZE" env-default:"5000"`
	CSVDelimiter string `yaml:"csv_delimiter" env:"EXPORT_CSV_DELIMITER" env-default:","`
	CSVCRLF      bool   `yaml:"csv_crlf" env:"EXPORT_CSV_CRLF" env-default:"true"`
	CSVBOM       bool   `yaml:"csv_bom" env:"EXPORT_CSV_BOM" env-default:"true"`
}

// MCPConfig toggles the MCP endpoint.
type MCPConfig struct {
	Enabled bool `yaml:"enabled" env:"MCP_ENABLED" env-default:"true"`
}

// Load reads configuration from config.yaml with environment variable overrides.
// A .env file in the working directory is loaded first when present.
// The version parameter is injected at build time and set on the returned Config.
func Load(version string) (*Config, error) {
	return LoadFile("config.yaml", version)
}

// LoadFile is Load with an explicit config path.
func LoadFile(path, version string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}

	cfg := &Config{
		Version: version,
	}

	if err := cleanenv.ReadConfig(path, cfg); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.finalize(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// finalize parses derived fields and validates the loaded values.
func (c *Config) finalize() error {
	c.Auth.JWKSEndpoints = parseJWKSEndpoints(c.Auth.JWKSEndpointsStr)

	if err := c.validateTLS(); err != nil {
		return fmt.Errorf("invalid TLS configuration: %w", err)
	}
	if err := c.validateReports(); err != nil {
		return fmt.Errorf("invalid reports configuration: %w", err)
	}
	if err := c.validateExport(); err != nil {
		return fmt.Errorf("invalid export configuration: %w", err)
	}

	// Auto-derive BaseURL from Port if not explicitly set
	if c.BaseURL == "" {
		scheme := "http"
		if c.TLSCertPath != "" {
			scheme = "https"
		}
		c.BaseURL = (&url.URL{
			Scheme: scheme,
			Host:   "localhost:" + c.Port,
		}).String()
	}

	return nil
}

// validateTLS ensures TLS configuration is valid if provided.
// Both cert and key must be provided together, and files must exist.
func (c *Config) validateTLS() error {
	certSet := c.TLSCertPath != ""
	keySet := c.TLSKeyPath != ""

	if certSet != keySet {
		return fmt.Errorf("both tls_cert_path and tls_key_path must be provided together")
	}

	if certSet {
		if _, err := os.Stat(c.TLSCertPath); err != nil {
			return fmt.Errorf("TLS cert file does not exist: %w", err)
		}
		if _, err := os.Stat(c.TLSKeyPath); err != nil {
			return fmt.Errorf("TLS key file does not exist: %w", err)
		}
	}

	return nil
}

func (c *Config) validateReports() error {
	switch c.Reports.Store {
	case "postgres":
	case "file":
		if c.Reports.DefinitionsPath == "" {
			return fmt.Errorf("definitions_path is required for the file store")
		}
	default:
		return fmt.Errorf("unknown store %q (must be postgres or file)", c.Reports.Store)
	}
	return nil
}

func (c *Config) validateExport() error {
	if len([]rune(c.Export.CSVDelimiter)) != 1 {
		return fmt.Errorf("csv_delimiter must be a single character, got %q", c.Export.CSVDelimiter)
	}
	return nil
}

// IsLocal reports whether the server runs in local development mode.
func (c *Config) IsLocal() bool {
	return c.Env == "local"
}

// CSVDelimiterRune returns the configured delimiter as a rune.
func (e *ExportConfig) CSVDelimiterRune() rune {
	for _, r := range e.CSVDelimiter {
		return r
	}
	return ','
}

// parseJWKSEndpoints parses the JWKS endpoints string into a map.
// Format: "issuer1=url1,issuer2=url2"
func parseJWKSEndpoints(value string) map[string]string {
	endpoints := make(map[string]string)
	if value == "" {
		return endpoints
	}

	pairs := strings.Split(value, ",")
	for _, pair := range pairs {
		parts := strings.SplitN(pair, "=", 2)
		if len(parts) == 2 {
			endpoints[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
		}
	}
	return endpoints
}

// AdapterConfig returns the generic map consumed by the datasource registry.
// Zero values are omitted so adapters apply their own defaults.
func (d *DatasourceConfig) AdapterConfig() map[string]any {
	m := make(map[string]any)
	put := func(key string, v any) {
		switch val := v.(type) {
		case string:
			if val == "" {
				return
			}
		case int:
			if val == 0 {
				return
			}
		case int32:
			if val == 0 {
				return
			}
		}
		m[key] = v
	}

	put("host", d.Host)
	put("port", d.Port)
	put("user", d.User)
	put("password", d.Password)
	put("database", d.Database)
	put("ssl_mode", d.SSLMode)
	put("path", d.Path)
	put("pool_max_conns", int(d.PoolMaxConns))
	put("pool_min_conns", int(d.PoolMinConns))
	if d.Type == "mssql" && d.SSLMode == "disable" {
		m["encrypt"] = false
	}
	if d.Type == "sqlite" {
		delete(m, "host")
	}
	return m
}

// ConnectionString returns a PostgreSQL connection string.
func (c *DatabaseConfig) ConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}
