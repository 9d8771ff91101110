package mssql

import (
	"errors"
	"fmt"
)

// AuthMethod selects how the engine logs in to SQL Server.
type AuthMethod string

const (
	AuthSQL              AuthMethod = "sql"
	AuthServicePrincipal AuthMethod = "service_principal"
)

const (
	defaultPort              = 1433
	defaultConnectionTimeout = 30 // seconds
)

// Config holds the SQL Server connection options of a report datasource.
type Config struct {
	Host       string
	Port       int
	Database   string
	AuthMethod AuthMethod

	// AuthSQL
	Username string
	Password string

	// AuthServicePrincipal (Entra ID app registration)
	TenantID     string
	ClientID     string
	ClientSecret string

	Encrypt                bool
	TrustServerCertificate bool
	ConnectionTimeout      int
}

// DefaultPort returns the default SQL Server port.
func DefaultPort() int { return defaultPort }

// DefaultConnectionTimeout returns the login timeout in seconds.
func DefaultConnectionTimeout() int { return defaultConnectionTimeout }

// FromMap reads the datasource section of the engine config. The auth method
// is inferred from the credentials present when auth_method is not set:
// client_id selects a service principal, user or username selects SQL auth.
func FromMap(m map[string]any) (*Config, error) {
	cfg := &Config{
		Host:                   str(m, "host"),
		Port:                   defaultPort,
		Database:               str(m, "database", "name"),
		Encrypt:                true,
		TrustServerCertificate: m["trust_server_certificate"] == true,
		ConnectionTimeout:      defaultConnectionTimeout,
	}
	if cfg.Host == "" {
		return nil, errors.New("host is required")
	}
	if cfg.Database == "" {
		return nil, errors.New("database is required")
	}
	if port, ok := intValue(m["port"]); ok {
		cfg.Port = port
	}
	if timeout, ok := intValue(m["connection_timeout"]); ok {
		cfg.ConnectionTimeout = timeout
	}
	switch v := m["encrypt"].(type) {
	case bool:
		cfg.Encrypt = v
	case string:
		cfg.Encrypt = v == "true" || v == "strict"
	}

	method, err := detectAuthMethod(m)
	if err != nil {
		return nil, err
	}
	cfg.AuthMethod = method

	switch method {
	case AuthSQL:
		cfg.Username = str(m, "username", "user")
		cfg.Password = str(m, "password")
	case AuthServicePrincipal:
		cfg.TenantID = str(m, "tenant_id")
		cfg.ClientID = str(m, "client_id")
		cfg.ClientSecret = str(m, "client_secret")
	}
	return cfg, cfg.Validate()
}

func detectAuthMethod(m map[string]any) (AuthMethod, error) {
	if explicit := str(m, "auth_method"); explicit != "" {
		return AuthMethod(explicit), nil
	}
	if _, ok := m["client_id"].(string); ok {
		return AuthServicePrincipal, nil
	}
	if str(m, "username", "user") != "" {
		return AuthSQL, nil
	}
	return "", errors.New("could not auto-detect auth method; no credentials provided")
}

// Validate checks that the fields required by the auth method are set.
func (c *Config) Validate() error {
	if c.Host == "" {
		return errors.New("host is required")
	}
	if c.Database == "" {
		return errors.New("database is required")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}

	switch c.AuthMethod {
	case AuthSQL:
		if c.Username == "" {
			return errors.New("username is required for SQL authentication")
		}
	case AuthServicePrincipal:
		for name, v := range map[string]string{"tenant_id": c.TenantID, "client_id": c.ClientID, "client_secret": c.ClientSecret} {
			if v == "" {
				return fmt.Errorf("%s is required for service principal authentication", name)
			}
		}
	default:
		return fmt.Errorf("invalid auth method: %s (must be %s or %s)", c.AuthMethod, AuthSQL, AuthServicePrincipal)
	}
	return nil
}

// str returns the first non-empty string stored under one of keys.
func str(m map[string]any, keys ...string) string {
	for _, k := range keys {
		if s, ok := m[k].(string); ok && s != "" {
			return s
		}
	}
	return ""
}

// intValue accepts JSON (float64) and YAML (int) numbers.
func intValue(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		return int(n), true
	case int:
		return n, true
	case int64:
		return int(n), true
	}
	return 0, false
}
