package sqlite

import "fmt"

// Config contains SQLite connection options.
type Config struct {
	Path          string // database file path, or ":memory:"
	ReadOnly      bool
	BusyTimeoutMs int
	MaxOpenConns  int
}

// DefaultBusyTimeoutMs is how long a connection waits on a locked database.
func DefaultBusyTimeoutMs() int {
	return 5000
}

// FromMap creates a Config from a generic config map.
func FromMap(config map[string]any) (*Config, error) {
	cfg := &Config{
		ReadOnly:      true,
		BusyTimeoutMs: DefaultBusyTimeoutMs(),
	}

	path, ok := config["path"].(string)
	if !ok || path == "" {
		return nil, fmt.Errorf("path is required")
	}
	cfg.Path = path

	if ro, ok := config["read_only"].(bool); ok {
		cfg.ReadOnly = ro
	}
	if n, ok := intValue(config["busy_timeout_ms"]); ok {
		cfg.BusyTimeoutMs = n
	}
	if n, ok := intValue(config["max_open_conns"]); ok {
		cfg.MaxOpenConns = n
	}

	return cfg, nil
}

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
