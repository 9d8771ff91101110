package datasource

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"
)

// ErrUnsupportedType is returned by Open for a type no adapter registered.
var ErrUnsupportedType = errors.New("unsupported datasource type")

// OpenFunc builds an executor from the adapter-specific section of the
// datasource config.
type OpenFunc func(ctx context.Context, config map[string]any) (QueryExecutor, error)

// Adapter is what each adapter package registers from its init function.
type Adapter struct {
	Type        string // "postgres", "mssql", "sqlite"
	DisplayName string
	Open        OpenFunc
}

var (
	adaptersMu sync.RWMutex
	adapters   = make(map[string]Adapter)
)

// Register makes an adapter available by type. Registering the same type twice
// panics, as it means two packages claim one datasource type.
func Register(a Adapter) {
	adaptersMu.Lock()
	defer adaptersMu.Unlock()

	if a.Open == nil {
		panic("datasource: Register with nil Open for " + a.Type)
	}
	if _, dup := adapters[a.Type]; dup {
		panic("datasource: Register called twice for " + a.Type)
	}
	adapters[a.Type] = a
}

// Types lists the registered datasource types in sorted order.
func Types() []string {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	return slices.Sorted(maps.Keys(adapters))
}

// Lookup returns the adapter registered for dsType.
func Lookup(dsType string) (Adapter, bool) {
	adaptersMu.RLock()
	defer adaptersMu.RUnlock()
	a, ok := adapters[dsType]
	return a, ok
}

// Open connects to a datasource of the given type.
func Open(ctx context.Context, dsType string, config map[string]any) (QueryExecutor, error) {
	a, ok := Lookup(dsType)
	if !ok {
		return nil, fmt.Errorf("%w: %s (available: %s)", ErrUnsupportedType, dsType, strings.Join(Types(), ", "))
	}
	exec, err := a.Open(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("open %s datasource: %w", a.DisplayName, err)
	}
	return exec, nil
}
