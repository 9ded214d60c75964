package datasource

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// IntrospectorOptions carries per-run connection settings.
type IntrospectorOptions struct {
	// ConnString is the decrypted customer database connection string.
	ConnString string
	// AnalyticsSchema is the schema namespace to introspect.
	AnalyticsSchema string
	// PoolMaxConns caps the per-run pool. Zero means the adapter default.
	PoolMaxConns int32
}

// IntrospectorFactoryFunc creates a SchemaIntrospector with its own pool.
type IntrospectorFactoryFunc func(ctx context.Context, opts IntrospectorOptions, logger *zap.Logger) (SchemaIntrospector, error)

// AdapterInfo describes a registered adapter type.
type AdapterInfo struct {
	Type        string `json:"type"`         // "postgres", "mssql"
	DisplayName string `json:"display_name"` // "PostgreSQL", "Microsoft SQL Server"
}

// AdapterRegistration contains info plus the introspector factory.
type AdapterRegistration struct {
	Info    AdapterInfo
	Factory IntrospectorFactoryFunc
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]AdapterRegistration)
)

// Register is called by each adapter's init() function.
// Thread-safe for concurrent init() calls.
func Register(reg AdapterRegistration) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[reg.Info.Type] = reg
}

// RegisteredAdapters returns info for all registered adapter types.
func RegisteredAdapters() []AdapterInfo {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]AdapterInfo, 0, len(registry))
	for _, reg := range registry {
		result = append(result, reg.Info)
	}
	return result
}

// GetIntrospectorFactory returns the factory for a database type.
// Returns nil if the type is not registered.
func GetIntrospectorFactory(dbType string) IntrospectorFactoryFunc {
	registryMu.RLock()
	defer registryMu.RUnlock()

	if reg, ok := registry[dbType]; ok {
		return reg.Factory
	}
	return nil
}
