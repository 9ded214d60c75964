package datasource

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// IntrospectorFactory creates introspectors from the registry.
type IntrospectorFactory interface {
	// NewSchemaIntrospector opens a new introspector for the given database type.
	// The caller owns the introspector and must Close it.
	NewSchemaIntrospector(ctx context.Context, dbType string, opts IntrospectorOptions) (SchemaIntrospector, error)

	// ListTypes returns info for all registered adapter types.
	ListTypes() []AdapterInfo
}

type registryFactory struct {
	logger *zap.Logger
}

// NewIntrospectorFactory returns a factory backed by the adapter registry.
func NewIntrospectorFactory(logger *zap.Logger) IntrospectorFactory {
	return &registryFactory{logger: logger}
}

var _ IntrospectorFactory = (*registryFactory)(nil)

func (f *registryFactory) NewSchemaIntrospector(ctx context.Context, dbType string, opts IntrospectorOptions) (SchemaIntrospector, error) {
	factory := GetIntrospectorFactory(dbType)
	if factory == nil {
		return nil, fmt.Errorf("unsupported database type: %s", dbType)
	}
	return factory(ctx, opts, f.logger)
}

func (f *registryFactory) ListTypes() []AdapterInfo {
	return RegisteredAdapters()
}
