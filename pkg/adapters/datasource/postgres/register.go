package postgres

import (
	"context"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
)

func init() {
	datasource.Register(datasource.AdapterRegistration{
		Info: datasource.AdapterInfo{
			Type:        "postgres",
			DisplayName: "PostgreSQL",
		},
		Factory: func(ctx context.Context, opts datasource.IntrospectorOptions, logger *zap.Logger) (datasource.SchemaIntrospector, error) {
			return NewIntrospector(ctx, opts, logger)
		},
	})
}
