// Package datasource provides adapters for introspecting customer analytical
// databases. Each introspector owns its connection pool; the pool's lifecycle
// is tied to the discovery run that created it, never to process-global state.
package datasource

import "context"

// TableMetadata identifies one table inside the analytical schema namespace.
type TableMetadata struct {
	SchemaName string `json:"schema_name"`
	TableName  string `json:"table_name"`
}

// ColumnMetadata describes one column of a table.
type ColumnMetadata struct {
	ColumnName      string `json:"column_name"`
	DataType        string `json:"data_type"`
	IsNullable      bool   `json:"is_nullable"`
	IsPrimaryKey    bool   `json:"is_primary_key"`
	OrdinalPosition int    `json:"ordinal_position"`
}

// ForeignKeyMetadata describes one foreign key constraint.
// Multi-column foreign keys produce one row per column pair.
type ForeignKeyMetadata struct {
	ConstraintName string `json:"constraint_name"`
	SourceSchema   string `json:"source_schema"`
	SourceTable    string `json:"source_table"`
	SourceColumn   string `json:"source_column"`
	TargetSchema   string `json:"target_schema"`
	TargetTable    string `json:"target_table"`
	TargetColumn   string `json:"target_column"`
}

// UniqueColumn is a column covered on its own by a UNIQUE or PRIMARY KEY
// constraint. Multi-column constraints are excluded: membership in one does
// not make a single column unique.
type UniqueColumn struct {
	TableName  string `json:"table_name"`
	ColumnName string `json:"column_name"`
}

// AssessmentTypeRow is one assessment type defined in the customer database.
type AssessmentTypeRow struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SchemaIntrospector reads relational metadata catalogs from one customer
// analytical database, scoped to a single schema namespace.
// Each implementation owns its connection and must be closed when done.
type SchemaIntrospector interface {
	// DiscoverTables returns all tables in the analytical schema.
	DiscoverTables(ctx context.Context) ([]TableMetadata, error)

	// DiscoverColumns returns columns for a specific table.
	DiscoverColumns(ctx context.Context, tableName string) ([]ColumnMetadata, error)

	// DiscoverForeignKeys returns all foreign key constraints in the schema.
	DiscoverForeignKeys(ctx context.Context) ([]ForeignKeyMetadata, error)

	// DiscoverUniqueColumns returns columns covered alone by a unique or
	// primary-key constraint. Used to upgrade FK cardinality to 1:1.
	DiscoverUniqueColumns(ctx context.Context) ([]UniqueColumn, error)

	// ListAssessmentTypes reads the assessment type catalog table.
	ListAssessmentTypes(ctx context.Context) ([]AssessmentTypeRow, error)

	// Close releases the connection pool. Safe to call more than once.
	Close() error
}
