// Package postgres implements schema introspection for PostgreSQL customer
// databases.
package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
)

// Introspector reads PostgreSQL metadata catalogs for one analytical schema.
type Introspector struct {
	pool   *pgxpool.Pool
	schema string
	logger *zap.Logger
	closed bool
}

// NewIntrospector opens a connection pool against the customer database.
// The caller owns the returned introspector and must Close it.
func NewIntrospector(ctx context.Context, opts datasource.IntrospectorOptions, logger *zap.Logger) (*Introspector, error) {
	poolConfig, err := pgxpool.ParseConfig(opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("parse connection string: %w", err)
	}
	if opts.PoolMaxConns > 0 {
		poolConfig.MaxConns = opts.PoolMaxConns
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Introspector{
		pool:   pool,
		schema: opts.AnalyticsSchema,
		logger: logger.Named("postgres-introspector"),
	}, nil
}

// Close releases the connection pool. Safe to call more than once.
func (d *Introspector) Close() error {
	if !d.closed && d.pool != nil {
		d.pool.Close()
		d.closed = true
	}
	return nil
}

// DiscoverTables returns all base tables in the analytical schema.
func (d *Introspector) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT table_schema, table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name
	`

	rows, err := d.pool.Query(ctx, query, d.schema)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	var tables []datasource.TableMetadata
	for rows.Next() {
		var t datasource.TableMetadata
		if err := rows.Scan(&t.SchemaName, &t.TableName); err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		tables = append(tables, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tables: %w", err)
	}

	return tables, nil
}

// DiscoverColumns returns columns for a specific table in ordinal order.
func (d *Introspector) DiscoverColumns(ctx context.Context, tableName string) ([]datasource.ColumnMetadata, error) {
	const query = `
		SELECT
			c.column_name,
			c.data_type,
			c.is_nullable = 'YES',
			EXISTS (
				SELECT 1
				FROM information_schema.table_constraints tc
				JOIN information_schema.key_column_usage kcu
					ON tc.constraint_name = kcu.constraint_name
					AND tc.table_schema = kcu.table_schema
				WHERE tc.constraint_type = 'PRIMARY KEY'
				  AND tc.table_schema = c.table_schema
				  AND tc.table_name = c.table_name
				  AND kcu.column_name = c.column_name
			) AS is_primary_key,
			c.ordinal_position
		FROM information_schema.columns c
		WHERE c.table_schema = $1 AND c.table_name = $2
		ORDER BY c.ordinal_position
	`

	rows, err := d.pool.Query(ctx, query, d.schema, tableName)
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	defer rows.Close()

	var columns []datasource.ColumnMetadata
	for rows.Next() {
		var c datasource.ColumnMetadata
		if err := rows.Scan(&c.ColumnName, &c.DataType, &c.IsNullable, &c.IsPrimaryKey, &c.OrdinalPosition); err != nil {
			return nil, fmt.Errorf("scan column: %w", err)
		}
		columns = append(columns, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate columns: %w", err)
	}

	return columns, nil
}

// DiscoverForeignKeys returns all foreign key constraints in the schema.
func (d *Introspector) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	const query = `
		SELECT
			tc.constraint_name,
			kcu.table_schema AS source_schema,
			kcu.table_name AS source_table,
			kcu.column_name AS source_column,
			ccu.table_schema AS target_schema,
			ccu.table_name AS target_table,
			ccu.column_name AS target_column
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		JOIN information_schema.constraint_column_usage ccu
			ON tc.constraint_name = ccu.constraint_name
			AND tc.table_schema = ccu.table_schema
		WHERE tc.constraint_type = 'FOREIGN KEY'
		  AND tc.table_schema = $1
	`

	rows, err := d.pool.Query(ctx, query, d.schema)
	if err != nil {
		return nil, fmt.Errorf("query foreign keys: %w", err)
	}
	defer rows.Close()

	var fks []datasource.ForeignKeyMetadata
	for rows.Next() {
		var fk datasource.ForeignKeyMetadata
		if err := rows.Scan(&fk.ConstraintName, &fk.SourceSchema, &fk.SourceTable, &fk.SourceColumn,
			&fk.TargetSchema, &fk.TargetTable, &fk.TargetColumn); err != nil {
			return nil, fmt.Errorf("scan foreign key: %w", err)
		}
		fks = append(fks, fk)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate foreign keys: %w", err)
	}

	return fks, nil
}

// DiscoverUniqueColumns returns columns covered alone by a UNIQUE or PRIMARY
// KEY constraint. Multi-column constraints are excluded.
func (d *Introspector) DiscoverUniqueColumns(ctx context.Context) ([]datasource.UniqueColumn, error) {
	const query = `
		SELECT kcu.table_name, MIN(kcu.column_name)
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
			ON tc.constraint_name = kcu.constraint_name
			AND tc.table_schema = kcu.table_schema
		WHERE tc.constraint_type IN ('UNIQUE', 'PRIMARY KEY')
		  AND tc.table_schema = $1
		GROUP BY tc.constraint_name, kcu.table_name
		HAVING COUNT(*) = 1
	`

	rows, err := d.pool.Query(ctx, query, d.schema)
	if err != nil {
		return nil, fmt.Errorf("query unique columns: %w", err)
	}
	defer rows.Close()

	var uniques []datasource.UniqueColumn
	for rows.Next() {
		var u datasource.UniqueColumn
		if err := rows.Scan(&u.TableName, &u.ColumnName); err != nil {
			return nil, fmt.Errorf("scan unique column: %w", err)
		}
		uniques = append(uniques, u)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unique columns: %w", err)
	}

	return uniques, nil
}

// ListAssessmentTypes reads the assessment type catalog table.
func (d *Introspector) ListAssessmentTypes(ctx context.Context) ([]datasource.AssessmentTypeRow, error) {
	tableRef := pgx.Identifier{d.schema, "assessment_types"}.Sanitize()
	query := fmt.Sprintf(`SELECT id::text, name FROM %s ORDER BY name`, tableRef)

	rows, err := d.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query assessment types: %w", err)
	}
	defer rows.Close()

	var types []datasource.AssessmentTypeRow
	for rows.Next() {
		var at datasource.AssessmentTypeRow
		if err := rows.Scan(&at.ID, &at.Name); err != nil {
			return nil, fmt.Errorf("scan assessment type: %w", err)
		}
		types = append(types, at)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate assessment types: %w", err)
	}

	return types, nil
}

var _ datasource.SchemaIntrospector = (*Introspector)(nil)
