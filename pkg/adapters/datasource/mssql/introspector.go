// Package mssql implements schema introspection for SQL Server customer
// databases.
package mssql

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/microsoft/go-mssqldb" // SQL Server driver
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
)

// Introspector reads SQL Server metadata catalogs for one analytical schema.
type Introspector struct {
	db     *sql.DB
	schema string
	logger *zap.Logger
	closed bool
}

// NewIntrospector opens a connection pool against the customer database.
// The caller owns the returned introspector and must Close it.
func NewIntrospector(ctx context.Context, opts datasource.IntrospectorOptions, logger *zap.Logger) (*Introspector, error) {
	db, err := sql.Open("sqlserver", opts.ConnString)
	if err != nil {
		return nil, fmt.Errorf("open sqlserver connection: %w", err)
	}

	if opts.PoolMaxConns > 0 {
		db.SetMaxOpenConns(int(opts.PoolMaxConns))
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlserver: %w", err)
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Introspector{
		db:     db,
		schema: opts.AnalyticsSchema,
		logger: logger.Named("mssql-introspector"),
	}, nil
}

// Close releases the connection pool. Safe to call more than once.
func (d *Introspector) Close() error {
	if d.closed || d.db == nil {
		return nil
	}
	d.closed = true
	return d.db.Close()
}

// DiscoverTables returns all base tables in the analytical schema.
func (d *Introspector) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	const query = `
		SELECT TABLE_SCHEMA, TABLE_NAME
		FROM INFORMATION_SCHEMA.TABLES
		WHERE TABLE_SCHEMA = @p1 AND TABLE_TYPE = 'BASE TABLE'
		ORDER BY TABLE_NAME
	`

	rows, err := d.db.QueryContext(ctx, query, d.schema)
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
			c.COLUMN_NAME,
			c.DATA_TYPE,
			CAST(CASE WHEN c.IS_NULLABLE = 'YES' THEN 1 ELSE 0 END AS BIT),
			CAST(CASE WHEN EXISTS (
				SELECT 1
				FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
				JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
					ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
					AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
				WHERE tc.CONSTRAINT_TYPE = 'PRIMARY KEY'
				  AND tc.TABLE_SCHEMA = c.TABLE_SCHEMA
				  AND tc.TABLE_NAME = c.TABLE_NAME
				  AND kcu.COLUMN_NAME = c.COLUMN_NAME
			) THEN 1 ELSE 0 END AS BIT),
			c.ORDINAL_POSITION
		FROM INFORMATION_SCHEMA.COLUMNS c
		WHERE c.TABLE_SCHEMA = @p1 AND c.TABLE_NAME = @p2
		ORDER BY c.ORDINAL_POSITION
	`

	rows, err := d.db.QueryContext(ctx, query, d.schema, tableName)
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
			rc.CONSTRAINT_NAME,
			kcu1.TABLE_SCHEMA AS source_schema,
			kcu1.TABLE_NAME AS source_table,
			kcu1.COLUMN_NAME AS source_column,
			kcu2.TABLE_SCHEMA AS target_schema,
			kcu2.TABLE_NAME AS target_table,
			kcu2.COLUMN_NAME AS target_column
		FROM INFORMATION_SCHEMA.REFERENTIAL_CONSTRAINTS rc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu1
			ON kcu1.CONSTRAINT_NAME = rc.CONSTRAINT_NAME
			AND kcu1.CONSTRAINT_SCHEMA = rc.CONSTRAINT_SCHEMA
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu2
			ON kcu2.CONSTRAINT_NAME = rc.UNIQUE_CONSTRAINT_NAME
			AND kcu2.CONSTRAINT_SCHEMA = rc.UNIQUE_CONSTRAINT_SCHEMA
			AND kcu2.ORDINAL_POSITION = kcu1.ORDINAL_POSITION
		WHERE kcu1.TABLE_SCHEMA = @p1
	`

	rows, err := d.db.QueryContext(ctx, query, d.schema)
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
		SELECT kcu.TABLE_NAME, MIN(kcu.COLUMN_NAME)
		FROM INFORMATION_SCHEMA.TABLE_CONSTRAINTS tc
		JOIN INFORMATION_SCHEMA.KEY_COLUMN_USAGE kcu
			ON tc.CONSTRAINT_NAME = kcu.CONSTRAINT_NAME
			AND tc.TABLE_SCHEMA = kcu.TABLE_SCHEMA
		WHERE tc.CONSTRAINT_TYPE IN ('UNIQUE', 'PRIMARY KEY')
		  AND tc.TABLE_SCHEMA = @p1
		GROUP BY tc.CONSTRAINT_NAME, kcu.TABLE_NAME
		HAVING COUNT(*) = 1
	`

	rows, err := d.db.QueryContext(ctx, query, d.schema)
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
	query := fmt.Sprintf(
		`SELECT CAST(id AS NVARCHAR(64)), name FROM [%s].[assessment_types] ORDER BY name`,
		d.schema)

	rows, err := d.db.QueryContext(ctx, query)
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
