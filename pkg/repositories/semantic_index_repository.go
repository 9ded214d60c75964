package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-health/lucerna-engine/pkg/database"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// SemanticIndexRepository persists discovered fields, non-form columns, and
// assessment-type mappings. All writes are replace-by-key so re-running
// discovery against an unchanged schema reproduces the same rows.
type SemanticIndexRepository interface {
	// ReplaceFormFields replaces all fields of one form for a customer.
	ReplaceFormFields(ctx context.Context, customerID uuid.UUID, formName string, fields []*models.SemanticField) error
	// ReplaceNonFormColumns replaces all non-form columns of one table.
	ReplaceNonFormColumns(ctx context.Context, customerID uuid.UUID, tableName string, columns []*models.NonFormColumn) error
	// ReplaceAssessmentTypes replaces the customer's assessment-type index.
	ReplaceAssessmentTypes(ctx context.Context, customerID uuid.UUID, entries []*models.AssessmentTypeEntry) error
	ListFormFields(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticField, error)
	ListNonFormColumns(ctx context.Context, customerID uuid.UUID) ([]*models.NonFormColumn, error)
	ListAssessmentTypes(ctx context.Context, customerID uuid.UUID) ([]*models.AssessmentTypeEntry, error)
	// Summary computes the discovery summary counters from the index tables.
	Summary(ctx context.Context, customerID uuid.UUID) (*models.DiscoverySummary, error)
}

type semanticIndexRepository struct {
	db *database.DB
}

// NewSemanticIndexRepository creates a new SemanticIndexRepository.
func NewSemanticIndexRepository(db *database.DB) SemanticIndexRepository {
	return &semanticIndexRepository{db: db}
}

var _ SemanticIndexRepository = (*semanticIndexRepository)(nil)

func (r *semanticIndexRepository) ReplaceFormFields(ctx context.Context, customerID uuid.UUID, formName string, fields []*models.SemanticField) error {
	deleteQuery := `DELETE FROM engine_semantic_fields WHERE customer_id = $1 AND form_name = $2`
	if _, err := r.db.Exec(ctx, deleteQuery, customerID, formName); err != nil {
		return fmt.Errorf("failed to delete form fields for %s: %w", formName, err)
	}

	insertQuery := `
		INSERT INTO engine_semantic_fields (
			id, customer_id, form_name, field_name, display_name,
			discovered_type, confidence, requires_review, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	for _, f := range fields {
		if f.ID == uuid.Nil {
			f.ID = uuid.New()
		}
		f.CustomerID = customerID
		f.FormName = formName
		f.CreatedAt = time.Now()

		_, err := r.db.Exec(ctx, insertQuery,
			f.ID, f.CustomerID, f.FormName, f.FieldName, f.DisplayName,
			f.DiscoveredType, f.Confidence, f.RequiresReview, f.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert field %s.%s: %w", formName, f.FieldName, err)
		}
	}

	return nil
}

func (r *semanticIndexRepository) ReplaceNonFormColumns(ctx context.Context, customerID uuid.UUID, tableName string, columns []*models.NonFormColumn) error {
	deleteQuery := `DELETE FROM engine_nonform_columns WHERE customer_id = $1 AND table_name = $2`
	if _, err := r.db.Exec(ctx, deleteQuery, customerID, tableName); err != nil {
		return fmt.Errorf("failed to delete non-form columns for %s: %w", tableName, err)
	}

	insertQuery := `
		INSERT INTO engine_nonform_columns (
			id, customer_id, table_name, column_name,
			discovered_type, confidence, requires_review, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	for _, c := range columns {
		if c.ID == uuid.Nil {
			c.ID = uuid.New()
		}
		c.CustomerID = customerID
		c.TableName = tableName
		c.CreatedAt = time.Now()

		_, err := r.db.Exec(ctx, insertQuery,
			c.ID, c.CustomerID, c.TableName, c.ColumnName,
			c.DiscoveredType, c.Confidence, c.RequiresReview, c.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert non-form column %s.%s: %w", tableName, c.ColumnName, err)
		}
	}

	return nil
}

func (r *semanticIndexRepository) ReplaceAssessmentTypes(ctx context.Context, customerID uuid.UUID, entries []*models.AssessmentTypeEntry) error {
	deleteQuery := `DELETE FROM engine_assessment_type_index WHERE customer_id = $1`
	if _, err := r.db.Exec(ctx, deleteQuery, customerID); err != nil {
		return fmt.Errorf("failed to delete assessment type index: %w", err)
	}

	insertQuery := `
		INSERT INTO engine_assessment_type_index (
			id, customer_id, assessment_type_id, assessment_name,
			semantic_concept, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)`

	for _, e := range entries {
		if e.ID == uuid.Nil {
			e.ID = uuid.New()
		}
		e.CustomerID = customerID
		e.CreatedAt = time.Now()

		_, err := r.db.Exec(ctx, insertQuery,
			e.ID, e.CustomerID, e.AssessmentTypeID, e.AssessmentName,
			e.SemanticConcept, e.Confidence, e.CreatedAt)
		if err != nil {
			return fmt.Errorf("failed to insert assessment type %s: %w", e.AssessmentTypeID, err)
		}
	}

	return nil
}

func (r *semanticIndexRepository) ListFormFields(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticField, error) {
	query := `
		SELECT id, customer_id, form_name, field_name, display_name,
		       discovered_type, confidence, requires_review, created_at
		FROM engine_semantic_fields
		WHERE customer_id = $1
		ORDER BY form_name, field_name`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query semantic fields: %w", err)
	}
	defer rows.Close()

	var fields []*models.SemanticField
	for rows.Next() {
		var f models.SemanticField
		if err := rows.Scan(&f.ID, &f.CustomerID, &f.FormName, &f.FieldName, &f.DisplayName,
			&f.DiscoveredType, &f.Confidence, &f.RequiresReview, &f.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan semantic field: %w", err)
		}
		fields = append(fields, &f)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating semantic fields: %w", err)
	}

	return fields, nil
}

func (r *semanticIndexRepository) ListNonFormColumns(ctx context.Context, customerID uuid.UUID) ([]*models.NonFormColumn, error) {
	query := `
		SELECT id, customer_id, table_name, column_name,
		       discovered_type, confidence, requires_review, created_at
		FROM engine_nonform_columns
		WHERE customer_id = $1
		ORDER BY table_name, column_name`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query non-form columns: %w", err)
	}
	defer rows.Close()

	var columns []*models.NonFormColumn
	for rows.Next() {
		var c models.NonFormColumn
		if err := rows.Scan(&c.ID, &c.CustomerID, &c.TableName, &c.ColumnName,
			&c.DiscoveredType, &c.Confidence, &c.RequiresReview, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan non-form column: %w", err)
		}
		columns = append(columns, &c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating non-form columns: %w", err)
	}

	return columns, nil
}

func (r *semanticIndexRepository) ListAssessmentTypes(ctx context.Context, customerID uuid.UUID) ([]*models.AssessmentTypeEntry, error) {
	query := `
		SELECT id, customer_id, assessment_type_id, assessment_name,
		       semantic_concept, confidence, created_at
		FROM engine_assessment_type_index
		WHERE customer_id = $1
		ORDER BY assessment_name`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query assessment type index: %w", err)
	}
	defer rows.Close()

	var entries []*models.AssessmentTypeEntry
	for rows.Next() {
		var e models.AssessmentTypeEntry
		if err := rows.Scan(&e.ID, &e.CustomerID, &e.AssessmentTypeID, &e.AssessmentName,
			&e.SemanticConcept, &e.Confidence, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan assessment type entry: %w", err)
		}
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating assessment type index: %w", err)
	}

	return entries, nil
}

func (r *semanticIndexRepository) Summary(ctx context.Context, customerID uuid.UUID) (*models.DiscoverySummary, error) {
	query := `
		SELECT
			(SELECT COUNT(DISTINCT form_name) FROM engine_semantic_fields WHERE customer_id = $1),
			(SELECT COUNT(*) FROM engine_semantic_fields WHERE customer_id = $1),
			(SELECT COALESCE(AVG(confidence), 0) FROM engine_semantic_fields WHERE customer_id = $1),
			(SELECT COUNT(*) FROM engine_semantic_fields WHERE customer_id = $1 AND requires_review),
			(SELECT COUNT(*) FROM engine_nonform_columns WHERE customer_id = $1),
			(SELECT COUNT(*) FROM engine_assessment_type_index WHERE customer_id = $1)`

	var s models.DiscoverySummary
	err := r.db.QueryRow(ctx, query, customerID).Scan(
		&s.FormsDiscovered, &s.FieldsDiscovered, &s.AverageConfidence,
		&s.FieldsRequiringReview, &s.NonFormColumns, &s.AssessmentTypesIndexed)
	if err != nil {
		return nil, fmt.Errorf("failed to compute discovery summary: %w", err)
	}

	return &s, nil
}
