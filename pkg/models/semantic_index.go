package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Relationship cardinality values.
const (
	CardinalityManyToOne = "N:1"
	CardinalityOneToMany = "1:N"
	CardinalityOneToOne  = "1:1"
)

// Semantic roles a relationship can play for downstream SQL composition.
const (
	RoleBelongsTo = "belongs_to" // child -> parent
	RoleHasMany   = "has_many"   // parent -> child
	RoleLinkedVia = "linked_via" // parent -> child over a unique FK (1:1)
)

// ReviewConfidenceThreshold is the confidence below which a discovered field
// is flagged for human review.
const ReviewConfidenceThreshold = 0.7

// SemanticField is one discovered form-level field.
// Stored in engine_semantic_fields, keyed by (customer_id, form_name, field_name).
type SemanticField struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	FormName       string    `json:"form_name"`
	FieldName      string    `json:"field_name"`
	DisplayName    string    `json:"display_name"`
	DiscoveredType string    `json:"discovered_type"` // Semantic type, e.g. "measurement", "date", "identifier"
	Confidence     float64   `json:"confidence"`
	RequiresReview bool      `json:"requires_review"`
	CreatedAt      time.Time `json:"created_at"`
}

// NonFormColumn is a discovered column outside any clinical form grouping.
// Stored in engine_nonform_columns, keyed by (customer_id, table_name, column_name).
type NonFormColumn struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	TableName      string    `json:"table_name"`
	ColumnName     string    `json:"column_name"`
	DiscoveredType string    `json:"discovered_type"`
	Confidence     float64   `json:"confidence"`
	RequiresReview bool      `json:"requires_review"`
	CreatedAt      time.Time `json:"created_at"`
}

// SemanticRelationship is one direction of a discovered table relationship.
// Every foreign key produces two of these (child->parent and parent->child).
// Stored in engine_semantic_relationships.
type SemanticRelationship struct {
	ID             uuid.UUID `json:"id"`
	CustomerID     uuid.UUID `json:"customer_id"`
	SourceTable    string    `json:"source_table"`
	SourceColumn   string    `json:"source_column"`
	TargetTable    string    `json:"target_table"`
	TargetColumn   string    `json:"target_column"`
	ConstraintName string    `json:"constraint_name"`
	Cardinality    string    `json:"cardinality"` // "N:1", "1:N", "1:1"
	Role           string    `json:"role"`        // "belongs_to", "has_many", "linked_via"
	Confidence     float64   `json:"confidence"`
	CreatedAt      time.Time `json:"created_at"`
}

// Key returns the natural identity used for replace-by-key persistence and
// prune reconciliation.
func (r *SemanticRelationship) Key() string {
	return fmt.Sprintf("%s.%s->%s.%s|%s",
		r.SourceTable, r.SourceColumn, r.TargetTable, r.TargetColumn, r.ConstraintName)
}

// AssessmentTypeEntry maps a customer assessment type to a semantic concept.
// Stored in engine_assessment_type_index, keyed by (customer_id, assessment_type_id).
type AssessmentTypeEntry struct {
	ID               uuid.UUID `json:"id"`
	CustomerID       uuid.UUID `json:"customer_id"`
	AssessmentTypeID string    `json:"assessment_type_id"`
	AssessmentName   string    `json:"assessment_name"`
	SemanticConcept  string    `json:"semantic_concept"` // e.g. "wound_measurement", "pain_score"
	Confidence       float64   `json:"confidence"`
	CreatedAt        time.Time `json:"created_at"`
}
