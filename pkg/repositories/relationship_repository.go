package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-health/lucerna-engine/pkg/database"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// RelationshipRepository persists discovered semantic relationships.
// Upsert is delete-matching-then-insert on the relationship's natural key so
// reruns never duplicate rows.
type RelationshipRepository interface {
	Upsert(ctx context.Context, rel *models.SemanticRelationship) error
	ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticRelationship, error)
	// PruneExcept deletes relationships whose natural key is not in
	// confirmedKeys. Called after a full rediscovery pass reconfirms the
	// surviving set.
	PruneExcept(ctx context.Context, customerID uuid.UUID, confirmedKeys map[string]bool) (int64, error)
}

type relationshipRepository struct {
	db *database.DB
}

// NewRelationshipRepository creates a new RelationshipRepository.
func NewRelationshipRepository(db *database.DB) RelationshipRepository {
	return &relationshipRepository{db: db}
}

var _ RelationshipRepository = (*relationshipRepository)(nil)

func (r *relationshipRepository) Upsert(ctx context.Context, rel *models.SemanticRelationship) error {
	if rel.ID == uuid.Nil {
		rel.ID = uuid.New()
	}
	rel.CreatedAt = time.Now()

	deleteQuery := `
		DELETE FROM engine_semantic_relationships
		WHERE customer_id = $1 AND source_table = $2 AND source_column = $3
		  AND target_table = $4 AND target_column = $5 AND constraint_name = $6`

	_, err := r.db.Exec(ctx, deleteQuery,
		rel.CustomerID, rel.SourceTable, rel.SourceColumn,
		rel.TargetTable, rel.TargetColumn, rel.ConstraintName)
	if err != nil {
		return fmt.Errorf("failed to delete matching relationship: %w", err)
	}

	insertQuery := `
		INSERT INTO engine_semantic_relationships (
			id, customer_id, source_table, source_column,
			target_table, target_column, constraint_name,
			cardinality, role, confidence, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err = r.db.Exec(ctx, insertQuery,
		rel.ID, rel.CustomerID, rel.SourceTable, rel.SourceColumn,
		rel.TargetTable, rel.TargetColumn, rel.ConstraintName,
		rel.Cardinality, rel.Role, rel.Confidence, rel.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert relationship: %w", err)
	}

	return nil
}

func (r *relationshipRepository) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticRelationship, error) {
	query := `
		SELECT id, customer_id, source_table, source_column,
		       target_table, target_column, constraint_name,
		       cardinality, role, confidence, created_at
		FROM engine_semantic_relationships
		WHERE customer_id = $1
		ORDER BY source_table, source_column, role`

	rows, err := r.db.Query(ctx, query, customerID)
	if err != nil {
		return nil, fmt.Errorf("failed to query relationships: %w", err)
	}
	defer rows.Close()

	var relationships []*models.SemanticRelationship
	for rows.Next() {
		var rel models.SemanticRelationship
		if err := rows.Scan(&rel.ID, &rel.CustomerID, &rel.SourceTable, &rel.SourceColumn,
			&rel.TargetTable, &rel.TargetColumn, &rel.ConstraintName,
			&rel.Cardinality, &rel.Role, &rel.Confidence, &rel.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan relationship: %w", err)
		}
		relationships = append(relationships, &rel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating relationships: %w", err)
	}

	return relationships, nil
}

func (r *relationshipRepository) PruneExcept(ctx context.Context, customerID uuid.UUID, confirmedKeys map[string]bool) (int64, error) {
	existing, err := r.ListByCustomer(ctx, customerID)
	if err != nil {
		return 0, err
	}

	var pruned int64
	for _, rel := range existing {
		if confirmedKeys[rel.Key()] {
			continue
		}

		tag, err := r.db.Exec(ctx,
			`DELETE FROM engine_semantic_relationships WHERE id = $1`, rel.ID)
		if err != nil {
			return pruned, fmt.Errorf("failed to prune relationship %s: %w", rel.Key(), err)
		}
		pruned += tag.RowsAffected()
	}

	return pruned, nil
}
