package services

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/repositories"
)

// RelationshipResult reports one relationship discovery pass.
type RelationshipResult struct {
	Relationships []*models.SemanticRelationship `json:"relationships"`
	Persisted     int                            `json:"persisted"`
	Pruned        int64                          `json:"pruned"`
	Warnings      []string                       `json:"warnings"`
	Errors        []string                       `json:"errors"`
}

// RelationshipDiscoveryService derives semantic relationships from a customer
// database's foreign-key constraints and reconciles them into the index.
type RelationshipDiscoveryService interface {
	DiscoverRelationships(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*RelationshipResult, error)
}

type relationshipDiscoveryService struct {
	relationshipRepo repositories.RelationshipRepository
	logger           *zap.Logger
}

var _ RelationshipDiscoveryService = (*relationshipDiscoveryService)(nil)

func NewRelationshipDiscoveryService(relationshipRepo repositories.RelationshipRepository, logger *zap.Logger) RelationshipDiscoveryService {
	return &relationshipDiscoveryService{
		relationshipRepo: relationshipRepo,
		logger:           logger.Named("relationship_discovery"),
	}
}

// DiscoverRelationships emits two records per foreign key: child->parent
// (belongs_to) and parent->child (has_many), upgraded to 1:1 + linked_via
// when the FK column is itself covered alone by a unique or primary-key
// constraint. Persistence is replace-by-key; relationships not reconfirmed
// this run are pruned afterwards, except when any persist error occurred,
// because a partially written run must never erase past discoveries.
func (s *relationshipDiscoveryService) DiscoverRelationships(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*RelationshipResult, error) {
	foreignKeys, err := introspector.DiscoverForeignKeys(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover foreign keys: %w", err)
	}

	uniqueColumns, err := introspector.DiscoverUniqueColumns(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover unique columns: %w", err)
	}
	unique := make(map[string]bool, len(uniqueColumns))
	for _, u := range uniqueColumns {
		unique[u.TableName+"."+u.ColumnName] = true
	}

	result := &RelationshipResult{}
	if len(foreignKeys) == 0 {
		result.Warnings = append(result.Warnings,
			"no foreign keys found in analytical schema; relationship index will be empty")
	}

	confirmed := make(map[string]bool)
	for _, fk := range foreignKeys {
		for _, rel := range relationshipsForForeignKey(customerID, fk, unique) {
			result.Relationships = append(result.Relationships, rel)
			confirmed[rel.Key()] = true
			if err := s.relationshipRepo.Upsert(ctx, rel); err != nil {
				result.Errors = append(result.Errors,
					fmt.Sprintf("persist relationship %s: %v", rel.Key(), err))
				continue
			}
			result.Persisted++
		}
	}

	if len(result.Errors) > 0 {
		result.Warnings = append(result.Warnings,
			"skipped pruning of unconfirmed relationships because some relationships failed to persist")
		s.logger.Warn("pruning skipped after persist errors",
			zap.String("customer_id", customerID.String()),
			zap.Int("persist_errors", len(result.Errors)))
		return result, nil
	}

	pruned, err := s.relationshipRepo.PruneExcept(ctx, customerID, confirmed)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("prune unconfirmed relationships: %v", err))
		return result, nil
	}
	result.Pruned = pruned

	s.logger.Info("relationship discovery complete",
		zap.String("customer_id", customerID.String()),
		zap.Int("foreign_keys", len(foreignKeys)),
		zap.Int("persisted", result.Persisted),
		zap.Int64("pruned", pruned))
	return result, nil
}

// relationshipsForForeignKey derives both directions of one foreign key.
// A unique constraint covering the FK column alone upgrades both directions
// to 1:1 and the parent side to linked_via.
func relationshipsForForeignKey(customerID uuid.UUID, fk datasource.ForeignKeyMetadata, unique map[string]bool) []*models.SemanticRelationship {
	fkIsUnique := unique[fk.SourceTable+"."+fk.SourceColumn]

	childToParent := &models.SemanticRelationship{
		ID:             uuid.New(),
		CustomerID:     customerID,
		SourceTable:    fk.SourceTable,
		SourceColumn:   fk.SourceColumn,
		TargetTable:    fk.TargetTable,
		TargetColumn:   fk.TargetColumn,
		ConstraintName: fk.ConstraintName,
		Cardinality:    models.CardinalityManyToOne,
		Role:           models.RoleBelongsTo,
		Confidence:     1.0,
	}
	parentToChild := &models.SemanticRelationship{
		ID:             uuid.New(),
		CustomerID:     customerID,
		SourceTable:    fk.TargetTable,
		SourceColumn:   fk.TargetColumn,
		TargetTable:    fk.SourceTable,
		TargetColumn:   fk.SourceColumn,
		ConstraintName: fk.ConstraintName,
		Cardinality:    models.CardinalityOneToMany,
		Role:           models.RoleHasMany,
		Confidence:     1.0,
	}

	if fkIsUnique {
		childToParent.Cardinality = models.CardinalityOneToOne
		parentToChild.Cardinality = models.CardinalityOneToOne
		parentToChild.Role = models.RoleLinkedVia
	}

	return []*models.SemanticRelationship{childToParent, parentToChild}
}
