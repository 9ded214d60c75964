package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/repositories"
)

// Semantic concepts an assessment type can map to.
const (
	ConceptWoundMeasurement = "wound_measurement"
	ConceptWoundAssessment  = "wound_assessment"
	ConceptPainScore        = "pain_score"
	ConceptRiskScore        = "risk_score"
	ConceptNutrition        = "nutrition"
	ConceptVitals           = "vitals"
	ConceptGeneral          = "general_assessment"
)

// conceptKeywords maps name keywords to semantic concepts, checked in order
// so the more specific concepts win over the generic ones.
var conceptKeywords = []struct {
	concept    string
	keywords   []string
	confidence float64
}{
	{ConceptWoundMeasurement, []string{"measurement", "dimension", "planimetry"}, 0.9},
	{ConceptPainScore, []string{"pain"}, 0.9},
	{ConceptRiskScore, []string{"braden", "risk", "norton"}, 0.85},
	{ConceptNutrition, []string{"nutrition", "dietary", "diet"}, 0.85},
	{ConceptVitals, []string{"vital", "blood pressure", "temperature", "pulse"}, 0.85},
	{ConceptWoundAssessment, []string{"wound", "ulcer", "skin", "pressure injury"}, 0.8},
}

// AssessmentIndexResult reports one assessment-type indexing pass.
type AssessmentIndexResult struct {
	TypesIndexed int      `json:"types_indexed"`
	Warnings     []string `json:"warnings"`
}

// AssessmentIndexService maps customer assessment types to the engine's
// semantic concepts.
type AssessmentIndexService interface {
	IndexAssessmentTypes(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*AssessmentIndexResult, error)
}

type assessmentIndexService struct {
	indexRepo repositories.SemanticIndexRepository
	logger    *zap.Logger
}

var _ AssessmentIndexService = (*assessmentIndexService)(nil)

func NewAssessmentIndexService(indexRepo repositories.SemanticIndexRepository, logger *zap.Logger) AssessmentIndexService {
	return &assessmentIndexService{
		indexRepo: indexRepo,
		logger:    logger.Named("assessment_indexing"),
	}
}

// IndexAssessmentTypes reads the customer's assessment type catalog, maps
// each type name to a semantic concept by keyword, and replaces the stored
// index. Unmatched names map to the general concept with low confidence so
// they still appear for review.
func (s *assessmentIndexService) IndexAssessmentTypes(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*AssessmentIndexResult, error) {
	rows, err := introspector.ListAssessmentTypes(ctx)
	if err != nil {
		return nil, fmt.Errorf("list assessment types: %w", err)
	}

	result := &AssessmentIndexResult{}
	if len(rows) == 0 {
		result.Warnings = append(result.Warnings, "no assessment types defined in customer database")
		return result, nil
	}

	entries := make([]*models.AssessmentTypeEntry, 0, len(rows))
	for _, row := range rows {
		concept, confidence := classifyAssessmentName(row.Name)
		entries = append(entries, &models.AssessmentTypeEntry{
			ID:               uuid.New(),
			CustomerID:       customerID,
			AssessmentTypeID: row.ID,
			AssessmentName:   row.Name,
			SemanticConcept:  concept,
			Confidence:       confidence,
		})
		if concept == ConceptGeneral {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("assessment type %q did not match a known concept", row.Name))
		}
	}

	if err := s.indexRepo.ReplaceAssessmentTypes(ctx, customerID, entries); err != nil {
		return nil, fmt.Errorf("replace assessment type index: %w", err)
	}
	result.TypesIndexed = len(entries)

	s.logger.Info("assessment type indexing complete",
		zap.String("customer_id", customerID.String()),
		zap.Int("types", result.TypesIndexed))
	return result, nil
}

func classifyAssessmentName(name string) (string, float64) {
	lowered := strings.ToLower(name)
	for _, mapping := range conceptKeywords {
		for _, keyword := range mapping.keywords {
			if strings.Contains(lowered, keyword) {
				return mapping.concept, mapping.confidence
			}
		}
	}
	return ConceptGeneral, 0.4
}
