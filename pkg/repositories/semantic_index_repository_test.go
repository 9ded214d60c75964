package repositories

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/testhelpers"
)

func TestReplaceFormFieldsIsIdempotent(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	customerRepo := NewCustomerRepository(engineDB.DB, newTestEncryptor(t))
	repo := NewSemanticIndexRepository(engineDB.DB)
	ctx := context.Background()

	customer := createTestCustomer(t, customerRepo, "postgres://a:b@c:5432/d")

	fields := []*models.SemanticField{
		{FieldName: "wound_type", DisplayName: "Wound Type", DiscoveredType: "category", Confidence: 0.8},
		{FieldName: "area_cm2", DisplayName: "Area Cm2", DiscoveredType: "measurement", Confidence: 0.9},
	}
	require.NoError(t, repo.ReplaceFormFields(ctx, customer.ID, "form_wound_assessment", fields))

	// Rediscovery of an unchanged schema replaces, never appends.
	rerun := []*models.SemanticField{
		{FieldName: "wound_type", DisplayName: "Wound Type", DiscoveredType: "category", Confidence: 0.8},
		{FieldName: "area_cm2", DisplayName: "Area Cm2", DiscoveredType: "measurement", Confidence: 0.9},
	}
	require.NoError(t, repo.ReplaceFormFields(ctx, customer.ID, "form_wound_assessment", rerun))

	stored, err := repo.ListFormFields(ctx, customer.ID)
	require.NoError(t, err)
	assert.Len(t, stored, 2)
}

func TestReplaceFormFieldsDropsRemovedColumns(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	customerRepo := NewCustomerRepository(engineDB.DB, newTestEncryptor(t))
	repo := NewSemanticIndexRepository(engineDB.DB)
	ctx := context.Background()

	customer := createTestCustomer(t, customerRepo, "postgres://a:b@c:5432/d")

	require.NoError(t, repo.ReplaceFormFields(ctx, customer.ID, "form_pain", []*models.SemanticField{
		{FieldName: "pain_score", DiscoveredType: "measurement", Confidence: 0.9},
		{FieldName: "legacy_note", DiscoveredType: "text", Confidence: 0.5, RequiresReview: true},
	}))

	require.NoError(t, repo.ReplaceFormFields(ctx, customer.ID, "form_pain", []*models.SemanticField{
		{FieldName: "pain_score", DiscoveredType: "measurement", Confidence: 0.9},
	}))

	stored, err := repo.ListFormFields(ctx, customer.ID)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, "pain_score", stored[0].FieldName)
}

func TestSummaryCountsIndex(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	customerRepo := NewCustomerRepository(engineDB.DB, newTestEncryptor(t))
	repo := NewSemanticIndexRepository(engineDB.DB)
	ctx := context.Background()

	customer := createTestCustomer(t, customerRepo, "postgres://a:b@c:5432/d")

	require.NoError(t, repo.ReplaceFormFields(ctx, customer.ID, "form_wound_assessment", []*models.SemanticField{
		{FieldName: "wound_type", DiscoveredType: "category", Confidence: 0.8},
		{FieldName: "free_note", DiscoveredType: "text", Confidence: 0.5, RequiresReview: true},
	}))
	require.NoError(t, repo.ReplaceNonFormColumns(ctx, customer.ID, "wound_measurements", []*models.NonFormColumn{
		{ColumnName: "area_cm2", DiscoveredType: "measurement", Confidence: 0.9},
	}))
	require.NoError(t, repo.ReplaceAssessmentTypes(ctx, customer.ID, []*models.AssessmentTypeEntry{
		{AssessmentTypeID: "at-001", AssessmentName: "Wound Measurement", SemanticConcept: "wound_measurement", Confidence: 0.9},
	}))

	summary, err := repo.Summary(ctx, customer.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, summary.FormsDiscovered)
	assert.Equal(t, 2, summary.FieldsDiscovered)
	assert.Equal(t, 1, summary.FieldsRequiringReview)
	assert.Equal(t, 1, summary.NonFormColumns)
	assert.Equal(t, 1, summary.AssessmentTypesIndexed)
	assert.InDelta(t, 0.65, summary.AverageConfidence, 0.0001)
}

func TestSummaryEmptyIndex(t *testing.T) {
	engineDB := testhelpers.GetEngineDB(t)
	customerRepo := NewCustomerRepository(engineDB.DB, newTestEncryptor(t))
	repo := NewSemanticIndexRepository(engineDB.DB)
	ctx := context.Background()

	customer := createTestCustomer(t, customerRepo, "postgres://a:b@c:5432/d")

	summary, err := repo.Summary(ctx, customer.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.FormsDiscovered)
	assert.Zero(t, summary.FieldsDiscovered)
	assert.Zero(t, summary.AverageConfidence)
}
