package services

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
)

func clinicalSchemaIntrospector() *fakeIntrospector {
	return &fakeIntrospector{
		tables: []datasource.TableMetadata{
			{TableName: "form_wound_assessment"},
			{TableName: "patients"},
			{TableName: "wound_measurements"},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"form_wound_assessment": {
				{ColumnName: "id", DataType: "uuid"},
				{ColumnName: "patient_id", DataType: "uuid"},
				{ColumnName: "wound_type", DataType: "varchar"},
				{ColumnName: "assessed_at", DataType: "timestamp"},
				{ColumnName: "created_at", DataType: "timestamp"},
				{ColumnName: "updated_at", DataType: "timestamp"},
			},
			"patients": {
				{ColumnName: "id", DataType: "uuid"},
				{ColumnName: "date_of_birth", DataType: "date"},
				{ColumnName: "created_at", DataType: "timestamp"},
			},
			"wound_measurements": {
				{ColumnName: "id", DataType: "uuid"},
				{ColumnName: "area_cm2", DataType: "numeric"},
				{ColumnName: "depth_mm", DataType: "numeric"},
			},
		},
	}
}

func TestDiscoverForms(t *testing.T) {
	indexRepo := newFakeIndexRepo()
	svc := NewFormDiscoveryService(indexRepo, zap.NewNop())
	customerID := uuid.New()

	result, err := svc.DiscoverForms(context.Background(), customerID, clinicalSchemaIntrospector())
	require.NoError(t, err)

	assert.Equal(t, 1, result.FormsDiscovered)
	assert.Equal(t, 4, result.FieldsDiscovered, "bookkeeping columns must be excluded")
	assert.Empty(t, result.Warnings)

	fields := indexRepo.formFields["form_wound_assessment"]
	require.Len(t, fields, 4)
	for _, field := range fields {
		assert.Equal(t, customerID, field.CustomerID)
		assert.Equal(t, "form_wound_assessment", field.FormName)
		assert.NotEqual(t, "created_at", field.FieldName)
	}
}

func TestDiscoverFormsNoFormTables(t *testing.T) {
	introspector := clinicalSchemaIntrospector()
	introspector.tables = []datasource.TableMetadata{{TableName: "patients"}}

	svc := NewFormDiscoveryService(newFakeIndexRepo(), zap.NewNop())
	result, err := svc.DiscoverForms(context.Background(), uuid.New(), introspector)
	require.NoError(t, err)

	assert.Zero(t, result.FormsDiscovered)
	require.Len(t, result.Warnings, 1)
	assert.Contains(t, result.Warnings[0], "no form tables")
}

func TestDiscoverFormsTableListingError(t *testing.T) {
	introspector := clinicalSchemaIntrospector()
	introspector.tablesErr = errors.New("connection reset")

	svc := NewFormDiscoveryService(newFakeIndexRepo(), zap.NewNop())
	_, err := svc.DiscoverForms(context.Background(), uuid.New(), introspector)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "discover tables")
}

func TestDiscoverNonFormSchema(t *testing.T) {
	indexRepo := newFakeIndexRepo()
	svc := NewFormDiscoveryService(indexRepo, zap.NewNop())

	result, err := svc.DiscoverNonFormSchema(context.Background(), uuid.New(), clinicalSchemaIntrospector())
	require.NoError(t, err)

	assert.Equal(t, 2, result.TablesScanned, "form tables are excluded from the non-form pass")
	assert.Equal(t, 5, result.ColumnsDiscovered)

	assert.Empty(t, indexRepo.nonFormColumns["form_wound_assessment"])
	require.Len(t, indexRepo.nonFormColumns["wound_measurements"], 3)

	for _, col := range indexRepo.nonFormColumns["wound_measurements"] {
		if col.ColumnName == "area_cm2" {
			assert.Equal(t, SemanticTypeMeasurement, col.DiscoveredType)
			assert.False(t, col.RequiresReview)
		}
	}
}
