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

// FormDiscoveryResult reports one form discovery pass.
type FormDiscoveryResult struct {
	FormsDiscovered  int      `json:"forms_discovered"`
	FieldsDiscovered int      `json:"fields_discovered"`
	Warnings         []string `json:"warnings"`
}

// NonFormDiscoveryResult reports one non-form schema discovery pass.
type NonFormDiscoveryResult struct {
	TablesScanned     int      `json:"tables_scanned"`
	ColumnsDiscovered int      `json:"columns_discovered"`
	Warnings          []string `json:"warnings"`
}

// FormDiscoveryService indexes clinical form tables and the remaining
// non-form schema of a customer analytical database.
type FormDiscoveryService interface {
	DiscoverForms(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*FormDiscoveryResult, error)
	DiscoverNonFormSchema(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*NonFormDiscoveryResult, error)
}

type formDiscoveryService struct {
	indexRepo repositories.SemanticIndexRepository
	logger    *zap.Logger
}

var _ FormDiscoveryService = (*formDiscoveryService)(nil)

func NewFormDiscoveryService(indexRepo repositories.SemanticIndexRepository, logger *zap.Logger) FormDiscoveryService {
	return &formDiscoveryService{
		indexRepo: indexRepo,
		logger:    logger.Named("form_discovery"),
	}
}

// bookkeepingColumns are audit columns present on nearly every table; they
// carry no clinical meaning and are excluded from field indexing.
var bookkeepingColumns = map[string]bool{
	"created_at": true,
	"updated_at": true,
	"deleted_at": true,
	"created_by": true,
	"updated_by": true,
	"row_version": true,
}

// isFormTable reports whether a table holds clinical form submissions.
// Clinical form tables follow the form_* / *_form naming convention.
func isFormTable(tableName string) bool {
	name := strings.ToLower(tableName)
	return strings.HasPrefix(name, "form_") ||
		strings.HasSuffix(name, "_form") ||
		strings.HasSuffix(name, "_forms")
}

// DiscoverForms scans form tables, classifies each column into a semantic
// field, and replaces the stored field set per form. Fields classified below
// the review confidence threshold are flagged for human review rather than
// dropped.
func (s *formDiscoveryService) DiscoverForms(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*FormDiscoveryResult, error) {
	tables, err := introspector.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	result := &FormDiscoveryResult{}
	for _, table := range tables {
		if !isFormTable(table.TableName) {
			continue
		}

		columns, err := introspector.DiscoverColumns(ctx, table.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for form %s: %w", table.TableName, err)
		}

		fields := make([]*models.SemanticField, 0, len(columns))
		for _, col := range columns {
			if bookkeepingColumns[strings.ToLower(col.ColumnName)] {
				continue
			}
			semanticType, confidence := classifyColumn(col.ColumnName, col.DataType)
			fields = append(fields, &models.SemanticField{
				ID:             uuid.New(),
				CustomerID:     customerID,
				FormName:       table.TableName,
				FieldName:      col.ColumnName,
				DisplayName:    displayName(col.ColumnName),
				DiscoveredType: semanticType,
				Confidence:     confidence,
				RequiresReview: confidence < models.ReviewConfidenceThreshold,
			})
		}

		if len(fields) == 0 {
			result.Warnings = append(result.Warnings,
				fmt.Sprintf("form table %s has no indexable fields", table.TableName))
			continue
		}

		if err := s.indexRepo.ReplaceFormFields(ctx, customerID, table.TableName, fields); err != nil {
			return nil, fmt.Errorf("replace fields for form %s: %w", table.TableName, err)
		}
		result.FormsDiscovered++
		result.FieldsDiscovered += len(fields)
	}

	if result.FormsDiscovered == 0 {
		result.Warnings = append(result.Warnings, "no form tables found in analytical schema")
	}

	s.logger.Info("form discovery complete",
		zap.String("customer_id", customerID.String()),
		zap.Int("forms", result.FormsDiscovered),
		zap.Int("fields", result.FieldsDiscovered))
	return result, nil
}

// DiscoverNonFormSchema indexes the columns of every non-form table so that
// downstream composition can reference dimension and fact tables the forms do
// not cover.
func (s *formDiscoveryService) DiscoverNonFormSchema(ctx context.Context, customerID uuid.UUID, introspector datasource.SchemaIntrospector) (*NonFormDiscoveryResult, error) {
	tables, err := introspector.DiscoverTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("discover tables: %w", err)
	}

	result := &NonFormDiscoveryResult{}
	for _, table := range tables {
		if isFormTable(table.TableName) {
			continue
		}

		columns, err := introspector.DiscoverColumns(ctx, table.TableName)
		if err != nil {
			return nil, fmt.Errorf("discover columns for table %s: %w", table.TableName, err)
		}

		rows := make([]*models.NonFormColumn, 0, len(columns))
		for _, col := range columns {
			if bookkeepingColumns[strings.ToLower(col.ColumnName)] {
				continue
			}
			semanticType, confidence := classifyColumn(col.ColumnName, col.DataType)
			rows = append(rows, &models.NonFormColumn{
				ID:             uuid.New(),
				CustomerID:     customerID,
				TableName:      table.TableName,
				ColumnName:     col.ColumnName,
				DiscoveredType: semanticType,
				Confidence:     confidence,
				RequiresReview: confidence < models.ReviewConfidenceThreshold,
			})
		}
		if len(rows) == 0 {
			continue
		}

		if err := s.indexRepo.ReplaceNonFormColumns(ctx, customerID, table.TableName, rows); err != nil {
			return nil, fmt.Errorf("replace columns for table %s: %w", table.TableName, err)
		}
		result.TablesScanned++
		result.ColumnsDiscovered += len(rows)
	}

	s.logger.Info("non-form schema discovery complete",
		zap.String("customer_id", customerID.String()),
		zap.Int("tables", result.TablesScanned),
		zap.Int("columns", result.ColumnsDiscovered))
	return result, nil
}
