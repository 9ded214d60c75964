package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// fakeIntrospector is an in-memory SchemaIntrospector backed by fixture data.
type fakeIntrospector struct {
	tables          []datasource.TableMetadata
	columns         map[string][]datasource.ColumnMetadata
	foreignKeys     []datasource.ForeignKeyMetadata
	uniqueColumns   []datasource.UniqueColumn
	assessmentTypes []datasource.AssessmentTypeRow

	tablesErr      error
	foreignKeysErr error
	assessmentsErr error

	closed int
}

var _ datasource.SchemaIntrospector = (*fakeIntrospector)(nil)

func (f *fakeIntrospector) DiscoverTables(ctx context.Context) ([]datasource.TableMetadata, error) {
	return f.tables, f.tablesErr
}

func (f *fakeIntrospector) DiscoverColumns(ctx context.Context, tableName string) ([]datasource.ColumnMetadata, error) {
	return f.columns[tableName], nil
}

func (f *fakeIntrospector) DiscoverForeignKeys(ctx context.Context) ([]datasource.ForeignKeyMetadata, error) {
	return f.foreignKeys, f.foreignKeysErr
}

func (f *fakeIntrospector) DiscoverUniqueColumns(ctx context.Context) ([]datasource.UniqueColumn, error) {
	return f.uniqueColumns, nil
}

func (f *fakeIntrospector) ListAssessmentTypes(ctx context.Context) ([]datasource.AssessmentTypeRow, error) {
	return f.assessmentTypes, f.assessmentsErr
}

func (f *fakeIntrospector) Close() error {
	f.closed++
	return nil
}

// fakeRelationshipRepo stores relationships by natural key, like the real
// replace-by-key repository.
type fakeRelationshipRepo struct {
	mu         sync.Mutex
	byKey      map[string]*models.SemanticRelationship
	upsertErr  map[string]error // keyed by relationship Key()
	pruneCalls int
}

func newFakeRelationshipRepo() *fakeRelationshipRepo {
	return &fakeRelationshipRepo{
		byKey:     make(map[string]*models.SemanticRelationship),
		upsertErr: make(map[string]error),
	}
}

func (f *fakeRelationshipRepo) Upsert(ctx context.Context, rel *models.SemanticRelationship) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.upsertErr[rel.Key()]; err != nil {
		return err
	}
	f.byKey[rel.Key()] = rel
	return nil
}

func (f *fakeRelationshipRepo) ListByCustomer(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticRelationship, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	keys := make([]string, 0, len(f.byKey))
	for k := range f.byKey {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([]*models.SemanticRelationship, 0, len(keys))
	for _, k := range keys {
		out = append(out, f.byKey[k])
	}
	return out, nil
}

func (f *fakeRelationshipRepo) PruneExcept(ctx context.Context, customerID uuid.UUID, confirmedKeys map[string]bool) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneCalls++
	var pruned int64
	for key := range f.byKey {
		if !confirmedKeys[key] {
			delete(f.byKey, key)
			pruned++
		}
	}
	return pruned, nil
}

// fakeCustomerRepo is an in-memory customer directory.
type fakeCustomerRepo struct {
	customers   map[string]*models.Customer
	connStrings map[string]string
	touched     []uuid.UUID
}

func newFakeCustomerRepo() *fakeCustomerRepo {
	return &fakeCustomerRepo{
		customers:   make(map[string]*models.Customer),
		connStrings: make(map[string]string),
	}
}

func (f *fakeCustomerRepo) Create(ctx context.Context, customer *models.Customer, connString string) error {
	f.customers[customer.Code] = customer
	f.connStrings[customer.Code] = connString
	return nil
}

func (f *fakeCustomerRepo) GetByCode(ctx context.Context, code string) (*models.Customer, error) {
	c, ok := f.customers[code]
	if !ok {
		return nil, apperrors.ErrCustomerNotFound
	}
	return c, nil
}

func (f *fakeCustomerRepo) GetConnectionString(ctx context.Context, code string) (string, error) {
	s, ok := f.connStrings[code]
	if !ok || s == "" {
		return "", apperrors.ErrNoConnectionString
	}
	return s, nil
}

func (f *fakeCustomerRepo) TouchDiscovered(ctx context.Context, customerID uuid.UUID, at time.Time) error {
	f.touched = append(f.touched, customerID)
	return nil
}

// fakeRunRepo records discovery run lifecycle transitions in memory.
type fakeRunRepo struct {
	mu   sync.Mutex
	runs map[uuid.UUID]*models.DiscoveryRun
	logs []string

	pruneLogsCalls int
	lastKeepRuns   int
}

func newFakeRunRepo() *fakeRunRepo {
	return &fakeRunRepo{runs: make(map[uuid.UUID]*models.DiscoveryRun)}
}

func (f *fakeRunRepo) Create(ctx context.Context, run *models.DiscoveryRun) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored := *run
	f.runs[run.ID] = &stored
	return nil
}

func (f *fakeRunRepo) GetByID(ctx context.Context, runID uuid.UUID) (*models.DiscoveryRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	run, ok := f.runs[runID]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	copied := *run
	return &copied, nil
}

func (f *fakeRunRepo) MarkSucceeded(ctx context.Context, runID uuid.UUID, warnings, errs []string, summary models.DiscoverySummary) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.runs[runID]
	run.Status = models.RunStatusSucceeded
	run.Warnings = warnings
	run.Errors = errs
	run.Summary = summary
	now := time.Now()
	run.CompletedAt = &now
	return nil
}

func (f *fakeRunRepo) MarkFailed(ctx context.Context, runID uuid.UUID, errorMessage string, warnings, errs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	run := f.runs[runID]
	run.Status = models.RunStatusFailed
	run.ErrorMessage = &errorMessage
	run.Warnings = warnings
	run.Errors = errs
	now := time.Now()
	run.CompletedAt = &now
	return nil
}

func (f *fakeRunRepo) History(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.DiscoveryRun, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.DiscoveryRun
	for _, run := range f.runs {
		if run.CustomerID == customerID {
			copied := *run
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeRunRepo) AppendLog(ctx context.Context, runID uuid.UUID, stage, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, stage+": "+message)
	return nil
}

func (f *fakeRunRepo) PruneLogs(ctx context.Context, customerID uuid.UUID, keepRuns int) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLogsCalls++
	f.lastKeepRuns = keepRuns
	return 0, nil
}

// fakeIndexRepo stores semantic index rows in memory.
type fakeIndexRepo struct {
	mu              sync.Mutex
	formFields      map[string][]*models.SemanticField // keyed by form name
	nonFormColumns  map[string][]*models.NonFormColumn // keyed by table name
	assessmentTypes []*models.AssessmentTypeEntry

	summaryErr error
}

func newFakeIndexRepo() *fakeIndexRepo {
	return &fakeIndexRepo{
		formFields:     make(map[string][]*models.SemanticField),
		nonFormColumns: make(map[string][]*models.NonFormColumn),
	}
}

func (f *fakeIndexRepo) ReplaceFormFields(ctx context.Context, customerID uuid.UUID, formName string, fields []*models.SemanticField) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.formFields[formName] = fields
	return nil
}

func (f *fakeIndexRepo) ReplaceNonFormColumns(ctx context.Context, customerID uuid.UUID, tableName string, columns []*models.NonFormColumn) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nonFormColumns[tableName] = columns
	return nil
}

func (f *fakeIndexRepo) ReplaceAssessmentTypes(ctx context.Context, customerID uuid.UUID, entries []*models.AssessmentTypeEntry) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.assessmentTypes = entries
	return nil
}

func (f *fakeIndexRepo) ListFormFields(ctx context.Context, customerID uuid.UUID) ([]*models.SemanticField, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.SemanticField
	for _, fields := range f.formFields {
		out = append(out, fields...)
	}
	return out, nil
}

func (f *fakeIndexRepo) ListNonFormColumns(ctx context.Context, customerID uuid.UUID) ([]*models.NonFormColumn, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []*models.NonFormColumn
	for _, cols := range f.nonFormColumns {
		out = append(out, cols...)
	}
	return out, nil
}

func (f *fakeIndexRepo) ListAssessmentTypes(ctx context.Context, customerID uuid.UUID) ([]*models.AssessmentTypeEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.assessmentTypes, nil
}

func (f *fakeIndexRepo) Summary(ctx context.Context, customerID uuid.UUID) (*models.DiscoverySummary, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.summaryErr != nil {
		return nil, f.summaryErr
	}
	summary := &models.DiscoverySummary{
		FormsDiscovered: len(f.formFields),
		NonFormColumns:  0,
	}
	var confidenceSum float64
	var fieldCount int
	for _, fields := range f.formFields {
		for _, field := range fields {
			fieldCount++
			confidenceSum += field.Confidence
			if field.RequiresReview {
				summary.FieldsRequiringReview++
			}
		}
	}
	summary.FieldsDiscovered = fieldCount
	if fieldCount > 0 {
		summary.AverageConfidence = confidenceSum / float64(fieldCount)
	}
	for _, cols := range f.nonFormColumns {
		summary.NonFormColumns += len(cols)
	}
	summary.AssessmentTypesIndexed = len(f.assessmentTypes)
	return summary, nil
}

// fakeIntrospectorFactory hands out a fixed introspector.
type fakeIntrospectorFactory struct {
	introspector *fakeIntrospector
	err          error
}

var _ datasource.IntrospectorFactory = (*fakeIntrospectorFactory)(nil)

func (f *fakeIntrospectorFactory) NewSchemaIntrospector(ctx context.Context, dbType string, opts datasource.IntrospectorOptions) (datasource.SchemaIntrospector, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.introspector, nil
}

func (f *fakeIntrospectorFactory) ListTypes() []datasource.AdapterInfo {
	return []datasource.AdapterInfo{{Type: "fake", DisplayName: "Fake"}}
}
