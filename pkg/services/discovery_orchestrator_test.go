package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/config"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

type orchestratorFixture struct {
	orchestrator DiscoveryOrchestrator
	customerRepo *fakeCustomerRepo
	runRepo      *fakeRunRepo
	indexRepo    *fakeIndexRepo
	relRepo      *fakeRelationshipRepo
	introspector *fakeIntrospector
	customer     *models.Customer
}

func newOrchestratorFixture(t *testing.T) *orchestratorFixture {
	t.Helper()
	logger := zap.NewNop()

	customerRepo := newFakeCustomerRepo()
	customer := &models.Customer{
		ID:           uuid.New(),
		Code:         "stmarys",
		Name:         "St. Mary's Wound Care",
		DatabaseType: "postgres",
	}
	require.NoError(t, customerRepo.Create(context.Background(), customer, "postgres://clinical"))

	introspector := &fakeIntrospector{
		tables: []datasource.TableMetadata{
			{SchemaName: "clinical", TableName: "wound_assessment_form"},
			{SchemaName: "clinical", TableName: "patients"},
		},
		columns: map[string][]datasource.ColumnMetadata{
			"wound_assessment_form": {
				{ColumnName: "id", DataType: "uuid"},
				{ColumnName: "wound_area_cm2", DataType: "numeric"},
				{ColumnName: "notes", DataType: "text"},
			},
			"patients": {
				{ColumnName: "id", DataType: "uuid"},
				{ColumnName: "admitted_at", DataType: "timestamp"},
			},
		},
		foreignKeys: []datasource.ForeignKeyMetadata{woundToPatientFK()},
		assessmentTypes: []datasource.AssessmentTypeRow{
			{ID: "at-1", Name: "Wound Measurement"},
		},
	}

	runRepo := newFakeRunRepo()
	indexRepo := newFakeIndexRepo()
	relRepo := newFakeRelationshipRepo()

	orchestrator := NewDiscoveryOrchestrator(
		customerRepo, runRepo, indexRepo,
		NewFormDiscoveryService(indexRepo, logger),
		NewRelationshipDiscoveryService(relRepo, logger),
		NewAssessmentIndexService(indexRepo, logger),
		&fakeIntrospectorFactory{introspector: introspector},
		config.DiscoveryConfig{AnalyticsSchema: "clinical", LogRetentionRuns: 5, PoolMaxConns: 4},
		logger,
	)

	return &orchestratorFixture{
		orchestrator: orchestrator,
		customerRepo: customerRepo,
		runRepo:      runRepo,
		indexRepo:    indexRepo,
		relRepo:      relRepo,
		introspector: introspector,
		customer:     customer,
	}
}

func TestRunDiscoverySucceeds(t *testing.T) {
	fx := newOrchestratorFixture(t)

	run, err := fx.orchestrator.RunDiscovery(context.Background(), "stmarys", models.AllStages())
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	assert.Empty(t, run.Errors)
	assert.Equal(t, 1, run.Summary.FormsDiscovered)
	assert.Positive(t, run.Summary.FieldsDiscovered)
	assert.Equal(t, 1, run.Summary.AssessmentTypesIndexed)

	stored, err := fx.runRepo.GetByID(context.Background(), run.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, stored.Status)

	assert.Equal(t, 1, fx.introspector.closed, "introspector must be closed exactly once")
	assert.Contains(t, fx.customerRepo.touched, fx.customer.ID)
	assert.Equal(t, 1, fx.runRepo.pruneLogsCalls)
	assert.Equal(t, 5, fx.runRepo.lastKeepRuns)
}

func TestRunDiscoveryUnknownCustomerCreatesNoRun(t *testing.T) {
	fx := newOrchestratorFixture(t)

	_, err := fx.orchestrator.RunDiscovery(context.Background(), "nobody", models.AllStages())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrCustomerNotFound)
	assert.Empty(t, fx.runRepo.runs)
}

func TestRunDiscoveryMissingConnectionStringCreatesNoRun(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.customerRepo.connStrings["stmarys"] = ""

	_, err := fx.orchestrator.RunDiscovery(context.Background(), "stmarys", models.AllStages())
	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrNoConnectionString)
	assert.Empty(t, fx.runRepo.runs)
}

func TestRunDiscoveryStageErrorDoesNotAbortLaterStages(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.introspector.foreignKeysErr = errors.New("permission denied on pg_constraint")

	run, err := fx.orchestrator.RunDiscovery(context.Background(), "stmarys", models.AllStages())
	require.NoError(t, err)

	// The relationship stage failed but the run still completed.
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
	require.NotEmpty(t, run.Errors)
	assert.Contains(t, run.Errors[0], StageRelationships)

	// Later stages still ran.
	assert.Equal(t, 1, run.Summary.AssessmentTypesIndexed)
	assert.Equal(t, 1, fx.introspector.closed)
}

func TestRunDiscoveryConnectFailureMarksRunFailed(t *testing.T) {
	fx := newOrchestratorFixture(t)
	logger := zap.NewNop()

	orchestrator := NewDiscoveryOrchestrator(
		fx.customerRepo, fx.runRepo, fx.indexRepo,
		NewFormDiscoveryService(fx.indexRepo, logger),
		NewRelationshipDiscoveryService(fx.relRepo, logger),
		NewAssessmentIndexService(fx.indexRepo, logger),
		&fakeIntrospectorFactory{err: errors.New("connection refused")},
		config.DiscoveryConfig{AnalyticsSchema: "clinical", LogRetentionRuns: 5},
		logger,
	)

	run, err := orchestrator.RunDiscovery(context.Background(), "stmarys", models.AllStages())
	require.Error(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.RunStatusFailed, run.Status)
	require.NotNil(t, run.ErrorMessage)

	stored, getErr := fx.runRepo.GetByID(context.Background(), run.ID)
	require.NoError(t, getErr)
	assert.Equal(t, models.RunStatusFailed, stored.Status, "run must never be left running")
}

func TestRunDiscoveryProgressEventOrder(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var events []ProgressEvent
	sink := ProgressSinkFunc(func(e ProgressEvent) { events = append(events, e) })

	_, err := fx.orchestrator.RunDiscoveryWithProgress(context.Background(), "stmarys", models.AllStages(), sink)
	require.NoError(t, err)

	wantStages := []string{StageForms, StageNonFormSchema, StageRelationships, StageAssessmentTypes, StageSummary}
	require.Len(t, events, 2*len(wantStages)+1)

	for i, stage := range wantStages {
		start, complete := events[2*i], events[2*i+1]
		assert.Equal(t, EventStageStart, start.Type)
		assert.Equal(t, stage, start.Stage)
		assert.Equal(t, EventStageComplete, complete.Type)
		assert.Equal(t, stage, complete.Stage)
	}

	final := events[len(events)-1]
	assert.Equal(t, EventComplete, final.Type)
	assert.Equal(t, models.RunStatusSucceeded, final.Status)
	require.NotNil(t, final.Summary)
}

func TestRunDiscoveryStageErrorEvent(t *testing.T) {
	fx := newOrchestratorFixture(t)
	fx.introspector.assessmentsErr = errors.New("assessment_types table missing")

	var events []ProgressEvent
	sink := ProgressSinkFunc(func(e ProgressEvent) { events = append(events, e) })

	_, err := fx.orchestrator.RunDiscoveryWithProgress(context.Background(), "stmarys", models.AllStages(), sink)
	require.NoError(t, err)

	var errorEvents []ProgressEvent
	for _, e := range events {
		if e.Type == EventStageError {
			errorEvents = append(errorEvents, e)
		}
	}
	require.Len(t, errorEvents, 1)
	assert.Equal(t, StageAssessmentTypes, errorEvents[0].Stage)
	assert.Contains(t, errorEvents[0].Error, "assessment_types")
}

func TestRunDiscoveryPanickingSinkDoesNotFailRun(t *testing.T) {
	fx := newOrchestratorFixture(t)

	sink := ProgressSinkFunc(func(e ProgressEvent) { panic("caller bug") })

	run, err := fx.orchestrator.RunDiscoveryWithProgress(context.Background(), "stmarys", models.AllStages(), sink)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)
}

func TestRunDiscoveryStageSelection(t *testing.T) {
	fx := newOrchestratorFixture(t)

	stages := models.StageSelection{Relationships: true}
	run, err := fx.orchestrator.RunDiscovery(context.Background(), "stmarys", stages)
	require.NoError(t, err)
	assert.Equal(t, models.RunStatusSucceeded, run.Status)

	// Only relationships (and the always-on summary) ran.
	fields, err := fx.indexRepo.ListFormFields(context.Background(), fx.customer.ID)
	require.NoError(t, err)
	assert.Empty(t, fields)

	rels, err := fx.relRepo.ListByCustomer(context.Background(), fx.customer.ID)
	require.NoError(t, err)
	assert.Len(t, rels, 2)
}

func TestRunDiscoverySerializesPerCustomer(t *testing.T) {
	fx := newOrchestratorFixture(t)

	var mu sync.Mutex
	running := 0
	maxRunning := 0

	// The sink fires inside the critical section, so concurrent overlap for
	// the same customer would show up as maxRunning > 1.
	sink := ProgressSinkFunc(func(e ProgressEvent) {
		if e.Type != EventStageStart {
			return
		}
		mu.Lock()
		running++
		if running > maxRunning {
			maxRunning = running
		}
		mu.Unlock()
		time.Sleep(time.Millisecond)
		mu.Lock()
		running--
		mu.Unlock()
	})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := fx.orchestrator.RunDiscoveryWithProgress(context.Background(), "stmarys", models.AllStages(), sink)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxRunning, "runs for the same customer must not overlap")
}
