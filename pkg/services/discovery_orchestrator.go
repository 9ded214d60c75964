package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/adapters/datasource"
	"github.com/lucerna-health/lucerna-engine/pkg/config"
	"github.com/lucerna-health/lucerna-engine/pkg/logging"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/repositories"
)

// Discovery stage identifiers, in execution order.
const (
	StageForms           = "forms"
	StageNonFormSchema   = "non_form_schema"
	StageRelationships   = "relationships"
	StageAssessmentTypes = "assessment_types"
	StageSummary         = "summary"
)

// DiscoveryOrchestrator drives a full discovery run for one customer:
// sequential stages against the customer's analytical database, run record
// lifecycle, progress events, and log retention.
type DiscoveryOrchestrator interface {
	// RunDiscovery executes the selected stages and returns the terminal run
	// record. Configuration errors (unknown customer, missing connection
	// string) are returned before any run record is created.
	RunDiscovery(ctx context.Context, customerCode string, stages models.StageSelection) (*models.DiscoveryRun, error)

	// RunDiscoveryWithProgress is RunDiscovery with per-stage event emission.
	RunDiscoveryWithProgress(ctx context.Context, customerCode string, stages models.StageSelection, sink ProgressSink) (*models.DiscoveryRun, error)

	// History returns the most recent runs for a customer, newest first.
	History(ctx context.Context, customerCode string, limit int) ([]*models.DiscoveryRun, error)
}

type discoveryOrchestrator struct {
	customerRepo     repositories.CustomerRepository
	runRepo          repositories.DiscoveryRunRepository
	indexRepo        repositories.SemanticIndexRepository
	formDiscovery    FormDiscoveryService
	relationshipDisc RelationshipDiscoveryService
	assessmentIndex  AssessmentIndexService
	factory          datasource.IntrospectorFactory
	cfg              config.DiscoveryConfig
	logger           *zap.Logger

	// customerLocks serializes discovery runs per customer. Two concurrent
	// runs for the same customer would interleave replace-by-key writes.
	mu            sync.Mutex
	customerLocks map[uuid.UUID]*sync.Mutex
}

var _ DiscoveryOrchestrator = (*discoveryOrchestrator)(nil)

func NewDiscoveryOrchestrator(
	customerRepo repositories.CustomerRepository,
	runRepo repositories.DiscoveryRunRepository,
	indexRepo repositories.SemanticIndexRepository,
	formDiscovery FormDiscoveryService,
	relationshipDisc RelationshipDiscoveryService,
	assessmentIndex AssessmentIndexService,
	factory datasource.IntrospectorFactory,
	cfg config.DiscoveryConfig,
	logger *zap.Logger,
) DiscoveryOrchestrator {
	return &discoveryOrchestrator{
		customerRepo:     customerRepo,
		runRepo:          runRepo,
		indexRepo:        indexRepo,
		formDiscovery:    formDiscovery,
		relationshipDisc: relationshipDisc,
		assessmentIndex:  assessmentIndex,
		factory:          factory,
		cfg:              cfg,
		logger:           logger.Named("discovery_orchestrator"),
		customerLocks:    make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *discoveryOrchestrator) RunDiscovery(ctx context.Context, customerCode string, stages models.StageSelection) (*models.DiscoveryRun, error) {
	return s.RunDiscoveryWithProgress(ctx, customerCode, stages, nil)
}

func (s *discoveryOrchestrator) RunDiscoveryWithProgress(ctx context.Context, customerCode string, stages models.StageSelection, sink ProgressSink) (*models.DiscoveryRun, error) {
	customer, err := s.customerRepo.GetByCode(ctx, customerCode)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %q: %w", customerCode, err)
	}
	connString, err := s.customerRepo.GetConnectionString(ctx, customerCode)
	if err != nil {
		return nil, fmt.Errorf("resolve connection string for %q: %w", customerCode, err)
	}

	lock := s.customerLock(customer.ID)
	lock.Lock()
	defer lock.Unlock()

	run := &models.DiscoveryRun{
		ID:         uuid.New(),
		CustomerID: customer.ID,
		Status:     models.RunStatusRunning,
		Stages:     stages,
		StartedAt:  time.Now().UTC(),
	}
	if err := s.runRepo.Create(ctx, run); err != nil {
		return nil, fmt.Errorf("create discovery run: %w", err)
	}

	s.logger.Info("discovery run started",
		zap.String("customer_code", customer.Code),
		zap.String("run_id", run.ID.String()))

	introspector, err := s.factory.NewSchemaIntrospector(ctx, customer.DatabaseType, datasource.IntrospectorOptions{
		ConnString:      connString,
		AnalyticsSchema: s.cfg.AnalyticsSchema,
		PoolMaxConns:    s.cfg.PoolMaxConns,
	})
	if err != nil {
		connectErr := fmt.Errorf("connect to customer database: %s", logging.SanitizeError(err))
		s.failRun(ctx, run, sink, connectErr)
		return run, connectErr
	}

	runErr := s.executeStages(ctx, run, customer.ID, stages, introspector, sink)

	if closeErr := introspector.Close(); closeErr != nil {
		s.logger.Warn("close introspector", zap.Error(closeErr))
	}

	if runErr != nil {
		s.failRun(ctx, run, sink, runErr)
		return run, runErr
	}

	if err := s.finishRun(ctx, run, customer.ID); err != nil {
		s.failRun(ctx, run, sink, err)
		return run, err
	}

	emitProgress(sink, s.logger, ProgressEvent{
		Type:    EventComplete,
		Status:  models.RunStatusSucceeded,
		Summary: &run.Summary,
	})
	s.logger.Info("discovery run succeeded",
		zap.String("run_id", run.ID.String()),
		zap.Int("warnings", len(run.Warnings)),
		zap.Int("stage_errors", len(run.Errors)))
	return run, nil
}

// executeStages runs the enabled stages sequentially. A stage error is
// captured into the run's error list and never aborts later stages; only a
// panic escapes as run-fatal.
func (s *discoveryOrchestrator) executeStages(ctx context.Context, run *models.DiscoveryRun, customerID uuid.UUID, stages models.StageSelection, introspector datasource.SchemaIntrospector, sink ProgressSink) (runErr error) {
	defer func() {
		if r := recover(); r != nil {
			runErr = fmt.Errorf("discovery stage panicked: %v", r)
		}
	}()

	type stageDef struct {
		id      string
		name    string
		enabled bool
		execute func() (any, []string, error)
	}

	defs := []stageDef{
		{
			id: StageForms, name: "Form discovery", enabled: stages.Forms,
			execute: func() (any, []string, error) {
				res, err := s.formDiscovery.DiscoverForms(ctx, customerID, introspector)
				if err != nil {
					return nil, nil, err
				}
				return res, res.Warnings, nil
			},
		},
		{
			id: StageNonFormSchema, name: "Non-form schema discovery", enabled: stages.NonFormSchema,
			execute: func() (any, []string, error) {
				res, err := s.formDiscovery.DiscoverNonFormSchema(ctx, customerID, introspector)
				if err != nil {
					return nil, nil, err
				}
				return res, res.Warnings, nil
			},
		},
		{
			id: StageRelationships, name: "Relationship discovery", enabled: stages.Relationships,
			execute: func() (any, []string, error) {
				res, err := s.relationshipDisc.DiscoverRelationships(ctx, customerID, introspector)
				if err != nil {
					return nil, nil, err
				}
				run.Errors = append(run.Errors, res.Errors...)
				return res, res.Warnings, nil
			},
		},
		{
			id: StageAssessmentTypes, name: "Assessment type indexing", enabled: stages.AssessmentTypes,
			execute: func() (any, []string, error) {
				res, err := s.assessmentIndex.IndexAssessmentTypes(ctx, customerID, introspector)
				if err != nil {
					return nil, nil, err
				}
				return res, res.Warnings, nil
			},
		},
		{
			id: StageSummary, name: "Summary computation", enabled: true,
			execute: func() (any, []string, error) {
				summary, err := s.indexRepo.Summary(ctx, customerID)
				if err != nil {
					return nil, nil, err
				}
				run.Summary = *summary
				return summary, nil, nil
			},
		},
	}

	for _, def := range defs {
		if !def.enabled {
			continue
		}
		emitProgress(sink, s.logger, ProgressEvent{Type: EventStageStart, Stage: def.id, Name: def.name})
		s.appendLog(ctx, run, stages, def.id, "stage started")

		data, warnings, err := def.execute()
		if err != nil {
			run.Errors = append(run.Errors, fmt.Sprintf("%s: %v", def.id, err))
			emitProgress(sink, s.logger, ProgressEvent{Type: EventStageError, Stage: def.id, Error: err.Error()})
			s.appendLog(ctx, run, stages, def.id, fmt.Sprintf("stage failed: %v", err))
			s.logger.Warn("discovery stage failed",
				zap.String("run_id", run.ID.String()),
				zap.String("stage", def.id),
				zap.Error(err))
			continue
		}

		run.Warnings = append(run.Warnings, warnings...)
		emitProgress(sink, s.logger, ProgressEvent{Type: EventStageComplete, Stage: def.id, Data: data})
		s.appendLog(ctx, run, stages, def.id, "stage complete")
	}

	return nil
}

// finishRun persists the terminal succeeded state, bumps the customer's
// last-discovered timestamp, and prunes verbose logs beyond the retention
// window. Retention housekeeping failures are logged, never fatal.
func (s *discoveryOrchestrator) finishRun(ctx context.Context, run *models.DiscoveryRun, customerID uuid.UUID) error {
	if err := s.runRepo.MarkSucceeded(ctx, run.ID, run.Warnings, run.Errors, run.Summary); err != nil {
		return fmt.Errorf("mark run succeeded: %w", err)
	}
	run.Status = models.RunStatusSucceeded

	if err := s.customerRepo.TouchDiscovered(ctx, customerID, time.Now().UTC()); err != nil {
		s.logger.Warn("update last-discovered timestamp", zap.Error(err))
	}
	if _, err := s.runRepo.PruneLogs(ctx, customerID, s.cfg.LogRetentionRuns); err != nil {
		s.logger.Warn("prune discovery run logs", zap.Error(err))
	}
	return nil
}

// failRun moves the run to its terminal failed state and emits the final
// progress event. The run record must never be left in running state.
func (s *discoveryOrchestrator) failRun(ctx context.Context, run *models.DiscoveryRun, sink ProgressSink, cause error) {
	if err := s.runRepo.MarkFailed(ctx, run.ID, cause.Error(), run.Warnings, run.Errors); err != nil {
		s.logger.Error("mark run failed",
			zap.String("run_id", run.ID.String()),
			zap.Error(err))
	}
	run.Status = models.RunStatusFailed
	message := cause.Error()
	run.ErrorMessage = &message

	emitProgress(sink, s.logger, ProgressEvent{
		Type:   EventComplete,
		Status: models.RunStatusFailed,
		Error:  message,
	})
	s.logger.Error("discovery run failed",
		zap.String("run_id", run.ID.String()),
		zap.Error(cause))
}

func (s *discoveryOrchestrator) appendLog(ctx context.Context, run *models.DiscoveryRun, stages models.StageSelection, stage, message string) {
	if !stages.Logging {
		return
	}
	if err := s.runRepo.AppendLog(ctx, run.ID, stage, message); err != nil {
		s.logger.Warn("append run log", zap.String("stage", stage), zap.Error(err))
	}
}

func (s *discoveryOrchestrator) History(ctx context.Context, customerCode string, limit int) ([]*models.DiscoveryRun, error) {
	customer, err := s.customerRepo.GetByCode(ctx, customerCode)
	if err != nil {
		return nil, fmt.Errorf("resolve customer %q: %w", customerCode, err)
	}
	return s.runRepo.History(ctx, customer.ID, limit)
}

func (s *discoveryOrchestrator) customerLock(customerID uuid.UUID) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.customerLocks[customerID]
	if !ok {
		lock = &sync.Mutex{}
		s.customerLocks[customerID] = lock
	}
	return lock
}
