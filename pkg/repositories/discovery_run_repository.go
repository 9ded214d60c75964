package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/database"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
)

// DiscoveryRunRepository provides data access for discovery run records and
// their verbose per-stage logs.
type DiscoveryRunRepository interface {
	Create(ctx context.Context, run *models.DiscoveryRun) error
	GetByID(ctx context.Context, runID uuid.UUID) (*models.DiscoveryRun, error)
	// MarkSucceeded moves a running run to its terminal succeeded state.
	MarkSucceeded(ctx context.Context, runID uuid.UUID, warnings, errs []string, summary models.DiscoverySummary) error
	// MarkFailed moves a running run to its terminal failed state.
	MarkFailed(ctx context.Context, runID uuid.UUID, errorMessage string, warnings, errs []string) error
	// History returns the most recent runs for a customer, newest first.
	History(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.DiscoveryRun, error)
	// AppendLog records one verbose stage log line for a run.
	AppendLog(ctx context.Context, runID uuid.UUID, stage, message string) error
	// PruneLogs deletes log lines belonging to runs older than the keepRuns
	// most recent runs for the customer. Run records themselves are retained.
	PruneLogs(ctx context.Context, customerID uuid.UUID, keepRuns int) (int64, error)
}

type discoveryRunRepository struct {
	db *database.DB
}

// NewDiscoveryRunRepository creates a new DiscoveryRunRepository.
func NewDiscoveryRunRepository(db *database.DB) DiscoveryRunRepository {
	return &discoveryRunRepository{db: db}
}

var _ DiscoveryRunRepository = (*discoveryRunRepository)(nil)

func (r *discoveryRunRepository) Create(ctx context.Context, run *models.DiscoveryRun) error {
	if run.ID == uuid.Nil {
		run.ID = uuid.New()
	}
	if run.Status == "" {
		run.Status = models.RunStatusRunning
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}

	stages, err := json.Marshal(run.Stages)
	if err != nil {
		return fmt.Errorf("marshal stages: %w", err)
	}

	query := `
		INSERT INTO engine_discovery_runs (id, customer_id, status, stages, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	_, err = r.db.Exec(ctx, query, run.ID, run.CustomerID, run.Status, stages, run.StartedAt)
	if err != nil {
		return fmt.Errorf("failed to create discovery run: %w", err)
	}

	return nil
}

func (r *discoveryRunRepository) GetByID(ctx context.Context, runID uuid.UUID) (*models.DiscoveryRun, error) {
	query := `
		SELECT id, customer_id, status, stages, warnings, errors, summary,
		       error_message, started_at, completed_at
		FROM engine_discovery_runs
		WHERE id = $1`

	run, err := scanDiscoveryRun(r.db.QueryRow(ctx, query, runID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query discovery run: %w", err)
	}

	return run, nil
}

func (r *discoveryRunRepository) MarkSucceeded(ctx context.Context, runID uuid.UUID, warnings, errs []string, summary models.DiscoverySummary) error {
	return r.finish(ctx, runID, models.RunStatusSucceeded, nil, warnings, errs, &summary)
}

func (r *discoveryRunRepository) MarkFailed(ctx context.Context, runID uuid.UUID, errorMessage string, warnings, errs []string) error {
	return r.finish(ctx, runID, models.RunStatusFailed, &errorMessage, warnings, errs, nil)
}

func (r *discoveryRunRepository) finish(ctx context.Context, runID uuid.UUID, status string, errorMessage *string, warnings, errs []string, summary *models.DiscoverySummary) error {
	warningsJSON, err := json.Marshal(emptyIfNil(warnings))
	if err != nil {
		return fmt.Errorf("marshal warnings: %w", err)
	}
	errorsJSON, err := json.Marshal(emptyIfNil(errs))
	if err != nil {
		return fmt.Errorf("marshal errors: %w", err)
	}

	summaryJSON := []byte("{}")
	if summary != nil {
		summaryJSON, err = json.Marshal(summary)
		if err != nil {
			return fmt.Errorf("marshal summary: %w", err)
		}
	}

	query := `
		UPDATE engine_discovery_runs
		SET status = $2, warnings = $3, errors = $4, summary = $5,
		    error_message = $6, completed_at = now()
		WHERE id = $1 AND status = 'running'`

	tag, err := r.db.Exec(ctx, query, runID, status, warningsJSON, errorsJSON, summaryJSON, errorMessage)
	if err != nil {
		return fmt.Errorf("failed to finish discovery run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("discovery run %s is not running: %w", runID, apperrors.ErrNotFound)
	}

	return nil
}

func (r *discoveryRunRepository) History(ctx context.Context, customerID uuid.UUID, limit int) ([]*models.DiscoveryRun, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT id, customer_id, status, stages, warnings, errors, summary,
		       error_message, started_at, completed_at
		FROM engine_discovery_runs
		WHERE customer_id = $1
		ORDER BY started_at DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, query, customerID, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query discovery run history: %w", err)
	}
	defer rows.Close()

	var runs []*models.DiscoveryRun
	for rows.Next() {
		run, err := scanDiscoveryRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating discovery runs: %w", err)
	}

	return runs, nil
}

func (r *discoveryRunRepository) AppendLog(ctx context.Context, runID uuid.UUID, stage, message string) error {
	query := `
		INSERT INTO engine_discovery_run_logs (id, run_id, stage, message, logged_at)
		VALUES ($1, $2, $3, $4, now())`

	_, err := r.db.Exec(ctx, query, uuid.New(), runID, stage, message)
	if err != nil {
		return fmt.Errorf("failed to append run log: %w", err)
	}

	return nil
}

func (r *discoveryRunRepository) PruneLogs(ctx context.Context, customerID uuid.UUID, keepRuns int) (int64, error) {
	if keepRuns < 1 {
		keepRuns = 1
	}

	query := `
		DELETE FROM engine_discovery_run_logs
		WHERE run_id IN (
			SELECT id FROM engine_discovery_runs
			WHERE customer_id = $1
			ORDER BY started_at DESC
			OFFSET $2
		)`

	tag, err := r.db.Exec(ctx, query, customerID, keepRuns)
	if err != nil {
		return 0, fmt.Errorf("failed to prune run logs: %w", err)
	}

	return tag.RowsAffected(), nil
}

// scanDiscoveryRun reads one run row, decoding the JSONB columns.
func scanDiscoveryRun(row pgx.Row) (*models.DiscoveryRun, error) {
	var run models.DiscoveryRun
	var stages, warnings, errs, summary []byte

	err := row.Scan(&run.ID, &run.CustomerID, &run.Status, &stages, &warnings,
		&errs, &summary, &run.ErrorMessage, &run.StartedAt, &run.CompletedAt)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(stages, &run.Stages); err != nil {
		return nil, fmt.Errorf("unmarshal stages: %w", err)
	}
	if err := json.Unmarshal(warnings, &run.Warnings); err != nil {
		return nil, fmt.Errorf("unmarshal warnings: %w", err)
	}
	if err := json.Unmarshal(errs, &run.Errors); err != nil {
		return nil, fmt.Errorf("unmarshal errors: %w", err)
	}
	if err := json.Unmarshal(summary, &run.Summary); err != nil {
		return nil, fmt.Errorf("unmarshal summary: %w", err)
	}

	return &run, nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
