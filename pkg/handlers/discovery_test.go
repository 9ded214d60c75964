package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/services"
)

// mockOrchestrator is a configurable DiscoveryOrchestrator for handler tests.
type mockOrchestrator struct {
	runFunc     func(ctx context.Context, code string, stages models.StageSelection) (*models.DiscoveryRun, error)
	historyFunc func(ctx context.Context, code string, limit int) ([]*models.DiscoveryRun, error)

	lastStages models.StageSelection
	lastLimit  int
}

var _ services.DiscoveryOrchestrator = (*mockOrchestrator)(nil)

func (m *mockOrchestrator) RunDiscovery(ctx context.Context, code string, stages models.StageSelection) (*models.DiscoveryRun, error) {
	m.lastStages = stages
	if m.runFunc != nil {
		return m.runFunc(ctx, code, stages)
	}
	return &models.DiscoveryRun{ID: uuid.New(), Status: models.RunStatusSucceeded, Stages: stages}, nil
}

func (m *mockOrchestrator) RunDiscoveryWithProgress(ctx context.Context, code string, stages models.StageSelection, sink services.ProgressSink) (*models.DiscoveryRun, error) {
	return m.RunDiscovery(ctx, code, stages)
}

func (m *mockOrchestrator) History(ctx context.Context, code string, limit int) ([]*models.DiscoveryRun, error) {
	m.lastLimit = limit
	if m.historyFunc != nil {
		return m.historyFunc(ctx, code, limit)
	}
	return []*models.DiscoveryRun{}, nil
}

func discoveryMux(orch services.DiscoveryOrchestrator) *http.ServeMux {
	mux := http.NewServeMux()
	NewDiscoveryHandler(orch, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestRunDiscoverySuccess(t *testing.T) {
	orch := &mockOrchestrator{}
	mux := discoveryMux(orch)

	req := httptest.NewRequest(http.MethodPost, "/api/customers/acme-wound/discovery", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var run models.DiscoveryRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, models.RunStatusSucceeded, run.Status)

	// An empty body runs every stage.
	assert.Equal(t, models.AllStages(), orch.lastStages)
}

func TestRunDiscoveryStageSelectionBody(t *testing.T) {
	orch := &mockOrchestrator{}
	mux := discoveryMux(orch)

	body := `{"forms": true, "non_form_schema": false, "relationships": true, "assessment_types": false, "logging": true}`
	req := httptest.NewRequest(http.MethodPost, "/api/customers/acme-wound/discovery", strings.NewReader(body))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, orch.lastStages.Forms)
	assert.False(t, orch.lastStages.NonFormSchema)
	assert.True(t, orch.lastStages.Relationships)
	assert.False(t, orch.lastStages.AssessmentTypes)
}

func TestRunDiscoveryInvalidBody(t *testing.T) {
	mux := discoveryMux(&mockOrchestrator{})

	req := httptest.NewRequest(http.MethodPost, "/api/customers/acme-wound/discovery", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRunDiscoveryErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"unknown customer", apperrors.ErrCustomerNotFound, http.StatusNotFound, "customer_not_found"},
		{"no connection string", apperrors.ErrNoConnectionString, http.StatusConflict, "no_connection_string"},
		{"orchestrator failure", errors.New("boom"), http.StatusInternalServerError, "discovery_failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			orch := &mockOrchestrator{
				runFunc: func(ctx context.Context, code string, stages models.StageSelection) (*models.DiscoveryRun, error) {
					return nil, tt.err
				},
			}
			mux := discoveryMux(orch)

			req := httptest.NewRequest(http.MethodPost, "/api/customers/ghost/discovery", nil)
			rec := httptest.NewRecorder()
			mux.ServeHTTP(rec, req)

			require.Equal(t, tt.wantStatus, rec.Code)

			var body map[string]string
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
			assert.Equal(t, tt.wantCode, body["error"])
		})
	}
}

func TestHistoryDefaultLimit(t *testing.T) {
	orch := &mockOrchestrator{}
	mux := discoveryMux(orch)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/acme-wound/discovery/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, defaultHistoryLimit, orch.lastLimit)
}

func TestHistoryCustomLimit(t *testing.T) {
	orch := &mockOrchestrator{}
	mux := discoveryMux(orch)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/acme-wound/discovery/history?limit=3", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 3, orch.lastLimit)
}

func TestHistoryInvalidLimit(t *testing.T) {
	mux := discoveryMux(&mockOrchestrator{})

	for _, limit := range []string{"0", "-2", "abc"} {
		req := httptest.NewRequest(http.MethodGet, "/api/customers/acme-wound/discovery/history?limit="+limit, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "limit=%s", limit)
	}
}

func TestHistoryUnknownCustomer(t *testing.T) {
	orch := &mockOrchestrator{
		historyFunc: func(ctx context.Context, code string, limit int) ([]*models.DiscoveryRun, error) {
			return nil, apperrors.ErrCustomerNotFound
		},
	}
	mux := discoveryMux(orch)

	req := httptest.NewRequest(http.MethodGet, "/api/customers/ghost/discovery/history", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
