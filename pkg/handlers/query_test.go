package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/services"
	enginesql "github.com/lucerna-health/lucerna-engine/pkg/sql"
)

type mockPipeline struct {
	planFunc func(ctx context.Context, question string) (*services.QueryPlan, error)
}

var _ services.QueryPipeline = (*mockPipeline)(nil)

func (m *mockPipeline) PlanQuery(ctx context.Context, question string) (*services.QueryPlan, error) {
	return m.planFunc(ctx, question)
}

func queryMux(pipeline services.QueryPipeline) *http.ServeMux {
	mux := http.NewServeMux()
	NewQueryHandler(pipeline, zap.NewNop()).RegisterRoutes(mux)
	return mux
}

func TestPlanSuccess(t *testing.T) {
	pipeline := &mockPipeline{
		planFunc: func(ctx context.Context, question string) (*services.QueryPlan, error) {
			return &services.QueryPlan{
				Question: question,
				Verdict:  enginesql.VerdictPass,
				Strategy: services.StrategyAuto,
				SQL:      "WITH patient_base AS (SELECT 1)\nSELECT * FROM patient_base",
			}, nil
		},
	}
	mux := queryMux(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/query/plan",
		strings.NewReader(`{"question": "How many patients?"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var plan services.QueryPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, "How many patients?", plan.Question)
	assert.Equal(t, enginesql.VerdictPass, plan.Verdict)
	assert.NotEmpty(t, plan.SQL)
}

func TestPlanClarifyIsStillOK(t *testing.T) {
	pipeline := &mockPipeline{
		planFunc: func(ctx context.Context, question string) (*services.QueryPlan, error) {
			return &services.QueryPlan{
				Question: question,
				Verdict:  enginesql.VerdictClarify,
				Reasons:  []string{`placeholder {woundType} has no value`},
			}, nil
		},
	}
	mux := queryMux(pipeline)

	req := httptest.NewRequest(http.MethodPost, "/api/query/plan",
		strings.NewReader(`{"question": "Show healing trends"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	// Clarify is an answer, not a transport failure.
	require.Equal(t, http.StatusOK, rec.Code)

	var plan services.QueryPlan
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &plan))
	assert.Equal(t, enginesql.VerdictClarify, plan.Verdict)
	assert.NotEmpty(t, plan.Reasons)
}

func TestPlanBadRequest(t *testing.T) {
	mux := queryMux(&mockPipeline{
		planFunc: func(ctx context.Context, question string) (*services.QueryPlan, error) {
			t.Fatal("pipeline must not be called for invalid bodies")
			return nil, nil
		},
	})

	for _, body := range []string{"", "{not json", `{"question": ""}`, `{"question": "   "}`} {
		req := httptest.NewRequest(http.MethodPost, "/api/query/plan", strings.NewReader(body))
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, "body=%q", body)
	}
}

func TestPlanClassificationFailure(t *testing.T) {
	mux := queryMux(&mockPipeline{
		planFunc: func(ctx context.Context, question string) (*services.QueryPlan, error) {
			return nil, errors.New("provider unavailable")
		},
	})

	req := httptest.NewRequest(http.MethodPost, "/api/query/plan",
		strings.NewReader(`{"question": "How many patients?"}`))
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadGateway, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "classification_failed", body["error"])
}
