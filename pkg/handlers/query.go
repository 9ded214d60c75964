package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/services"
)

// QueryHandler exposes question-to-SQL planning over HTTP.
type QueryHandler struct {
	pipeline services.QueryPipeline
	logger   *zap.Logger
}

func NewQueryHandler(pipeline services.QueryPipeline, logger *zap.Logger) *QueryHandler {
	return &QueryHandler{pipeline: pipeline, logger: logger.Named("query_handler")}
}

// RegisterRoutes registers the query routes on the given mux.
func (h *QueryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/query/plan", h.Plan)
}

// PlanRequest is the body for POST /api/query/plan.
type PlanRequest struct {
	Question string `json:"question"`
}

// Plan compiles a question into a validated SQL plan. Clarify and reject
// verdicts are successful responses; the caller branches on the verdict.
func (h *QueryHandler) Plan(w http.ResponseWriter, r *http.Request) {
	var req PlanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || strings.TrimSpace(req.Question) == "" {
		if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Body must contain a non-empty question"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	plan, err := h.pipeline.PlanQuery(r.Context(), req.Question)
	if err != nil {
		h.logger.Error("Query planning failed", zap.Error(err))
		if err := ErrorResponse(w, http.StatusBadGateway, "classification_failed", "Intent classification failed"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, plan); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
