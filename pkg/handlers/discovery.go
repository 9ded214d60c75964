package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"go.uber.org/zap"

	"github.com/lucerna-health/lucerna-engine/pkg/apperrors"
	"github.com/lucerna-health/lucerna-engine/pkg/models"
	"github.com/lucerna-health/lucerna-engine/pkg/services"
)

const defaultHistoryLimit = 10

// DiscoveryHandler exposes discovery runs and run history over HTTP.
type DiscoveryHandler struct {
	orchestrator services.DiscoveryOrchestrator
	logger       *zap.Logger
}

func NewDiscoveryHandler(orchestrator services.DiscoveryOrchestrator, logger *zap.Logger) *DiscoveryHandler {
	return &DiscoveryHandler{orchestrator: orchestrator, logger: logger.Named("discovery_handler")}
}

// RegisterRoutes registers the discovery routes on the given mux.
func (h *DiscoveryHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/customers/{code}/discovery", h.RunDiscovery)
	mux.HandleFunc("GET /api/customers/{code}/discovery/history", h.History)
}

// RunDiscovery handles POST /api/customers/{code}/discovery. The optional
// JSON body selects stages; an empty body runs everything.
func (h *DiscoveryHandler) RunDiscovery(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	stages := models.AllStages()
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&stages); err != nil {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_body", "Invalid stage selection body"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
	}

	run, err := h.orchestrator.RunDiscovery(r.Context(), code, stages)
	if err != nil {
		switch {
		case errors.Is(err, apperrors.ErrCustomerNotFound):
			err = ErrorResponse(w, http.StatusNotFound, "customer_not_found", "Unknown customer code")
		case errors.Is(err, apperrors.ErrNoConnectionString):
			err = ErrorResponse(w, http.StatusConflict, "no_connection_string", "Customer has no analytical database configured")
		default:
			// A run record may still exist with its failure recorded; the
			// history endpoint stays the source of truth.
			h.logger.Error("Discovery run failed", zap.String("customer_code", code), zap.Error(err))
			err = ErrorResponse(w, http.StatusInternalServerError, "discovery_failed", "Discovery run failed")
		}
		if err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, run); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}

// History handles GET /api/customers/{code}/discovery/history?limit=N,
// newest runs first.
func (h *DiscoveryHandler) History(w http.ResponseWriter, r *http.Request) {
	code := r.PathValue("code")

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			if err := ErrorResponse(w, http.StatusBadRequest, "invalid_limit", "limit must be a positive integer"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		limit = parsed
	}

	runs, err := h.orchestrator.History(r.Context(), code, limit)
	if err != nil {
		if errors.Is(err, apperrors.ErrCustomerNotFound) {
			if err := ErrorResponse(w, http.StatusNotFound, "customer_not_found", "Unknown customer code"); err != nil {
				h.logger.Error("Failed to write error response", zap.Error(err))
			}
			return
		}
		h.logger.Error("Failed to load run history", zap.String("customer_code", code), zap.Error(err))
		if err := ErrorResponse(w, http.StatusInternalServerError, "history_failed", "Failed to load run history"); err != nil {
			h.logger.Error("Failed to write error response", zap.Error(err))
		}
		return
	}

	if err := WriteJSON(w, http.StatusOK, runs); err != nil {
		h.logger.Error("Failed to write response", zap.Error(err))
	}
}
