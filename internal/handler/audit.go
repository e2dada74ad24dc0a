package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/clockbridge/clockbridge/internal/model"
)

// QueryRunLister defines the interface for reading the query audit log.
type QueryRunLister interface {
	ListQueryRuns(ctx context.Context, limit int) ([]model.QueryRun, error)
}

// AuditHandler exposes the device query audit log.
type AuditHandler struct {
	runs   QueryRunLister
	logger *slog.Logger
}

// NewAuditHandler creates a new AuditHandler.
// A nil lister means the audit log is disabled and the endpoint answers 503.
func NewAuditHandler(runs QueryRunLister, logger *slog.Logger) *AuditHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuditHandler{
		runs:   runs,
		logger: logger,
	}
}

// QueryRuns handles GET /audit/query-runs?limit=N.
func (h *AuditHandler) QueryRuns(w http.ResponseWriter, r *http.Request) {
	if h.runs == nil {
		writeJSON(w, http.StatusServiceUnavailable, model.Fail("audit log not configured", ""))
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 0 {
			writeJSON(w, http.StatusBadRequest, model.Fail("limit must be a non-negative integer", ""))
			return
		}
		limit = parsed
	}

	runs, err := h.runs.ListQueryRuns(r.Context(), limit)
	if err != nil {
		h.logger.Error("audit_list_failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, model.Fail(ProcessingErrorMessage, err.Error()))
		return
	}

	message := fmt.Sprintf("%d query runs retrieved", len(runs))
	writeJSON(w, http.StatusOK, model.Ok(message, runs))
}
