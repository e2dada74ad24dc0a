// Package handler provides HTTP request handlers.
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clockbridge/clockbridge/internal/model"
)

// Version is reported by the index endpoint.
const Version = "0.1.0"

// ProcessingErrorMessage is the envelope message for any device failure.
const ProcessingErrorMessage = "processing error"

// Handler serves the index and fallback routes.
type Handler struct{}

// New creates a new Handler instance.
func New() *Handler {
	return &Handler{}
}

// Index lists the device endpoints.
// GET /
func (h *Handler) Index(w http.ResponseWriter, r *http.Request) {
	routes := []string{
		"/attendance",
		"/attendance/by-date?start=YYYY-MM-DD&end=YYYY-MM-DD",
		"/users",
	}
	writeJSON(w, http.StatusOK, model.Ok("clockbridge "+Version, routes))
}

// NotFound handles 404 responses.
func (h *Handler) NotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, model.Fail("resource not found", ""))
}

// MethodNotAllowed handles 405 responses.
func (h *Handler) MethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusMethodNotAllowed, model.Fail("method not allowed", ""))
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encode failure cannot change the response.
	_ = json.NewEncoder(w).Encode(data)
}

// writeServiceError maps service errors to HTTP responses.
// Validation failures become 400; everything else is a device failure and becomes 500.
func writeServiceError(w http.ResponseWriter, logger *slog.Logger, operation string, err error) {
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		writeJSON(w, http.StatusBadRequest, model.Fail(verr.Message, ""))
		return
	}

	logger.Error("device_request_failed",
		"operation", operation,
		"error", err,
	)
	writeJSON(w, http.StatusInternalServerError, model.Fail(ProcessingErrorMessage, err.Error()))
}
