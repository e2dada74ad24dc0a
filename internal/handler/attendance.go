package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/clockbridge/clockbridge/internal/model"
	"github.com/clockbridge/clockbridge/internal/service"
)

// AttendanceHandler handles HTTP requests for attendance logs.
type AttendanceHandler struct {
	svc    *service.AttendanceService
	logger *slog.Logger
}

// NewAttendanceHandler creates a new AttendanceHandler.
func NewAttendanceHandler(svc *service.AttendanceService, logger *slog.Logger) *AttendanceHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AttendanceHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /attendance.
func (h *AttendanceHandler) List(w http.ResponseWriter, r *http.Request) {
	records, err := h.svc.ListAttendance(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, model.OperationAttendance, err)
		return
	}

	h.logger.Info("attendance_listed", "count", len(records))

	message := fmt.Sprintf("%d records retrieved", len(records))
	writeJSON(w, http.StatusOK, model.Ok(message, records))
}

// ByDate handles GET /attendance/by-date?start=YYYY-MM-DD&end=YYYY-MM-DD.
func (h *AttendanceHandler) ByDate(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	start := strings.TrimSpace(query.Get("start"))
	end := strings.TrimSpace(query.Get("end"))

	records, err := h.svc.AttendanceBetween(r.Context(), start, end)
	if err != nil {
		writeServiceError(w, h.logger, model.OperationAttendance, err)
		return
	}

	h.logger.Info("attendance_filtered",
		"start", start,
		"end", end,
		"count", len(records),
	)

	message := fmt.Sprintf("%d records found between %s and %s", len(records), start, end)
	writeJSON(w, http.StatusOK, model.Ok(message, records))
}
