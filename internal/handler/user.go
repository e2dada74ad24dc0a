package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/clockbridge/clockbridge/internal/model"
	"github.com/clockbridge/clockbridge/internal/service"
)

// UserHandler serves the device user roster.
// The device stores no department or organisation data and none is added.
type UserHandler struct {
	svc    *service.AttendanceService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(svc *service.AttendanceService, logger *slog.Logger) *UserHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &UserHandler{
		svc:    svc,
		logger: logger,
	}
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.svc.ListUsers(r.Context())
	if err != nil {
		writeServiceError(w, h.logger, model.OperationUsers, err)
		return
	}

	h.logger.Info("users_listed", "count", len(users))

	message := fmt.Sprintf("%d users retrieved", len(users))
	writeJSON(w, http.StatusOK, model.Ok(message, users))
}
