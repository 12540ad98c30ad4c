package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
)

type batteryService interface {
	Get(ctx context.Context, principal application.Principal) (application.BatteryLevel, error)
	Update(ctx context.Context, principal application.Principal, value int) (application.BatteryLevel, error)
}

type BatteryHandler struct {
	service   batteryService
	responder responder
	logger    *slog.Logger
}

func NewBatteryHandler(service batteryService, logger *slog.Logger) *BatteryHandler {
	base := defaultLogger(logger)
	return &BatteryHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *BatteryHandler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	level, err := h.service.Get(r.Context(), principal)
	if err != nil {
		handlerLogger(r.Context(), h.logger, "BatteryHandler", "Get", "principal_id", principal.UserID).
			WarnContext(r.Context(), "battery level read failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatteryDTO(level))
}

func (h *BatteryHandler) Update(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := handlerLogger(r.Context(), h.logger, "BatteryHandler", "Update", "principal_id", principal.UserID)

	var req batteryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Level == nil {
		logger.WarnContext(r.Context(), "failed to decode battery request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	level, err := h.service.Update(r.Context(), principal, *req.Level)
	if err != nil {
		logger.WarnContext(r.Context(), "battery level update failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "battery level updated", "level", level.Level)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toBatteryDTO(level))
}

type batteryRequest struct {
	Level *int `json:"level"`
}

type batteryDTO struct {
	Level     int    `json:"level"`
	UpdatedAt string `json:"updated_at"`
	UpdatedBy string `json:"updated_by"`
}

func toBatteryDTO(level application.BatteryLevel) batteryDTO {
	return batteryDTO{
		Level:     level.Level,
		UpdatedAt: level.UpdatedAt.UTC().Format(time.RFC3339),
		UpdatedBy: level.UpdatedBy,
	}
}
