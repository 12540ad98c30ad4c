package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

type bookingService interface {
	Submit(ctx context.Context, actor application.Principal, form application.BookingForm) (application.BookingResult, error)
	DeleteReservation(ctx context.Context, actor application.Principal, id string, confirmed bool) error
}

type reservationSnapshot interface {
	Reservations() ([]scheduler.Reservation, uint64)
	Location() *time.Location
}

type ReservationHandler struct {
	bookings  bookingService
	snapshot  reservationSnapshot
	responder responder
	logger    *slog.Logger
}

func NewReservationHandler(bookings bookingService, snapshot reservationSnapshot, logger *slog.Logger) *ReservationHandler {
	base := defaultLogger(logger)
	return &ReservationHandler{bookings: bookings, snapshot: snapshot, responder: newResponder(base), logger: base}
}

func (h *ReservationHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "ReservationHandler", operation, attrs...)
}

// List returns the latest live snapshot, ordered by start.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.snapshot == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	reservations, revision := h.snapshot.Reservations()

	h.log(r.Context(), "List", "principal_id", principal.UserID).
		DebugContext(r.Context(), "reservations listed", "result_count", len(reservations), "revision", revision)
	h.responder.writeJSON(r.Context(), w, http.StatusOK, listReservationsResponse{
		Reservations: toReservationDTOs(principal, reservations, h.snapshot.Location()),
		Revision:     revision,
	})
}

func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	h.submit(w, r, "Create", "")
}

func (h *ReservationHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}
	h.submit(w, r, "Update", id)
}

func (h *ReservationHandler) submit(w http.ResponseWriter, r *http.Request, operation, reservationID string) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())

	var req reservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.log(r.Context(), operation, "principal_id", principal.UserID, "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode reservation request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	form := req.toForm()
	form.ReservationID = reservationID
	logger := h.log(r.Context(), operation, "principal_id", principal.UserID, "reservation_id", reservationID)

	result, err := h.bookings.Submit(r.Context(), principal, form)
	if err != nil {
		logger.WarnContext(r.Context(), "reservation submission failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	status := http.StatusCreated
	if form.EditMode() {
		status = http.StatusOK
	}

	logger.With("reservation_id", result.Reservation.ID).InfoContext(r.Context(), "reservation saved")
	h.responder.writeJSON(r.Context(), w, status, reservationResponse{
		Reservation: toReservationDTO(principal, result.Reservation, h.location()),
		Form:        fromForm(result.Form),
		Closed:      result.Closed,
	})
}

func (h *ReservationHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.bookings == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidID)
		return
	}

	confirmed := false
	if raw := r.URL.Query().Get("confirm"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		confirmed = parsed
	}

	principal, _ := PrincipalFromContext(r.Context())
	logger := h.log(r.Context(), "Delete", "principal_id", principal.UserID, "reservation_id", id)

	if err := h.bookings.DeleteReservation(r.Context(), principal, id, confirmed); err != nil {
		logger.WarnContext(r.Context(), "reservation delete failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "reservation deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

func (h *ReservationHandler) location() *time.Location {
	if h.snapshot == nil {
		return time.UTC
	}
	return h.snapshot.Location()
}

type reservationRequest struct {
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Description   string `json:"description"`
	TargetOwnerID string `json:"target_owner_id"`
}

func (r reservationRequest) toForm() application.BookingForm {
	return application.BookingForm{
		Date:          r.Date,
		StartTime:     r.StartTime,
		EndTime:       r.EndTime,
		Description:   r.Description,
		TargetOwnerID: strings.TrimSpace(r.TargetOwnerID),
	}
}

func fromForm(form application.BookingForm) reservationRequest {
	return reservationRequest{
		Date:          form.Date,
		StartTime:     form.StartTime,
		EndTime:       form.EndTime,
		Description:   form.Description,
		TargetOwnerID: form.TargetOwnerID,
	}
}

type reservationResponse struct {
	Reservation reservationDTO     `json:"reservation"`
	Form        reservationRequest `json:"form"`
	Closed      bool               `json:"closed"`
}

type listReservationsResponse struct {
	Reservations []reservationDTO `json:"reservations"`
	Revision     uint64           `json:"revision"`
}

type reservationDTO struct {
	ID               string `json:"id"`
	OwnerID          string `json:"owner_id"`
	OwnerDisplayName string `json:"owner_display_name"`
	Start            string `json:"start"`
	End              string `json:"end"`
	Description      string `json:"description"`
	Version          int64  `json:"version"`
	CanModify        bool   `json:"can_modify"`
}

func toReservationDTO(principal application.Principal, res scheduler.Reservation, loc *time.Location) reservationDTO {
	if loc == nil {
		loc = time.UTC
	}
	return reservationDTO{
		ID:               res.ID,
		OwnerID:          res.OwnerID,
		OwnerDisplayName: res.OwnerDisplayName,
		Start:            res.Start.In(loc).Format(time.RFC3339),
		End:              res.End.In(loc).Format(time.RFC3339),
		Description:      res.Description,
		Version:          res.Version,
		CanModify:        application.CanModify(principal, res),
	}
}

func toReservationDTOs(principal application.Principal, reservations []scheduler.Reservation, loc *time.Location) []reservationDTO {
	out := make([]reservationDTO, 0, len(reservations))
	for _, res := range reservations {
		out = append(out, toReservationDTO(principal, res, loc))
	}
	return out
}
