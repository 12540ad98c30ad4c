package http

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/calendar"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

const defaultHeartbeatInterval = 25 * time.Second

type calendarView interface {
	Month(year int, month time.Month) (application.MonthView, error)
	Day(date string) (application.DayView, error)
	Reservations() ([]scheduler.Reservation, uint64)
	Watch() (<-chan struct{}, func())
	Location() *time.Location
}

type CalendarHandler struct {
	view      calendarView
	now       func() time.Time
	heartbeat time.Duration
	responder responder
	logger    *slog.Logger
}

func NewCalendarHandler(view calendarView, now func() time.Time, logger *slog.Logger) *CalendarHandler {
	base := defaultLogger(logger)
	if now == nil {
		now = time.Now
	}
	return &CalendarHandler{
		view:      view,
		now:       now,
		heartbeat: defaultHeartbeatInterval,
		responder: newResponder(base),
		logger:    base,
	}
}

// WithHeartbeat overrides the interval of SSE keep-alive comments.
func (h *CalendarHandler) WithHeartbeat(interval time.Duration) *CalendarHandler {
	if interval > 0 {
		h.heartbeat = interval
	}
	return h
}

func (h *CalendarHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "CalendarHandler", operation, attrs...)
}

// Month serves /calendar/month?year=&month=. Missing values default to the
// current month.
func (h *CalendarHandler) Month(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.view == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	today := h.now().In(h.view.Location())
	year, month := today.Year(), today.Month()

	query := r.URL.Query()
	if raw := query.Get("year"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		year = parsed
	}
	if raw := query.Get("month"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidQuery)
			return
		}
		month = time.Month(parsed)
	}

	view, err := h.view.Month(year, month)
	if err != nil {
		h.log(r.Context(), "Month", "year", year, "month", int(month)).WarnContext(r.Context(), "month view rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMonthDTO(view))
}

// Day serves /calendar/day?date=YYYY-MM-DD.
func (h *CalendarHandler) Day(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.view == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	date := r.URL.Query().Get("date")
	view, err := h.view.Day(date)
	if err != nil {
		h.log(r.Context(), "Day", "date", date).WarnContext(r.Context(), "day view rejected", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	principal, _ := PrincipalFromContext(r.Context())
	h.responder.writeJSON(r.Context(), w, http.StatusOK, dayDTO{
		Date:         view.Date.Format(time.DateOnly),
		Reservations: toReservationDTOs(principal, view.Reservations, h.view.Location()),
		Revision:     view.Revision,
	})
}

// Stream pushes the full reservation snapshot as a "snapshot" event on
// connect and after every change until the client disconnects.
func (h *CalendarHandler) Stream(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.view == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	ctx := r.Context()
	principal, _ := PrincipalFromContext(ctx)
	logger := h.log(ctx, "Stream", "principal_id", principal.UserID)

	rc := http.NewResponseController(w)
	// The server write timeout would otherwise cut long lived streams.
	_ = rc.SetWriteDeadline(time.Time{})

	changes, stop := h.view.Watch()
	defer stop()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	if err := h.sendSnapshot(w, rc, principal); err != nil {
		logger.WarnContext(ctx, "stream write failed", "error", err)
		return
	}
	logger.InfoContext(ctx, "stream opened")

	ticker := time.NewTicker(h.heartbeat)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "stream closed")
			return
		case _, ok := <-changes:
			if !ok {
				logger.InfoContext(ctx, "calendar stopped; closing stream")
				return
			}
			if err := h.sendSnapshot(w, rc, principal); err != nil {
				logger.WarnContext(ctx, "stream write failed", "error", err)
				return
			}
		case <-ticker.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			if err := rc.Flush(); err != nil {
				return
			}
		}
	}
}

func (h *CalendarHandler) sendSnapshot(w http.ResponseWriter, rc *http.ResponseController, principal application.Principal) error {
	reservations, revision := h.view.Reservations()
	payload, err := json.Marshal(listReservationsResponse{
		Reservations: toReservationDTOs(principal, reservations, h.view.Location()),
		Revision:     revision,
	})
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "id: %d\nevent: snapshot\ndata: %s\n\n", revision, payload); err != nil {
		return err
	}
	return rc.Flush()
}

type monthRef struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type cellDTO struct {
	Date            string `json:"date"`
	Day             int    `json:"day"`
	IsCurrentMonth  bool   `json:"is_current_month"`
	IsToday         bool   `json:"is_today"`
	HasReservations bool   `json:"has_reservations"`
}

type monthDTO struct {
	Year     int         `json:"year"`
	Month    int         `json:"month"`
	Weeks    [][]cellDTO `json:"weeks"`
	Previous monthRef    `json:"previous"`
	Next     monthRef    `json:"next"`
	Revision uint64      `json:"revision"`
}

type dayDTO struct {
	Date         string           `json:"date"`
	Reservations []reservationDTO `json:"reservations"`
	Revision     uint64           `json:"revision"`
}

func toMonthDTO(view application.MonthView) monthDTO {
	weeks := calendar.Weeks(view.Cells)
	out := make([][]cellDTO, 0, len(weeks))
	for _, week := range weeks {
		row := make([]cellDTO, 0, len(week))
		for _, cell := range week {
			row = append(row, cellDTO{
				Date:            cell.Date.Format(time.DateOnly),
				Day:             cell.Date.Day(),
				IsCurrentMonth:  cell.IsCurrentMonth,
				IsToday:         cell.IsToday,
				HasReservations: cell.HasReservations,
			})
		}
		out = append(out, row)
	}

	return monthDTO{
		Year:     view.Year,
		Month:    int(view.Month),
		Weeks:    out,
		Previous: monthRef{Year: view.PrevYear, Month: int(view.PrevMonth)},
		Next:     monthRef{Year: view.NextYear, Month: int(view.NextMonth)},
		Revision: view.Revision,
	}
}
