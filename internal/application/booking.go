package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

// ReservationStore is the write path of the store adapter.
type ReservationStore interface {
	Get(ctx context.Context, id string) (scheduler.Reservation, error)
	Create(ctx context.Context, res scheduler.Reservation) (scheduler.Reservation, error)
	Update(ctx context.Context, id string, version int64, start, end time.Time, description string) (scheduler.Reservation, error)
	Delete(ctx context.Context, id string) error
}

// ConflictChecker reports whether a candidate interval overlaps a stored reservation.
type ConflictChecker interface {
	HasConflict(ctx context.Context, candidate scheduler.Range, excludeID string) (bool, error)
}

// OutcomeRecorder counts booking outcomes per operation.
type OutcomeRecorder interface {
	RecordBookingOutcome(operation, outcome string)
}

// State is a step of a booking submission.
type State int

const (
	StateIdle State = iota
	StateValidating
	StateConflictChecking
	StatePersisting
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateValidating:
		return "validating"
	case StateConflictChecking:
		return "conflict_checking"
	case StatePersisting:
		return "persisting"
	case StateSucceeded:
		return "succeeded"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	dateLayout      = "2006-01-02"
	timeOfDayLayout = "15:04"
)

// BookingForm is the user's input for one submission. ReservationID selects
// edit mode. TargetOwnerID is honored only for administrators creating a
// reservation.
type BookingForm struct {
	Date          string
	StartTime     string
	EndTime       string
	Description   string
	ReservationID string
	TargetOwnerID string
}

// EditMode reports whether the form edits an existing reservation.
func (f BookingForm) EditMode() bool {
	return strings.TrimSpace(f.ReservationID) != ""
}

// BookingResult reports where a submission ended. Form is what the caller
// should show next: a blanked form after a create, the untouched input after
// a failure. Closed is set when a successful edit closes the editor.
type BookingResult struct {
	Reservation scheduler.Reservation
	Form        BookingForm
	Closed      bool
	Trace       []State
}

// BookingWorkflow creates and edits reservations. Each submission runs
// Idle, Validating, ConflictChecking and Persisting in order and ends in
// Succeeded or Failed before returning to Idle.
type BookingWorkflow struct {
	store     ReservationStore
	conflicts ConflictChecker
	users     UserDirectory
	recorder  OutcomeRecorder
	location  *time.Location
	now       func() time.Time
	logger    *slog.Logger

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewBookingWorkflow wires the workflow. Dates and times of day are read in loc.
func NewBookingWorkflow(store ReservationStore, conflicts ConflictChecker, users UserDirectory, recorder OutcomeRecorder, loc *time.Location, now func() time.Time) *BookingWorkflow {
	return NewBookingWorkflowWithLogger(store, conflicts, users, recorder, loc, now, nil)
}

// NewBookingWorkflowWithLogger wires the workflow with a logger.
func NewBookingWorkflowWithLogger(store ReservationStore, conflicts ConflictChecker, users UserDirectory, recorder OutcomeRecorder, loc *time.Location, now func() time.Time, logger *slog.Logger) *BookingWorkflow {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &BookingWorkflow{
		store:     store,
		conflicts: conflicts,
		users:     users,
		recorder:  recorder,
		location:  loc,
		now:       now,
		logger:    defaultLogger(logger),
		inFlight:  make(map[string]struct{}),
	}
}

func (w *BookingWorkflow) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, w.logger, "BookingWorkflow", operation, attrs...)
}

// Submit runs one create or edit submission for actor. A second submission
// by the same actor while one is in flight fails with ErrBusy.
func (w *BookingWorkflow) Submit(ctx context.Context, actor Principal, form BookingForm) (result BookingResult, err error) {
	if w == nil {
		err = fmt.Errorf("BookingWorkflow is nil")
		return
	}
	if w.store == nil || w.conflicts == nil {
		err = fmt.Errorf("booking workflow not configured")
		return
	}

	operation := "create"
	if form.EditMode() {
		operation = "update"
	}

	logger := w.loggerWith(ctx, "Submit",
		"principal_id", actor.UserID,
		"mode", operation,
		"reservation_id", form.ReservationID,
	)

	if !w.acquire(actor.UserID) {
		result = BookingResult{Form: form, Trace: []State{StateIdle}}
		err = ErrBusy
		logger.InfoContext(ctx, "booking rejected while another is in flight")
		return
	}
	defer w.release(actor.UserID)

	run := &bookingRun{logger: logger}
	run.enter(ctx, StateIdle)

	defer func() {
		if err != nil {
			run.enter(ctx, StateFailed)
			result = BookingResult{Form: form}
			w.record(operation, ErrorKind(err))
			logger.WarnContext(ctx, "booking failed", "error", err, "error_kind", ErrorKind(err))
		} else {
			run.enter(ctx, StateSucceeded)
			w.record(operation, "succeeded")
			logger.With("reservation_id", result.Reservation.ID).InfoContext(ctx, "booking succeeded")
		}
		run.enter(ctx, StateIdle)
		result.Trace = run.trace
	}()

	if !CanBook(actor) {
		err = ErrUnauthorized
		return
	}

	var existing scheduler.Reservation
	editing := form.EditMode()
	if editing {
		existing, err = w.store.Get(ctx, strings.TrimSpace(form.ReservationID))
		if err != nil {
			err = w.storageError(ctx, logger, err)
			return
		}
		if existing.StartedBefore(w.now()) {
			err = ErrPastReservation
			return
		}
		if !CanModify(actor, existing) {
			err = ErrUnauthorized
			return
		}
	}

	run.enter(ctx, StateValidating)
	var candidate scheduler.Range
	candidate, err = w.parseForm(form)
	if err != nil {
		return
	}

	run.enter(ctx, StateConflictChecking)
	var conflict bool
	conflict, err = w.conflicts.HasConflict(ctx, candidate, existing.ID)
	if err != nil {
		err = w.storageError(ctx, logger, err)
		return
	}
	if conflict {
		err = ErrConflict
		return
	}

	run.enter(ctx, StatePersisting)
	description := sanitizeText(form.Description)

	if editing {
		var updated scheduler.Reservation
		updated, err = w.store.Update(ctx, existing.ID, existing.Version, candidate.Start, candidate.End, description)
		if err != nil {
			err = w.storageError(ctx, logger, err)
			return
		}
		result = BookingResult{Reservation: updated, Closed: true}
		return
	}

	var ownerID, ownerName string
	ownerID, ownerName, err = w.resolveOwner(ctx, actor, form.TargetOwnerID)
	if err != nil {
		return
	}

	var created scheduler.Reservation
	created, err = w.store.Create(ctx, scheduler.Reservation{
		OwnerID:          ownerID,
		OwnerDisplayName: ownerName,
		Start:            candidate.Start,
		End:              candidate.End,
		Description:      description,
		CreatedAt:        w.now(),
	})
	if err != nil {
		err = w.storageError(ctx, logger, err)
		return
	}

	result = BookingResult{
		Reservation: created,
		Form:        BookingForm{Date: form.Date, TargetOwnerID: form.TargetOwnerID},
	}
	return
}

// DeleteReservation removes a reservation owned by actor, or any reservation
// when actor is an administrator. confirmed must be set by the caller once
// the user has confirmed the deletion.
func (w *BookingWorkflow) DeleteReservation(ctx context.Context, actor Principal, id string, confirmed bool) (err error) {
	if w == nil {
		return fmt.Errorf("BookingWorkflow is nil")
	}
	if w.store == nil {
		return fmt.Errorf("booking workflow not configured")
	}

	logger := w.loggerWith(ctx, "DeleteReservation",
		"principal_id", actor.UserID,
		"reservation_id", id,
	)
	defer func() {
		if err != nil {
			w.record("delete", ErrorKind(err))
			logger.WarnContext(ctx, "delete failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		w.record("delete", "succeeded")
		logger.InfoContext(ctx, "reservation deleted")
	}()

	if !actor.Active() {
		return ErrUnauthorized
	}

	existing, err := w.store.Get(ctx, strings.TrimSpace(id))
	if err != nil {
		return w.storageError(ctx, logger, err)
	}
	if !CanModify(actor, existing) {
		return ErrUnauthorized
	}
	if !confirmed {
		return ErrConfirmationRequired
	}

	if err := w.store.Delete(ctx, existing.ID); err != nil {
		return w.storageError(ctx, logger, err)
	}
	return nil
}

func (w *BookingWorkflow) parseForm(form BookingForm) (scheduler.Range, error) {
	vErr := &ValidationError{}

	date := strings.TrimSpace(form.Date)
	startText := strings.TrimSpace(form.StartTime)
	endText := strings.TrimSpace(form.EndTime)

	var day time.Time
	if date == "" {
		vErr.add("date", "date is required")
	} else if parsed, err := time.Parse(dateLayout, date); err != nil {
		vErr.add("date", "date is invalid")
	} else {
		day = parsed
	}

	start := parseTimeOfDay(vErr, "start_time", "start time", startText)
	end := parseTimeOfDay(vErr, "end_time", "end time", endText)
	if vErr.HasErrors() {
		return scheduler.Range{}, vErr
	}

	candidate := scheduler.Range{
		Start: combine(day, start, w.location),
		End:   combine(day, end, w.location),
	}
	if !candidate.Valid() {
		vErr.add("end_time", "end must be after start")
		return scheduler.Range{}, vErr
	}
	return candidate, nil
}

func parseTimeOfDay(vErr *ValidationError, field, label, value string) time.Time {
	if value == "" {
		vErr.add(field, label+" is required")
		return time.Time{}
	}
	parsed, err := time.Parse(timeOfDayLayout, value)
	if err != nil {
		vErr.add(field, label+" is invalid")
		return time.Time{}
	}
	return parsed
}

// combine places clock on the civil date of day in loc.
func combine(day, clock time.Time, loc *time.Location) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), clock.Hour(), clock.Minute(), 0, 0, loc)
}

func (w *BookingWorkflow) resolveOwner(ctx context.Context, actor Principal, targetID string) (string, string, error) {
	targetID = strings.TrimSpace(targetID)
	if !actor.IsAdmin() || targetID == "" || targetID == actor.UserID {
		return actor.UserID, actor.Username, nil
	}
	if w.users == nil {
		return "", "", fmt.Errorf("user directory not configured")
	}

	target, err := w.users.LookupUser(ctx, targetID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", "", &ValidationError{FieldErrors: map[string]string{"target_owner_id": "selected user does not exist"}}
		}
		return "", "", w.storageError(ctx, w.logger, err)
	}
	if target.Disabled {
		return "", "", &ValidationError{FieldErrors: map[string]string{"target_owner_id": "selected user is disabled"}}
	}
	return target.ID, target.Username, nil
}

// storageError maps adapter failures to workflow signals. Anything that is
// not a missing or stale record becomes ErrSaveFailed and the cause is logged.
func (w *BookingWorkflow) storageError(ctx context.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, ErrNotFound):
		return ErrNotFound
	case errors.Is(err, persistence.ErrStaleVersion):
		return ErrStaleReservation
	}
	logger.ErrorContext(ctx, "reservation storage failed", "error", err)
	return ErrSaveFailed
}

func (w *BookingWorkflow) acquire(actorID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, busy := w.inFlight[actorID]; busy {
		return false
	}
	w.inFlight[actorID] = struct{}{}
	return true
}

func (w *BookingWorkflow) release(actorID string) {
	w.mu.Lock()
	delete(w.inFlight, actorID)
	w.mu.Unlock()
}

// Busy reports whether actorID has a submission in flight.
func (w *BookingWorkflow) Busy(actorID string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	_, busy := w.inFlight[actorID]
	return busy
}

func (w *BookingWorkflow) record(operation, outcome string) {
	if w.recorder != nil {
		w.recorder.RecordBookingOutcome(operation, outcome)
	}
}

type bookingRun struct {
	logger *slog.Logger
	trace  []State
}

func (r *bookingRun) enter(ctx context.Context, state State) {
	r.trace = append(r.trace, state)
	r.logger.DebugContext(ctx, "booking state", "state", state.String())
}
