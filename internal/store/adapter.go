// Package store adapts the reservation repository into the reservation
// stream the calendar and the booking workflow consume.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

// SkipRecorder is told about every stored record dropped from a snapshot.
type SkipRecorder interface {
	RecordSkippedRecord()
}

// Listener receives the complete, start-ordered reservation set. Each call
// replaces whatever the listener received before.
type Listener func(snapshot []scheduler.Reservation)

// Adapter reads and writes reservations and fans full snapshots out to
// subscribers whenever the set changes.
type Adapter struct {
	repo     persistence.ReservationRepository
	notifier Notifier
	recorder SkipRecorder
	logger   *slog.Logger

	mu     sync.Mutex
	subs   map[uint64]*subscription
	nextID uint64
}

// NewAdapter wires an adapter. A nil notifier selects an in-process one.
func NewAdapter(repo persistence.ReservationRepository, notifier Notifier, recorder SkipRecorder, logger *slog.Logger) *Adapter {
	if notifier == nil {
		notifier = NewLocalNotifier()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Adapter{
		repo:     repo,
		notifier: notifier,
		recorder: recorder,
		logger:   logger.With("component", "reservation_store"),
		subs:     make(map[uint64]*subscription),
	}
}

// ListAll returns every valid reservation ordered by start. Records missing a
// time field are dropped and logged.
func (a *Adapter) ListAll(ctx context.Context) ([]scheduler.Reservation, error) {
	records, err := a.repo.ListReservations(ctx)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	reservations := a.fold(ctx, records)
	sortByStart(reservations)
	return reservations, nil
}

// QueryOverlapping returns the reservations whose start is before the
// candidate's end and whose end is after the candidate's start.
func (a *Adapter) QueryOverlapping(ctx context.Context, candidate scheduler.Range) ([]scheduler.Reservation, error) {
	records, err := a.repo.QueryReservations(ctx,
		persistence.Where(persistence.FieldStart, persistence.OpLess, candidate.End),
		persistence.Where(persistence.FieldEnd, persistence.OpGreater, candidate.Start),
	)
	if err != nil {
		if errors.Is(err, persistence.ErrPreconditionFailed) {
			return nil, fmt.Errorf("%w: %w", scheduler.ErrIndexedQueryUnavailable, err)
		}
		return nil, fmt.Errorf("query reservations: %w", err)
	}
	return a.fold(ctx, records), nil
}

// Get loads one reservation. Incomplete records are reported as not found.
func (a *Adapter) Get(ctx context.Context, id string) (scheduler.Reservation, error) {
	rec, err := a.repo.GetReservation(ctx, id)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	res, ok := FromRecord(rec)
	if !ok {
		return scheduler.Reservation{}, fmt.Errorf("%w: reservation %s is missing %s", persistence.ErrNotFound, id, strings.Join(missingFields(rec), ", "))
	}
	return res, nil
}

// Create stores a new reservation and announces the change.
func (a *Adapter) Create(ctx context.Context, res scheduler.Reservation) (scheduler.Reservation, error) {
	rec, err := a.repo.CreateReservation(ctx, ToRecord(res))
	if err != nil {
		return scheduler.Reservation{}, err
	}
	a.announce(ctx, "create", rec.ID)

	created, ok := FromRecord(rec)
	if !ok {
		return scheduler.Reservation{}, fmt.Errorf("created reservation %s is missing %s", rec.ID, strings.Join(missingFields(rec), ", "))
	}
	return created, nil
}

// Update rewrites start, end and description of the reservation at version
// and announces the change.
func (a *Adapter) Update(ctx context.Context, id string, version int64, start, end time.Time, description string) (scheduler.Reservation, error) {
	changes := persistence.ReservationChanges{Start: start, End: end}
	if description != "" {
		changes.Description = &description
	}

	rec, err := a.repo.UpdateReservation(ctx, id, version, changes)
	if err != nil {
		return scheduler.Reservation{}, err
	}
	a.announce(ctx, "update", id)

	updated, ok := FromRecord(rec)
	if !ok {
		return scheduler.Reservation{}, fmt.Errorf("updated reservation %s is missing %s", id, strings.Join(missingFields(rec), ", "))
	}
	return updated, nil
}

// Delete removes the reservation and announces the change.
func (a *Adapter) Delete(ctx context.Context, id string) error {
	if err := a.repo.DeleteReservation(ctx, id); err != nil {
		return err
	}
	a.announce(ctx, "delete", id)
	return nil
}

// Subscribe registers fn for snapshots. The current snapshot is delivered
// before Subscribe returns; later snapshots arrive on a dedicated goroutine,
// and a slow listener only ever sees the latest one. The returned function
// cancels the subscription.
func (a *Adapter) Subscribe(ctx context.Context, fn Listener) (func(), error) {
	if fn == nil {
		return nil, fmt.Errorf("subscribe: listener is required")
	}

	sub := &subscription{
		updates: make(chan []scheduler.Reservation, 1),
		done:    make(chan struct{}),
	}

	a.mu.Lock()
	a.nextID++
	id := a.nextID
	a.subs[id] = sub
	a.mu.Unlock()

	initial, err := a.ListAll(ctx)
	if err != nil {
		a.remove(id)
		return nil, err
	}
	fn(initial)

	go sub.deliver(fn)

	var once sync.Once
	return func() {
		once.Do(func() { a.remove(id) })
	}, nil
}

// Start registers for change signals before returning and forwards them in
// the background. The returned channel is closed once forwarding stops.
func (a *Adapter) Start(ctx context.Context) (<-chan struct{}, error) {
	events, err := a.notifier.Listen(ctx)
	if err != nil {
		return nil, fmt.Errorf("listen for reservation changes: %w", err)
	}
	done := make(chan struct{})
	go func() {
		defer close(done)
		a.forward(ctx, events)
	}()
	return done, nil
}

func (a *Adapter) forward(ctx context.Context, events <-chan struct{}) {
	for {
		select {
		case <-ctx.Done():
			return
		case _, ok := <-events:
			if !ok {
				return
			}
			a.Refresh(ctx)
		}
	}
}

// Refresh re-reads the store and pushes the snapshot to every subscriber.
func (a *Adapter) Refresh(ctx context.Context) {
	snapshot, err := a.ListAll(ctx)
	if err != nil {
		a.logger.ErrorContext(ctx, "failed to refresh reservation snapshot", "error", err)
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	for _, sub := range a.subs {
		sub.offer(slices.Clone(snapshot))
	}
}

// Close cancels every subscription.
func (a *Adapter) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	for id, sub := range a.subs {
		close(sub.done)
		delete(a.subs, id)
	}
}

// Subscribers reports the number of active subscriptions.
func (a *Adapter) Subscribers() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.subs)
}

func (a *Adapter) remove(id uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if sub, ok := a.subs[id]; ok {
		close(sub.done)
		delete(a.subs, id)
	}
}

func (a *Adapter) fold(ctx context.Context, records []persistence.Reservation) []scheduler.Reservation {
	reservations := make([]scheduler.Reservation, 0, len(records))
	for _, rec := range records {
		res, ok := FromRecord(rec)
		if !ok {
			a.logger.WarnContext(ctx, "skipping reservation record with missing time fields",
				"reservation_id", rec.ID,
				"missing", strings.Join(missingFields(rec), ","),
			)
			if a.recorder != nil {
				a.recorder.RecordSkippedRecord()
			}
			continue
		}
		reservations = append(reservations, res)
	}
	return reservations
}

func (a *Adapter) announce(ctx context.Context, operation, id string) {
	if err := a.notifier.Publish(ctx); err != nil {
		a.logger.WarnContext(ctx, "failed to announce reservation change", "operation", operation, "reservation_id", id, "error", err)
	}
}

type subscription struct {
	updates chan []scheduler.Reservation
	done    chan struct{}
}

// offer replaces any undelivered snapshot with snapshot.
func (s *subscription) offer(snapshot []scheduler.Reservation) {
	select {
	case s.updates <- snapshot:
		return
	default:
	}
	select {
	case <-s.updates:
	default:
	}
	select {
	case s.updates <- snapshot:
	default:
	}
}

func (s *subscription) deliver(fn Listener) {
	for {
		select {
		case <-s.done:
			return
		case snapshot := <-s.updates:
			fn(snapshot)
		}
	}
}
