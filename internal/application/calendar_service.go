package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/calendar"
	"github.com/example/vehicle-scheduler/internal/scheduler"
	"github.com/example/vehicle-scheduler/internal/store"
)

// SnapshotSource delivers complete reservation snapshots.
type SnapshotSource interface {
	Subscribe(ctx context.Context, fn store.Listener) (func(), error)
}

// MonthView is the rendered month grid plus its navigation targets.
type MonthView struct {
	Year      int
	Month     time.Month
	Cells     []calendar.Cell
	PrevYear  int
	PrevMonth time.Month
	NextYear  int
	NextMonth time.Month
	Revision  uint64
}

// DayView lists the reservations starting on Date.
type DayView struct {
	Date         time.Time
	Reservations []scheduler.Reservation
	Revision     uint64
}

// LiveCalendar keeps the latest reservation snapshot and recomputes month
// and day views from it on demand.
type LiveCalendar struct {
	source   SnapshotSource
	location *time.Location
	now      func() time.Time
	logger   *slog.Logger

	mu       sync.RWMutex
	snapshot []scheduler.Reservation
	revision uint64
	cancel   func()
	grids    *gridCache

	watchMu  sync.Mutex
	watchers map[uint64]chan struct{}
	nextID   uint64
}

// NewLiveCalendar returns a calendar projecting snapshots from source in loc.
func NewLiveCalendar(source SnapshotSource, loc *time.Location, now func() time.Time, logger *slog.Logger) *LiveCalendar {
	if loc == nil {
		loc = time.UTC
	}
	if now == nil {
		now = time.Now
	}
	return &LiveCalendar{
		source:   source,
		location: loc,
		now:      now,
		logger:   defaultLogger(logger),
		grids:    newGridCache(time.Minute, 24, now),
		watchers: make(map[uint64]chan struct{}),
	}
}

// Start subscribes to the snapshot source. The initial snapshot is applied
// before Start returns.
func (c *LiveCalendar) Start(ctx context.Context) error {
	if c == nil || c.source == nil {
		return fmt.Errorf("live calendar not configured")
	}
	cancel, err := c.source.Subscribe(ctx, c.apply)
	if err != nil {
		return fmt.Errorf("subscribe to reservations: %w", err)
	}
	c.mu.Lock()
	c.cancel = cancel
	c.mu.Unlock()
	return nil
}

// Stop cancels the subscription and closes every watcher.
func (c *LiveCalendar) Stop() {
	if c == nil {
		return
	}
	c.mu.Lock()
	cancel := c.cancel
	c.cancel = nil
	c.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	c.watchMu.Lock()
	for id, ch := range c.watchers {
		close(ch)
		delete(c.watchers, id)
	}
	c.watchMu.Unlock()
}

func (c *LiveCalendar) apply(snapshot []scheduler.Reservation) {
	c.mu.Lock()
	c.snapshot = snapshot
	c.revision++
	revision := c.revision
	c.mu.Unlock()
	c.grids.Invalidate()

	serviceLogger(context.Background(), c.logger, "LiveCalendar", "apply").
		Debug("snapshot applied", "revision", revision, "reservations", len(snapshot))

	c.watchMu.Lock()
	for _, ch := range c.watchers {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	c.watchMu.Unlock()
}

// Reservations returns a copy of the latest snapshot and its revision.
func (c *LiveCalendar) Reservations() ([]scheduler.Reservation, uint64) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return slices.Clone(c.snapshot), c.revision
}

// Location is the zone calendar dates are interpreted in.
func (c *LiveCalendar) Location() *time.Location {
	return c.location
}

// Month renders the grid of year/month.
func (c *LiveCalendar) Month(year int, month time.Month) (MonthView, error) {
	if month < time.January || month > time.December {
		return MonthView{}, &ValidationError{FieldErrors: map[string]string{"month": "month is invalid"}}
	}
	if year < 1 || year > 9999 {
		return MonthView{}, &ValidationError{FieldErrors: map[string]string{"year": "year is invalid"}}
	}

	today := c.now().In(c.location)

	c.mu.RLock()
	revision := c.revision
	key := gridCacheKey(year, month, today, revision)
	cells, ok := c.grids.Get(key)
	if !ok {
		cells = calendar.Month(year, month, today, c.location, c.snapshot)
	}
	c.mu.RUnlock()
	if !ok {
		c.grids.Store(key, cells)
	}

	prevYear, prevMonth := calendar.ShiftMonth(year, month, -1)
	nextYear, nextMonth := calendar.ShiftMonth(year, month, 1)
	return MonthView{
		Year:      year,
		Month:     month,
		Cells:     cells,
		PrevYear:  prevYear,
		PrevMonth: prevMonth,
		NextYear:  nextYear,
		NextMonth: nextMonth,
		Revision:  revision,
	}, nil
}

// Day lists the reservations starting on date, given as YYYY-MM-DD.
func (c *LiveCalendar) Day(date string) (DayView, error) {
	parsed, err := time.Parse(dateLayout, strings.TrimSpace(date))
	if err != nil {
		return DayView{}, &ValidationError{FieldErrors: map[string]string{"date": "date is invalid"}}
	}
	day := calendar.StartOfDay(parsed.Year(), parsed.Month(), parsed.Day(), c.location)

	c.mu.RLock()
	reservations := calendar.Day(day, c.location, c.snapshot)
	revision := c.revision
	c.mu.RUnlock()

	return DayView{Date: day, Reservations: reservations, Revision: revision}, nil
}

// Watch returns a channel that receives a signal after each applied snapshot.
// Signals coalesce. The returned function stops the watch.
func (c *LiveCalendar) Watch() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)

	c.watchMu.Lock()
	c.nextID++
	id := c.nextID
	c.watchers[id] = ch
	c.watchMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.watchMu.Lock()
			if _, ok := c.watchers[id]; ok {
				delete(c.watchers, id)
				close(ch)
			}
			c.watchMu.Unlock()
		})
	}
}
