// Package calendar projects the reservation set onto month and day views.
//
// Every function here is pure: callers recompute the views from the complete
// reservation snapshot each time it changes.
package calendar

import (
	"sort"
	"time"

	"github.com/example/vehicle-scheduler/internal/scheduler"
)

const (
	// GridCells is the number of cells in a month grid (six weeks of seven days).
	GridCells = 42
	// DaysPerWeek is the width of a grid row.
	DaysPerWeek = 7
)

// Cell is one day of the month grid.
type Cell struct {
	Date            time.Time
	IsCurrentMonth  bool
	IsToday         bool
	HasReservations bool
}

// Month builds the 42 cell grid for year/month in loc. The grid starts on the
// Sunday on or before the first of the month. Each cell holds the first
// instant of its date in loc.
func Month(year int, month time.Month, today time.Time, loc *time.Location, reservations []scheduler.Reservation) []Cell {
	if loc == nil {
		loc = time.Local
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	lead := int(first.Weekday())
	today = today.In(loc)

	cells := make([]Cell, 0, GridCells)
	for i := 0; i < GridCells; i++ {
		day := StartOfDay(first.Year(), first.Month(), 1-lead+i, loc)
		cells = append(cells, Cell{
			Date:            day,
			IsCurrentMonth:  day.Month() == first.Month() && day.Year() == first.Year(),
			IsToday:         sameDate(day, today),
			HasReservations: HasReservationsOn(day, reservations),
		})
	}
	return cells
}

// StartOfDay returns the first instant of the civil date year-month-day in
// loc. Out of range days normalize the way time.Date does. In zones where
// the clock skips midnight the day starts at the end of the gap.
func StartOfDay(year int, month time.Month, day int, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	civil := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	start := time.Date(civil.Year(), civil.Month(), civil.Day(), 0, 0, 0, 0, loc)
	for civilDate(start).Before(civil) {
		_, end := start.ZoneBounds()
		if end.IsZero() || !end.After(start) {
			break
		}
		start = end
	}
	return start
}

// Weeks splits a month grid into rows of seven cells.
func Weeks(cells []Cell) [][]Cell {
	weeks := make([][]Cell, 0, (len(cells)+DaysPerWeek-1)/DaysPerWeek)
	for i := 0; i < len(cells); i += DaysPerWeek {
		end := i + DaysPerWeek
		if end > len(cells) {
			end = len(cells)
		}
		weeks = append(weeks, cells[i:end])
	}
	return weeks
}

// HasReservationsOn reports whether any reservation touches the calendar day of
// day, in day's location. The bounds are inclusive: the day spans
// [00:00:00.000, 23:59:59.999] and a reservation ending exactly at midnight
// still counts as present.
func HasReservationsOn(day time.Time, reservations []scheduler.Reservation) bool {
	dayStart := StartOfDay(day.Year(), day.Month(), day.Day(), day.Location())
	dayEnd := StartOfDay(day.Year(), day.Month(), day.Day()+1, day.Location()).Add(-time.Millisecond)

	for _, res := range reservations {
		if !res.Start.After(dayEnd) && !res.End.Before(dayStart) {
			return true
		}
	}
	return false
}

// Day returns the reservations starting on the calendar date of date in loc,
// ordered by start time.
func Day(date time.Time, loc *time.Location, reservations []scheduler.Reservation) []scheduler.Reservation {
	if loc == nil {
		loc = time.Local
	}
	date = date.In(loc)

	matches := make([]scheduler.Reservation, 0)
	for _, res := range reservations {
		if sameDate(res.Start.In(loc), date) {
			matches = append(matches, res)
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		if matches[i].Start.Equal(matches[j].Start) {
			return matches[i].ID < matches[j].ID
		}
		return matches[i].Start.Before(matches[j].Start)
	})
	return matches
}

// ShiftMonth moves year/month by offset months, normalizing across year boundaries.
func ShiftMonth(year int, month time.Month, offset int) (int, time.Month) {
	shifted := time.Date(year, month+time.Month(offset), 1, 0, 0, 0, 0, time.UTC)
	return shifted.Year(), shifted.Month()
}

// civilDate is the wall clock date of t as UTC midnight.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func sameDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}
