// Package scheduler holds the reservation entity and the rules that decide
// whether two bookings of the shared vehicle collide.
package scheduler

import (
	"errors"
	"time"
)

// ErrInvalidRange is returned when a range does not end strictly after it starts.
var ErrInvalidRange = errors.New("scheduler: end must be after start")

// Range is the half-open interval [Start, End).
type Range struct {
	Start time.Time
	End   time.Time
}

// NewRange builds a range and rejects empty or inverted intervals.
func NewRange(start, end time.Time) (Range, error) {
	r := Range{Start: start, End: end}
	if !r.Valid() {
		return Range{}, ErrInvalidRange
	}
	return r, nil
}

// Valid reports whether Start is strictly before End.
func (r Range) Valid() bool {
	return r.Start.Before(r.End)
}

// Overlaps reports whether the two ranges share any instant. Ranges that only
// touch (r.End == other.Start) do not overlap, so back-to-back bookings are allowed.
func (r Range) Overlaps(other Range) bool {
	return r.Start.Before(other.End) && other.Start.Before(r.End)
}

// Duration returns the length of the range.
func (r Range) Duration() time.Duration {
	return r.End.Sub(r.Start)
}
