package scheduler

import "time"

// Reservation is a booked, owner-attributed interval on the shared vehicle.
//
// OwnerDisplayName is copied from the owner's profile when the reservation is
// created and is not refreshed when the profile changes afterwards.
type Reservation struct {
	ID               string
	OwnerID          string
	OwnerDisplayName string
	Start            time.Time
	End              time.Time
	Description      string
	CreatedAt        time.Time
	Version          int64
}

// Range returns the reserved interval.
func (r Reservation) Range() Range {
	return Range{Start: r.Start, End: r.End}
}

// StartedBefore reports whether the reservation had already begun at the given instant.
func (r Reservation) StartedBefore(now time.Time) bool {
	return r.Start.Before(now)
}
