package store

import (
	"sort"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

// FromRecord converts a stored record into a reservation. It reports false
// when the record lacks a start, end or creation time.
func FromRecord(rec persistence.Reservation) (scheduler.Reservation, bool) {
	if rec.Start == nil || rec.End == nil || rec.CreatedAt == nil {
		return scheduler.Reservation{}, false
	}
	res := scheduler.Reservation{
		ID:               rec.ID,
		OwnerID:          rec.OwnerID,
		OwnerDisplayName: rec.OwnerDisplayName,
		Start:            *rec.Start,
		End:              *rec.End,
		CreatedAt:        *rec.CreatedAt,
		Version:          rec.Version,
	}
	if rec.Description != nil {
		res.Description = *rec.Description
	}
	return res, true
}

// ToRecord converts a reservation into a complete stored record.
func ToRecord(res scheduler.Reservation) persistence.Reservation {
	start, end, created := res.Start, res.End, res.CreatedAt
	rec := persistence.Reservation{
		ID:               res.ID,
		OwnerID:          res.OwnerID,
		OwnerDisplayName: res.OwnerDisplayName,
		Start:            &start,
		End:              &end,
		Version:          res.Version,
	}
	if !created.IsZero() {
		rec.CreatedAt = &created
	}
	if res.Description != "" {
		desc := res.Description
		rec.Description = &desc
	}
	return rec
}

func missingFields(rec persistence.Reservation) []string {
	missing := make([]string, 0, 3)
	if rec.Start == nil {
		missing = append(missing, "start")
	}
	if rec.End == nil {
		missing = append(missing, "end")
	}
	if rec.CreatedAt == nil {
		missing = append(missing, "createdAt")
	}
	return missing
}

func sortByStart(reservations []scheduler.Reservation) {
	sort.SliceStable(reservations, func(i, j int) bool {
		if reservations[i].Start.Equal(reservations[j].Start) {
			return reservations[i].ID < reservations[j].ID
		}
		return reservations[i].Start.Before(reservations[j].Start)
	})
}
