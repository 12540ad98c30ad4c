package testfixtures

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

var (
	userCounter        uint64
	reservationCounter uint64
)

var referenceTime = time.Date(2024, time.June, 10, 8, 0, 0, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- User fixtures -----------------------------

// UserFixture represents a deterministic user record.
type UserFixture struct {
	ID        string
	Email     string
	Username  string
	Role      string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UserOption configures the generated user fixture.
type UserOption func(*UserFixture)

// NewUserFixture returns a deterministic regular user with optional overrides.
func NewUserFixture(opts ...UserOption) UserFixture {
	idx := atomic.AddUint64(&userCounter, 1)
	id := fmt.Sprintf("user-%03d", idx)
	created := referenceTime.Add(time.Duration(idx) * time.Minute)
	fixture := UserFixture{
		ID:        id,
		Email:     fmt.Sprintf("driver.%03d@example.com", idx),
		Username:  fmt.Sprintf("Driver %03d", idx),
		Role:      "regular",
		CreatedAt: created,
		UpdatedAt: created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithUserID overrides the generated user ID.
func WithUserID(id string) UserOption {
	return func(f *UserFixture) {
		f.ID = id
	}
}

// WithUserEmail overrides the generated email address.
func WithUserEmail(email string) UserOption {
	return func(f *UserFixture) {
		f.Email = email
	}
}

// WithUsername overrides the generated username.
func WithUsername(name string) UserOption {
	return func(f *UserFixture) {
		f.Username = name
	}
}

// WithUserAdmin gives the fixture the admin role.
func WithUserAdmin() UserOption {
	return func(f *UserFixture) {
		f.Role = "admin"
	}
}

// WithUserDisabled marks the fixture disabled.
func WithUserDisabled() UserOption {
	return func(f *UserFixture) {
		f.Disabled = true
	}
}

// Persistence returns the fixture as a persistence.User value.
func (f UserFixture) Persistence() persistence.User {
	return persistence.User{
		ID:        f.ID,
		Email:     strings.ToLower(f.Email),
		Username:  f.Username,
		Role:      f.Role,
		Disabled:  f.Disabled,
		CreatedAt: f.CreatedAt,
		UpdatedAt: f.UpdatedAt,
	}
}

// -------------------------- Reservation fixtures --------------------------

// ReservationFixture represents a deterministic reservation.
type ReservationFixture struct {
	ID               string
	OwnerID          string
	OwnerDisplayName string
	Start            time.Time
	End              time.Time
	Description      string
	CreatedAt        time.Time
	Version          int64
}

// ReservationOption configures the generated reservation fixture.
type ReservationOption func(*ReservationFixture)

// NewReservationFixture returns a one hour reservation starting at the
// reference time, with optional overrides.
func NewReservationFixture(opts ...ReservationOption) ReservationFixture {
	idx := atomic.AddUint64(&reservationCounter, 1)
	fixture := ReservationFixture{
		ID:               fmt.Sprintf("res-%03d", idx),
		OwnerID:          "user-owner",
		OwnerDisplayName: "Owner",
		Start:            referenceTime,
		End:              referenceTime.Add(time.Hour),
		CreatedAt:        referenceTime.Add(-24 * time.Hour),
		Version:          1,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithReservationID overrides the generated ID.
func WithReservationID(id string) ReservationOption {
	return func(f *ReservationFixture) {
		f.ID = id
	}
}

// WithReservationOwner sets the owner ID and display name.
func WithReservationOwner(id, displayName string) ReservationOption {
	return func(f *ReservationFixture) {
		f.OwnerID = id
		f.OwnerDisplayName = displayName
	}
}

// WithReservationSpan sets start and end.
func WithReservationSpan(start, end time.Time) ReservationOption {
	return func(f *ReservationFixture) {
		f.Start = start
		f.End = end
	}
}

// WithReservationDescription sets the description.
func WithReservationDescription(description string) ReservationOption {
	return func(f *ReservationFixture) {
		f.Description = description
	}
}

// Domain returns the fixture as a scheduler.Reservation value.
func (f ReservationFixture) Domain() scheduler.Reservation {
	return scheduler.Reservation{
		ID:               f.ID,
		OwnerID:          f.OwnerID,
		OwnerDisplayName: f.OwnerDisplayName,
		Start:            f.Start,
		End:              f.End,
		Description:      f.Description,
		CreatedAt:        f.CreatedAt,
		Version:          f.Version,
	}
}

// Persistence returns the fixture as a complete persistence.Reservation record.
func (f ReservationFixture) Persistence() persistence.Reservation {
	start, end, created := f.Start, f.End, f.CreatedAt
	rec := persistence.Reservation{
		ID:               f.ID,
		OwnerID:          f.OwnerID,
		OwnerDisplayName: f.OwnerDisplayName,
		Start:            &start,
		End:              &end,
		CreatedAt:        &created,
		Version:          f.Version,
	}
	if f.Description != "" {
		desc := f.Description
		rec.Description = &desc
	}
	return rec
}
