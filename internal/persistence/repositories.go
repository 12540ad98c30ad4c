package persistence

import (
	"context"
	"time"
)

// ReservationRepository stores reservation records.
type ReservationRepository interface {
	// CreateReservation stores a new record and returns it with its generated ID.
	CreateReservation(ctx context.Context, reservation Reservation) (Reservation, error)
	// UpdateReservation rewrites start, end and description when the stored
	// version equals expectedVersion, returning ErrStaleVersion otherwise.
	UpdateReservation(ctx context.Context, id string, expectedVersion int64, changes ReservationChanges) (Reservation, error)
	DeleteReservation(ctx context.Context, id string) error
	GetReservation(ctx context.Context, id string) (Reservation, error)
	// ListReservations returns every record ordered by start ascending.
	ListReservations(ctx context.Context) ([]Reservation, error)
	// QueryReservations returns the records matching every condition. Inequalities
	// on both start and end fail with ErrPreconditionFailed when the composite
	// index is missing.
	QueryReservations(ctx context.Context, conds ...Condition) ([]Reservation, error)
}

// UserRepository exposes operations for user authorization records.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) error
	UpdateUser(ctx context.Context, user User) error
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// IdentityRepository stores login credentials.
type IdentityRepository interface {
	// CreateAccount atomically stores a user record and its credentials.
	CreateAccount(ctx context.Context, user User, identity Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
}

// SessionRepository stores authentication session state.
type SessionRepository interface {
	CreateSession(ctx context.Context, session Session) error
	GetSessionByDigest(ctx context.Context, digest string) (Session, error)
	RevokeSession(ctx context.Context, digest string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// SettingsRepository stores the battery level document.
type SettingsRepository interface {
	GetBatterySetting(ctx context.Context) (BatterySetting, error)
	SaveBatterySetting(ctx context.Context, setting BatterySetting) error
}
