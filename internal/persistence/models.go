package persistence

import "time"

// Reservation is a stored reservation record. Time fields are nil when the
// stored value is missing or cannot be parsed; such records are filtered out
// before they reach the live calendar.
type Reservation struct {
	ID               string
	OwnerID          string
	OwnerDisplayName string
	Start            *time.Time
	End              *time.Time
	Description      *string
	CreatedAt        *time.Time
	Version          int64
}

// ReservationChanges carries the fields an edit may rewrite. Start, end and
// description are always written together.
type ReservationChanges struct {
	Start       time.Time
	End         time.Time
	Description *string
}

// User is the authorization record for an account.
type User struct {
	ID        string
	Email     string
	Username  string
	Role      string
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Identity holds login credentials. Its ID equals the matching user record's ID.
type Identity struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Session is an issued login session. Only a keyed digest of the token is stored.
type Session struct {
	ID          string
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}

// BatterySetting is the single shared battery level document.
type BatterySetting struct {
	Level     int
	UpdatedAt time.Time
	UpdatedBy string
}
