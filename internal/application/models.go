package application

import "time"

// Role is the authorization level of a user.
type Role string

const (
	// RoleNone is the effective role of disabled or unknown users; it grants nothing.
	RoleNone    Role = ""
	RoleRegular Role = "regular"
	RoleAdmin   Role = "admin"
)

// ParseRole validates a stored or submitted role name.
func ParseRole(value string) (Role, bool) {
	switch Role(value) {
	case RoleAdmin:
		return RoleAdmin, true
	case RoleRegular:
		return RoleRegular, true
	default:
		return RoleNone, false
	}
}

// Principal represents the authenticated user invoking a service method.
type Principal struct {
	UserID   string
	Email    string
	Username string
	Role     Role
}

// IsAdmin reports whether the principal holds the admin role.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}

// Active reports whether the principal holds any capability at all.
func (p Principal) Active() bool {
	return p.UserID != "" && p.Role != RoleNone
}

// User is the authorization record of an account.
type User struct {
	ID        string
	Email     string
	Username  string
	Role      Role
	Disabled  bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EffectiveRole returns RoleNone for disabled users and the stored role otherwise.
func (u User) EffectiveRole() Role {
	if u.Disabled {
		return RoleNone
	}
	return u.Role
}

// Principal returns the principal acting as u.
func (u User) Principal() Principal {
	return Principal{UserID: u.ID, Email: u.Email, Username: u.Username, Role: u.EffectiveRole()}
}

// Session is an issued login session. Token is only populated when the
// session is first created.
type Session struct {
	ID        string
	UserID    string
	Token     string
	ExpiresAt time.Time
}

// AuthenticateParams carries login credentials.
type AuthenticateParams struct {
	Email    string
	Password string
}

// AuthenticateResult is the outcome of a successful login.
type AuthenticateResult struct {
	User    User
	Session Session
}

// CreateAccountParams carries an administrator's request to add an account.
type CreateAccountParams struct {
	Principal Principal
	Email     string
	Password  string
	Username  string
	Role      Role
}

// UpdateUserParams carries an administrator's edit of a user. Nil fields are left unchanged.
type UpdateUserParams struct {
	Principal Principal
	UserID    string
	Username  *string
	Role      *Role
	Disabled  *bool
}

// BatteryLevel is the shared battery reading of the vehicle.
type BatteryLevel struct {
	Level     int
	UpdatedAt time.Time
	UpdatedBy string
}

// Credentials are the stored login credentials of an identity. UserID is
// shared with the matching user record.
type Credentials struct {
	UserID       string
	Email        string
	PasswordHash string
}

// SessionRecord is the stored form of a session; only the token digest is kept.
type SessionRecord struct {
	ID          string
	UserID      string
	TokenDigest string
	ExpiresAt   time.Time
	CreatedAt   time.Time
	RevokedAt   *time.Time
}
