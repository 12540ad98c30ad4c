package application

import (
	"errors"
	"fmt"
)

var (
	// ErrUnauthorized is returned when the acting principal lacks permission for an operation.
	ErrUnauthorized = errors.New("application: unauthorized")
	// ErrNotFound is returned when the requested resource does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrAlreadyExists is returned when creating a record whose unique key is taken.
	ErrAlreadyExists = errors.New("application: already exists")
	// ErrConflict is returned when the requested slot overlaps an existing reservation.
	ErrConflict = errors.New("application: slot already booked")
	// ErrPastReservation is returned when editing a reservation that has already started.
	ErrPastReservation = errors.New("application: cannot edit past reservation")
	// ErrBusy is returned while another booking attempt of the same user is in flight.
	ErrBusy = errors.New("application: booking already in progress")
	// ErrSaveFailed hides storage failures behind one generic signal. The cause is logged.
	ErrSaveFailed = errors.New("application: failed to save")
	// ErrStaleReservation is returned when the reservation changed since it was read.
	ErrStaleReservation = errors.New("application: reservation changed since it was loaded")
	// ErrConfirmationRequired is returned when a delete was not explicitly confirmed.
	ErrConfirmationRequired = errors.New("application: confirmation required")
	// ErrInvalidCredentials is returned by password verification on mismatch.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrAccountDisabled is returned when a disabled user presents a valid session.
	ErrAccountDisabled = errors.New("application: account disabled")
	// ErrSessionExpired is returned for sessions past their expiry.
	ErrSessionExpired = errors.New("application: session expired")
	// ErrSessionRevoked is returned for sessions that were logged out.
	ErrSessionRevoked = errors.New("application: session revoked")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	if len(v.FieldErrors) == 0 {
		return "validation failed"
	}
	if len(v.FieldErrors) == 1 {
		for field, msg := range v.FieldErrors {
			return fmt.Sprintf("validation failed: %s: %s", field, msg)
		}
	}
	return fmt.Sprintf("validation failed: %d fields", len(v.FieldErrors))
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

func (v *ValidationError) add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	v.FieldErrors[field] = message
}

// AuthFailureReason is the closed set of reasons a login can fail.
type AuthFailureReason string

const (
	AuthUserNotFound   AuthFailureReason = "user-not-found"
	AuthWrongPassword  AuthFailureReason = "wrong-password"
	AuthInvalidEmail   AuthFailureReason = "invalid-email"
	AuthDisabled       AuthFailureReason = "disabled"
	AuthNetworkFailure AuthFailureReason = "network-failure"
	AuthRateLimited    AuthFailureReason = "rate-limited"
	AuthOther          AuthFailureReason = "other"
)

// AuthFailure reports a rejected login. Callers only display the reason.
type AuthFailure struct {
	Reason AuthFailureReason
	Err    error
}

func (f *AuthFailure) Error() string {
	if f.Err != nil {
		return fmt.Sprintf("authentication failed (%s): %v", f.Reason, f.Err)
	}
	return fmt.Sprintf("authentication failed (%s)", f.Reason)
}

func (f *AuthFailure) Unwrap() error {
	return f.Err
}

func authFailure(reason AuthFailureReason, cause error) *AuthFailure {
	return &AuthFailure{Reason: reason, Err: cause}
}
