package persistence

import "errors"

var (
	// ErrNotFound is returned when the requested record does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrDuplicate is returned when a unique key is already taken.
	ErrDuplicate = errors.New("persistence: duplicate record")
	// ErrPreconditionFailed is returned when a query needs an index that does not exist.
	ErrPreconditionFailed = errors.New("persistence: precondition failed")
	// ErrStaleVersion is returned when an update carries an outdated version stamp.
	ErrStaleVersion = errors.New("persistence: stale version")
	// ErrInvalidCondition is returned for query conditions on unknown fields or operators.
	ErrInvalidCondition = errors.New("persistence: invalid query condition")
)
