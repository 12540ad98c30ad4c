package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// ErrIndexedQueryUnavailable signals that the store cannot serve an indexed
// range query, typically because the composite index has not been created yet.
var ErrIndexedQueryUnavailable = errors.New("scheduler: indexed range query unavailable")

// Source provides the reservation reads needed for conflict detection.
type Source interface {
	// QueryOverlapping returns a superset of the reservations that may overlap
	// the candidate. It fails with ErrIndexedQueryUnavailable when the store
	// cannot serve the query.
	QueryOverlapping(ctx context.Context, candidate Range) ([]Reservation, error)
	// ListAll returns every stored reservation.
	ListAll(ctx context.Context) ([]Reservation, error)
}

// FallbackRecorder is notified each time the detector degrades to a full scan.
type FallbackRecorder interface {
	RecordConflictScanFallback()
}

// FindConflict returns the first reservation in existing that overlaps the
// candidate, ignoring the reservation whose id equals excludeID.
func FindConflict(existing []Reservation, candidate Range, excludeID string) (Reservation, bool) {
	for _, res := range existing {
		if excludeID != "" && res.ID == excludeID {
			continue
		}
		if candidate.Overlaps(res.Range()) {
			return res, true
		}
	}
	return Reservation{}, false
}

// Detector answers whether a candidate interval collides with a stored reservation.
type Detector struct {
	source   Source
	recorder FallbackRecorder
	logger   *slog.Logger
}

// NewDetector wires a detector to its reservation source.
func NewDetector(source Source, recorder FallbackRecorder, logger *slog.Logger) *Detector {
	if logger == nil {
		logger = slog.Default()
	}
	return &Detector{source: source, recorder: recorder, logger: logger}
}

// HasConflict reports whether candidate overlaps any reservation other than excludeID.
// The candidate must already be a valid range.
func (d *Detector) HasConflict(ctx context.Context, candidate Range, excludeID string) (bool, error) {
	_, found, err := d.Conflicting(ctx, candidate, excludeID)
	return found, err
}

// Conflicting returns the first reservation that overlaps candidate. The indexed
// query is tried first; when the store reports it unavailable the detector scans
// every reservation instead, with identical results.
func (d *Detector) Conflicting(ctx context.Context, candidate Range, excludeID string) (Reservation, bool, error) {
	if d == nil || d.source == nil {
		return Reservation{}, false, fmt.Errorf("conflict detector not configured")
	}

	existing, err := d.source.QueryOverlapping(ctx, candidate)
	if err != nil {
		if !errors.Is(err, ErrIndexedQueryUnavailable) {
			return Reservation{}, false, fmt.Errorf("query overlapping reservations: %w", err)
		}

		d.logger.WarnContext(ctx, "indexed conflict query unavailable, scanning all reservations", "error", err)
		if d.recorder != nil {
			d.recorder.RecordConflictScanFallback()
		}

		existing, err = d.source.ListAll(ctx)
		if err != nil {
			return Reservation{}, false, fmt.Errorf("list reservations: %w", err)
		}
	}

	res, found := FindConflict(existing, candidate, excludeID)
	return res, found, nil
}
