package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/example/vehicle-scheduler/internal/persistence"
)

const reservationRangeIndex = "idx_reservations_start_end"

var reservationColumns = map[persistence.Field]string{
	persistence.FieldStart: "start_at",
	persistence.FieldEnd:   "end_at",
}

var sqlOperators = map[persistence.Operator]string{
	persistence.OpLess:         "<",
	persistence.OpLessEqual:    "<=",
	persistence.OpGreater:      ">",
	persistence.OpGreaterEqual: ">=",
	persistence.OpEqual:        "=",
}

// ReservationRepository implements persistence.ReservationRepository.
type ReservationRepository struct {
	pool *Pool
	now  func() time.Time
}

// NewReservationRepository creates a reservation repository on pool.
func NewReservationRepository(pool *Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool, now: time.Now}
}

type reservationRow struct {
	ID               string         `db:"id"`
	OwnerID          string         `db:"owner_id"`
	OwnerDisplayName string         `db:"owner_display_name"`
	StartAt          sql.NullString `db:"start_at"`
	EndAt            sql.NullString `db:"end_at"`
	Description      sql.NullString `db:"description"`
	CreatedAt        sql.NullString `db:"created_at"`
	Version          int64          `db:"version"`
}

const selectReservation = `SELECT id, owner_id, owner_display_name, start_at, end_at, description, created_at, version FROM reservations`

func (row reservationRow) record() persistence.Reservation {
	rec := persistence.Reservation{
		ID:               row.ID,
		OwnerID:          row.OwnerID,
		OwnerDisplayName: row.OwnerDisplayName,
		Start:            nullableTime(row.StartAt),
		End:              nullableTime(row.EndAt),
		CreatedAt:        nullableTime(row.CreatedAt),
		Version:          row.Version,
	}
	if row.Description.Valid {
		desc := row.Description.String
		rec.Description = &desc
	}
	return rec
}

func nullableTime(value sql.NullString) *time.Time {
	if !value.Valid || strings.TrimSpace(value.String) == "" {
		return nil
	}
	t, err := parseTime(value.String)
	if err != nil {
		return nil
	}
	return &t
}

func timeArg(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func stringArg(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

// CreateReservation inserts the record, assigning an ID when none is set.
func (r *ReservationRepository) CreateReservation(ctx context.Context, reservation persistence.Reservation) (persistence.Reservation, error) {
	if reservation.ID == "" {
		reservation.ID = uuid.NewString()
	}
	if reservation.CreatedAt == nil {
		created := r.now().UTC()
		reservation.CreatedAt = &created
	}
	reservation.Version = 1

	query := r.pool.rebind(`
		INSERT INTO reservations (id, owner_id, owner_display_name, start_at, end_at, description, created_at, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)

	err := r.pool.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query,
			reservation.ID,
			reservation.OwnerID,
			reservation.OwnerDisplayName,
			timeArg(reservation.Start),
			timeArg(reservation.End),
			stringArg(reservation.Description),
			timeArg(reservation.CreatedAt),
			reservation.Version,
		)
		return err
	})
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("insert reservation: %w", err)
	}

	return r.GetReservation(ctx, reservation.ID)
}

// UpdateReservation rewrites start, end and description and bumps the version.
func (r *ReservationRepository) UpdateReservation(ctx context.Context, id string, expectedVersion int64, changes persistence.ReservationChanges) (persistence.Reservation, error) {
	query := r.pool.rebind(`
		UPDATE reservations
		SET start_at = ?, end_at = ?, description = ?, version = version + 1
		WHERE id = ? AND version = ?
	`)

	var affected int64
	err := r.pool.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, query,
			formatTime(changes.Start),
			formatTime(changes.End),
			stringArg(changes.Description),
			id,
			expectedVersion,
		)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return persistence.Reservation{}, fmt.Errorf("update reservation: %w", err)
	}

	if affected == 0 {
		if _, err := r.GetReservation(ctx, id); err != nil {
			return persistence.Reservation{}, err
		}
		return persistence.Reservation{}, persistence.ErrStaleVersion
	}

	return r.GetReservation(ctx, id)
}

// DeleteReservation removes the record.
func (r *ReservationRepository) DeleteReservation(ctx context.Context, id string) error {
	query := r.pool.rebind(`DELETE FROM reservations WHERE id = ?`)

	var affected int64
	err := r.pool.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, query, id)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return fmt.Errorf("delete reservation: %w", err)
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// GetReservation loads a single record.
func (r *ReservationRepository) GetReservation(ctx context.Context, id string) (persistence.Reservation, error) {
	if id == "" {
		return persistence.Reservation{}, persistence.ErrNotFound
	}

	var row reservationRow
	if err := r.pool.db.GetContext(ctx, &row, r.pool.rebind(selectReservation+` WHERE id = ?`), id); err != nil {
		return persistence.Reservation{}, r.pool.mapper.MapError(err)
	}
	return row.record(), nil
}

// ListReservations returns every record ordered by start.
func (r *ReservationRepository) ListReservations(ctx context.Context) ([]persistence.Reservation, error) {
	return r.selectRecords(ctx, selectReservation+` ORDER BY start_at ASC, id ASC`)
}

// QueryReservations returns the records matching all conditions.
func (r *ReservationRepository) QueryReservations(ctx context.Context, conds ...persistence.Condition) ([]persistence.Reservation, error) {
	clauses := make([]string, 0, len(conds))
	args := make([]any, 0, len(conds))
	for _, cond := range conds {
		if err := cond.Validate(); err != nil {
			return nil, err
		}
		clauses = append(clauses, reservationColumns[cond.Field]+" "+sqlOperators[cond.Op]+" ?")
		args = append(args, formatTime(cond.Value))
	}

	if len(persistence.RangeFields(conds)) > 1 {
		ok, err := r.hasIndex(ctx, reservationRangeIndex)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("%w: index %s is required for range conditions on start and end", persistence.ErrPreconditionFailed, reservationRangeIndex)
		}
	}

	query := selectReservation
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY start_at ASC, id ASC"

	return r.selectRecords(ctx, query, args...)
}

func (r *ReservationRepository) selectRecords(ctx context.Context, query string, args ...any) ([]persistence.Reservation, error) {
	var rows []reservationRow
	if err := r.pool.db.SelectContext(ctx, &rows, r.pool.rebind(query), args...); err != nil {
		return nil, fmt.Errorf("select reservations: %w", r.pool.mapper.MapError(err))
	}

	records := make([]persistence.Reservation, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (r *ReservationRepository) hasIndex(ctx context.Context, name string) (bool, error) {
	var query string
	switch r.pool.dialect {
	case DialectPostgres:
		query = `SELECT COUNT(*) FROM pg_indexes WHERE indexname = ?`
	default:
		query = `SELECT COUNT(*) FROM sqlite_master WHERE type = 'index' AND name = ?`
	}

	var count int
	if err := r.pool.db.GetContext(ctx, &count, r.pool.rebind(query), name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("inspect index %s: %w", name, err)
	}
	return count > 0, nil
}
