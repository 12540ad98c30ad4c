package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/example/vehicle-scheduler/internal/persistence"
)

// SessionRepository implements persistence.SessionRepository.
type SessionRepository struct {
	pool *Pool
}

// NewSessionRepository creates a session repository on pool.
func NewSessionRepository(pool *Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

type sessionRow struct {
	ID          string         `db:"id"`
	UserID      string         `db:"user_id"`
	TokenDigest string         `db:"token_digest"`
	ExpiresAt   string         `db:"expires_at"`
	CreatedAt   string         `db:"created_at"`
	RevokedAt   sql.NullString `db:"revoked_at"`
}

// CreateSession stores a new session.
func (r *SessionRepository) CreateSession(ctx context.Context, session persistence.Session) error {
	if session.ID == "" || session.UserID == "" || strings.TrimSpace(session.TokenDigest) == "" {
		return fmt.Errorf("create session: id, user and token digest are required")
	}

	query := r.pool.rebind(`
		INSERT INTO sessions (id, user_id, token_digest, expires_at, created_at, revoked_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	return r.pool.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query,
			session.ID,
			session.UserID,
			session.TokenDigest,
			formatTime(session.ExpiresAt),
			formatTime(session.CreatedAt),
			timeArg(session.RevokedAt),
		)
		return err
	})
}

// GetSessionByDigest loads a session by its token digest.
func (r *SessionRepository) GetSessionByDigest(ctx context.Context, digest string) (persistence.Session, error) {
	var row sessionRow
	query := r.pool.rebind(`SELECT id, user_id, token_digest, expires_at, created_at, revoked_at FROM sessions WHERE token_digest = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, digest); err != nil {
		return persistence.Session{}, r.pool.mapper.MapError(err)
	}

	expires, err := parseTime(row.ExpiresAt)
	if err != nil {
		return persistence.Session{}, fmt.Errorf("parse expires_at of session %s: %w", row.ID, err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Session{}, fmt.Errorf("parse created_at of session %s: %w", row.ID, err)
	}

	return persistence.Session{
		ID:          row.ID,
		UserID:      row.UserID,
		TokenDigest: row.TokenDigest,
		ExpiresAt:   expires,
		CreatedAt:   created,
		RevokedAt:   nullableTime(row.RevokedAt),
	}, nil
}

// RevokeSession marks the session revoked.
func (r *SessionRepository) RevokeSession(ctx context.Context, digest string, revokedAt time.Time) error {
	query := r.pool.rebind(`UPDATE sessions SET revoked_at = ? WHERE token_digest = ? AND revoked_at IS NULL`)

	var affected int64
	err := r.pool.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, query, formatTime(revokedAt), digest)
		if err != nil {
			return err
		}
		affected, err = result.RowsAffected()
		return err
	})
	if err != nil {
		return err
	}
	if affected == 0 {
		return persistence.ErrNotFound
	}
	return nil
}

// DeleteExpiredSessions removes sessions that expired before reference.
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	query := r.pool.rebind(`DELETE FROM sessions WHERE expires_at < ?`)
	return r.pool.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query, formatTime(reference))
		return err
	})
}
