package sqldb

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/example/vehicle-scheduler/internal/persistence"
)

// UserRepository implements persistence.UserRepository and
// persistence.IdentityRepository.
type UserRepository struct {
	pool *Pool
}

// NewUserRepository creates a user repository on pool.
func NewUserRepository(pool *Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

type userRow struct {
	ID        string `db:"id"`
	Email     string `db:"email"`
	Username  string `db:"username"`
	Role      string `db:"role"`
	Disabled  bool   `db:"disabled"`
	CreatedAt string `db:"created_at"`
	UpdatedAt string `db:"updated_at"`
}

const selectUser = `SELECT id, email, username, role, disabled, created_at, updated_at FROM users`

func (row userRow) record() (persistence.User, error) {
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.User{}, fmt.Errorf("parse created_at of user %s: %w", row.ID, err)
	}
	updated, err := parseTime(row.UpdatedAt)
	if err != nil {
		return persistence.User{}, fmt.Errorf("parse updated_at of user %s: %w", row.ID, err)
	}
	return persistence.User{
		ID:        row.ID,
		Email:     row.Email,
		Username:  row.Username,
		Role:      row.Role,
		Disabled:  row.Disabled,
		CreatedAt: created,
		UpdatedAt: updated,
	}, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// CreateUser inserts a new user.
func (r *UserRepository) CreateUser(ctx context.Context, user persistence.User) error {
	if user.ID == "" {
		return fmt.Errorf("create user: id is required")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}

	query := r.pool.rebind(`
		INSERT INTO users (id, email, username, role, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	return r.pool.retry.WithRetry(ctx, func() error {
		_, err := r.pool.db.ExecContext(ctx, query,
			user.ID,
			normalizeEmail(user.Email),
			user.Username,
			user.Role,
			user.Disabled,
			formatTime(user.CreatedAt),
			formatTime(user.UpdatedAt),
		)
		return err
	})
}

// UpdateUser rewrites the mutable user fields. Email is immutable.
func (r *UserRepository) UpdateUser(ctx context.Context, user persistence.User) error {
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = time.Now().UTC()
	}

	query := r.pool.rebind(`
		UPDATE users SET username = ?, role = ?, disabled = ?, updated_at = ?
		WHERE id = ?
	`)

	var affected int64
	err := r.pool.retry.WithRetry(ctx, func() error {
		result, err := r.pool.db.ExecContext(ctx, query,
			user.Username,
			user.Role,
			user.Disabled,
			formatTime(user.UpdatedAt),
			user.ID,
		)
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

// GetUser loads a user by ID.
func (r *UserRepository) GetUser(ctx context.Context, id string) (persistence.User, error) {
	if id == "" {
		return persistence.User{}, persistence.ErrNotFound
	}
	var row userRow
	if err := r.pool.db.GetContext(ctx, &row, r.pool.rebind(selectUser+` WHERE id = ?`), id); err != nil {
		return persistence.User{}, r.pool.mapper.MapError(err)
	}
	return row.record()
}

// GetUserByEmail loads a user by normalized email.
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (persistence.User, error) {
	var row userRow
	if err := r.pool.db.GetContext(ctx, &row, r.pool.rebind(selectUser+` WHERE email = ?`), normalizeEmail(email)); err != nil {
		return persistence.User{}, r.pool.mapper.MapError(err)
	}
	return row.record()
}

// ListUsers returns every user ordered by username.
func (r *UserRepository) ListUsers(ctx context.Context) ([]persistence.User, error) {
	var rows []userRow
	if err := r.pool.db.SelectContext(ctx, &rows, selectUser+` ORDER BY username ASC, id ASC`); err != nil {
		return nil, r.pool.mapper.MapError(err)
	}

	users := make([]persistence.User, 0, len(rows))
	for _, row := range rows {
		user, err := row.record()
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	return users, nil
}

type identityRow struct {
	ID           string `db:"id"`
	Email        string `db:"email"`
	PasswordHash string `db:"password_hash"`
	CreatedAt    string `db:"created_at"`
}

// CreateAccount stores a user record and its login credentials in one transaction.
func (r *UserRepository) CreateAccount(ctx context.Context, user persistence.User, identity persistence.Identity) error {
	if user.ID == "" || identity.ID != user.ID {
		return fmt.Errorf("create account: identity and user ids must match")
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.UpdatedAt.IsZero() {
		user.UpdatedAt = user.CreatedAt
	}
	if identity.CreatedAt.IsZero() {
		identity.CreatedAt = user.CreatedAt
	}

	insertUser := r.pool.rebind(`
		INSERT INTO users (id, email, username, role, disabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	insertIdentity := r.pool.rebind(`INSERT INTO identities (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`)

	err := r.pool.WithTransaction(ctx, func(tx *sqlx.Tx) error {
		if _, err := tx.ExecContext(ctx, insertIdentity,
			identity.ID,
			normalizeEmail(identity.Email),
			identity.PasswordHash,
			formatTime(identity.CreatedAt),
		); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, insertUser,
			user.ID,
			normalizeEmail(user.Email),
			user.Username,
			user.Role,
			user.Disabled,
			formatTime(user.CreatedAt),
			formatTime(user.UpdatedAt),
		)
		return err
	})
	return r.pool.mapper.MapError(err)
}

// GetIdentityByEmail loads login credentials by normalized email.
func (r *UserRepository) GetIdentityByEmail(ctx context.Context, email string) (persistence.Identity, error) {
	var row identityRow
	query := r.pool.rebind(`SELECT id, email, password_hash, created_at FROM identities WHERE email = ?`)
	if err := r.pool.db.GetContext(ctx, &row, query, normalizeEmail(email)); err != nil {
		return persistence.Identity{}, r.pool.mapper.MapError(err)
	}
	created, err := parseTime(row.CreatedAt)
	if err != nil {
		return persistence.Identity{}, fmt.Errorf("parse created_at of identity %s: %w", row.ID, err)
	}
	return persistence.Identity{
		ID:           row.ID,
		Email:        row.Email,
		PasswordHash: row.PasswordHash,
		CreatedAt:    created,
	}, nil
}
