package main

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/persistence"
)

// mapStorageError translates storage sentinels into the application's.
func mapStorageError(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %w", application.ErrNotFound, err)
	case errors.Is(err, persistence.ErrDuplicate):
		return fmt.Errorf("%w: %w", application.ErrAlreadyExists, err)
	default:
		return err
	}
}

type userRepositoryAdapter struct {
	repo persistence.UserRepository
}

func newUserRepositoryAdapter(repo persistence.UserRepository) *userRepositoryAdapter {
	return &userRepositoryAdapter{repo: repo}
}

func (a *userRepositoryAdapter) CreateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.CreateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, mapStorageError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) GetUser(ctx context.Context, id string) (application.User, error) {
	stored, err := a.repo.GetUser(ctx, id)
	if err != nil {
		return application.User{}, mapStorageError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) GetUserByEmail(ctx context.Context, email string) (application.User, error) {
	stored, err := a.repo.GetUserByEmail(ctx, email)
	if err != nil {
		return application.User{}, mapStorageError(err)
	}
	return toApplicationUser(stored), nil
}

func (a *userRepositoryAdapter) UpdateUser(ctx context.Context, user application.User) (application.User, error) {
	if err := a.repo.UpdateUser(ctx, toPersistenceUser(user)); err != nil {
		return application.User{}, mapStorageError(err)
	}
	return a.GetUser(ctx, user.ID)
}

func (a *userRepositoryAdapter) ListUsers(ctx context.Context) ([]application.User, error) {
	models, err := a.repo.ListUsers(ctx)
	if err != nil {
		return nil, mapStorageError(err)
	}
	users := make([]application.User, 0, len(models))
	for _, model := range models {
		users = append(users, toApplicationUser(model))
	}
	return users, nil
}

// accountStore is the storage side of administrator account creation.
type accountStore interface {
	persistence.IdentityRepository
	GetUser(ctx context.Context, id string) (persistence.User, error)
}

type accountRepositoryAdapter struct {
	repo accountStore
}

func newAccountRepositoryAdapter(repo accountStore) *accountRepositoryAdapter {
	return &accountRepositoryAdapter{repo: repo}
}

func (a *accountRepositoryAdapter) CreateAccount(ctx context.Context, user application.User, passwordHash string) (application.User, error) {
	identity := persistence.Identity{
		ID:           user.ID,
		Email:        user.Email,
		PasswordHash: passwordHash,
		CreatedAt:    user.CreatedAt,
	}
	if err := a.repo.CreateAccount(ctx, toPersistenceUser(user), identity); err != nil {
		return application.User{}, mapStorageError(err)
	}
	stored, err := a.repo.GetUser(ctx, user.ID)
	if err != nil {
		return application.User{}, mapStorageError(err)
	}
	return toApplicationUser(stored), nil
}

type credentialStoreAdapter struct {
	repo persistence.IdentityRepository
}

func newCredentialStoreAdapter(repo persistence.IdentityRepository) *credentialStoreAdapter {
	return &credentialStoreAdapter{repo: repo}
}

func (a *credentialStoreAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.Credentials, error) {
	identity, err := a.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		return application.Credentials{}, mapStorageError(err)
	}
	return application.Credentials{
		UserID:       identity.ID,
		Email:        identity.Email,
		PasswordHash: identity.PasswordHash,
	}, nil
}

type sessionRepositoryAdapter struct {
	repo persistence.SessionRepository
}

func newSessionRepositoryAdapter(repo persistence.SessionRepository) *sessionRepositoryAdapter {
	return &sessionRepositoryAdapter{repo: repo}
}

func (a *sessionRepositoryAdapter) CreateSession(ctx context.Context, session application.SessionRecord) error {
	return mapStorageError(a.repo.CreateSession(ctx, persistence.Session{
		ID:          session.ID,
		UserID:      session.UserID,
		TokenDigest: session.TokenDigest,
		ExpiresAt:   session.ExpiresAt,
		CreatedAt:   session.CreatedAt,
		RevokedAt:   session.RevokedAt,
	}))
}

func (a *sessionRepositoryAdapter) GetSessionByDigest(ctx context.Context, digest string) (application.SessionRecord, error) {
	stored, err := a.repo.GetSessionByDigest(ctx, digest)
	if err != nil {
		return application.SessionRecord{}, mapStorageError(err)
	}
	return application.SessionRecord{
		ID:          stored.ID,
		UserID:      stored.UserID,
		TokenDigest: stored.TokenDigest,
		ExpiresAt:   stored.ExpiresAt,
		CreatedAt:   stored.CreatedAt,
		RevokedAt:   stored.RevokedAt,
	}, nil
}

func (a *sessionRepositoryAdapter) RevokeSession(ctx context.Context, digest string, revokedAt time.Time) error {
	return mapStorageError(a.repo.RevokeSession(ctx, digest, revokedAt))
}

func (a *sessionRepositoryAdapter) DeleteExpiredSessions(ctx context.Context, reference time.Time) error {
	return mapStorageError(a.repo.DeleteExpiredSessions(ctx, reference))
}

type batteryRepositoryAdapter struct {
	repo persistence.SettingsRepository
}

func newBatteryRepositoryAdapter(repo persistence.SettingsRepository) *batteryRepositoryAdapter {
	return &batteryRepositoryAdapter{repo: repo}
}

func (a *batteryRepositoryAdapter) GetBatteryLevel(ctx context.Context) (application.BatteryLevel, error) {
	setting, err := a.repo.GetBatterySetting(ctx)
	if err != nil {
		return application.BatteryLevel{}, mapStorageError(err)
	}
	return application.BatteryLevel{
		Level:     setting.Level,
		UpdatedAt: setting.UpdatedAt,
		UpdatedBy: setting.UpdatedBy,
	}, nil
}

func (a *batteryRepositoryAdapter) SaveBatteryLevel(ctx context.Context, level application.BatteryLevel) error {
	return mapStorageError(a.repo.SaveBatterySetting(ctx, persistence.BatterySetting{
		Level:     level.Level,
		UpdatedAt: level.UpdatedAt,
		UpdatedBy: level.UpdatedBy,
	}))
}

func toApplicationUser(model persistence.User) application.User {
	role, _ := application.ParseRole(model.Role)
	return application.User{
		ID:        model.ID,
		Email:     model.Email,
		Username:  model.Username,
		Role:      role,
		Disabled:  model.Disabled,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}

func toPersistenceUser(user application.User) persistence.User {
	role := user.Role
	if role == application.RoleNone {
		role = application.RoleRegular
	}
	return persistence.User{
		ID:        user.ID,
		Email:     strings.TrimSpace(user.Email),
		Username:  user.Username,
		Role:      string(role),
		Disabled:  user.Disabled,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
}
