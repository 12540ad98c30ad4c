package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"
)

// CredentialStore exposes credential lookup for the identity provider.
type CredentialStore interface {
	GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error)
}

// SessionRepository captures the persistence interactions for issued sessions.
type SessionRepository interface {
	CreateSession(ctx context.Context, session SessionRecord) error
	GetSessionByDigest(ctx context.Context, digest string) (SessionRecord, error)
	RevokeSession(ctx context.Context, digest string, revokedAt time.Time) error
	DeleteExpiredSessions(ctx context.Context, reference time.Time) error
}

// UserDirectory resolves and provisions user authorization records.
type UserDirectory interface {
	EnsureUser(ctx context.Context, credentials Credentials) (User, error)
	LookupUser(ctx context.Context, id string) (User, error)
}

// PasswordVerifier compares a stored hash with a candidate password.
type PasswordVerifier func(hashedPassword, password string) error

// AuthService signs users in and resolves bearer tokens to principals.
type AuthService struct {
	credentials    CredentialStore
	users          UserDirectory
	sessions       SessionRepository
	verifyPassword PasswordVerifier
	digester       *TokenDigester
	limiter        *LoginLimiter
	tokenGenerator func() (string, error)
	idGenerator    func() string
	now            func() time.Time
	sessionTTL     time.Duration
	logger         *slog.Logger
}

// AuthConfig groups the tunables of the identity provider.
type AuthConfig struct {
	Digester       *TokenDigester
	Limiter        *LoginLimiter
	Verify         PasswordVerifier
	TokenGenerator func() (string, error)
	IDGenerator    func() string
	Now            func() time.Time
	SessionTTL     time.Duration
}

// NewAuthService constructs an AuthService with the provided dependencies.
func NewAuthService(credentials CredentialStore, users UserDirectory, sessions SessionRepository, cfg AuthConfig) *AuthService {
	return NewAuthServiceWithLogger(credentials, users, sessions, cfg, nil)
}

// NewAuthServiceWithLogger constructs an AuthService with a specified logger.
func NewAuthServiceWithLogger(credentials CredentialStore, users UserDirectory, sessions SessionRepository, cfg AuthConfig, logger *slog.Logger) *AuthService {
	if cfg.Verify == nil {
		cfg.Verify = NewPasswordHasher(DefaultArgon2idParams).Verify
	}
	if cfg.TokenGenerator == nil {
		cfg.TokenGenerator = NewSessionToken
	}
	if cfg.IDGenerator == nil {
		cfg.IDGenerator = func() string { return "" }
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.Digester == nil {
		cfg.Digester = NewTokenDigester(nil)
	}
	return &AuthService{
		credentials:    credentials,
		users:          users,
		sessions:       sessions,
		verifyPassword: cfg.Verify,
		digester:       cfg.Digester,
		limiter:        cfg.Limiter,
		tokenGenerator: cfg.TokenGenerator,
		idGenerator:    cfg.IDGenerator,
		now:            cfg.Now,
		sessionTTL:     cfg.SessionTTL,
		logger:         defaultLogger(logger),
	}
}

func (s *AuthService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "AuthService", operation, attrs...)
}

// Authenticate verifies credentials and issues a new session. Every failure
// is an *AuthFailure carrying one of the closed set of reasons.
func (s *AuthService) Authenticate(ctx context.Context, params AuthenticateParams) (result AuthenticateResult, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.credentials == nil || s.users == nil || s.sessions == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	email := strings.TrimSpace(strings.ToLower(params.Email))
	logger := s.loggerWith(ctx, "Authenticate", "email", email)
	defer func() {
		if err != nil {
			logger.WarnContext(ctx, "authentication failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With(
			"user_id", result.User.ID,
			"session_id", result.Session.ID,
		).InfoContext(ctx, "authentication succeeded")
	}()

	if !validEmail(email) {
		err = authFailure(AuthInvalidEmail, nil)
		return
	}
	if !s.limiter.Allow(email) {
		err = authFailure(AuthRateLimited, nil)
		return
	}

	var creds Credentials
	creds, err = s.credentials.GetCredentialsByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = authFailure(AuthUserNotFound, nil)
			return
		}
		err = authFailure(AuthNetworkFailure, err)
		return
	}

	if verifyErr := s.verifyPassword(creds.PasswordHash, params.Password); verifyErr != nil {
		if errors.Is(verifyErr, ErrInvalidCredentials) {
			err = authFailure(AuthWrongPassword, nil)
			return
		}
		err = authFailure(AuthOther, verifyErr)
		return
	}

	var user User
	user, err = s.users.EnsureUser(ctx, creds)
	if err != nil {
		err = authFailure(AuthNetworkFailure, err)
		return
	}
	if user.Disabled {
		err = authFailure(AuthDisabled, nil)
		return
	}

	now := s.now()
	if pruneErr := s.sessions.DeleteExpiredSessions(ctx, now); pruneErr != nil {
		logger.WarnContext(ctx, "failed to prune expired sessions", "error", pruneErr)
	}

	token, tokenErr := s.tokenGenerator()
	if tokenErr != nil {
		err = authFailure(AuthOther, tokenErr)
		return
	}

	record := SessionRecord{
		ID:          s.idGenerator(),
		UserID:      user.ID,
		TokenDigest: s.digester.Digest(token),
		ExpiresAt:   now.Add(s.sessionTTL),
		CreatedAt:   now,
	}
	if createErr := s.sessions.CreateSession(ctx, record); createErr != nil {
		err = authFailure(AuthNetworkFailure, createErr)
		return
	}

	result = AuthenticateResult{
		User: user,
		Session: Session{
			ID:        record.ID,
			UserID:    user.ID,
			Token:     token,
			ExpiresAt: record.ExpiresAt,
		},
	}
	return
}

// RevokeSession invalidates an existing session token.
func (s *AuthService) RevokeSession(ctx context.Context, token string) error {
	if s == nil {
		return fmt.Errorf("AuthService is nil")
	}
	if s.sessions == nil {
		return fmt.Errorf("session repository not configured")
	}

	trimmed := strings.TrimSpace(token)
	if trimmed == "" {
		return ErrUnauthorized
	}

	logger := s.loggerWith(ctx, "RevokeSession")

	if err := s.sessions.RevokeSession(ctx, s.digester.Digest(trimmed), s.now()); err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "failed to revoke session", "error", ErrUnauthorized, "error_kind", ErrorKind(ErrUnauthorized))
			return ErrUnauthorized
		}
		logger.ErrorContext(ctx, "failed to revoke session", "error", err, "error_kind", ErrorKind(err))
		return err
	}

	logger.InfoContext(ctx, "session revoked")
	return nil
}

// ValidateSession resolves token to the principal of an active session. The
// user record is re-read on every call.
func (s *AuthService) ValidateSession(ctx context.Context, token string) (principal Principal, err error) {
	if s == nil {
		err = fmt.Errorf("AuthService is nil")
		return
	}
	if s.sessions == nil || s.users == nil {
		err = fmt.Errorf("auth service not configured")
		return
	}

	trimmed := strings.TrimSpace(token)
	logger := s.loggerWith(ctx, "ValidateSession", "token_provided", trimmed != "")
	defer func() {
		if err != nil {
			logger.DebugContext(ctx, "session validation failed", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("principal_id", principal.UserID).DebugContext(ctx, "session validated")
	}()

	if trimmed == "" {
		err = ErrUnauthorized
		return
	}

	var session SessionRecord
	session, err = s.sessions.GetSessionByDigest(ctx, s.digester.Digest(trimmed))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}

	if session.RevokedAt != nil && !session.RevokedAt.IsZero() {
		err = ErrSessionRevoked
		return
	}
	if !session.ExpiresAt.After(s.now()) {
		err = ErrSessionExpired
		return
	}

	var user User
	user, err = s.users.LookupUser(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			err = ErrUnauthorized
		}
		return
	}
	if user.Disabled {
		err = ErrAccountDisabled
		return
	}

	principal = user.Principal()
	return
}

func validEmail(email string) bool {
	if email == "" {
		return false
	}
	addr, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return addr.Address == email
}
