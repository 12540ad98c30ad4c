package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"
)

// UserRepository captures the persistence operations needed by the user service.
type UserRepository interface {
	CreateUser(ctx context.Context, user User) (User, error)
	GetUser(ctx context.Context, id string) (User, error)
	GetUserByEmail(ctx context.Context, email string) (User, error)
	UpdateUser(ctx context.Context, user User) (User, error)
	ListUsers(ctx context.Context) ([]User, error)
}

// AccountRepository stores a user record together with its credentials.
type AccountRepository interface {
	CreateAccount(ctx context.Context, user User, passwordHash string) (User, error)
}

// PasswordHashFunc derives the stored hash of a new password.
type PasswordHashFunc func(password string) (string, error)

// UserService is the user directory: it provisions authorization records on
// first login and lets administrators manage accounts.
type UserService struct {
	users       UserRepository
	accounts    AccountRepository
	hash        PasswordHashFunc
	idGenerator func() string
	now         func() time.Time
	logger      *slog.Logger
}

// NewUserService wires dependencies for the user service.
func NewUserService(users UserRepository, accounts AccountRepository, hash PasswordHashFunc, idGenerator func() string, now func() time.Time) *UserService {
	return NewUserServiceWithLogger(users, accounts, hash, idGenerator, now, nil)
}

// NewUserServiceWithLogger wires dependencies for the user service with a logger.
func NewUserServiceWithLogger(users UserRepository, accounts AccountRepository, hash PasswordHashFunc, idGenerator func() string, now func() time.Time, logger *slog.Logger) *UserService {
	if hash == nil {
		hash = NewPasswordHasher(DefaultArgon2idParams).Hash
	}
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	if now == nil {
		now = time.Now
	}
	return &UserService{
		users:       users,
		accounts:    accounts,
		hash:        hash,
		idGenerator: idGenerator,
		now:         now,
		logger:      defaultLogger(logger),
	}
}

func (s *UserService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "UserService", operation, attrs...)
}

// EnsureUser returns the user record of creds, creating a regular account
// with a derived username when the identity has none yet.
func (s *UserService) EnsureUser(ctx context.Context, creds Credentials) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}

	user, err := s.users.GetUser(ctx, creds.UserID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, err
	}

	now := s.now()
	user = User{
		ID:        creds.UserID,
		Email:     strings.ToLower(strings.TrimSpace(creds.Email)),
		Username:  DeriveUsername(creds.Email),
		Role:      RoleRegular,
		CreatedAt: now,
		UpdatedAt: now,
	}

	created, err := s.users.CreateUser(ctx, user)
	if errors.Is(err, ErrAlreadyExists) {
		// Another login provisioned the record first.
		return s.users.GetUser(ctx, creds.UserID)
	}
	if err != nil {
		return User{}, err
	}

	s.loggerWith(ctx, "EnsureUser", "user_id", created.ID).InfoContext(ctx, "user provisioned on first login")
	return created, nil
}

// LookupUser returns the user record with id.
func (s *UserService) LookupUser(ctx context.Context, id string) (User, error) {
	if s == nil {
		return User{}, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, fmt.Errorf("user repository not configured")
	}
	return s.users.GetUser(ctx, id)
}

// ListUsers returns all users for administrators, ordered by username.
func (s *UserService) ListUsers(ctx context.Context, principal Principal) (users []User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListUsers", "principal_id", principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list users", "error", err, "error_kind", ErrorKind(err))
		}
	}()

	if !CanManageUsers(principal) {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		return nil, nil
	}

	users, err = s.users.ListUsers(ctx)
	if err != nil {
		return nil, err
	}

	out := make([]User, len(users))
	copy(out, users)
	sort.Slice(out, func(i, j int) bool {
		if strings.EqualFold(out[i].Username, out[j].Username) {
			return strings.ToLower(out[i].Email) < strings.ToLower(out[j].Email)
		}
		return strings.ToLower(out[i].Username) < strings.ToLower(out[j].Username)
	})
	return out, nil
}

// CreateAccount validates input and stores a new account for administrators.
func (s *UserService) CreateAccount(ctx context.Context, params CreateAccountParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "CreateAccount", "principal_id", params.Principal.UserID)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to create account", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("user_id", user.ID, "role", string(user.Role)).InfoContext(ctx, "account created")
	}()

	if !CanManageUsers(params.Principal) {
		err = ErrUnauthorized
		return
	}

	return s.createAccount(ctx, params)
}

// BootstrapAdmin creates an administrator account for email unless a user
// with that email already exists. The boolean reports whether one was created.
func (s *UserService) BootstrapAdmin(ctx context.Context, email, password string) (User, bool, error) {
	if s == nil {
		return User{}, false, fmt.Errorf("UserService is nil")
	}
	if s.users == nil {
		return User{}, false, fmt.Errorf("user repository not configured")
	}

	normalized := strings.ToLower(strings.TrimSpace(email))
	existing, err := s.users.GetUserByEmail(ctx, normalized)
	if err == nil {
		return existing, false, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return User{}, false, err
	}

	user, err := s.createAccount(ctx, CreateAccountParams{Email: normalized, Password: password, Role: RoleAdmin})
	if err != nil {
		return User{}, false, err
	}
	s.loggerWith(ctx, "BootstrapAdmin", "user_id", user.ID).InfoContext(ctx, "bootstrap administrator created")
	return user, true, nil
}

func (s *UserService) createAccount(ctx context.Context, params CreateAccountParams) (User, error) {
	if s.accounts == nil {
		return User{}, fmt.Errorf("account repository not configured")
	}

	email := strings.ToLower(strings.TrimSpace(params.Email))
	username := sanitizeText(params.Username)
	if username == "" {
		username = DeriveUsername(email)
	}
	role := params.Role
	if role == RoleNone {
		role = RoleRegular
	}

	vErr := &ValidationError{}
	if email == "" {
		vErr.add("email", "email is required")
	} else if !validEmail(email) {
		vErr.add("email", "email is invalid")
	}
	if len(params.Password) < MinPasswordLength {
		vErr.add("password", fmt.Sprintf("password must be at least %d characters", MinPasswordLength))
	}
	if _, ok := ParseRole(string(role)); !ok {
		vErr.add("role", "role is invalid")
	}
	if vErr.HasErrors() {
		return User{}, vErr
	}

	hash, err := s.hash(params.Password)
	if err != nil {
		return User{}, fmt.Errorf("hash password: %w", err)
	}

	now := s.now()
	user := User{
		ID:        s.idGenerator(),
		Email:     email,
		Username:  username,
		Role:      role,
		CreatedAt: now,
		UpdatedAt: now,
	}
	return s.accounts.CreateAccount(ctx, user, hash)
}

// UpdateUser applies an administrator's edit. Administrators cannot disable
// or demote themselves.
func (s *UserService) UpdateUser(ctx context.Context, params UpdateUserParams) (user User, err error) {
	if s == nil {
		err = fmt.Errorf("UserService is nil")
		return
	}

	logger := s.loggerWith(ctx, "UpdateUser",
		"principal_id", params.Principal.UserID,
		"user_id", params.UserID,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to update user", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("role", string(user.Role), "disabled", user.Disabled).InfoContext(ctx, "user updated")
	}()

	if !CanManageUsers(params.Principal) {
		err = ErrUnauthorized
		return
	}
	if s.users == nil {
		err = fmt.Errorf("user repository not configured")
		return
	}

	var existing User
	existing, err = s.users.GetUser(ctx, params.UserID)
	if err != nil {
		return
	}

	updated := existing
	vErr := &ValidationError{}
	if params.Username != nil {
		updated.Username = sanitizeText(*params.Username)
		if updated.Username == "" {
			vErr.add("username", "username is required")
		}
	}
	if params.Role != nil {
		role, ok := ParseRole(string(*params.Role))
		if !ok {
			vErr.add("role", "role is invalid")
		}
		updated.Role = role
	}
	if params.Disabled != nil {
		updated.Disabled = *params.Disabled
	}

	if existing.ID == params.Principal.UserID {
		if updated.Role != RoleAdmin && !vErr.HasErrors() {
			vErr.add("role", "administrators cannot demote themselves")
		}
		if updated.Disabled {
			vErr.add("disabled", "administrators cannot disable themselves")
		}
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}

	updated.UpdatedAt = s.now()
	user, err = s.users.UpdateUser(ctx, updated)
	return
}
