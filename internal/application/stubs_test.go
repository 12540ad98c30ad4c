package application

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/persistence"
	"github.com/example/vehicle-scheduler/internal/scheduler"
	"github.com/example/vehicle-scheduler/internal/store"
)

// memoryReservations is an in-memory reservation store that also serves as a
// conflict detector source.
type memoryReservations struct {
	mu        sync.Mutex
	items     map[string]scheduler.Reservation
	nextID    int
	getCalls  int
	mutations []string
	createErr error
	updateErr error
	deleteErr error
	getErr    error
	queryErr  error
}

func newMemoryReservations(seed ...scheduler.Reservation) *memoryReservations {
	m := &memoryReservations{items: make(map[string]scheduler.Reservation)}
	for _, res := range seed {
		if res.Version == 0 {
			res.Version = 1
		}
		m.items[res.ID] = res
	}
	return m
}

func (m *memoryReservations) Get(_ context.Context, id string) (scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getErr != nil {
		return scheduler.Reservation{}, m.getErr
	}
	res, ok := m.items[id]
	if !ok {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}
	return res, nil
}

func (m *memoryReservations) Create(_ context.Context, res scheduler.Reservation) (scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, "create")
	if m.createErr != nil {
		return scheduler.Reservation{}, m.createErr
	}
	m.nextID++
	res.ID = fmt.Sprintf("res-%d", m.nextID)
	res.Version = 1
	m.items[res.ID] = res
	return res, nil
}

func (m *memoryReservations) Update(_ context.Context, id string, version int64, start, end time.Time, description string) (scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, "update")
	if m.updateErr != nil {
		return scheduler.Reservation{}, m.updateErr
	}
	res, ok := m.items[id]
	if !ok {
		return scheduler.Reservation{}, persistence.ErrNotFound
	}
	if res.Version != version {
		return scheduler.Reservation{}, persistence.ErrStaleVersion
	}
	res.Start, res.End, res.Description = start, end, description
	res.Version++
	m.items[id] = res
	return res, nil
}

func (m *memoryReservations) Delete(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.mutations = append(m.mutations, "delete")
	if m.deleteErr != nil {
		return m.deleteErr
	}
	if _, ok := m.items[id]; !ok {
		return persistence.ErrNotFound
	}
	delete(m.items, id)
	return nil
}

func (m *memoryReservations) QueryOverlapping(_ context.Context, candidate scheduler.Range) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.queryErr != nil {
		return nil, m.queryErr
	}
	var out []scheduler.Reservation
	for _, res := range m.items {
		if res.Range().Overlaps(candidate) {
			out = append(out, res)
		}
	}
	return out, nil
}

func (m *memoryReservations) ListAll(_ context.Context) ([]scheduler.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]scheduler.Reservation, 0, len(m.items))
	for _, res := range m.items {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (m *memoryReservations) mutationCalls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Clone(m.mutations)
}

type conflictCheckerStub struct {
	conflict bool
	err      error
	calls    int
	exclude  []string
}

func (c *conflictCheckerStub) HasConflict(_ context.Context, _ scheduler.Range, excludeID string) (bool, error) {
	c.calls++
	c.exclude = append(c.exclude, excludeID)
	return c.conflict, c.err
}

type outcomeRecorderStub struct {
	mu       sync.Mutex
	outcomes []string
}

func (r *outcomeRecorderStub) RecordBookingOutcome(operation, outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, operation+":"+outcome)
}

func (r *outcomeRecorderStub) recorded() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.outcomes)
}

type userDirectoryStub struct {
	users     map[string]User
	ensureErr error
	lookupErr error
	ensured   []Credentials
}

func newUserDirectoryStub(users ...User) *userDirectoryStub {
	stub := &userDirectoryStub{users: make(map[string]User)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *userDirectoryStub) EnsureUser(_ context.Context, creds Credentials) (User, error) {
	s.ensured = append(s.ensured, creds)
	if s.ensureErr != nil {
		return User{}, s.ensureErr
	}
	if u, ok := s.users[creds.UserID]; ok {
		return u, nil
	}
	u := User{ID: creds.UserID, Email: creds.Email, Username: DeriveUsername(creds.Email), Role: RoleRegular}
	s.users[u.ID] = u
	return u, nil
}

func (s *userDirectoryStub) LookupUser(_ context.Context, id string) (User, error) {
	if s.lookupErr != nil {
		return User{}, s.lookupErr
	}
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

type credentialStoreStub struct {
	credentials map[string]Credentials
	err         error
}

func (s *credentialStoreStub) GetCredentialsByEmail(_ context.Context, email string) (Credentials, error) {
	if s.err != nil {
		return Credentials{}, s.err
	}
	creds, ok := s.credentials[email]
	if !ok {
		return Credentials{}, ErrNotFound
	}
	return creds, nil
}

type sessionRepositoryStub struct {
	mu          sync.Mutex
	sessions    map[string]SessionRecord
	createErr   error
	deleteErr   error
	deleteCalls []time.Time
}

func newSessionRepositoryStub() *sessionRepositoryStub {
	return &sessionRepositoryStub{sessions: make(map[string]SessionRecord)}
}

func (s *sessionRepositoryStub) CreateSession(_ context.Context, session SessionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.sessions[session.TokenDigest] = session
	return nil
}

func (s *sessionRepositoryStub) GetSessionByDigest(_ context.Context, digest string) (SessionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[digest]
	if !ok {
		return SessionRecord{}, ErrNotFound
	}
	return session, nil
}

func (s *sessionRepositoryStub) RevokeSession(_ context.Context, digest string, revokedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[digest]
	if !ok {
		return ErrNotFound
	}
	session.RevokedAt = &revokedAt
	s.sessions[digest] = session
	return nil
}

func (s *sessionRepositoryStub) DeleteExpiredSessions(_ context.Context, reference time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleteCalls = append(s.deleteCalls, reference)
	return s.deleteErr
}

type userRepositoryStub struct {
	users     map[string]User
	createErr error
	updateErr error
	created   []User
}

func newUserRepositoryStub(users ...User) *userRepositoryStub {
	stub := &userRepositoryStub{users: make(map[string]User)}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (s *userRepositoryStub) CreateUser(_ context.Context, user User) (User, error) {
	if s.createErr != nil {
		return User{}, s.createErr
	}
	if _, exists := s.users[user.ID]; exists {
		return User{}, ErrAlreadyExists
	}
	s.users[user.ID] = user
	s.created = append(s.created, user)
	return user, nil
}

func (s *userRepositoryStub) GetUser(_ context.Context, id string) (User, error) {
	u, ok := s.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return u, nil
}

func (s *userRepositoryStub) GetUserByEmail(_ context.Context, email string) (User, error) {
	for _, u := range s.users {
		if u.Email == email {
			return u, nil
		}
	}
	return User{}, ErrNotFound
}

func (s *userRepositoryStub) UpdateUser(_ context.Context, user User) (User, error) {
	if s.updateErr != nil {
		return User{}, s.updateErr
	}
	if _, ok := s.users[user.ID]; !ok {
		return User{}, ErrNotFound
	}
	s.users[user.ID] = user
	return user, nil
}

func (s *userRepositoryStub) ListUsers(_ context.Context) ([]User, error) {
	out := make([]User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

type accountRepositoryStub struct {
	users  *userRepositoryStub
	hashes map[string]string
}

func (s *accountRepositoryStub) CreateAccount(ctx context.Context, user User, passwordHash string) (User, error) {
	if _, err := s.users.GetUserByEmail(ctx, user.Email); err == nil {
		return User{}, ErrAlreadyExists
	}
	created, err := s.users.CreateUser(ctx, user)
	if err != nil {
		return User{}, err
	}
	if s.hashes == nil {
		s.hashes = make(map[string]string)
	}
	s.hashes[user.Email] = passwordHash
	return created, nil
}

type batteryRepositoryStub struct {
	level   *BatteryLevel
	getErr  error
	saveErr error
	saves   []BatteryLevel
}

func (s *batteryRepositoryStub) GetBatteryLevel(context.Context) (BatteryLevel, error) {
	if s.getErr != nil {
		return BatteryLevel{}, s.getErr
	}
	if s.level == nil {
		return BatteryLevel{}, ErrNotFound
	}
	return *s.level, nil
}

func (s *batteryRepositoryStub) SaveBatteryLevel(_ context.Context, level BatteryLevel) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, level)
	s.level = &level
	return nil
}

// snapshotSourceStub hands out the initial snapshot synchronously and lets
// tests push later ones.
type snapshotSourceStub struct {
	mu        sync.Mutex
	initial   []scheduler.Reservation
	listeners []store.Listener
	err       error
	cancelled int
}

func (s *snapshotSourceStub) Subscribe(_ context.Context, fn store.Listener) (func(), error) {
	if s.err != nil {
		return nil, s.err
	}
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
	fn(slices.Clone(s.initial))
	return func() {
		s.mu.Lock()
		s.cancelled++
		s.mu.Unlock()
	}, nil
}

func (s *snapshotSourceStub) push(snapshot []scheduler.Reservation) {
	s.mu.Lock()
	listeners := slices.Clone(s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(slices.Clone(snapshot))
	}
}
