package http

import (
	"context"
	"sync"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/calendar"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

var testPrincipal = application.Principal{UserID: "u-1", Email: "ana.horvat@example.com", Username: "Ana Horvat", Role: application.RoleRegular}

var testAdmin = application.Principal{UserID: "admin-1", Email: "admin@example.com", Username: "Admin", Role: application.RoleAdmin}

type validatorStub struct {
	principals map[string]application.Principal
	errs       map[string]error
}

func (v validatorStub) ValidateSession(_ context.Context, token string) (application.Principal, error) {
	if err, ok := v.errs[token]; ok {
		return application.Principal{}, err
	}
	if p, ok := v.principals[token]; ok {
		return p, nil
	}
	return application.Principal{}, application.ErrUnauthorized
}

func defaultValidator() validatorStub {
	return validatorStub{principals: map[string]application.Principal{
		"user-token":  testPrincipal,
		"admin-token": testAdmin,
	}}
}

type authServiceStub struct {
	result  application.AuthenticateResult
	err     error
	revoked []string
	params  application.AuthenticateParams
}

func (s *authServiceStub) Authenticate(_ context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error) {
	s.params = params
	return s.result, s.err
}

func (s *authServiceStub) RevokeSession(_ context.Context, token string) error {
	s.revoked = append(s.revoked, token)
	return s.err
}

type bookingServiceStub struct {
	mu        sync.Mutex
	result    application.BookingResult
	err       error
	forms     []application.BookingForm
	deleted   []string
	confirmed []bool
}

func (s *bookingServiceStub) Submit(_ context.Context, _ application.Principal, form application.BookingForm) (application.BookingResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.forms = append(s.forms, form)
	return s.result, s.err
}

func (s *bookingServiceStub) DeleteReservation(_ context.Context, _ application.Principal, id string, confirmed bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	s.confirmed = append(s.confirmed, confirmed)
	if s.err != nil {
		return s.err
	}
	if !confirmed {
		return application.ErrConfirmationRequired
	}
	return nil
}

type calendarViewStub struct {
	mu           sync.Mutex
	reservations []scheduler.Reservation
	revision     uint64
	changes      chan struct{}
	reads        chan uint64
	monthCalls   []time.Month
	monthYears   []int
	stopped      bool
}

func newCalendarViewStub(reservations ...scheduler.Reservation) *calendarViewStub {
	return &calendarViewStub{reservations: reservations, revision: 1, changes: make(chan struct{})}
}

func (c *calendarViewStub) Month(year int, month time.Month) (application.MonthView, error) {
	c.mu.Lock()
	c.monthYears = append(c.monthYears, year)
	c.monthCalls = append(c.monthCalls, month)
	c.mu.Unlock()
	if month < time.January || month > time.December {
		return application.MonthView{}, &application.ValidationError{FieldErrors: map[string]string{"month": "month is invalid"}}
	}
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return application.MonthView{
		Year:      year,
		Month:     month,
		Cells:     calendar.Month(year, month, first, time.UTC, c.reservations),
		PrevYear:  first.AddDate(0, -1, 0).Year(),
		PrevMonth: first.AddDate(0, -1, 0).Month(),
		NextYear:  first.AddDate(0, 1, 0).Year(),
		NextMonth: first.AddDate(0, 1, 0).Month(),
		Revision:  c.revision,
	}, nil
}

func (c *calendarViewStub) Day(date string) (application.DayView, error) {
	day, err := time.Parse(time.DateOnly, date)
	if err != nil {
		return application.DayView{}, &application.ValidationError{FieldErrors: map[string]string{"date": "date is invalid"}}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return application.DayView{Date: day, Reservations: c.reservations, Revision: c.revision}, nil
}

func (c *calendarViewStub) Reservations() ([]scheduler.Reservation, uint64) {
	c.mu.Lock()
	reservations, revision := c.reservations, c.revision
	c.mu.Unlock()
	if c.reads != nil {
		c.reads <- revision
	}
	return reservations, revision
}

func (c *calendarViewStub) Watch() (<-chan struct{}, func()) {
	return c.changes, func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
	}
}

func (c *calendarViewStub) Location() *time.Location {
	return time.UTC
}

func (c *calendarViewStub) setReservations(revision uint64, reservations ...scheduler.Reservation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.reservations = reservations
	c.revision = revision
}

type userServiceStub struct {
	users       []application.User
	created     application.CreateAccountParams
	updated     application.UpdateUserParams
	err         error
	createCalls int
	updateCalls int
}

func (s *userServiceStub) CreateAccount(_ context.Context, params application.CreateAccountParams) (application.User, error) {
	s.createCalls++
	s.created = params
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: "new-user", Email: params.Email, Username: params.Username, Role: params.Role}, nil
}

func (s *userServiceStub) UpdateUser(_ context.Context, params application.UpdateUserParams) (application.User, error) {
	s.updateCalls++
	s.updated = params
	if s.err != nil {
		return application.User{}, s.err
	}
	return application.User{ID: params.UserID, Role: application.RoleRegular}, nil
}

func (s *userServiceStub) ListUsers(_ context.Context, principal application.Principal) ([]application.User, error) {
	if !principal.IsAdmin() {
		return nil, application.ErrUnauthorized
	}
	return s.users, s.err
}

type batteryServiceStub struct {
	level   application.BatteryLevel
	err     error
	updates []int
}

func (s *batteryServiceStub) Get(context.Context, application.Principal) (application.BatteryLevel, error) {
	return s.level, s.err
}

func (s *batteryServiceStub) Update(_ context.Context, principal application.Principal, value int) (application.BatteryLevel, error) {
	s.updates = append(s.updates, value)
	if s.err != nil {
		return application.BatteryLevel{}, s.err
	}
	if !principal.IsAdmin() {
		return application.BatteryLevel{}, application.ErrUnauthorized
	}
	s.level = application.BatteryLevel{Level: value, UpdatedAt: time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC), UpdatedBy: principal.Username}
	return s.level, nil
}

type httpRecorderStub struct {
	mu       sync.Mutex
	routes   []string
	statuses []int
}

func (s *httpRecorderStub) RecordHTTPRequest(_ string, route string, status int, _ time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.routes = append(s.routes, route)
	s.statuses = append(s.statuses, status)
}
