package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
	"github.com/example/vehicle-scheduler/internal/scheduler"
)

type testServer struct {
	auth     *authServiceStub
	bookings *bookingServiceStub
	calendar *calendarViewStub
	users    *userServiceStub
	battery  *batteryServiceStub
	recorder *httpRecorderStub
	limiter  *RateLimiter
	handler  http.Handler
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestServer(t *testing.T, limiter *RateLimiter) *testServer {
	t.Helper()

	logger := discardLogger()
	s := &testServer{
		auth:     &authServiceStub{},
		bookings: &bookingServiceStub{},
		calendar: newCalendarViewStub(),
		users:    &userServiceStub{},
		battery:  &batteryServiceStub{},
		recorder: &httpRecorderStub{},
		limiter:  limiter,
	}
	if limiter != nil {
		t.Cleanup(limiter.Stop)
	}

	now := func() time.Time { return time.Date(2024, 6, 15, 10, 0, 0, 0, time.UTC) }
	s.handler = NewRouter(RouterDeps{
		Logger:         logger,
		Sessions:       defaultValidator(),
		RateLimiter:    limiter,
		Metrics:        s.recorder,
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = io.WriteString(w, "metrics") }),
		Auth:           NewAuthHandler(s.auth, logger),
		Reservations:   NewReservationHandler(s.bookings, s.calendar, logger),
		Calendar:       NewCalendarHandler(s.calendar, now, logger),
		Users:          NewUserHandler(s.users, logger),
		Battery:        NewBatteryHandler(s.battery, logger),
	})
	return s
}

func (s *testServer) do(method, path, token, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error body %q: %v", rec.Body.String(), err)
	}
	return resp
}

func TestRouter_PublicEndpoints(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)

	rec := s.do(http.MethodGet, "/healthz", "", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status = %d", rec.Code)
	}

	rec = s.do(http.MethodGet, "/metrics", "", "")
	if rec.Code != http.StatusOK || rec.Body.String() != "metrics" {
		t.Fatalf("metrics = %d %q", rec.Code, rec.Body.String())
	}
}

func TestRouter_HealthCheckFailure(t *testing.T) {
	t.Parallel()

	handler := NewRouter(RouterDeps{
		Logger:      discardLogger(),
		HealthCheck: func(context.Context) error { return errors.New("db down") },
	})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("status = %d, want 503", rec.Code)
	}
}

func TestRouter_RequiresSession(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	paths := []string{"/reservations", "/calendar/month", "/calendar/day?date=2024-06-01", "/users", "/settings/battery"}
	for _, path := range paths {
		rec := s.do(http.MethodGet, path, "", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s without token = %d, want 401", path, rec.Code)
		}
		rec = s.do(http.MethodGet, path, "bogus", "")
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("GET %s with bogus token = %d, want 401", path, rec.Code)
		}
	}
}

func TestRouter_ListReservations(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.calendar.setReservations(7,
		scheduler.Reservation{ID: "r1", OwnerID: testPrincipal.UserID, OwnerDisplayName: "Ana Horvat", Start: time.Date(2024, 6, 20, 9, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 20, 10, 0, 0, 0, time.UTC), Version: 1},
		scheduler.Reservation{ID: "r2", OwnerID: "other", OwnerDisplayName: "Ivo Ivic", Start: time.Date(2024, 6, 20, 11, 0, 0, 0, time.UTC), End: time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC), Version: 3},
	)

	rec := s.do(http.MethodGet, "/reservations", "user-token", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}

	var resp listReservationsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Revision != 7 || len(resp.Reservations) != 2 {
		t.Fatalf("unexpected response: %+v", resp)
	}
	if !resp.Reservations[0].CanModify || resp.Reservations[1].CanModify {
		t.Fatalf("can_modify flags wrong: %+v", resp.Reservations)
	}
	if resp.Reservations[0].Start != "2024-06-20T09:00:00Z" {
		t.Fatalf("start = %q", resp.Reservations[0].Start)
	}
}

func TestRouter_InstrumentsRoutePattern(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, nil)
	s.do(http.MethodDelete, "/reservations/abc?confirm=true", "user-token", "")

	s.recorder.mu.Lock()
	defer s.recorder.mu.Unlock()
	if len(s.recorder.routes) != 1 {
		t.Fatalf("recorded %d requests", len(s.recorder.routes))
	}
	if s.recorder.routes[0] != "/reservations/{id}" {
		t.Fatalf("route = %q", s.recorder.routes[0])
	}
	if s.recorder.statuses[0] != http.StatusNoContent {
		t.Fatalf("status = %d", s.recorder.statuses[0])
	}
}

func TestRouter_RateLimit(t *testing.T) {
	t.Parallel()

	s := newTestServer(t, NewRateLimiter(PerMinute(1), discardLogger()))

	if rec := s.do(http.MethodGet, "/reservations", "user-token", ""); rec.Code != http.StatusOK {
		t.Fatalf("first request = %d", rec.Code)
	}
	rec := s.do(http.MethodGet, "/reservations", "user-token", "")
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("second request = %d, want 429", rec.Code)
	}
	if got := rec.Header().Get("Retry-After"); got != "60" {
		t.Fatalf("Retry-After = %q, want 60", got)
	}

	// Budgets are per user.
	if rec := s.do(http.MethodGet, "/reservations", "admin-token", ""); rec.Code != http.StatusOK {
		t.Fatalf("other user = %d", rec.Code)
	}
	if got := s.limiter.Tracked(); got != 2 {
		t.Fatalf("tracked = %d, want 2", got)
	}
}

func TestRateLimiter_CleanupDropsIdleUsers(t *testing.T) {
	t.Parallel()

	rl := NewRateLimiter(RateLimiterConfig{Rate: 1, Burst: 1, CleanupInterval: time.Hour}, discardLogger())
	t.Cleanup(rl.Stop)

	rl.limiterFor("u-1")
	rl.cleanup(time.Now().Add(3 * time.Hour))
	if got := rl.Tracked(); got != 0 {
		t.Fatalf("tracked = %d, want 0", got)
	}

	rl.limiterFor("u-2")
	rl.cleanup(time.Now())
	if got := rl.Tracked(); got != 1 {
		t.Fatalf("tracked = %d, want 1", got)
	}
}

func TestRequireSession_ErrorMapping(t *testing.T) {
	t.Parallel()

	validator := validatorStub{errs: map[string]error{
		"expired":  application.ErrSessionExpired,
		"revoked":  application.ErrSessionRevoked,
		"disabled": application.ErrAccountDisabled,
		"broken":   errors.New("db down"),
	}}
	handler := RequireSession(validator, discardLogger())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		token  string
		status int
		code   string
	}{
		{token: "expired", status: http.StatusUnauthorized, code: "AUTH_SESSION_EXPIRED"},
		{token: "revoked", status: http.StatusUnauthorized, code: "AUTH_SESSION_EXPIRED"},
		{token: "disabled", status: http.StatusUnauthorized, code: "AUTH_DISABLED"},
		{token: "unknown", status: http.StatusUnauthorized, code: "AUTH_INVALID_SESSION"},
		{token: "broken", status: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.token, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.AddCookie(&http.Cookie{Name: sessionCookieName, Value: tt.token})
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)

			if rec.Code != tt.status {
				t.Fatalf("status = %d, want %d", rec.Code, tt.status)
			}
			if got := decodeError(t, rec).ErrorCode; got != tt.code {
				t.Fatalf("error_code = %q, want %q", got, tt.code)
			}
		})
	}
}
