package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// RouterDeps collects the handlers and middleware dependencies of NewRouter.
// Nil handlers leave their routes unregistered.
type RouterDeps struct {
	Logger *slog.Logger

	Sessions    SessionValidator
	RateLimiter *RateLimiter
	Metrics     HTTPRecorder

	MetricsHandler http.Handler
	HealthCheck    func(ctx context.Context) error

	Auth         *AuthHandler
	Reservations *ReservationHandler
	Calendar     *CalendarHandler
	Users        *UserHandler
	Battery      *BatteryHandler
}

// NewRouter builds the API router.
//
// Middleware order for every route:
//
//	RequestID → Recoverer → RequestLogger → Instrument
//
// Authenticated routes add RequireSession → RateLimiter.
func NewRouter(deps RouterDeps) http.Handler {
	logger := defaultLogger(deps.Logger)
	responder := newResponder(logger)

	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.Recoverer)
	r.Use(RequestLogger(logger))
	r.Use(Instrument(deps.Metrics))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		if deps.HealthCheck != nil {
			if err := deps.HealthCheck(req.Context()); err != nil {
				responder.loggerFor(req.Context()).ErrorContext(req.Context(), "health check failed", "error", err)
				responder.writeJSON(req.Context(), w, http.StatusServiceUnavailable, healthResponse{Status: "unavailable"})
				return
			}
		}
		responder.writeJSON(req.Context(), w, http.StatusOK, healthResponse{Status: "ok"})
	})
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	if deps.Auth != nil {
		r.Post("/sessions", deps.Auth.CreateSession)
		r.Delete("/sessions/current", deps.Auth.DeleteCurrentSession)
	}

	if deps.Sessions == nil {
		return r
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireSession(deps.Sessions, logger))
		r.Use(deps.RateLimiter.Middleware())

		if h := deps.Reservations; h != nil {
			r.Route("/reservations", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
				r.Delete("/{id}", h.Delete)
			})
		}

		if h := deps.Calendar; h != nil {
			r.Route("/calendar", func(r chi.Router) {
				r.Get("/month", h.Month)
				r.Get("/day", h.Day)
				r.Get("/stream", h.Stream)
			})
		}

		if h := deps.Users; h != nil {
			r.Route("/users", func(r chi.Router) {
				r.Get("/", h.List)
				r.Post("/", h.Create)
				r.Put("/{id}", h.Update)
			})
		}

		if h := deps.Battery; h != nil {
			r.Get("/settings/battery", h.Get)
			r.Put("/settings/battery", h.Update)
		}
	})

	return r
}

type healthResponse struct {
	Status string `json:"status"`
}
