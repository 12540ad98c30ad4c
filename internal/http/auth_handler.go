package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/example/vehicle-scheduler/internal/application"
)

// sessionCookieName carries the session token for browser clients. API
// clients send the same token as a bearer credential.
const sessionCookieName = "vehicle_session"

type authService interface {
	Authenticate(ctx context.Context, params application.AuthenticateParams) (application.AuthenticateResult, error)
	RevokeSession(ctx context.Context, token string) error
}

// AuthHandler issues and revokes sessions.
type AuthHandler struct {
	sessions  authService
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service authService, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	return &AuthHandler{sessions: service, responder: newResponder(base), logger: base}
}

// CreateSession handles POST /sessions.
func (h *AuthHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sessions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()

	var body loginRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		handlerLogger(ctx, h.logger, "AuthHandler", "CreateSession").WarnContext(ctx, "login body rejected", "error", err)
		h.responder.writeError(ctx, w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	email := strings.TrimSpace(body.Email)
	logger := handlerLogger(ctx, h.logger, "AuthHandler", "CreateSession", "email", strings.ToLower(email))

	result, err := h.sessions.Authenticate(ctx, application.AuthenticateParams{Email: email, Password: body.Password})
	if err != nil {
		logger.WarnContext(ctx, "login failed", "error", err, "error_kind", application.ErrorKind(err))
		var failure *application.AuthFailure
		if errors.As(err, &failure) && failure.Reason == application.AuthRateLimited {
			writeRetryAfter(w, 60)
		}
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	http.SetCookie(w, sessionCookie(result.Session.Token, result.Session.ExpiresAt))
	logger.InfoContext(ctx, "session issued", "user_id", result.User.ID)

	h.responder.writeJSON(ctx, w, http.StatusCreated, loginResponse{
		Token:     result.Session.Token,
		ExpiresAt: result.Session.ExpiresAt.UTC().Format(time.RFC3339),
		User:      toUserDTO(result.User),
	})
}

// DeleteCurrentSession handles DELETE /sessions/current (logout).
func (h *AuthHandler) DeleteCurrentSession(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.sessions == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	ctx := r.Context()
	logger := handlerLogger(ctx, h.logger, "AuthHandler", "DeleteCurrentSession")

	token := extractTokenFromRequest(r)
	if token == "" {
		logger.WarnContext(ctx, "logout without a session token")
		h.responder.writeError(ctx, w, http.StatusUnauthorized, errMissingSessionToken)
		return
	}

	if err := h.sessions.RevokeSession(ctx, token); err != nil {
		logger.WarnContext(ctx, "logout failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(ctx, w, err)
		return
	}

	expired := sessionCookie("", time.Time{})
	expired.MaxAge = -1
	http.SetCookie(w, expired)
	logger.InfoContext(ctx, "session revoked")
	w.WriteHeader(http.StatusNoContent)
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string  `json:"token"`
	ExpiresAt string  `json:"expires_at"`
	User      userDTO `json:"user"`
}

func sessionCookie(token string, expires time.Time) *http.Cookie {
	cookie := &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   true,
		SameSite: http.SameSiteLaxMode,
	}
	if !expires.IsZero() {
		cookie.Expires = expires.UTC()
	}
	return cookie
}

// extractTokenFromRequest prefers the Authorization header over the cookie.
func extractTokenFromRequest(r *http.Request) string {
	if r == nil {
		return ""
	}
	scheme, credential, found := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if found && strings.EqualFold(scheme, "Bearer") {
		if token := strings.TrimSpace(credential); token != "" {
			return token
		}
	}
	if cookie, err := r.Cookie(sessionCookieName); err == nil {
		return strings.TrimSpace(cookie.Value)
	}
	return ""
}
