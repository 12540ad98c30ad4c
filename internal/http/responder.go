package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/vehicle-scheduler/internal/application"
)

var (
	errBadRequestBody      = errors.New("Neispravan format zahtjeva.")
	errInvalidID           = errors.New("Neispravan identifikator.")
	errInvalidQuery        = errors.New("Neispravni parametri upita.")
	errMissingSessionToken = errors.New("Potreban je token sesije.")
)

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	if logger == nil {
		logger = slog.Default()
	}
	return responder{logger: logger}
}

func (r responder) writeJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	if w == nil {
		return
	}

	if status == http.StatusNoContent || payload == nil {
		w.WriteHeader(status)
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.loggerFor(ctx).ErrorContext(ctx, "failed to encode response", "error", err)
	}
}

func (r responder) writeError(ctx context.Context, w http.ResponseWriter, status int, err error) {
	message := localizedStatusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).WarnContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

// handleServiceError maps application errors to a status and a user facing
// message. Unexpected causes are logged and never echoed.
func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	var authErr *application.AuthFailure
	if errors.As(err, &authErr) {
		status, code, message := authFailureResponse(authErr.Reason)
		r.writeJSON(ctx, w, status, errorResponse{ErrorCode: code, Message: message})
		return
	}

	switch {
	case errors.Is(err, application.ErrUnauthorized):
		r.writeJSON(ctx, w, http.StatusForbidden, errorResponse{
			ErrorCode: "AUTH_FORBIDDEN",
			Message:   "Nemate ovlasti za ovu radnju.",
		})
	case errors.Is(err, application.ErrAccountDisabled):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_DISABLED", Message: "Korisnički račun je onemogućen."})
	case errors.Is(err, application.ErrSessionExpired), errors.Is(err, application.ErrSessionRevoked):
		r.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{ErrorCode: "AUTH_SESSION_EXPIRED", Message: "Sesija je istekla. Prijavite se ponovno."})
	case errors.Is(err, application.ErrNotFound):
		r.writeJSON(ctx, w, http.StatusNotFound, errorResponse{Message: "Traženi resurs nije pronađen."})
	case errors.Is(err, application.ErrConflict):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "SLOT_ALREADY_BOOKED", Message: "Termin je već rezerviran."})
	case errors.Is(err, application.ErrPastReservation):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "PAST_RESERVATION", Message: "Nije moguće uređivati prošlu rezervaciju."})
	case errors.Is(err, application.ErrStaleReservation):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "STALE_RESERVATION", Message: "Rezervacija je u međuvremenu promijenjena. Osvježite prikaz i pokušajte ponovno."})
	case errors.Is(err, application.ErrBusy):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "BOOKING_IN_PROGRESS", Message: "Prethodna rezervacija se još obrađuje."})
	case errors.Is(err, application.ErrAlreadyExists):
		r.writeJSON(ctx, w, http.StatusConflict, errorResponse{ErrorCode: "ALREADY_EXISTS", Message: "Korisnik s tom adresom e-pošte već postoji."})
	case errors.Is(err, application.ErrConfirmationRequired):
		r.writeJSON(ctx, w, http.StatusPreconditionRequired, errorResponse{ErrorCode: "CONFIRMATION_REQUIRED", Message: "Potvrdite brisanje rezervacije."})
	case errors.Is(err, application.ErrSaveFailed):
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{ErrorCode: "SAVE_FAILED", Message: "Spremanje nije uspjelo."})
	default:
		var vErr *application.ValidationError
		if errors.As(err, &vErr) {
			r.writeJSON(ctx, w, http.StatusUnprocessableEntity, errorResponse{
				Message: "Uneseni podaci nisu ispravni.",
				Errors:  localizeValidationErrors(vErr),
			})
			return
		}

		r.loggerFor(ctx).ErrorContext(ctx, "unexpected service error", "error", err)
		r.writeJSON(ctx, w, http.StatusInternalServerError, errorResponse{Message: "Došlo je do pogreške na poslužitelju."})
	}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func authFailureResponse(reason application.AuthFailureReason) (int, string, string) {
	switch reason {
	case application.AuthInvalidEmail:
		return http.StatusBadRequest, "AUTH_INVALID_EMAIL", "Adresa e-pošte nije ispravna."
	case application.AuthUserNotFound:
		return http.StatusUnauthorized, "AUTH_USER_NOT_FOUND", "Korisnik s tom adresom e-pošte ne postoji."
	case application.AuthWrongPassword:
		return http.StatusUnauthorized, "AUTH_WRONG_PASSWORD", "Lozinka nije ispravna."
	case application.AuthDisabled:
		return http.StatusForbidden, "AUTH_DISABLED", "Korisnički račun je onemogućen."
	case application.AuthRateLimited:
		return http.StatusTooManyRequests, "AUTH_RATE_LIMITED", "Previše pokušaja prijave. Pokušajte kasnije."
	case application.AuthNetworkFailure:
		return http.StatusServiceUnavailable, "AUTH_UNAVAILABLE", "Usluga prijave trenutačno nije dostupna."
	default:
		return http.StatusUnauthorized, "AUTH_FAILED", "Prijava nije uspjela."
	}
}

func localizedStatusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "Zahtjev nije ispravan."
	case http.StatusUnauthorized:
		return "Potrebna je prijava."
	case http.StatusForbidden:
		return "Nemate ovlasti za ovu radnju."
	case http.StatusNotFound:
		return "Traženi resurs nije pronađen."
	case http.StatusConflict:
		return "Zahtjev je u sukobu s trenutačnim stanjem."
	case http.StatusUnprocessableEntity:
		return "Uneseni podaci nisu ispravni."
	case http.StatusTooManyRequests:
		return "Previše zahtjeva. Pokušajte kasnije."
	default:
		return "Došlo je do pogreške na poslužitelju."
	}
}

func localizeValidationErrors(vErr *application.ValidationError) map[string]string {
	if vErr == nil || len(vErr.FieldErrors) == 0 {
		return nil
	}

	translated := make(map[string]string, len(vErr.FieldErrors))
	for field, msg := range vErr.FieldErrors {
		translated[field] = translateValidationMessage(msg)
	}
	return translated
}

func translateValidationMessage(message string) string {
	switch message {
	case "date is required":
		return "Datum je obavezan."
	case "date is invalid":
		return "Datum nije ispravan."
	case "start time is required":
		return "Vrijeme početka je obavezno."
	case "start time is invalid":
		return "Vrijeme početka nije ispravno."
	case "end time is required":
		return "Vrijeme završetka je obavezno."
	case "end time is invalid":
		return "Vrijeme završetka nije ispravno."
	case "end must be after start":
		return "Završetak mora biti nakon početka."
	case "selected user does not exist":
		return "Odabrani korisnik ne postoji."
	case "selected user is disabled":
		return "Odabrani korisnik je onemogućen."
	case "email is required":
		return "Adresa e-pošte je obavezna."
	case "email is invalid":
		return "Adresa e-pošte nije ispravna."
	case "username is required":
		return "Korisničko ime je obavezno."
	case "role is invalid":
		return "Uloga nije ispravna."
	case "administrators cannot demote themselves":
		return "Administrator ne može sebi ukloniti administratorsku ulogu."
	case "administrators cannot disable themselves":
		return "Administrator ne može onemogućiti vlastiti račun."
	case "level must be between 0 and 100":
		return "Razina baterije mora biti između 0 i 100."
	case "month is invalid":
		return "Mjesec nije ispravan."
	case "year is invalid":
		return "Godina nije ispravna."
	default:
		if strings.HasPrefix(message, "password must be at least") {
			return "Lozinka je prekratka."
		}
		return message
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
}
