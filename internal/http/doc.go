// Package http exposes the vehicle scheduler over JSON/HTTP.
//
// Public endpoints:
//   - POST /sessions: body {"email","password"}; returns {"token","expires_at","user"}
//     and also sets the `session_token` cookie. Login failures carry an error_code
//     naming the reason (AUTH_WRONG_PASSWORD, AUTH_RATE_LIMITED, ...).
//   - DELETE /sessions/current: revokes the bearer token or cookie session.
//   - GET /healthz, GET /metrics.
//
// Authenticated endpoints (bearer token or cookie, per-user rate limited):
//   - GET /reservations, POST /reservations, PUT /reservations/{id},
//     DELETE /reservations/{id}?confirm=true. Bodies use the form fields
//     date (YYYY-MM-DD), start_time and end_time (HH:MM), description and, for
//     administrators, target_owner_id.
//   - GET /calendar/month?year=&month=, GET /calendar/day?date=YYYY-MM-DD.
//   - GET /calendar/stream: Server-Sent Events; each "snapshot" event carries the
//     complete ordered reservation set.
//   - GET /users, POST /users, PUT /users/{id}: administrator user management.
//   - GET /settings/battery, PUT /settings/battery.
//
// User facing messages are Croatian. DTOs live next to their handlers.
package http
