// Package http exposes the TimeCapsule stores to views over HTTP.
//
// The router exposes the following endpoints:
//   - POST /login, POST /signup: authenticate the process session. Bodies:
//     {"email","password"} and {"name","email","password","confirmPassword"}.
//     Responses carry the `identityDTO` and a redirect to the dashboard.
//   - POST /logout: clears the session. GET /session reports the session state.
//   - GET /messages: the dashboard. Query parameters `search`, `category` and
//     `sort` (scheduledDate, title, createdAt) filter the collection; the
//     response also lists categories and the next upcoming message.
//   - POST /messages, GET/PATCH/DELETE /messages/{id}, POST /messages/refresh:
//     message management exchanging the `messageDTO` payload defined in
//     message_handler.go.
//   - GET /calendar?date=YYYY-MM-DD: messages scheduled on a day plus the
//     per-day counts of its month.
//   - GET /events: WebSocket stream of session, messages and notification frames.
//   - GET /metrics, GET /healthz.
//
// Message, calendar and event routes answer 401 with `Location: /login` while
// the session is anonymous. Errors use {"error_code","message","errors"}.
//
// Request/response DTOs live alongside their respective handlers so tests and
// documentation share the same ground truth.
package http
