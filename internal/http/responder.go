package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timecapsule/internal/application"
)

const maxRequestBody = 1 << 20

var (
	errBadRequestBody   = errors.New("Invalid request body.")
	errInvalidMessageID = errors.New("Invalid message id.")
	errInvalidDate      = errors.New("Date must use the YYYY-MM-DD format.")
)

// serviceErrors lists the store sentinels in match order.
var serviceErrors = []struct {
	target  error
	status  int
	message string
}{
	{application.ErrInvalidCredentials, http.StatusUnauthorized, "Invalid email or password."},
	{application.ErrNotAuthenticated, http.StatusUnauthorized, "Please log in to access this page."},
	{application.ErrDuplicateEmail, http.StatusConflict, "User already exists."},
	{application.ErrNotFound, http.StatusNotFound, "Message not found."},
}

type responder struct {
	logger *slog.Logger
}

func newResponder(logger *slog.Logger) responder {
	return responder{logger: defaultLogger(logger)}
}

func (r responder) readJSON(w http.ResponseWriter, req *http.Request, dst any) error {
	body := http.MaxBytesReader(w, req.Body, maxRequestBody)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		return fmt.Errorf("decode %s body: %w", req.URL.Path, err)
	}
	return nil
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
	message := statusMessage(status)
	if err != nil {
		if msg := strings.TrimSpace(err.Error()); msg != "" {
			message = msg
		}
		r.loggerFor(ctx).ErrorContext(ctx, "request failed", "status", status, "error", err)
	}

	r.writeJSON(ctx, w, status, errorResponse{Message: message})
}

func (r responder) handleServiceError(ctx context.Context, w http.ResponseWriter, err error) {
	if err == nil {
		r.writeError(ctx, w, http.StatusInternalServerError, errors.New("unknown error"))
		return
	}

	status, resp := serviceErrorResponse(err)
	if status >= http.StatusInternalServerError {
		r.loggerFor(ctx).ErrorContext(ctx, "store operation failed", "error_kind", resp.ErrorCode, "error", err)
	}
	r.writeJSON(ctx, w, status, resp)
}

func serviceErrorResponse(err error) (int, errorResponse) {
	code := application.ErrorKind(err)
	for _, known := range serviceErrors {
		if errors.Is(err, known.target) {
			return known.status, errorResponse{ErrorCode: code, Message: known.message}
		}
	}

	var vErr *application.ValidationError
	if errors.As(err, &vErr) {
		return http.StatusUnprocessableEntity, errorResponse{
			ErrorCode: code,
			Message:   statusMessage(http.StatusUnprocessableEntity),
			Errors:    vErr.FieldErrors,
		}
	}

	return http.StatusInternalServerError, errorResponse{ErrorCode: code, Message: statusMessage(http.StatusInternalServerError)}
}

func (r responder) loggerFor(ctx context.Context) *slog.Logger {
	if logger := LoggerFromContext(ctx); logger != nil {
		return logger
	}
	return r.logger
}

func statusMessage(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "The request could not be understood."
	case http.StatusUnauthorized:
		return "Please log in to access this page."
	case http.StatusNotFound:
		return "The requested resource was not found."
	case http.StatusConflict:
		return "The request conflicts with the current state."
	case http.StatusUnprocessableEntity:
		return "Please correct the highlighted fields."
	default:
		return "Something went wrong. Please try again."
	}
}

type errorResponse struct {
	ErrorCode string            `json:"error_code,omitempty"`
	Message   string            `json:"message"`
	Errors    map[string]string `json:"errors,omitempty"`
	Redirect  string            `json:"redirect,omitempty"`
}
