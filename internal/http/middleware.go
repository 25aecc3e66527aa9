package http

import (
	"bufio"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/example/timecapsule/internal/application"
)

// LoginPath is where unauthenticated visitors of protected routes are sent.
const LoginPath = "/login"

const defaultTracerName = "timecapsule/http"

// SessionGate reports whether the process session is authenticated.
type SessionGate interface {
	IsAuthenticated() bool
}

// StatusRecorder counts responses by status code.
type StatusRecorder interface {
	RecordHTTPStatus(statusCode int)
}

// RequireAuthenticated rejects requests while the session is anonymous. Each
// rejection emits one error notification and answers 401 pointing at the
// login page.
func RequireAuthenticated(gate SessionGate, notifier application.Notifier, logger *slog.Logger) func(http.Handler) http.Handler {
	responder := newResponder(logger)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if gate != nil && gate.IsAuthenticated() {
				next.ServeHTTP(w, r)
				return
			}

			ctx := r.Context()
			message := "Please log in to access this page"
			if notifier != nil {
				notifier.Notify(ctx, application.Notification{Kind: application.NotificationError, Message: message})
			}
			responder.loggerFor(ctx).WarnContext(ctx, "rejected anonymous request", "error_kind", application.ErrorKind(application.ErrNotAuthenticated))

			w.Header().Set("Location", LoginPath)
			responder.writeJSON(ctx, w, http.StatusUnauthorized, errorResponse{
				ErrorCode: application.ErrorKind(application.ErrNotAuthenticated),
				Message:   message,
				Redirect:  LoginPath,
			})
		})
	}
}

// RequestLogger attaches a request scoped logger and logs the request outcome.
func RequestLogger(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	var counter atomic.Uint64

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := counter.Add(1)
			logger := base.With(
				"request_id", id,
				"method", r.Method,
				"path", r.URL.Path,
			)

			ctx := ContextWithLogger(r.Context(), logger)
			rec := wrapStatus(w)
			start := time.Now()
			logger.DebugContext(ctx, "request started")
			next.ServeHTTP(rec, r.WithContext(ctx))
			logger.InfoContext(ctx, "request completed", "status", rec.status(), "duration", time.Since(start))
		})
	}
}

// Tracing starts a server span per request using the global tracer provider.
func Tracing(tracerName string) func(http.Handler) http.Handler {
	if tracerName == "" {
		tracerName = defaultTracerName
	}
	tracer := otel.Tracer(tracerName)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, span := tracer.Start(r.Context(), r.Method+" "+r.URL.Path,
				trace.WithSpanKind(trace.SpanKindServer),
				trace.WithAttributes(
					attribute.String("http.request.method", r.Method),
					attribute.String("url.path", r.URL.Path),
				),
			)
			defer span.End()

			rec := wrapStatus(w)
			next.ServeHTTP(rec, r.WithContext(ctx))

			status := rec.status()
			span.SetAttributes(attribute.Int("http.response.status_code", status))
			if pattern := routePattern(ctx); pattern != "" {
				span.SetAttributes(attribute.String("http.route", pattern))
			}
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}

// CountStatus records every response status with the recorder.
func CountStatus(recorder StatusRecorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if recorder == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec := wrapStatus(w)
			next.ServeHTTP(rec, r)
			recorder.RecordHTTPStatus(rec.status())
		})
	}
}

type statusWriter struct {
	http.ResponseWriter
	code        int
	wroteHeader bool
}

func wrapStatus(w http.ResponseWriter) *statusWriter {
	if sw, ok := w.(*statusWriter); ok {
		return sw
	}
	return &statusWriter{ResponseWriter: w}
}

func (sw *statusWriter) WriteHeader(code int) {
	if !sw.wroteHeader {
		sw.code = code
		sw.wroteHeader = true
	}
	sw.ResponseWriter.WriteHeader(code)
}

func (sw *statusWriter) Write(b []byte) (int, error) {
	if !sw.wroteHeader {
		sw.code = http.StatusOK
		sw.wroteHeader = true
	}
	return sw.ResponseWriter.Write(b)
}

// Hijack lets the event stream upgrade through the wrapper. A hijacked
// connection is reported as 101.
func (sw *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := sw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("http: response writer does not support hijacking")
	}
	conn, rw, err := hijacker.Hijack()
	if err == nil && !sw.wroteHeader {
		sw.code = http.StatusSwitchingProtocols
		sw.wroteHeader = true
	}
	return conn, rw, err
}

func (sw *statusWriter) Flush() {
	if flusher, ok := sw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

func (sw *statusWriter) status() int {
	if !sw.wroteHeader {
		return http.StatusOK
	}
	return sw.code
}
