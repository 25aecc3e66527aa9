package http

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestRequireAuthenticated(t *testing.T) {
	t.Parallel()

	t.Run("passes through when authenticated", func(t *testing.T) {
		t.Parallel()

		notifier := &notificationRecorder{}
		called := false
		handler := RequireAuthenticated(gateStub(true), notifier, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			called = true
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))

		if !called || rec.Code != http.StatusTeapot {
			t.Fatalf("expected next handler to run, got status %d", rec.Code)
		}
		if n := len(notifier.all()); n != 0 {
			t.Fatalf("expected no notifications, got %d", n)
		}
	})

	t.Run("treats a missing gate as anonymous", func(t *testing.T) {
		t.Parallel()

		handler := RequireAuthenticated(nil, nil, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			t.Fatal("next handler should not be called without a gate")
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/messages", nil))
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", rec.Code)
		}
	})
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	var sawLogger bool
	handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sawLogger = LoggerFromContext(r.Context()) != nil
		w.WriteHeader(http.StatusAccepted)
	}))

	for i := 0; i < 2; i++ {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/messages", nil))
	}

	if !sawLogger {
		t.Fatal("expected request logger in context")
	}

	var ids []float64
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("invalid log line %q: %v", line, err)
		}
		if entry["msg"] != "request completed" {
			continue
		}
		if entry["status"] != float64(http.StatusAccepted) || entry["path"] != "/messages" {
			t.Fatalf("unexpected completion entry: %#v", entry)
		}
		ids = append(ids, entry["request_id"].(float64))
	}
	if len(ids) != 2 || ids[0] == ids[1] {
		t.Fatalf("expected distinct request ids, got %v", ids)
	}
}

func TestTracingPreservesResponse(t *testing.T) {
	t.Parallel()

	handler := Tracing("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("boom"))
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusInternalServerError || rec.Body.String() != "boom" {
		t.Fatalf("unexpected response: %d %q", rec.Code, rec.Body.String())
	}
}

func TestCountStatus(t *testing.T) {
	t.Parallel()

	counter := &statusCounter{}
	handler := CountStatus(counter)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))

	for _, path := range []string{"/a", "/missing", "/b"} {
		handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if counter.count(http.StatusOK) != 2 || counter.count(http.StatusNotFound) != 1 {
		t.Fatalf("unexpected counts: %#v", counter.counts)
	}
}
