package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/example/timecapsule/internal/application"
)

type RouterConfig struct {
	Auth     *AuthHandler
	Messages *MessageHandler
	Events   http.Handler
	Metrics  http.Handler

	// Gate guards the message, calendar and event routes. Rejections are
	// reported through Notifier.
	Gate     SessionGate
	Notifier application.Notifier

	Middleware []func(http.Handler) http.Handler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()
	responder := newResponder(cfg.Logger)

	for _, mw := range cfg.Middleware {
		if mw != nil {
			r.Use(mw)
		}
	}

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusNotFound, errorResponse{Message: statusMessage(http.StatusNotFound)})
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusMethodNotAllowed, errorResponse{Message: http.StatusText(http.StatusMethodNotAllowed)})
	})

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		responder.writeJSON(req.Context(), w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics)
	}

	if cfg.Auth != nil {
		r.Post("/login", cfg.Auth.Login)
		r.Post("/signup", cfg.Auth.Signup)
		r.Post("/logout", cfg.Auth.Logout)
		r.Get("/session", cfg.Auth.Session)
	}

	r.Group(func(r chi.Router) {
		r.Use(RequireAuthenticated(cfg.Gate, cfg.Notifier, cfg.Logger))

		if cfg.Messages != nil {
			r.Route("/messages", func(r chi.Router) {
				r.Get("/", cfg.Messages.List)
				r.Post("/", cfg.Messages.Create)
				r.Post("/refresh", cfg.Messages.Refresh)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", cfg.Messages.Get)
					r.Patch("/", cfg.Messages.Update)
					r.Delete("/", cfg.Messages.Delete)
				})
			})
			r.Get("/calendar", cfg.Messages.Calendar)
		}

		if cfg.Events != nil {
			r.Method(http.MethodGet, "/events", cfg.Events)
		}
	})

	return r
}
