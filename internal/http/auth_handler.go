package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"

	"github.com/example/timecapsule/internal/application"
	"github.com/example/timecapsule/internal/form"
)

// DashboardPath is where a freshly authenticated session is sent.
const DashboardPath = "/dashboard"

type sessionService interface {
	Login(ctx context.Context, email, secret string) (application.Identity, error)
	Signup(ctx context.Context, name, email, secret string) (application.Identity, error)
	Logout(ctx context.Context)
	Snapshot() application.SessionState
}

type AuthHandler struct {
	service   sessionService
	validator *form.Validator
	responder responder
	logger    *slog.Logger
}

func NewAuthHandler(service sessionService, validator *form.Validator, logger *slog.Logger) *AuthHandler {
	base := defaultLogger(logger)
	if validator == nil {
		validator = form.NewValidator()
	}
	return &AuthHandler{service: service, validator: validator, responder: newResponder(base), logger: base}
}

func (h *AuthHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "AuthHandler", operation, attrs...)
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req loginRequest
	if err := h.responder.readJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Login", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode login request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	email := req.Email
	logger := h.log(r.Context(), "Login", "email", email)

	if err := h.validator.Login(form.LoginInput{Email: email, Password: req.Password}); err != nil {
		logger.InfoContext(r.Context(), "login form rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	identity, err := h.service.Login(r.Context(), email, req.Password)
	if err != nil {
		logger.ErrorContext(r.Context(), "login failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("identity_id", identity.ID).InfoContext(r.Context(), "session authenticated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, authResponse{
		User:     toIdentityDTO(identity),
		Redirect: DashboardPath,
	})
}

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req signupRequest
	if err := h.responder.readJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Signup", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode signup request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	in := form.SignupInput{
		Name:            strings.TrimSpace(req.Name),
		Email:           strings.TrimSpace(req.Email),
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	}
	logger := h.log(r.Context(), "Signup", "email", in.Email)

	if err := h.validator.Signup(in); err != nil {
		logger.InfoContext(r.Context(), "signup form rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	identity, err := h.service.Signup(r.Context(), in.Name, in.Email, in.Password)
	if err != nil {
		logger.ErrorContext(r.Context(), "signup failed", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("identity_id", identity.ID).InfoContext(r.Context(), "account registered")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, authResponse{
		User:     toIdentityDTO(identity),
		Redirect: DashboardPath,
	})
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.service.Logout(r.Context())
	h.log(r.Context(), "Logout").InfoContext(r.Context(), "session cleared")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, sessionResponse{Redirect: LoginPath})
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionResponse(h.service.Snapshot()))
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type signupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type identityDTO struct {
	ID     string `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Avatar string `json:"avatarUrl,omitempty"`
}

type authResponse struct {
	User     identityDTO `json:"user"`
	Redirect string      `json:"redirect"`
}

type sessionResponse struct {
	IsAuthenticated bool         `json:"isAuthenticated"`
	IsPending       bool         `json:"isPending"`
	User            *identityDTO `json:"user"`
	Redirect        string       `json:"redirect,omitempty"`
}

func toIdentityDTO(identity application.Identity) identityDTO {
	return identityDTO{
		ID:     identity.ID,
		Email:  identity.Email,
		Name:   identity.Name,
		Avatar: identity.AvatarURL,
	}
}

func toSessionResponse(state application.SessionState) sessionResponse {
	resp := sessionResponse{
		IsAuthenticated: state.IsAuthenticated,
		IsPending:       state.IsPending,
	}
	if state.Identity != nil {
		dto := toIdentityDTO(*state.Identity)
		resp.User = &dto
	}
	return resp
}
