package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/example/timecapsule/internal/persistence"
)

// SessionKey is the persistence key holding the serialized session identity.
const SessionKey = "user"

const sessionStoreName = "SessionStore"

// CredentialDirectory resolves and registers identities by email. Lookups
// are exact and case-sensitive.
type CredentialDirectory interface {
	GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error)
	CreateCredentials(ctx context.Context, credentials Credentials) error
}

// SessionPersistence stores the serialized session identity across restarts.
// Get reports a missing key with persistence.ErrNotFound.
type SessionPersistence interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}

// SessionStoreDeps captures the collaborators of a SessionStore. Only
// Credentials is required.
type SessionStoreDeps struct {
	Credentials CredentialDirectory
	Persistence SessionPersistence
	Notifier    Notifier
	Verify      SecretVerifier
	HashSecret  SecretHasher
	IDGenerator func() string
	Now         func() time.Time
	Delay       Delay
	Recorder    OperationRecorder
	Logger      *slog.Logger
}

// SessionStore holds the authentication session of the running process.
type SessionStore struct {
	credentials CredentialDirectory
	persistence SessionPersistence
	notifier    Notifier
	verify      SecretVerifier
	hashSecret  SecretHasher
	idGenerator func() string
	now         func() time.Time
	delay       Delay
	recorder    OperationRecorder
	logger      *slog.Logger

	mu       sync.Mutex
	identity *Identity
	pending  bool
	subs     subscribers[SessionState]

	// publishMu orders deliveries so observers see states in the order
	// they were taken.
	publishMu sync.Mutex
}

// NewSessionStore constructs an anonymous SessionStore.
func NewSessionStore(deps SessionStoreDeps) *SessionStore {
	verify := deps.Verify
	if verify == nil {
		verify = AcceptAnySecret
	}
	hashSecret := deps.HashSecret
	if hashSecret == nil {
		hashSecret = NewSecretHasher(DefaultArgon2idParams)
	}
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &SessionStore{
		credentials: deps.Credentials,
		persistence: deps.Persistence,
		notifier:    defaultNotifier(deps.Notifier),
		verify:      verify,
		hashSecret:  hashSecret,
		idGenerator: idGenerator,
		now:         now,
		delay:       defaultDelay(deps.Delay),
		recorder:    defaultRecorder(deps.Recorder),
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *SessionStore) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return storeLogger(ctx, s.logger, sessionStoreName, operation, attrs...)
}

// Snapshot returns the current session state.
func (s *SessionStore) Snapshot() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *SessionStore) snapshotLocked() SessionState {
	return SessionState{
		Identity:        cloneIdentity(s.identity),
		IsAuthenticated: s.identity != nil,
		IsPending:       s.pending,
	}
}

// Current returns the session identity when the session is authenticated.
func (s *SessionStore) Current() (Identity, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.identity == nil {
		return Identity{}, false
	}
	return *s.identity, true
}

// IsAuthenticated reports whether an identity is present.
func (s *SessionStore) IsAuthenticated() bool {
	_, ok := s.Current()
	return ok
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes the registration. Deliveries are
// serialized in state order, so fn must not call the store's mutating
// operations synchronously.
func (s *SessionStore) Subscribe(fn func(SessionState)) func() {
	return s.subs.add(fn)
}

func (s *SessionStore) update(mutate func()) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	mutate()
	state := s.snapshotLocked()
	s.mu.Unlock()
	s.subs.publish(state)
}

// Login authenticates email against the credential directory. The secret is
// checked by the configured verifier, which accepts anything by default.
func (s *SessionStore) Login(ctx context.Context, email, secret string) (identity Identity, err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Login", "email", email)
	defer func() {
		s.recorder.ObserveOperation(sessionStoreName, "login", ErrorKind(err), time.Since(start))
		if err != nil {
			s.update(func() { s.pending = false })
			logger.ErrorContext(ctx, "login failed", "error", err, "error_kind", ErrorKind(err))
			s.notifier.Notify(ctx, Notification{Kind: NotificationError, Message: loginFailureMessage(err)})
			return
		}
		logger.With("identity_id", identity.ID).InfoContext(ctx, "login succeeded")
		s.notifier.Notify(ctx, Notification{Kind: NotificationSuccess, Message: "Logged in successfully!"})
	}()

	if s.credentials == nil {
		err = fmt.Errorf("credential directory not configured")
		return
	}

	s.update(func() { s.pending = true })
	if err = s.delay(ctx); err != nil {
		err = persistenceFailure(err)
		return
	}

	var creds Credentials
	creds, err = s.credentials.GetCredentialsByEmail(ctx, email)
	if err != nil {
		err = mapCredentialError(err)
		if errors.Is(err, ErrNotFound) {
			err = ErrInvalidCredentials
		}
		return
	}

	if verr := s.verify(creds.SecretHash, secret); verr != nil {
		err = ErrInvalidCredentials
		return
	}

	identity = creds.Identity
	s.establish(ctx, logger, identity)
	return
}

// Signup registers a new identity and authenticates it. Emails already held
// by the directory are rejected with ErrDuplicateEmail.
func (s *SessionStore) Signup(ctx context.Context, name, email, secret string) (identity Identity, err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Signup", "email", email)
	defer func() {
		s.recorder.ObserveOperation(sessionStoreName, "signup", ErrorKind(err), time.Since(start))
		if err != nil {
			s.update(func() { s.pending = false })
			logger.ErrorContext(ctx, "signup failed", "error", err, "error_kind", ErrorKind(err))
			s.notifier.Notify(ctx, Notification{Kind: NotificationError, Message: signupFailureMessage(err)})
			return
		}
		logger.With("identity_id", identity.ID).InfoContext(ctx, "signup succeeded")
		s.notifier.Notify(ctx, Notification{Kind: NotificationSuccess, Message: "Account created successfully!"})
	}()

	if s.credentials == nil {
		err = fmt.Errorf("credential directory not configured")
		return
	}

	s.update(func() { s.pending = true })
	if err = s.delay(ctx); err != nil {
		err = persistenceFailure(err)
		return
	}

	if _, lookupErr := s.credentials.GetCredentialsByEmail(ctx, email); lookupErr == nil {
		err = ErrDuplicateEmail
		return
	} else if mapped := mapCredentialError(lookupErr); !errors.Is(mapped, ErrNotFound) {
		err = mapped
		return
	}

	var secretHash string
	secretHash, err = s.hashSecret(secret)
	if err != nil {
		err = fmt.Errorf("hash secret: %w", err)
		return
	}

	identity = Identity{
		ID:        s.idGenerator(),
		Email:     email,
		Name:      name,
		AvatarURL: AvatarURL(name),
	}
	if err = s.credentials.CreateCredentials(ctx, Credentials{Identity: identity, SecretHash: secretHash, CreatedAt: s.now()}); err != nil {
		err = mapCredentialError(err)
		identity = Identity{}
		return
	}

	s.establish(ctx, logger, identity)
	return
}

// Logout clears the session immediately and removes the persisted identity,
// even when the session is already anonymous.
func (s *SessionStore) Logout(ctx context.Context) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Logout")

	s.update(func() { s.identity = nil })
	if s.persistence != nil {
		if err := s.persistence.Delete(ctx, SessionKey); err != nil {
			logger.WarnContext(ctx, "failed to delete persisted session", "error", err)
		}
	}

	s.recorder.ObserveOperation(sessionStoreName, "logout", "", time.Since(start))
	logger.InfoContext(ctx, "logout succeeded")
	s.notifier.Notify(ctx, Notification{Kind: NotificationSuccess, Message: "Logged out successfully!"})
}

// RestoreSession adopts the persisted identity without consulting the
// directory. A malformed record is deleted and the session stays anonymous.
// It reports whether a session was restored.
func (s *SessionStore) RestoreSession(ctx context.Context) bool {
	if s.persistence == nil {
		return false
	}
	logger := s.loggerWith(ctx, "RestoreSession")

	raw, err := s.persistence.Get(ctx, SessionKey)
	if err != nil {
		if !errors.Is(err, persistence.ErrNotFound) && !errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, "failed to read persisted session", "error", err)
		}
		return false
	}

	identity, err := decodeIdentity(raw)
	if err != nil {
		logger.WarnContext(ctx, "discarding malformed persisted session", "error", err)
		if derr := s.persistence.Delete(ctx, SessionKey); derr != nil {
			logger.WarnContext(ctx, "failed to delete persisted session", "error", derr)
		}
		return false
	}

	s.update(func() { s.identity = &identity })
	logger.With("identity_id", identity.ID).InfoContext(ctx, "session restored")
	return true
}

func (s *SessionStore) establish(ctx context.Context, logger *slog.Logger, identity Identity) {
	if s.persistence != nil {
		raw, err := encodeIdentity(identity)
		if err == nil {
			err = s.persistence.Set(ctx, SessionKey, raw)
		}
		if err != nil {
			logger.WarnContext(ctx, "failed to persist session", "error", err)
		}
	}
	s.update(func() {
		s.identity = &identity
		s.pending = false
	})
}

// AvatarURL returns the generated avatar image address for a display name.
func AvatarURL(name string) string {
	return "https://ui-avatars.com/api/?name=" + url.QueryEscape(name) + "&background=64C9CF&color=fff"
}

type persistedIdentity struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	AvatarURL string `json:"avatarUrl,omitempty"`
}

func encodeIdentity(identity Identity) ([]byte, error) {
	return json.Marshal(persistedIdentity{
		ID:        identity.ID,
		Email:     identity.Email,
		Name:      identity.Name,
		AvatarURL: identity.AvatarURL,
	})
}

func decodeIdentity(raw []byte) (Identity, error) {
	var record persistedIdentity
	if err := json.Unmarshal(raw, &record); err != nil {
		return Identity{}, fmt.Errorf("decode session identity: %w", err)
	}
	if strings.TrimSpace(record.ID) == "" || strings.TrimSpace(record.Email) == "" {
		return Identity{}, errors.New("session identity is missing id or email")
	}
	return Identity{
		ID:        record.ID,
		Email:     record.Email,
		Name:      record.Name,
		AvatarURL: record.AvatarURL,
	}, nil
}

func loginFailureMessage(err error) string {
	if errors.Is(err, ErrInvalidCredentials) {
		return "Invalid credentials"
	}
	return "Failed to login"
}

func signupFailureMessage(err error) string {
	if errors.Is(err, ErrDuplicateEmail) {
		return "User already exists"
	}
	return "Failed to sign up"
}
