package application

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

var demoCredentials = Credentials{
	Identity: Identity{ID: "1", Email: "user@example.com", Name: "Demo User", AvatarURL: AvatarURL("Demo User")},
}

type sessionFixture struct {
	store       *SessionStore
	directory   *credentialDirectoryStub
	kv          *kvStub
	notes       *notificationRecorder
	recorder    *recorderStub
	transitions []SessionState
	mu          sync.Mutex
}

func newSessionFixture(t *testing.T, mutate func(*SessionStoreDeps)) *sessionFixture {
	t.Helper()

	f := &sessionFixture{
		directory: newCredentialDirectoryStub(demoCredentials),
		kv:        newKVStub(),
		notes:     &notificationRecorder{},
		recorder:  &recorderStub{},
	}
	deps := SessionStoreDeps{
		Credentials: f.directory,
		Persistence: f.kv,
		Notifier:    f.notes,
		HashSecret:  fastHasher,
		IDGenerator: sequenceIDs("id-1", "id-2", "id-3"),
		Now:         func() time.Time { return time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC) },
		Recorder:    f.recorder,
	}
	if mutate != nil {
		mutate(&deps)
	}
	f.store = NewSessionStore(deps)
	unsubscribe := f.store.Subscribe(func(state SessionState) {
		f.mu.Lock()
		f.transitions = append(f.transitions, state)
		f.mu.Unlock()
	})
	t.Cleanup(unsubscribe)
	return f
}

func (f *sessionFixture) states() []SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]SessionState(nil), f.transitions...)
}

func assertSessionInvariant(t *testing.T, states ...SessionState) {
	t.Helper()
	for i, state := range states {
		if state.IsAuthenticated != (state.Identity != nil) {
			t.Fatalf("state %d violates authentication invariant: %#v", i, state)
		}
	}
}

func assertNotifications(t *testing.T, got []Notification, want ...Notification) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("expected %d notifications, got %#v", len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("notification %d = %#v, want %#v", i, got[i], want[i])
		}
	}
}

func TestSessionStore_Login(t *testing.T) {
	t.Parallel()

	t.Run("accepts any secret for a known email", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		for _, secret := range []string{"", "x", "correct horse"} {
			identity, err := f.store.Login(context.Background(), "user@example.com", secret)
			if err != nil {
				t.Fatalf("Login(%q) failed: %v", secret, err)
			}
			if identity != demoCredentials.Identity {
				t.Fatalf("unexpected identity %#v", identity)
			}
		}

		state := f.store.Snapshot()
		if !state.IsAuthenticated || state.IsPending || state.Identity.Email != "user@example.com" {
			t.Fatalf("unexpected state after login: %#v", state)
		}

		raw, ok := f.kv.value(SessionKey)
		if !ok {
			t.Fatal("expected identity to be persisted")
		}
		var persisted map[string]string
		if err := json.Unmarshal(raw, &persisted); err != nil {
			t.Fatalf("persisted identity is not JSON: %v", err)
		}
		if persisted["id"] != "1" || persisted["email"] != "user@example.com" || persisted["name"] != "Demo User" || persisted["avatarUrl"] == "" {
			t.Fatalf("unexpected persisted identity %#v", persisted)
		}

		success := Notification{Kind: NotificationSuccess, Message: "Logged in successfully!"}
		assertNotifications(t, f.notes.all(), success, success, success)
		assertSessionInvariant(t, f.states()...)
	})

	t.Run("rejects unknown email", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		_, err := f.store.Login(context.Background(), "nobody@example.com", "secret")
		if !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}

		state := f.store.Snapshot()
		if state.IsAuthenticated || state.Identity != nil || state.IsPending {
			t.Fatalf("expected anonymous settled state, got %#v", state)
		}
		if _, ok := f.kv.value(SessionKey); ok {
			t.Fatal("expected nothing to be persisted")
		}
		assertNotifications(t, f.notes.all(), Notification{Kind: NotificationError, Message: "Invalid credentials"})
	})

	t.Run("email lookup is case-sensitive", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		if _, err := f.store.Login(context.Background(), "USER@example.com", "secret"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
	})

	t.Run("reports pending during the round trip", func(t *testing.T) {
		t.Parallel()

		var f *sessionFixture
		var observed SessionState
		f = newSessionFixture(t, func(deps *SessionStoreDeps) {
			deps.Delay = func(ctx context.Context) error {
				observed = f.store.Snapshot()
				return nil
			}
		})
		if _, err := f.store.Login(context.Background(), "user@example.com", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if !observed.IsPending || observed.IsAuthenticated {
			t.Fatalf("expected pending anonymous state during delay, got %#v", observed)
		}
		if f.store.Snapshot().IsPending {
			t.Fatal("expected pending to be cleared after login")
		}
	})

	t.Run("cancelled round trip is a persistence failure", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, func(deps *SessionStoreDeps) {
			deps.Delay = FixedDelay(time.Hour)
		})
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := f.store.Login(ctx, "user@example.com", "secret")
		if !errors.Is(err, ErrPersistenceFailure) || !errors.Is(err, context.Canceled) {
			t.Fatalf("expected wrapped cancellation, got %v", err)
		}
		if state := f.store.Snapshot(); state.IsPending || state.IsAuthenticated {
			t.Fatalf("unexpected state %#v", state)
		}
		assertNotifications(t, f.notes.all(), Notification{Kind: NotificationError, Message: "Failed to login"})
	})

	t.Run("strict verifier rejects the wrong secret", func(t *testing.T) {
		t.Parallel()

		hash, err := CreateSecretHash("right-secret", testArgon2idParams)
		if err != nil {
			t.Fatalf("CreateSecretHash failed: %v", err)
		}
		f := newSessionFixture(t, func(deps *SessionStoreDeps) {
			deps.Verify = VerifySecretHash
		})
		f.directory.entries[0].SecretHash = hash

		if _, err := f.store.Login(context.Background(), "user@example.com", "wrong"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("expected ErrInvalidCredentials, got %v", err)
		}
		if _, err := f.store.Login(context.Background(), "user@example.com", "right-secret"); err != nil {
			t.Fatalf("expected correct secret to pass, got %v", err)
		}
	})

	t.Run("persistence write failure does not fail login", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		f.kv.setErr = errBackend
		if _, err := f.store.Login(context.Background(), "user@example.com", "secret"); err != nil {
			t.Fatalf("Login failed: %v", err)
		}
		if !f.store.IsAuthenticated() {
			t.Fatal("expected authenticated session")
		}
	})

	t.Run("directory failure maps to persistence failure", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		f.directory.lookupErr = errBackend
		_, err := f.store.Login(context.Background(), "user@example.com", "secret")
		if !errors.Is(err, ErrPersistenceFailure) || !errors.Is(err, errBackend) {
			t.Fatalf("expected wrapped persistence failure, got %v", err)
		}
		if got := f.recorder.records; len(got) != 1 || got[0] != (operationRecord{"SessionStore", "login", "persistence_failure"}) {
			t.Fatalf("unexpected recorded operations %#v", got)
		}
	})
}

func TestSessionStore_Signup(t *testing.T) {
	t.Parallel()

	t.Run("registers and authenticates a new identity", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		identity, err := f.store.Signup(context.Background(), "Ada Lovelace", "ada@example.com", "secret1")
		if err != nil {
			t.Fatalf("Signup failed: %v", err)
		}

		want := Identity{
			ID:        "id-1",
			Email:     "ada@example.com",
			Name:      "Ada Lovelace",
			AvatarURL: "https://ui-avatars.com/api/?name=Ada+Lovelace&background=64C9CF&color=fff",
		}
		if identity != want {
			t.Fatalf("Signup identity = %#v, want %#v", identity, want)
		}
		if current, ok := f.store.Current(); !ok || current != want {
			t.Fatalf("expected session to hold new identity, got %#v", current)
		}

		stored, err := f.directory.GetCredentialsByEmail(context.Background(), "ada@example.com")
		if err != nil {
			t.Fatalf("expected identity in directory: %v", err)
		}
		if stored.SecretHash != "hashed:secret1" {
			t.Fatalf("expected hashed secret, got %q", stored.SecretHash)
		}
		assertNotifications(t, f.notes.all(), Notification{Kind: NotificationSuccess, Message: "Account created successfully!"})
	})

	t.Run("rejects a duplicate email", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		if _, err := f.store.Signup(context.Background(), "First", "new@example.com", "secret1"); err != nil {
			t.Fatalf("first Signup failed: %v", err)
		}
		f.store.Logout(context.Background())

		_, err := f.store.Signup(context.Background(), "Second", "new@example.com", "secret2")
		if !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		if f.directory.count() != 2 {
			t.Fatalf("expected directory to hold 2 identities, got %d", f.directory.count())
		}
		if state := f.store.Snapshot(); state.IsAuthenticated || state.IsPending {
			t.Fatalf("expected anonymous settled state, got %#v", state)
		}

		notes := f.notes.all()
		if last := notes[len(notes)-1]; last != (Notification{Kind: NotificationError, Message: "User already exists"}) {
			t.Fatalf("unexpected failure notification %#v", last)
		}
	})

	t.Run("rejects signup for a seeded email", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		if _, err := f.store.Signup(context.Background(), "Demo", "user@example.com", "secret1"); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
	})

	t.Run("racing registration maps to duplicate email", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		f.directory.createErr = errors.Join(errBackend, ErrDuplicateEmail)
		if _, err := f.store.Signup(context.Background(), "Racer", "racer@example.com", "secret1"); !errors.Is(err, ErrDuplicateEmail) {
			t.Fatalf("expected ErrDuplicateEmail, got %v", err)
		}
		if f.store.IsAuthenticated() {
			t.Fatal("expected anonymous session")
		}
	})
}

func TestSessionStore_Logout(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, func(deps *SessionStoreDeps) {
		deps.Delay = FixedDelay(time.Hour)
	})

	f.store.Logout(context.Background())
	if len(f.kv.deletes) != 1 || f.kv.deletes[0] != SessionKey {
		t.Fatalf("expected delete of %q while anonymous, got %#v", SessionKey, f.kv.deletes)
	}

	f.store.update(func() { f.store.identity = &Identity{ID: "1", Email: "user@example.com"} })
	_ = f.kv.Set(context.Background(), SessionKey, []byte(`{"id":"1","email":"user@example.com"}`))

	f.store.Logout(context.Background())
	if f.store.IsAuthenticated() {
		t.Fatal("expected anonymous session after logout")
	}
	if _, ok := f.kv.value(SessionKey); ok {
		t.Fatal("expected persisted identity to be removed")
	}

	success := Notification{Kind: NotificationSuccess, Message: "Logged out successfully!"}
	assertNotifications(t, f.notes.all(), success, success)
	assertSessionInvariant(t, f.states()...)
}

func TestSessionStore_RestoreSession(t *testing.T) {
	t.Parallel()

	t.Run("adopts a well-formed record without the directory", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		_ = f.kv.Set(context.Background(), SessionKey, []byte(`{"id":"42","email":"ghost@example.com","name":"Ghost"}`))

		if !f.store.RestoreSession(context.Background()) {
			t.Fatal("expected session to be restored")
		}
		current, ok := f.store.Current()
		if !ok || current.ID != "42" || current.Name != "Ghost" || current.AvatarURL != "" {
			t.Fatalf("unexpected restored identity %#v", current)
		}
		if len(f.notes.all()) != 0 {
			t.Fatalf("expected no notifications, got %#v", f.notes.all())
		}
	})

	malformed := map[string]string{
		"not json":      `{"id":`,
		"array":         `[1,2]`,
		"missing id":    `{"email":"ghost@example.com"}`,
		"missing email": `{"id":"42"}`,
		"null":          `null`,
	}
	for name, raw := range malformed {
		t.Run("discards "+name, func(t *testing.T) {
			t.Parallel()

			f := newSessionFixture(t, nil)
			_ = f.kv.Set(context.Background(), SessionKey, []byte(raw))

			if f.store.RestoreSession(context.Background()) {
				t.Fatal("expected restore to be rejected")
			}
			if f.store.IsAuthenticated() {
				t.Fatal("expected anonymous session")
			}
			if _, ok := f.kv.value(SessionKey); ok {
				t.Fatal("expected malformed record to be deleted")
			}
		})
	}

	t.Run("missing record leaves session empty", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		if f.store.RestoreSession(context.Background()) {
			t.Fatal("expected nothing to restore")
		}
		if len(f.kv.deletes) != 0 {
			t.Fatalf("expected no deletes, got %#v", f.kv.deletes)
		}
	})

	t.Run("read failure keeps the record", func(t *testing.T) {
		t.Parallel()

		f := newSessionFixture(t, nil)
		f.kv.getErr = errBackend
		if f.store.RestoreSession(context.Background()) {
			t.Fatal("expected restore to fail")
		}
		if len(f.kv.deletes) != 0 {
			t.Fatalf("expected no deletes on read failure, got %#v", f.kv.deletes)
		}
	})
}

func TestSessionStore_ConcurrentLoginsKeepInvariant(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, func(deps *SessionStoreDeps) {
		deps.Delay = FixedDelay(time.Millisecond)
	})
	f.directory.entries = append(f.directory.entries, Credentials{Identity: Identity{ID: "2", Email: "other@example.com", Name: "Other"}})

	var wg sync.WaitGroup
	for _, email := range []string{"user@example.com", "other@example.com", "user@example.com", "missing@example.com"} {
		wg.Add(1)
		go func(email string) {
			defer wg.Done()
			_, _ = f.store.Login(context.Background(), email, "secret")
		}(email)
	}
	wg.Wait()

	state := f.store.Snapshot()
	if !state.IsAuthenticated || state.IsPending {
		t.Fatalf("expected settled authenticated session, got %#v", state)
	}
	if id := state.Identity.ID; id != "1" && id != "2" {
		t.Fatalf("unexpected identity %q", id)
	}
	assertSessionInvariant(t, f.states()...)
}

func TestSessionStore_Unsubscribe(t *testing.T) {
	t.Parallel()

	store := NewSessionStore(SessionStoreDeps{Credentials: newCredentialDirectoryStub(demoCredentials)})
	var calls int
	unsubscribe := store.Subscribe(func(SessionState) { calls++ })

	store.Logout(context.Background())
	unsubscribe()
	unsubscribe()
	store.Logout(context.Background())

	if calls != 1 {
		t.Fatalf("expected 1 call before unsubscribe, got %d", calls)
	}
}

func TestSessionStore_SubscribersObserveStatesInOrder(t *testing.T) {
	t.Parallel()

	f := newSessionFixture(t, nil)
	_ = f.kv.Set(context.Background(), SessionKey, []byte(`{"id":"42","email":"ghost@example.com","name":"Ghost"}`))

	var (
		once     sync.Once
		blocked  = make(chan struct{})
		release  = make(chan struct{})
		mu       sync.Mutex
		observed []bool
	)
	unsubscribe := f.store.Subscribe(func(state SessionState) {
		if !state.IsAuthenticated {
			once.Do(func() {
				close(blocked)
				<-release
			})
		}
		mu.Lock()
		observed = append(observed, state.IsAuthenticated)
		mu.Unlock()
	})
	t.Cleanup(unsubscribe)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		f.store.Logout(context.Background())
	}()
	<-blocked

	restored := make(chan bool, 1)
	go func() {
		defer wg.Done()
		restored <- f.store.RestoreSession(context.Background())
	}()
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	if !<-restored {
		t.Fatal("expected session to be restored")
	}
	mu.Lock()
	defer mu.Unlock()
	if len(observed) != 2 {
		t.Fatalf("expected 2 deliveries, got %v", observed)
	}
	if last := observed[len(observed)-1]; last != f.store.IsAuthenticated() {
		t.Fatalf("last delivery IsAuthenticated=%v, store IsAuthenticated=%v", last, f.store.IsAuthenticated())
	}
	states := f.states()
	if last := states[len(states)-1]; last.IsAuthenticated != f.store.IsAuthenticated() {
		t.Fatalf("fixture subscriber ended on %#v", last)
	}
}
