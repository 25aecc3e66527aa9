package application

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/example/timecapsule/internal/persistence"
)

type credentialDirectoryStub struct {
	mu        sync.Mutex
	entries   []Credentials
	lookupErr error
	createErr error
}

func newCredentialDirectoryStub(entries ...Credentials) *credentialDirectoryStub {
	return &credentialDirectoryStub{entries: entries}
}

func (c *credentialDirectoryStub) GetCredentialsByEmail(ctx context.Context, email string) (Credentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.lookupErr != nil {
		return Credentials{}, c.lookupErr
	}
	for _, entry := range c.entries {
		if entry.Identity.Email == email {
			return entry, nil
		}
	}
	return Credentials{}, persistence.ErrNotFound
}

func (c *credentialDirectoryStub) CreateCredentials(ctx context.Context, credentials Credentials) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.createErr != nil {
		return c.createErr
	}
	for _, entry := range c.entries {
		if entry.Identity.Email == credentials.Identity.Email {
			return persistence.ErrDuplicate
		}
	}
	c.entries = append(c.entries, credentials)
	return nil
}

func (c *credentialDirectoryStub) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

type kvStub struct {
	mu        sync.Mutex
	values    map[string][]byte
	getErr    error
	setErr    error
	deletes   []string
	deleteErr error
}

func newKVStub() *kvStub {
	return &kvStub{values: make(map[string][]byte)}
}

func (k *kvStub) Get(ctx context.Context, key string) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.getErr != nil {
		return nil, k.getErr
	}
	value, ok := k.values[key]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return slices.Clone(value), nil
}

func (k *kvStub) Set(ctx context.Context, key string, value []byte) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.setErr != nil {
		return k.setErr
	}
	k.values[key] = slices.Clone(value)
	return nil
}

func (k *kvStub) Delete(ctx context.Context, key string) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.deletes = append(k.deletes, key)
	if k.deleteErr != nil {
		return k.deleteErr
	}
	delete(k.values, key)
	return nil
}

func (k *kvStub) value(key string) ([]byte, bool) {
	k.mu.Lock()
	defer k.mu.Unlock()
	v, ok := k.values[key]
	return v, ok
}

type messageRepoStub struct {
	mu        sync.Mutex
	messages  []Message
	listErr   error
	createErr error
	updateErr error
	deleteErr error
}

func (m *messageRepoStub) CreateMessage(ctx context.Context, message Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.messages = append(m.messages, message)
	return nil
}

func (m *messageRepoStub) ListMessages(ctx context.Context) ([]Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.messages), nil
}

func (m *messageRepoStub) UpdateMessage(ctx context.Context, id string, patch MessagePatch) (Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.updateErr != nil {
		return Message{}, m.updateErr
	}
	idx := slices.IndexFunc(m.messages, func(msg Message) bool { return msg.ID == id })
	if idx < 0 {
		return Message{}, persistence.ErrNotFound
	}
	m.messages[idx] = applyPatch(m.messages[idx], patch)
	return m.messages[idx], nil
}

func (m *messageRepoStub) DeleteMessage(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.deleteErr != nil {
		return m.deleteErr
	}
	idx := slices.IndexFunc(m.messages, func(msg Message) bool { return msg.ID == id })
	if idx < 0 {
		return persistence.ErrNotFound
	}
	m.messages = slices.Delete(m.messages, idx, idx+1)
	return nil
}

type notificationRecorder struct {
	mu    sync.Mutex
	items []Notification
}

func (r *notificationRecorder) Notify(ctx context.Context, n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.items = append(r.items, n)
}

func (r *notificationRecorder) all() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return slices.Clone(r.items)
}

type ownerStub struct {
	identity Identity
	ok       bool
}

func (o ownerStub) Current() (Identity, bool) {
	return o.identity, o.ok
}

type operationRecord struct {
	store, operation, kind string
}

type recorderStub struct {
	mu      sync.Mutex
	records []operationRecord
}

func (r *recorderStub) ObserveOperation(store, operation, kind string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.records = append(r.records, operationRecord{store, operation, kind})
}

var errBackend = errors.New("backend unavailable")

func fastHasher(secret string) (string, error) {
	return "hashed:" + secret, nil
}

func sequenceIDs(ids ...string) func() string {
	var mu sync.Mutex
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		if len(ids) == 0 {
			return "overflow"
		}
		id := ids[0]
		ids = ids[1:]
		return id
	}
}

func applyPatch(message Message, patch MessagePatch) Message {
	if patch.Title != nil {
		message.Title = *patch.Title
	}
	if patch.Content != nil {
		message.Content = *patch.Content
	}
	if patch.ScheduledDate != nil {
		message.ScheduledDate = *patch.ScheduledDate
	}
	if patch.RecipientEmail != nil {
		message.RecipientEmail = *patch.RecipientEmail
	}
	if patch.Category != nil {
		message.Category = *patch.Category
	}
	return message
}
