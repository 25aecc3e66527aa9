// Package memory provides the in-process backing stores used by default: the
// credential directory, the message backing store and a key-value store for the
// persisted session.
package memory

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/example/timecapsule/internal/persistence"
)

// Storage keeps identities, messages and key-value entries in memory. Messages
// and identities are returned in insertion order.
type Storage struct {
	mu         sync.RWMutex
	identities []persistence.Identity
	messages   []persistence.Message
	values     map[string][]byte
}

// Open returns an empty Storage.
func Open() *Storage {
	return &Storage{values: make(map[string][]byte)}
}

// Close releases resources held by the storage. No-op for the in-memory implementation.
func (s *Storage) Close() error {
	return nil
}

// --- IdentityRepository implementation ---

// CreateIdentity appends a new identity. Emails must be unique.
func (s *Storage) CreateIdentity(ctx context.Context, identity persistence.Identity) error {
	if identity.ID == "" || identity.Email == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.identities {
		if existing.ID == identity.ID {
			return fmt.Errorf("memory: identity %s: %w", identity.ID, persistence.ErrDuplicate)
		}
		if existing.Email == identity.Email {
			return fmt.Errorf("memory: email %s: %w", identity.Email, persistence.ErrDuplicate)
		}
	}

	s.identities = append(s.identities, identity)
	return nil
}

// GetIdentityByEmail returns the identity registered under the exact email.
func (s *Storage) GetIdentityByEmail(ctx context.Context, email string) (persistence.Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, identity := range s.identities {
		if identity.Email == email {
			return identity, nil
		}
	}
	return persistence.Identity{}, persistence.ErrNotFound
}

// --- MessageRepository implementation ---

// CreateMessage appends a new message.
func (s *Storage) CreateMessage(ctx context.Context, message persistence.Message) error {
	if message.ID == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexLocked(message.ID) >= 0 {
		return fmt.Errorf("memory: message %s: %w", message.ID, persistence.ErrDuplicate)
	}

	s.messages = append(s.messages, message)
	return nil
}

// ListMessages returns every message in insertion order.
func (s *Storage) ListMessages(ctx context.Context) ([]persistence.Message, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return slices.Clone(s.messages), nil
}

// UpdateMessage merges patch onto the stored message and returns the result.
func (s *Storage) UpdateMessage(ctx context.Context, id string, patch persistence.MessagePatch) (persistence.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return persistence.Message{}, persistence.ErrNotFound
	}

	merged := patch.Apply(s.messages[idx])
	s.messages[idx] = merged
	return merged, nil
}

// DeleteMessage removes a message by ID.
func (s *Storage) DeleteMessage(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := s.indexLocked(id)
	if idx < 0 {
		return persistence.ErrNotFound
	}

	s.messages = slices.Delete(s.messages, idx, idx+1)
	return nil
}

func (s *Storage) indexLocked(id string) int {
	return slices.IndexFunc(s.messages, func(m persistence.Message) bool {
		return m.ID == id
	})
}

// --- KeyValueStore implementation ---

// Get returns the value stored under key.
func (s *Storage) Get(ctx context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	value, ok := s.values[normalizeKey(key)]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return slices.Clone(value), nil
}

// Set stores value under key, replacing any previous value.
func (s *Storage) Set(ctx context.Context, key string, value []byte) error {
	key = normalizeKey(key)
	if key == "" {
		return persistence.ErrConstraintViolation
	}

	s.mu.Lock()
	s.values[key] = slices.Clone(value)
	s.mu.Unlock()
	return nil
}

// Delete removes key. Deleting an absent key is not an error.
func (s *Storage) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	delete(s.values, normalizeKey(key))
	s.mu.Unlock()
	return nil
}

func normalizeKey(key string) string {
	return strings.TrimSpace(key)
}
