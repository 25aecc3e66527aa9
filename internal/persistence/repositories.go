package persistence

import "context"

// IdentityRepository stores registered identities. Email lookups are exact and
// case-sensitive.
type IdentityRepository interface {
	CreateIdentity(ctx context.Context, identity Identity) error
	GetIdentityByEmail(ctx context.Context, email string) (Identity, error)
}

// MessageRepository stores scheduled messages in insertion order.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context) ([]Message, error)
	UpdateMessage(ctx context.Context, id string, patch MessagePatch) (Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// KeyValueStore persists small opaque values that must survive a restart.
// Get returns ErrNotFound when the key is absent.
type KeyValueStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
}
