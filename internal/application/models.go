package application

import (
	"slices"
	"time"
)

// Identity is a registered account as seen by the session.
type Identity struct {
	ID        string
	Email     string
	Name      string
	AvatarURL string
}

// Credentials pairs an identity with the secret hash held by the directory.
// SecretHash is empty for identities registered without a secret.
type Credentials struct {
	Identity   Identity
	SecretHash string
	CreatedAt  time.Time
}

// SessionState is a snapshot of the SessionStore. IsAuthenticated is true
// exactly when Identity is non-nil.
type SessionState struct {
	Identity        *Identity
	IsAuthenticated bool
	IsPending       bool
}

// Message is a scheduled message owned by a session identity.
type Message struct {
	ID             string
	OwnerID        string
	Title          string
	Content        string
	ScheduledDate  time.Time
	CreatedAt      time.Time
	RecipientEmail string
	Category       string
	IsDelivered    bool
}

// MessageDraft carries the user-editable fields of a new message.
type MessageDraft struct {
	Title          string
	Content        string
	ScheduledDate  time.Time
	RecipientEmail string
	Category       string
}

// MessagePatch lists the fields an update replaces. Nil fields are preserved;
// an empty RecipientEmail or Category clears the stored value.
type MessagePatch struct {
	Title          *string
	Content        *string
	ScheduledDate  *time.Time
	RecipientEmail *string
	Category       *string
}

// MessagesState is a snapshot of the MessageStore. LastError holds the
// ErrorKind label of the most recent failed operation, or "" after a success.
type MessagesState struct {
	Messages  []Message
	IsPending bool
	LastError string
}

// Find returns the message with the given id.
func (s MessagesState) Find(id string) (Message, bool) {
	idx := slices.IndexFunc(s.Messages, func(m Message) bool { return m.ID == id })
	if idx < 0 {
		return Message{}, false
	}
	return s.Messages[idx], true
}

func cloneIdentity(identity *Identity) *Identity {
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}
