package persistence

import "time"

// Identity represents a registered account held by the credential directory.
type Identity struct {
	ID         string
	Email      string
	Name       string
	AvatarURL  string
	SecretHash string
	CreatedAt  time.Time
}

// Message represents a scheduled message stored in the backing store.
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

// MessagePatch lists the fields an update replaces. Nil fields are preserved.
type MessagePatch struct {
	Title          *string
	Content        *string
	ScheduledDate  *time.Time
	RecipientEmail *string
	Category       *string
}

// Apply returns a copy of message with the patch fields merged onto it.
func (p MessagePatch) Apply(message Message) Message {
	if p.Title != nil {
		message.Title = *p.Title
	}
	if p.Content != nil {
		message.Content = *p.Content
	}
	if p.ScheduledDate != nil {
		message.ScheduledDate = *p.ScheduledDate
	}
	if p.RecipientEmail != nil {
		message.RecipientEmail = *p.RecipientEmail
	}
	if p.Category != nil {
		message.Category = *p.Category
	}
	return message
}
