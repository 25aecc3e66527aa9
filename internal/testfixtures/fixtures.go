package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/timecapsule/internal/application"
	"github.com/example/timecapsule/internal/persistence"
)

var (
	identityCounter uint64
	messageCounter  uint64
)

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// ----------------------------- Identity fixtures -----------------------------

// IdentityFixture represents a deterministic account that can be materialised
// for application or persistence tests.
type IdentityFixture struct {
	ID         string
	Email      string
	Name       string
	SecretHash string
	CreatedAt  time.Time
}

// IdentityOption configures the generated identity fixture.
type IdentityOption func(*IdentityFixture)

// NewIdentityFixture returns a deterministic identity fixture with optional overrides.
func NewIdentityFixture(opts ...IdentityOption) IdentityFixture {
	idx := atomic.AddUint64(&identityCounter, 1)
	id := fmt.Sprintf("identity-%03d", idx)
	fixture := IdentityFixture{
		ID:        id,
		Email:     fmt.Sprintf("%s@example.com", id),
		Name:      fmt.Sprintf("User %03d", idx),
		CreatedAt: referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithIdentityID overrides the generated identity ID.
func WithIdentityID(id string) IdentityOption {
	return func(f *IdentityFixture) {
		f.ID = id
	}
}

// WithIdentityEmail overrides the generated email address.
func WithIdentityEmail(email string) IdentityOption {
	return func(f *IdentityFixture) {
		f.Email = email
	}
}

// WithIdentityName overrides the generated display name.
func WithIdentityName(name string) IdentityOption {
	return func(f *IdentityFixture) {
		f.Name = name
	}
}

// WithIdentitySecretHash sets the stored secret hash.
func WithIdentitySecretHash(hash string) IdentityOption {
	return func(f *IdentityFixture) {
		f.SecretHash = hash
	}
}

// Application returns the fixture as an application.Identity value.
func (f IdentityFixture) Application() application.Identity {
	return application.Identity{
		ID:        f.ID,
		Email:     f.Email,
		Name:      f.Name,
		AvatarURL: application.AvatarURL(f.Name),
	}
}

// Credentials returns the fixture as application.Credentials.
func (f IdentityFixture) Credentials() application.Credentials {
	return application.Credentials{
		Identity:   f.Application(),
		SecretHash: f.SecretHash,
		CreatedAt:  f.CreatedAt,
	}
}

// Persistence returns the fixture as a persistence.Identity value.
func (f IdentityFixture) Persistence() persistence.Identity {
	return persistence.Identity{
		ID:         f.ID,
		Email:      f.Email,
		Name:       f.Name,
		AvatarURL:  application.AvatarURL(f.Name),
		SecretHash: f.SecretHash,
		CreatedAt:  f.CreatedAt,
	}
}

// ----------------------------- Message fixtures -----------------------------

// MessageFixture represents a deterministic scheduled message.
type MessageFixture struct {
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

// MessageOption configures the generated message fixture.
type MessageOption func(*MessageFixture)

// NewMessageFixture returns a deterministic message fixture scheduled one week
// after its creation.
func NewMessageFixture(opts ...MessageOption) MessageFixture {
	idx := atomic.AddUint64(&messageCounter, 1)
	created := referenceTime.Add(time.Duration(idx) * time.Hour)
	fixture := MessageFixture{
		ID:            fmt.Sprintf("message-%03d", idx),
		OwnerID:       "identity-001",
		Title:         fmt.Sprintf("Message %03d", idx),
		Content:       fmt.Sprintf("Content of message %03d", idx),
		ScheduledDate: created.Add(7 * 24 * time.Hour),
		CreatedAt:     created,
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithMessageID overrides the generated message ID.
func WithMessageID(id string) MessageOption {
	return func(f *MessageFixture) {
		f.ID = id
	}
}

// WithMessageOwner overrides the owning identity.
func WithMessageOwner(ownerID string) MessageOption {
	return func(f *MessageFixture) {
		f.OwnerID = ownerID
	}
}

// WithMessageTitle overrides the generated title.
func WithMessageTitle(title string) MessageOption {
	return func(f *MessageFixture) {
		f.Title = title
	}
}

// WithMessageContent overrides the generated content.
func WithMessageContent(content string) MessageOption {
	return func(f *MessageFixture) {
		f.Content = content
	}
}

// WithMessageScheduledDate overrides the delivery date.
func WithMessageScheduledDate(t time.Time) MessageOption {
	return func(f *MessageFixture) {
		f.ScheduledDate = t
	}
}

// WithMessageCreatedAt overrides the creation timestamp.
func WithMessageCreatedAt(t time.Time) MessageOption {
	return func(f *MessageFixture) {
		f.CreatedAt = t
	}
}

// WithMessageRecipient sets the recipient email.
func WithMessageRecipient(email string) MessageOption {
	return func(f *MessageFixture) {
		f.RecipientEmail = email
	}
}

// WithMessageCategory sets the category label.
func WithMessageCategory(category string) MessageOption {
	return func(f *MessageFixture) {
		f.Category = category
	}
}

// WithMessageDelivered marks the message delivered.
func WithMessageDelivered(delivered bool) MessageOption {
	return func(f *MessageFixture) {
		f.IsDelivered = delivered
	}
}

// Application returns the fixture as an application.Message value.
func (f MessageFixture) Application() application.Message {
	return application.Message{
		ID:             f.ID,
		OwnerID:        f.OwnerID,
		Title:          f.Title,
		Content:        f.Content,
		ScheduledDate:  f.ScheduledDate,
		CreatedAt:      f.CreatedAt,
		RecipientEmail: f.RecipientEmail,
		Category:       f.Category,
		IsDelivered:    f.IsDelivered,
	}
}

// Draft returns the user-editable fields of the fixture.
func (f MessageFixture) Draft() application.MessageDraft {
	return application.MessageDraft{
		Title:          f.Title,
		Content:        f.Content,
		ScheduledDate:  f.ScheduledDate,
		RecipientEmail: f.RecipientEmail,
		Category:       f.Category,
	}
}

// Persistence returns the fixture as a persistence.Message value.
func (f MessageFixture) Persistence() persistence.Message {
	return persistence.Message{
		ID:             f.ID,
		OwnerID:        f.OwnerID,
		Title:          f.Title,
		Content:        f.Content,
		ScheduledDate:  f.ScheduledDate,
		CreatedAt:      f.CreatedAt,
		RecipientEmail: f.RecipientEmail,
		Category:       f.Category,
		IsDelivered:    f.IsDelivered,
	}
}
