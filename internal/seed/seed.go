// Package seed loads the initial identities and messages of a fresh store
// from YAML. Message schedules are offsets from load time.
package seed

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/example/timecapsule/internal/persistence"
)

//go:embed default.yaml
var defaultSeed []byte

// Duration is a time.Duration written in time.ParseDuration syntax.
type Duration time.Duration

// UnmarshalYAML parses a scalar such as "168h" or "90m".
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var raw string
	if err := node.Decode(&raw); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(strings.TrimSpace(raw))
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(parsed)
	return nil
}

// Identity is a seeded account.
type Identity struct {
	ID         string `yaml:"id"`
	Email      string `yaml:"email"`
	Name       string `yaml:"name"`
	AvatarURL  string `yaml:"avatarUrl"`
	SecretHash string `yaml:"secretHash"`
}

// Message is a seeded message. ScheduledIn and CreatedAgo are relative to load time.
type Message struct {
	ID             string   `yaml:"id"`
	OwnerID        string   `yaml:"ownerId"`
	Title          string   `yaml:"title"`
	Content        string   `yaml:"content"`
	ScheduledIn    Duration `yaml:"scheduledIn"`
	CreatedAgo     Duration `yaml:"createdAgo"`
	RecipientEmail string   `yaml:"recipientEmail"`
	Category       string   `yaml:"category"`
	IsDelivered    bool     `yaml:"isDelivered"`
}

// Data is the decoded seed document.
type Data struct {
	Identities []Identity `yaml:"identities"`
	Messages   []Message  `yaml:"messages"`
}

// Default returns the built-in demo seed.
func Default() (*Data, error) {
	return Parse(defaultSeed)
}

// Load reads the seed at path, or the built-in demo seed when path is empty.
func Load(path string) (*Data, error) {
	if strings.TrimSpace(path) == "" {
		return Default()
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("seed: read %s: %w", path, err)
	}
	return Parse(raw)
}

// Parse decodes and validates a seed document.
func Parse(raw []byte) (*Data, error) {
	var data Data
	if err := yaml.Unmarshal(raw, &data); err != nil {
		return nil, fmt.Errorf("seed: decode: %w", err)
	}
	if err := data.validate(); err != nil {
		return nil, err
	}
	return &data, nil
}

func (d *Data) validate() error {
	var errs []error
	emails := make(map[string]bool, len(d.Identities))
	for i, identity := range d.Identities {
		if identity.ID == "" || identity.Email == "" {
			errs = append(errs, fmt.Errorf("identities[%d]: id and email are required", i))
			continue
		}
		if emails[identity.Email] {
			errs = append(errs, fmt.Errorf("identities[%d]: duplicate email %s", i, identity.Email))
		}
		emails[identity.Email] = true
	}

	ids := make(map[string]bool, len(d.Messages))
	for i, message := range d.Messages {
		if message.ID == "" || message.Title == "" {
			errs = append(errs, fmt.Errorf("messages[%d]: id and title are required", i))
			continue
		}
		if ids[message.ID] {
			errs = append(errs, fmt.Errorf("messages[%d]: duplicate id %s", i, message.ID))
		}
		ids[message.ID] = true
	}

	if len(errs) > 0 {
		return fmt.Errorf("seed: invalid document: %w", errors.Join(errs...))
	}
	return nil
}

// Records materializes the seed relative to now.
func (d *Data) Records(now time.Time) ([]persistence.Identity, []persistence.Message) {
	identities := make([]persistence.Identity, 0, len(d.Identities))
	for _, identity := range d.Identities {
		identities = append(identities, persistence.Identity{
			ID:         identity.ID,
			Email:      identity.Email,
			Name:       identity.Name,
			AvatarURL:  identity.AvatarURL,
			SecretHash: identity.SecretHash,
			CreatedAt:  now,
		})
	}

	messages := make([]persistence.Message, 0, len(d.Messages))
	for _, message := range d.Messages {
		messages = append(messages, persistence.Message{
			ID:             message.ID,
			OwnerID:        message.OwnerID,
			Title:          message.Title,
			Content:        message.Content,
			ScheduledDate:  now.Add(time.Duration(message.ScheduledIn)),
			CreatedAt:      now.Add(-time.Duration(message.CreatedAgo)),
			RecipientEmail: message.RecipientEmail,
			Category:       message.Category,
			IsDelivered:    message.IsDelivered,
		})
	}
	return identities, messages
}

// MarkerKey is the key under which ApplyOnce records that a store has been
// seeded.
const MarkerKey = "timecapsule:seeded"

// Result counts the records written by Apply. AlreadySeeded is set when
// ApplyOnce found the marker and wrote nothing.
type Result struct {
	Identities    int
	Messages      int
	Skipped       int
	AlreadySeeded bool
}

// ApplyOnce seeds the repositories the first time it runs against a store.
// The marker is written to markers after a successful Apply; later calls see
// it and leave the repositories untouched, so records deleted after seeding
// stay deleted across restarts.
func ApplyOnce(ctx context.Context, data *Data, now time.Time, markers persistence.KeyValueStore, identities persistence.IdentityRepository, messages persistence.MessageRepository) (Result, error) {
	_, err := markers.Get(ctx, MarkerKey)
	switch {
	case err == nil:
		return Result{AlreadySeeded: true}, nil
	case !errors.Is(err, persistence.ErrNotFound):
		return Result{}, fmt.Errorf("seed: read marker: %w", err)
	}

	result, err := Apply(ctx, data, now, identities, messages)
	if err != nil {
		return result, err
	}
	if err := markers.Set(ctx, MarkerKey, []byte(now.UTC().Format(time.RFC3339))); err != nil {
		return result, fmt.Errorf("seed: write marker: %w", err)
	}
	return result, nil
}

// Apply writes the seed into the repositories. Records that already exist
// are skipped.
func Apply(ctx context.Context, data *Data, now time.Time, identities persistence.IdentityRepository, messages persistence.MessageRepository) (Result, error) {
	var result Result
	identityRecords, messageRecords := data.Records(now)

	for _, identity := range identityRecords {
		err := identities.CreateIdentity(ctx, identity)
		switch {
		case err == nil:
			result.Identities++
		case errors.Is(err, persistence.ErrDuplicate):
			result.Skipped++
		default:
			return result, fmt.Errorf("seed identity %s: %w", identity.ID, err)
		}
	}

	for _, message := range messageRecords {
		err := messages.CreateMessage(ctx, message)
		switch {
		case err == nil:
			result.Messages++
		case errors.Is(err, persistence.ErrDuplicate):
			result.Skipped++
		default:
			return result, fmt.Errorf("seed message %s: %w", message.ID, err)
		}
	}
	return result, nil
}
