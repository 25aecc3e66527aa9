package main

import (
	"context"
	"time"

	"github.com/example/timecapsule/internal/application"
	"github.com/example/timecapsule/internal/persistence"
)

type credentialDirectoryAdapter struct {
	repo persistence.IdentityRepository
}

func newCredentialDirectoryAdapter(repo persistence.IdentityRepository) *credentialDirectoryAdapter {
	return &credentialDirectoryAdapter{repo: repo}
}

func (a *credentialDirectoryAdapter) GetCredentialsByEmail(ctx context.Context, email string) (application.Credentials, error) {
	stored, err := a.repo.GetIdentityByEmail(ctx, email)
	if err != nil {
		return application.Credentials{}, err
	}
	return toApplicationCredentials(stored), nil
}

func (a *credentialDirectoryAdapter) CreateCredentials(ctx context.Context, credentials application.Credentials) error {
	return a.repo.CreateIdentity(ctx, toPersistenceIdentity(credentials))
}

type messageRepositoryAdapter struct {
	repo persistence.MessageRepository
}

func newMessageRepositoryAdapter(repo persistence.MessageRepository) *messageRepositoryAdapter {
	return &messageRepositoryAdapter{repo: repo}
}

func (a *messageRepositoryAdapter) CreateMessage(ctx context.Context, message application.Message) error {
	return a.repo.CreateMessage(ctx, toPersistenceMessage(message))
}

func (a *messageRepositoryAdapter) ListMessages(ctx context.Context) ([]application.Message, error) {
	stored, err := a.repo.ListMessages(ctx)
	if err != nil {
		return nil, err
	}
	messages := make([]application.Message, 0, len(stored))
	for _, model := range stored {
		messages = append(messages, toApplicationMessage(model))
	}
	return messages, nil
}

func (a *messageRepositoryAdapter) UpdateMessage(ctx context.Context, id string, patch application.MessagePatch) (application.Message, error) {
	updated, err := a.repo.UpdateMessage(ctx, id, toPersistencePatch(patch))
	if err != nil {
		return application.Message{}, err
	}
	return toApplicationMessage(updated), nil
}

func (a *messageRepositoryAdapter) DeleteMessage(ctx context.Context, id string) error {
	return a.repo.DeleteMessage(ctx, id)
}

func toApplicationCredentials(model persistence.Identity) application.Credentials {
	return application.Credentials{
		Identity: application.Identity{
			ID:        model.ID,
			Email:     model.Email,
			Name:      model.Name,
			AvatarURL: model.AvatarURL,
		},
		SecretHash: model.SecretHash,
		CreatedAt:  model.CreatedAt,
	}
}

func toPersistenceIdentity(credentials application.Credentials) persistence.Identity {
	return persistence.Identity{
		ID:         credentials.Identity.ID,
		Email:      credentials.Identity.Email,
		Name:       credentials.Identity.Name,
		AvatarURL:  credentials.Identity.AvatarURL,
		SecretHash: credentials.SecretHash,
		CreatedAt:  credentials.CreatedAt,
	}
}

func toApplicationMessage(model persistence.Message) application.Message {
	return application.Message{
		ID:             model.ID,
		OwnerID:        model.OwnerID,
		Title:          model.Title,
		Content:        model.Content,
		ScheduledDate:  model.ScheduledDate,
		CreatedAt:      model.CreatedAt,
		RecipientEmail: model.RecipientEmail,
		Category:       model.Category,
		IsDelivered:    model.IsDelivered,
	}
}

func toPersistenceMessage(message application.Message) persistence.Message {
	return persistence.Message{
		ID:             message.ID,
		OwnerID:        message.OwnerID,
		Title:          message.Title,
		Content:        message.Content,
		ScheduledDate:  message.ScheduledDate,
		CreatedAt:      message.CreatedAt,
		RecipientEmail: message.RecipientEmail,
		Category:       message.Category,
		IsDelivered:    message.IsDelivered,
	}
}

func toPersistencePatch(patch application.MessagePatch) persistence.MessagePatch {
	return persistence.MessagePatch{
		Title:          cloneString(patch.Title),
		Content:        cloneString(patch.Content),
		ScheduledDate:  cloneTime(patch.ScheduledDate),
		RecipientEmail: cloneString(patch.RecipientEmail),
		Category:       cloneString(patch.Category),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}

func cloneTime(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	clone := *value
	return &clone
}
