package application

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"
)

const messageStoreName = "MessageStore"

// MessageRepository is the backing store consulted by the MessageStore.
// ListMessages returns messages in insertion order. UpdateMessage merges the
// patch onto the stored record and returns the merged result.
type MessageRepository interface {
	CreateMessage(ctx context.Context, message Message) error
	ListMessages(ctx context.Context) ([]Message, error)
	UpdateMessage(ctx context.Context, id string, patch MessagePatch) (Message, error)
	DeleteMessage(ctx context.Context, id string) error
}

// OwnerSource supplies the identity that owns newly created messages.
type OwnerSource interface {
	Current() (Identity, bool)
}

// MessageStoreDeps captures the collaborators of a MessageStore. Messages is
// required; Owners must be set for Create to succeed.
type MessageStoreDeps struct {
	Messages    MessageRepository
	Owners      OwnerSource
	Notifier    Notifier
	IDGenerator func() string
	Now         func() time.Time
	Delay       Delay
	Recorder    OperationRecorder
	Logger      *slog.Logger
}

// MessageStore holds the message collection shown to the session.
type MessageStore struct {
	repo        MessageRepository
	owners      OwnerSource
	notifier    Notifier
	idGenerator func() string
	now         func() time.Time
	delay       Delay
	recorder    OperationRecorder
	logger      *slog.Logger

	mu        sync.Mutex
	messages  []Message
	pending   bool
	lastError string
	subs      subscribers[MessagesState]

	// publishMu orders deliveries so observers see states in the order
	// they were taken.
	publishMu sync.Mutex
}

// NewMessageStore constructs an empty MessageStore.
func NewMessageStore(deps MessageStoreDeps) *MessageStore {
	idGenerator := deps.IDGenerator
	if idGenerator == nil {
		idGenerator = func() string { return "" }
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &MessageStore{
		repo:        deps.Messages,
		owners:      deps.Owners,
		notifier:    defaultNotifier(deps.Notifier),
		idGenerator: idGenerator,
		now:         now,
		delay:       defaultDelay(deps.Delay),
		recorder:    defaultRecorder(deps.Recorder),
		logger:      defaultLogger(deps.Logger),
	}
}

func (s *MessageStore) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return storeLogger(ctx, s.logger, messageStoreName, operation, attrs...)
}

// Snapshot returns a copy of the current collection state.
func (s *MessageStore) Snapshot() MessagesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

func (s *MessageStore) snapshotLocked() MessagesState {
	return MessagesState{
		Messages:  slices.Clone(s.messages),
		IsPending: s.pending,
		LastError: s.lastError,
	}
}

// Subscribe registers fn to receive a snapshot after every state change and
// returns a function that removes the registration. Deliveries are
// serialized in state order, so fn must not call the store's mutating
// operations synchronously.
func (s *MessageStore) Subscribe(fn func(MessagesState)) func() {
	return s.subs.add(fn)
}

func (s *MessageStore) update(mutate func()) {
	s.publishMu.Lock()
	defer s.publishMu.Unlock()

	s.mu.Lock()
	mutate()
	state := s.snapshotLocked()
	s.mu.Unlock()
	s.subs.publish(state)
}

func (s *MessageStore) begin() {
	s.update(func() { s.pending = true })
}

// commit applies a successful mutation and clears the pending flag and lastError.
func (s *MessageStore) commit(mutate func()) {
	s.update(func() {
		mutate()
		s.pending = false
		s.lastError = ""
	})
}

// finish records the outcome of an operation. On failure it resets the
// pending flag, stores the error kind and emits the failure notification.
func (s *MessageStore) finish(ctx context.Context, logger *slog.Logger, operation string, start time.Time, err error, success, failure string) {
	kind := ErrorKind(err)
	s.recorder.ObserveOperation(messageStoreName, operation, kind, time.Since(start))
	if err != nil {
		s.update(func() {
			s.pending = false
			s.lastError = kind
		})
		logger.ErrorContext(ctx, operation+" failed", "error", err, "error_kind", kind)
		s.notifier.Notify(ctx, Notification{Kind: NotificationError, Message: failure})
		return
	}
	logger.InfoContext(ctx, operation+" succeeded")
	if success != "" {
		s.notifier.Notify(ctx, Notification{Kind: NotificationSuccess, Message: success})
	}
}

func (s *MessageStore) roundTrip(ctx context.Context) error {
	if s.repo == nil {
		return fmt.Errorf("message repository not configured")
	}
	if err := s.delay(ctx); err != nil {
		return persistenceFailure(err)
	}
	return nil
}

// FetchAll replaces the held collection with the full contents of the
// backing store. On failure the held collection is left untouched.
func (s *MessageStore) FetchAll(ctx context.Context) (messages []Message, err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "FetchAll")
	s.begin()
	defer func() {
		s.finish(ctx, logger.With("count", len(messages)), "fetch_all", start, err, "", "Failed to fetch messages")
	}()

	if err = s.roundTrip(ctx); err != nil {
		return
	}

	var listed []Message
	listed, err = s.repo.ListMessages(ctx)
	if err != nil {
		err = persistenceFailure(err)
		return
	}

	s.commit(func() { s.messages = slices.Clone(listed) })
	messages = slices.Clone(listed)
	return
}

// Create stores a new message owned by the current session identity and
// appends it to the held collection.
func (s *MessageStore) Create(ctx context.Context, draft MessageDraft) (message Message, err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Create")
	s.begin()
	defer func() {
		s.finish(ctx, logger.With("message_id", message.ID), "create", start, err, "Message scheduled successfully!", "Failed to schedule message")
	}()

	var owner Identity
	var ok bool
	if s.owners != nil {
		owner, ok = s.owners.Current()
	}
	if !ok {
		err = ErrNotAuthenticated
		return
	}

	if err = s.roundTrip(ctx); err != nil {
		return
	}

	candidate := Message{
		ID:             s.idGenerator(),
		OwnerID:        owner.ID,
		Title:          draft.Title,
		Content:        draft.Content,
		ScheduledDate:  draft.ScheduledDate,
		CreatedAt:      s.now(),
		RecipientEmail: draft.RecipientEmail,
		Category:       draft.Category,
		IsDelivered:    false,
	}
	if err = s.repo.CreateMessage(ctx, candidate); err != nil {
		err = persistenceFailure(err)
		return
	}

	s.commit(func() { s.messages = append(s.messages, candidate) })
	message = candidate
	return
}

// Update merges patch onto the message in the backing store and replaces the
// held copy with the merged record when present.
func (s *MessageStore) Update(ctx context.Context, id string, patch MessagePatch) (message Message, err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Update", "message_id", id)
	s.begin()
	defer func() {
		s.finish(ctx, logger, "update", start, err, "Message updated successfully!", "Failed to update message")
	}()

	if err = s.roundTrip(ctx); err != nil {
		return
	}

	var merged Message
	merged, err = s.repo.UpdateMessage(ctx, id, patch)
	if err != nil {
		err = mapMessageRepoError(err)
		return
	}

	s.commit(func() {
		if idx := slices.IndexFunc(s.messages, func(m Message) bool { return m.ID == id }); idx >= 0 {
			s.messages[idx] = merged
		}
	})
	message = merged
	return
}

// Delete removes the message from the backing store and the held collection.
func (s *MessageStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	logger := s.loggerWith(ctx, "Delete", "message_id", id)
	s.begin()
	defer func() {
		s.finish(ctx, logger, "delete", start, err, "Message deleted successfully!", "Failed to delete message")
	}()

	if err = s.roundTrip(ctx); err != nil {
		return
	}

	if err = s.repo.DeleteMessage(ctx, id); err != nil {
		err = mapMessageRepoError(err)
		return
	}

	s.commit(func() {
		s.messages = slices.DeleteFunc(s.messages, func(m Message) bool { return m.ID == id })
	})
	return
}
