package http

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/example/timecapsule/internal/application"
)

type sessionServiceStub struct {
	mu          sync.Mutex
	identity    application.Identity
	loginErr    error
	signupErr   error
	state       application.SessionState
	logoutCalls int
	calls       []string
}

func (s *sessionServiceStub) Login(ctx context.Context, email, secret string) (application.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "login:"+email)
	if s.loginErr != nil {
		return application.Identity{}, s.loginErr
	}
	s.state = application.SessionState{Identity: &s.identity, IsAuthenticated: true}
	return s.identity, nil
}

func (s *sessionServiceStub) Signup(ctx context.Context, name, email, secret string) (application.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, "signup:"+email)
	if s.signupErr != nil {
		return application.Identity{}, s.signupErr
	}
	identity := application.Identity{ID: "new-id", Email: email, Name: name, AvatarURL: application.AvatarURL(name)}
	s.state = application.SessionState{Identity: &identity, IsAuthenticated: true}
	return identity, nil
}

func (s *sessionServiceStub) Logout(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.logoutCalls++
	s.state = application.SessionState{}
}

func (s *sessionServiceStub) Snapshot() application.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *sessionServiceStub) callLog() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.calls)
}

type messageServiceStub struct {
	mu        sync.Mutex
	state     application.MessagesState
	fetchErr  error
	createErr error
	updateErr error
	deleteErr error
	drafts    []application.MessageDraft
	patches   []application.MessagePatch
	deleted   []string
}

func (s *messageServiceStub) Snapshot() application.MessagesState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return application.MessagesState{
		Messages:  slices.Clone(s.state.Messages),
		IsPending: s.state.IsPending,
		LastError: s.state.LastError,
	}
}

func (s *messageServiceStub) FetchAll(ctx context.Context) ([]application.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fetchErr != nil {
		return nil, s.fetchErr
	}
	return slices.Clone(s.state.Messages), nil
}

func (s *messageServiceStub) Create(ctx context.Context, draft application.MessageDraft) (application.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.drafts = append(s.drafts, draft)
	if s.createErr != nil {
		return application.Message{}, s.createErr
	}
	message := application.Message{
		ID:             "created-1",
		OwnerID:        "owner-1",
		Title:          draft.Title,
		Content:        draft.Content,
		ScheduledDate:  draft.ScheduledDate,
		RecipientEmail: draft.RecipientEmail,
		Category:       draft.Category,
	}
	s.state.Messages = append(s.state.Messages, message)
	return message, nil
}

func (s *messageServiceStub) Update(ctx context.Context, id string, patch application.MessagePatch) (application.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.patches = append(s.patches, patch)
	if s.updateErr != nil {
		return application.Message{}, s.updateErr
	}
	idx := slices.IndexFunc(s.state.Messages, func(m application.Message) bool { return m.ID == id })
	if idx < 0 {
		return application.Message{}, application.ErrNotFound
	}
	s.state.Messages[idx] = applyPatch(s.state.Messages[idx], patch)
	return s.state.Messages[idx], nil
}

func (s *messageServiceStub) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, id)
	if s.deleteErr != nil {
		return s.deleteErr
	}
	idx := slices.IndexFunc(s.state.Messages, func(m application.Message) bool { return m.ID == id })
	if idx < 0 {
		return application.ErrNotFound
	}
	s.state.Messages = slices.Delete(s.state.Messages, idx, idx+1)
	return nil
}

type gateStub bool

func (g gateStub) IsAuthenticated() bool { return bool(g) }

type notificationRecorder struct {
	mu            sync.Mutex
	notifications []application.Notification
}

func (n *notificationRecorder) Notify(ctx context.Context, notification application.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.notifications = append(n.notifications, notification)
}

func (n *notificationRecorder) all() []application.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	return slices.Clone(n.notifications)
}

type statusCounter struct {
	mu     sync.Mutex
	counts map[int]int
}

func (s *statusCounter) RecordHTTPStatus(statusCode int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts == nil {
		s.counts = make(map[int]int)
	}
	s.counts[statusCode]++
}

func (s *statusCounter) count(statusCode int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[statusCode]
}

var testNow = time.Date(2024, time.March, 10, 9, 0, 0, 0, time.UTC)

func fixedNow() time.Time { return testNow }

func sampleMessages() []application.Message {
	return []application.Message{
		{
			ID:            "m-work",
			OwnerID:       "owner-1",
			Title:         "Quarterly review",
			Content:       "Prepare the slides",
			ScheduledDate: testNow.Add(14 * 24 * time.Hour),
			CreatedAt:     testNow.Add(-2 * time.Hour),
			Category:      "Work",
		},
		{
			ID:            "m-birthday",
			OwnerID:       "owner-1",
			Title:         "Birthday wishes",
			Content:       "Happy birthday!",
			ScheduledDate: testNow.Add(7 * 24 * time.Hour),
			CreatedAt:     testNow.Add(-time.Hour),
			Category:      "Birthday",
		},
		{
			ID:            "m-past",
			OwnerID:       "owner-1",
			Title:         "Old note",
			Content:       "Already sent",
			ScheduledDate: testNow.Add(-24 * time.Hour),
			CreatedAt:     testNow.Add(-48 * time.Hour),
			Category:      "Work",
		},
	}
}

func applyPatch(message application.Message, patch application.MessagePatch) application.Message {
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
