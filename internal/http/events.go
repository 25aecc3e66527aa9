package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/example/timecapsule/internal/application"
)

// EventType names the frames pushed over the event stream.
type EventType string

const (
	EventSession      EventType = "session"
	EventMessages     EventType = "messages"
	EventNotification EventType = "notification"
)

const eventWriteTimeout = 5 * time.Second

// Event is one frame of the event stream.
type Event struct {
	Type         EventType        `json:"type"`
	Session      *sessionResponse `json:"session,omitempty"`
	Messages     *messagesEvent   `json:"messages,omitempty"`
	Notification *notificationDTO `json:"notification,omitempty"`
}

type messagesEvent struct {
	Messages  []messageDTO `json:"messages"`
	IsPending bool         `json:"isPending"`
	LastError string       `json:"lastError,omitempty"`
}

type notificationDTO struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

type eventClient struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (c *eventClient) write(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeLocked(data)
}

func (c *eventClient) writeLocked(data []byte) error {
	_ = c.conn.SetWriteDeadline(time.Now().Add(eventWriteTimeout))
	return c.conn.WriteMessage(websocket.TextMessage, data)
}

// EventHub pushes store changes and notifications to connected views over
// WebSocket. It implements application.Notifier.
type EventHub struct {
	clients  map[*eventClient]struct{}
	mu       sync.RWMutex
	upgrader websocket.Upgrader
	now      func() time.Time
	logger   *slog.Logger

	// OnClients observes the number of connected clients after each change.
	OnClients func(n int)
	// Greeting returns the frames sent to a client right after it connects.
	Greeting func() []Event
}

// NewEventHub creates an empty hub. A nil now uses the wall clock.
func NewEventHub(now func() time.Time, logger *slog.Logger) *EventHub {
	if now == nil {
		now = time.Now
	}
	return &EventHub{
		clients: make(map[*eventClient]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
		now:    now,
		logger: defaultLogger(logger),
	}
}

// ServeHTTP upgrades the request and keeps the client registered until it
// disconnects.
func (h *EventHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	logger := handlerLogger(r.Context(), h.logger, "EventHub", "Connect")

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}

	// Registered under its write lock: broadcasts queue behind the greeting.
	client := &eventClient{conn: conn}
	client.mu.Lock()
	h.mu.Lock()
	h.clients[client] = struct{}{}
	count := len(h.clients)
	h.mu.Unlock()
	err = h.greetLocked(client)
	client.mu.Unlock()
	if err != nil {
		logger.WarnContext(r.Context(), "failed to greet event client", "error", err)
		h.remove(client)
		return
	}
	h.reportClients(count)
	logger.InfoContext(r.Context(), "event client connected", "clients", count)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}

	h.remove(client)
	logger.InfoContext(r.Context(), "event client disconnected")
}

func (h *EventHub) greetLocked(client *eventClient) error {
	if h.Greeting == nil {
		return nil
	}
	for _, event := range h.Greeting() {
		data, err := json.Marshal(event)
		if err != nil {
			h.logger.Error("failed to encode event", "type", string(event.Type), "error", err)
			continue
		}
		if err := client.writeLocked(data); err != nil {
			return err
		}
	}
	return nil
}

// Notify broadcasts a notification frame.
func (h *EventHub) Notify(_ context.Context, notification application.Notification) {
	h.Broadcast(Event{
		Type:         EventNotification,
		Notification: &notificationDTO{Kind: string(notification.Kind), Message: notification.Message},
	})
}

// PublishSession broadcasts a session frame. It is meant to be registered
// with SessionStore.Subscribe.
func (h *EventHub) PublishSession(state application.SessionState) {
	h.Broadcast(h.SessionEvent(state))
}

// PublishMessages broadcasts a messages frame. It is meant to be registered
// with MessageStore.Subscribe.
func (h *EventHub) PublishMessages(state application.MessagesState) {
	h.Broadcast(h.MessagesEvent(state))
}

// SessionEvent builds the session frame for state.
func (h *EventHub) SessionEvent(state application.SessionState) Event {
	resp := toSessionResponse(state)
	return Event{Type: EventSession, Session: &resp}
}

// MessagesEvent builds the messages frame for state.
func (h *EventHub) MessagesEvent(state application.MessagesState) Event {
	return Event{Type: EventMessages, Messages: h.messagesEvent(state)}
}

func (h *EventHub) messagesEvent(state application.MessagesState) *messagesEvent {
	return &messagesEvent{
		Messages:  toMessageDTOs(state.Messages, h.now()),
		IsPending: state.IsPending,
		LastError: state.LastError,
	}
}

// Broadcast sends event to every client. Clients that fail to receive it are
// dropped.
func (h *EventHub) Broadcast(event Event) {
	data, err := json.Marshal(event)
	if err != nil {
		h.logger.Error("failed to encode event", "type", string(event.Type), "error", err)
		return
	}

	h.mu.RLock()
	clients := make([]*eventClient, 0, len(h.clients))
	for client := range h.clients {
		clients = append(clients, client)
	}
	h.mu.RUnlock()

	for _, client := range clients {
		if err := client.write(data); err != nil {
			h.logger.Debug("dropping event client", "error", err)
			h.remove(client)
		}
	}
}

// ClientCount returns the number of connected clients.
func (h *EventHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Close disconnects every client.
func (h *EventHub) Close() {
	h.mu.Lock()
	for client := range h.clients {
		client.conn.Close()
		delete(h.clients, client)
	}
	h.mu.Unlock()
	h.reportClients(0)
}

func (h *EventHub) remove(client *eventClient) {
	h.mu.Lock()
	_, present := h.clients[client]
	delete(h.clients, client)
	count := len(h.clients)
	h.mu.Unlock()

	if present {
		client.conn.Close()
		h.reportClients(count)
	}
}

func (h *EventHub) reportClients(n int) {
	if h.OnClients != nil {
		h.OnClients(n)
	}
}
