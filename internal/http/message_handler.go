package http

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/example/timecapsule/internal/application"
	"github.com/example/timecapsule/internal/form"
	"github.com/example/timecapsule/internal/format"
)

const (
	calendarDateLayout = "2006-01-02"
	localInputLayout   = "2006-01-02T15:04"
)

type messageService interface {
	Snapshot() application.MessagesState
	FetchAll(ctx context.Context) ([]application.Message, error)
	Create(ctx context.Context, draft application.MessageDraft) (application.Message, error)
	Update(ctx context.Context, id string, patch application.MessagePatch) (application.Message, error)
	Delete(ctx context.Context, id string) error
}

type MessageHandler struct {
	service   messageService
	validator *form.Validator
	now       func() time.Time
	responder responder
	logger    *slog.Logger
}

// NewMessageHandler builds the dashboard, message and calendar handlers. A nil
// now uses the wall clock; its location decides calendar days.
func NewMessageHandler(service messageService, validator *form.Validator, now func() time.Time, logger *slog.Logger) *MessageHandler {
	base := defaultLogger(logger)
	if validator == nil {
		validator = form.NewValidator()
	}
	if now == nil {
		now = time.Now
	}
	return &MessageHandler{service: service, validator: validator, now: now, responder: newResponder(base), logger: base}
}

func (h *MessageHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return handlerLogger(ctx, h.logger, "MessageHandler", operation, attrs...)
}

func (h *MessageHandler) ready(w http.ResponseWriter) bool {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return false
	}
	return true
}

// List renders the dashboard: the filtered collection, the category filter
// options and the next upcoming message.
func (h *MessageHandler) List(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	query := r.URL.Query()
	q := application.Query{
		Search:   strings.TrimSpace(query.Get("search")),
		Category: strings.TrimSpace(query.Get("category")),
		Sort:     application.SortOrder(strings.TrimSpace(query.Get("sort"))),
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.dashboard(h.service.Snapshot(), q))
}

// Refresh reloads the collection from the backing store.
func (h *MessageHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	logger := h.log(r.Context(), "Refresh")
	if _, err := h.service.FetchAll(r.Context()); err != nil {
		logger.ErrorContext(r.Context(), "failed to refresh messages", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, h.dashboard(h.service.Snapshot(), application.Query{}))
}

func (h *MessageHandler) Get(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := h.messageID(w, r, "Get")
	if !ok {
		return
	}

	message, found := h.service.Snapshot().Find(id)
	if !found {
		h.log(r.Context(), "Get", "message_id", id).InfoContext(r.Context(), "message not found")
		h.responder.handleServiceError(r.Context(), w, application.ErrNotFound)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMessageDTO(message, h.now()))
}

func (h *MessageHandler) Create(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	var req messageRequest
	if err := h.responder.readJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Create", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode message request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	now := h.now()
	logger := h.log(r.Context(), "Create")

	draft, err := h.validator.Message(form.MessageInput{
		Title:          req.Title,
		Content:        req.Content,
		ScheduledDate:  parseScheduledDate(req.ScheduledDate, now.Location()),
		RecipientEmail: req.RecipientEmail,
		Category:       req.Category,
	}, now)
	if err != nil {
		logger.InfoContext(r.Context(), "message form rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	message, err := h.service.Create(r.Context(), draft)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to create message", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.With("message_id", message.ID).InfoContext(r.Context(), "message created")
	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toMessageDTO(message, h.now()))
}

func (h *MessageHandler) Update(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := h.messageID(w, r, "Update")
	if !ok {
		return
	}

	var req messagePatchRequest
	if err := h.responder.readJSON(w, r, &req); err != nil {
		h.log(r.Context(), "Update", "error_kind", "bad_request").ErrorContext(r.Context(), "failed to decode message patch", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errBadRequestBody)
		return
	}

	now := h.now()
	logger := h.log(r.Context(), "Update", "message_id", id)

	in := form.MessagePatchInput{
		Title:          req.Title,
		Content:        req.Content,
		RecipientEmail: req.RecipientEmail,
		Category:       req.Category,
	}
	if req.ScheduledDate != nil {
		in.ScheduledDate = parseScheduledDate(*req.ScheduledDate, now.Location())
		if in.ScheduledDate == nil {
			zero := time.Time{}
			in.ScheduledDate = &zero
		}
	}

	patch, err := h.validator.Patch(in, now)
	if err != nil {
		logger.InfoContext(r.Context(), "message patch rejected", "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	message, err := h.service.Update(r.Context(), id, patch)
	if err != nil {
		logger.ErrorContext(r.Context(), "failed to update message", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "message updated")
	h.responder.writeJSON(r.Context(), w, http.StatusOK, toMessageDTO(message, h.now()))
}

func (h *MessageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	id, ok := h.messageID(w, r, "Delete")
	if !ok {
		return
	}

	logger := h.log(r.Context(), "Delete", "message_id", id)
	if err := h.service.Delete(r.Context(), id); err != nil {
		logger.ErrorContext(r.Context(), "failed to delete message", "error", err, "error_kind", application.ErrorKind(err))
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	logger.InfoContext(r.Context(), "message deleted")
	h.responder.writeJSON(r.Context(), w, http.StatusNoContent, nil)
}

// Calendar lists the messages scheduled on the requested day together with
// the per-day counts of that month. The day defaults to today.
func (h *MessageHandler) Calendar(w http.ResponseWriter, r *http.Request) {
	if !h.ready(w) {
		return
	}

	now := h.now()
	loc := now.Location()
	day := now
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.ParseInLocation(calendarDateLayout, raw, loc)
		if err != nil {
			h.log(r.Context(), "Calendar", "error_kind", "bad_request").InfoContext(r.Context(), "invalid calendar date", "date", raw)
			h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidDate)
			return
		}
		day = parsed
	}

	messages := h.service.Snapshot().Messages
	selected := application.MessagesOn(messages, day, loc)

	resp := calendarResponse{
		Date:     day.In(loc).Format(calendarDateLayout),
		Count:    len(selected),
		Messages: toMessageDTOs(selected, now),
		Days:     []calendarDay{},
	}
	year, month, _ := day.In(loc).Date()
	for d := time.Date(year, month, 1, 0, 0, 0, 0, loc); d.Month() == month; d = d.AddDate(0, 0, 1) {
		if n := application.CountOn(messages, d, loc); n > 0 {
			resp.Days = append(resp.Days, calendarDay{Date: d.Format(calendarDateLayout), Count: n})
		}
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func (h *MessageHandler) messageID(w http.ResponseWriter, r *http.Request, operation string) (string, bool) {
	id := strings.TrimSpace(chi.URLParam(r, "id"))
	if id == "" {
		h.log(r.Context(), operation, "error_kind", "bad_request").InfoContext(r.Context(), "missing message id")
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, errInvalidMessageID)
		return "", false
	}
	return id, true
}

func (h *MessageHandler) dashboard(state application.MessagesState, q application.Query) dashboardResponse {
	now := h.now()
	filtered := application.FilterMessages(state.Messages, q)
	resp := dashboardResponse{
		Messages:            toMessageDTOs(filtered, now),
		Categories:          []string{},
		SuggestedCategories: form.SuggestedCategories,
		Total:               len(state.Messages),
		IsPending:           state.IsPending,
		LastError:           state.LastError,
	}
	if categories := application.Categories(state.Messages); categories != nil {
		resp.Categories = categories
	}
	if next, ok := application.NextUpcoming(filtered, now); ok {
		dto := toMessageDTO(next, now)
		resp.Next = &dto
	}
	return resp
}

// parseScheduledDate accepts RFC 3339 timestamps and date-time input values
// without an offset, which are read in loc. Blank or unparsable input yields nil.
func parseScheduledDate(raw string, loc *time.Location) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return &t
	}
	if t, err := time.ParseInLocation(localInputLayout, raw, loc); err == nil {
		return &t
	}
	return nil
}

type messageRequest struct {
	Title          string `json:"title"`
	Content        string `json:"content"`
	ScheduledDate  string `json:"scheduledDate"`
	RecipientEmail string `json:"recipientEmail"`
	Category       string `json:"category"`
}

type messagePatchRequest struct {
	Title          *string `json:"title"`
	Content        *string `json:"content"`
	ScheduledDate  *string `json:"scheduledDate"`
	RecipientEmail *string `json:"recipientEmail"`
	Category       *string `json:"category"`
}

type messageDTO struct {
	ID             string `json:"id"`
	OwnerID        string `json:"userId"`
	Title          string `json:"title"`
	Content        string `json:"content"`
	ScheduledDate  string `json:"scheduledDate"`
	CreatedAt      string `json:"createdAt"`
	RecipientEmail string `json:"recipientEmail,omitempty"`
	Category       string `json:"category,omitempty"`
	IsDelivered    bool   `json:"isDelivered"`
	ScheduledLabel string `json:"scheduledLabel"`
	Relative       string `json:"relative"`
}

type dashboardResponse struct {
	Messages            []messageDTO `json:"messages"`
	Categories          []string     `json:"categories"`
	SuggestedCategories []string     `json:"suggestedCategories"`
	Next                *messageDTO  `json:"next"`
	Total               int          `json:"total"`
	IsPending           bool         `json:"isPending"`
	LastError           string       `json:"lastError,omitempty"`
}

type calendarDay struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

type calendarResponse struct {
	Date     string        `json:"date"`
	Count    int           `json:"count"`
	Messages []messageDTO  `json:"messages"`
	Days     []calendarDay `json:"days"`
}

func toMessageDTO(message application.Message, now time.Time) messageDTO {
	return messageDTO{
		ID:             message.ID,
		OwnerID:        message.OwnerID,
		Title:          message.Title,
		Content:        message.Content,
		ScheduledDate:  message.ScheduledDate.Format(time.RFC3339),
		CreatedAt:      message.CreatedAt.Format(time.RFC3339),
		RecipientEmail: message.RecipientEmail,
		Category:       message.Category,
		IsDelivered:    message.IsDelivered,
		ScheduledLabel: format.Date(message.ScheduledDate, now),
		Relative:       format.Relative(message.ScheduledDate, now),
	}
}

func toMessageDTOs(messages []application.Message, now time.Time) []messageDTO {
	out := make([]messageDTO, 0, len(messages))
	for _, message := range messages {
		out = append(out, toMessageDTO(message, now))
	}
	return out
}
