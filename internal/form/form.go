// Package form validates and normalizes view-layer input before it reaches
// the stores.
package form

import (
	"html"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/microcosm-cc/bluemonday"

	"github.com/example/timecapsule/internal/application"
)

// MinPasswordLength is the shortest password signup accepts.
const MinPasswordLength = 6

// SuggestedCategories lists the categories offered by the message form.
// Categories outside this list are accepted.
var SuggestedCategories = []string{"Birthday", "Work", "Reminder", "Motivation", "Personal"}

var emailPattern = regexp.MustCompile(`\S+@\S+\.\S+`)

// Validator checks form input. It is safe for concurrent use.
type Validator struct {
	policy *bluemonday.Policy
}

// NewValidator returns a Validator that strips all markup from message text.
func NewValidator() *Validator {
	return &Validator{policy: bluemonday.StrictPolicy()}
}

// LoginInput is the login form.
type LoginInput struct {
	Email    string
	Password string
}

// SignupInput is the signup form.
type SignupInput struct {
	Name            string
	Email           string
	Password        string
	ConfirmPassword string
}

// MessageInput is the create message form. A nil ScheduledDate means no date was chosen.
type MessageInput struct {
	Title          string
	Content        string
	ScheduledDate  *time.Time
	RecipientEmail string
	Category       string
}

// MessagePatchInput is the edit message form. Nil fields are left unchanged.
type MessagePatchInput struct {
	Title          *string
	Content        *string
	ScheduledDate  *time.Time
	RecipientEmail *string
	Category       *string
}

// Login validates the login form.
func (v *Validator) Login(in LoginInput) error {
	vErr := &application.ValidationError{}
	validateAccountEmail(vErr, in.Email)
	if in.Password == "" {
		vErr.Add("password", "Password is required")
	}
	return result(vErr)
}

// Signup validates the signup form.
func (v *Validator) Signup(in SignupInput) error {
	vErr := &application.ValidationError{}
	if strings.TrimSpace(in.Name) == "" {
		vErr.Add("name", "Name is required")
	}
	validateAccountEmail(vErr, in.Email)
	switch {
	case in.Password == "":
		vErr.Add("password", "Password is required")
	case utf8.RuneCountInString(in.Password) < MinPasswordLength:
		vErr.Add("password", "Password must be at least 6 characters")
	}
	if in.Password != in.ConfirmPassword {
		vErr.Add("confirmPassword", "Passwords do not match")
	}
	return result(vErr)
}

// Message validates a new message and returns the sanitized draft. The
// scheduled date must be strictly after now.
func (v *Validator) Message(in MessageInput, now time.Time) (application.MessageDraft, error) {
	vErr := &application.ValidationError{}

	title := v.sanitize(in.Title)
	if title == "" {
		vErr.Add("title", "Title is required")
	}
	content := v.sanitize(in.Content)
	if content == "" {
		vErr.Add("content", "Message content is required")
	}
	if in.ScheduledDate == nil || !in.ScheduledDate.After(now) {
		vErr.Add("scheduledDate", "Please select a future date")
	}
	recipient := strings.TrimSpace(in.RecipientEmail)
	validateRecipient(vErr, recipient)

	if err := result(vErr); err != nil {
		return application.MessageDraft{}, err
	}
	return application.MessageDraft{
		Title:          title,
		Content:        content,
		ScheduledDate:  *in.ScheduledDate,
		RecipientEmail: recipient,
		Category:       strings.TrimSpace(in.Category),
	}, nil
}

// Patch validates the fields present in an edit and returns the sanitized patch.
func (v *Validator) Patch(in MessagePatchInput, now time.Time) (application.MessagePatch, error) {
	vErr := &application.ValidationError{}
	var patch application.MessagePatch

	if in.Title != nil {
		title := v.sanitize(*in.Title)
		if title == "" {
			vErr.Add("title", "Title is required")
		}
		patch.Title = &title
	}
	if in.Content != nil {
		content := v.sanitize(*in.Content)
		if content == "" {
			vErr.Add("content", "Message content is required")
		}
		patch.Content = &content
	}
	if in.ScheduledDate != nil {
		if !in.ScheduledDate.After(now) {
			vErr.Add("scheduledDate", "Please select a future date")
		}
		scheduled := *in.ScheduledDate
		patch.ScheduledDate = &scheduled
	}
	if in.RecipientEmail != nil {
		recipient := strings.TrimSpace(*in.RecipientEmail)
		validateRecipient(vErr, recipient)
		patch.RecipientEmail = &recipient
	}
	if in.Category != nil {
		category := strings.TrimSpace(*in.Category)
		patch.Category = &category
	}

	if err := result(vErr); err != nil {
		return application.MessagePatch{}, err
	}
	return patch, nil
}

// sanitize removes markup and surrounding whitespace. The policy escapes
// entities, so the result is unescaped back to plain text.
func (v *Validator) sanitize(s string) string {
	return strings.TrimSpace(html.UnescapeString(v.policy.Sanitize(s)))
}

// ValidEmail reports whether s looks like an email address.
func ValidEmail(s string) bool {
	return emailPattern.MatchString(s)
}

func validateAccountEmail(vErr *application.ValidationError, email string) {
	switch {
	case strings.TrimSpace(email) == "":
		vErr.Add("email", "Email is required")
	case !ValidEmail(email):
		vErr.Add("email", "Email is invalid")
	}
}

func validateRecipient(vErr *application.ValidationError, recipient string) {
	if recipient != "" && !ValidEmail(recipient) {
		vErr.Add("recipientEmail", "Please enter a valid email address")
	}
}

func result(vErr *application.ValidationError) error {
	if vErr.HasErrors() {
		return vErr
	}
	return nil
}
