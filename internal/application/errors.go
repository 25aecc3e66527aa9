package application

import (
	"errors"
	"fmt"

	"github.com/example/timecapsule/internal/persistence"
)

var (
	// ErrInvalidCredentials is returned when login lookup or secret verification fails.
	ErrInvalidCredentials = errors.New("application: invalid credentials")
	// ErrDuplicateEmail is returned when signup targets an email that is already registered.
	ErrDuplicateEmail = errors.New("application: user already exists")
	// ErrNotFound is returned when the requested message does not exist.
	ErrNotFound = errors.New("application: not found")
	// ErrPersistenceFailure is returned when a backing collaborator fails or the round trip is cancelled.
	ErrPersistenceFailure = errors.New("application: persistence failure")
	// ErrNotAuthenticated is returned when an operation needs a session identity and none is present.
	ErrNotAuthenticated = errors.New("application: not authenticated")
)

// ValidationError captures field level validation issues that callers can surface to users.
type ValidationError struct {
	FieldErrors map[string]string
}

// Error implements the error interface.
func (v *ValidationError) Error() string {
	if v == nil {
		return ""
	}
	return "validation failed"
}

// HasErrors reports whether any field level issues were recorded.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.FieldErrors) > 0
}

// Add records a field level validation error. The first message recorded for
// a field is kept.
func (v *ValidationError) Add(field, message string) {
	if v.FieldErrors == nil {
		v.FieldErrors = make(map[string]string)
	}
	if _, exists := v.FieldErrors[field]; exists {
		return
	}
	v.FieldErrors[field] = message
}

func persistenceFailure(err error) error {
	if err == nil || errors.Is(err, ErrPersistenceFailure) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}

// mapMessageRepoError translates backing store errors into application sentinels.
func mapMessageRepoError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, persistence.ErrNotFound) {
		return ErrNotFound
	}
	return persistenceFailure(err)
}

// mapCredentialError translates directory errors for Login and Signup.
func mapCredentialError(err error) error {
	if err == nil {
		return nil
	}
	switch {
	case errors.Is(err, ErrDuplicateEmail), errors.Is(err, persistence.ErrDuplicate):
		return ErrDuplicateEmail
	case errors.Is(err, ErrNotFound), errors.Is(err, persistence.ErrNotFound):
		return ErrNotFound
	}
	return persistenceFailure(err)
}
