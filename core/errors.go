package core

import (
	"errors"
	"sort"
	"strings"
)

var (
	// ErrInvalidInput is returned when an argument cannot be accepted at all (e.g. empty password).
	ErrInvalidInput = errors.New("invalid input")
	// ErrAuthentication is returned when username/password is wrong. It never says which one.
	ErrAuthentication = errors.New("invalid username or password")
	// ErrForbidden is returned when the caller does not own the resource.
	ErrForbidden = errors.New("forbidden")
	// ErrNotFound is returned when a post does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUserNotFound is the directory's "no such user" sentinel.
	ErrUserNotFound = errors.New("user not found")
	// ErrDuplicateUsername is returned when the username is already registered.
	ErrDuplicateUsername = errors.New("username already taken")
	// ErrDuplicateEmail is returned when the email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
	// ErrTooManyAttempts is reported while a client is locked out of login.
	ErrTooManyAttempts = errors.New("too many failed login attempts")
)

// ValidationError maps form field names to the first failure message for that field.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records msg for field unless the field already failed.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = map[string]string{}
	}
	if _, ok := e.Fields[field]; !ok {
		e.Fields[field] = msg
	}
}

// Empty reports whether no field failed.
func (e *ValidationError) Empty() bool {
	return e == nil || len(e.Fields) == 0
}

// errOrNil returns e as an error only when it holds failures, avoiding typed-nil errors.
func (e *ValidationError) errOrNil() error {
	if e.Empty() {
		return nil
	}
	return e
}
