package domain

import (
	"fmt"
	"sort"
	"strings"
)

// Error types for consistent error handling across the BFA.
// Validation errors (ErrFieldErrors) and request errors (everything else)
// travel on separate channels and are never merged.

// ErrNotFound indicates a resource was not found.
type ErrNotFound struct {
	Resource string
	ID       string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// ErrExternalService indicates a failure in an external service call.
type ErrExternalService struct {
	Service string
	Err     error
}

func (e *ErrExternalService) Error() string {
	return fmt.Sprintf("external service error [%s]: %v", e.Service, e.Err)
}

func (e *ErrExternalService) Unwrap() error {
	return e.Err
}

// ErrCircuitOpen indicates the circuit breaker is open.
type ErrCircuitOpen struct {
	Service string
}

func (e *ErrCircuitOpen) Error() string {
	return fmt.Sprintf("circuit breaker open for service: %s", e.Service)
}

// ErrValidation indicates a single bad input outside of a draft form
// (path parameters, malformed bodies).
type ErrValidation struct {
	Field   string
	Message string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("validation error on '%s': %s", e.Field, e.Message)
}

// ErrFieldErrors carries the field → message map produced by a draft
// validator. A non-empty map blocks submission.
type ErrFieldErrors struct {
	Errors map[string]string
}

func (e *ErrFieldErrors) Error() string {
	keys := make([]string, 0, len(e.Errors))
	for k := range e.Errors {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return fmt.Sprintf("invalid draft: %s", strings.Join(keys, ", "))
}

// ErrUnauthorized indicates the upstream API rejected (or would reject)
// our credentials. Callers redirect the user to the login view.
type ErrUnauthorized struct {
	Message string
}

func (e *ErrUnauthorized) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "unauthorized"
}

// ErrConflict indicates a resource already exists (e.g. duplicate national code).
type ErrConflict struct {
	Message string
	Fields  []FieldError
}

func (e *ErrConflict) Error() string {
	return e.Message
}

// FieldError is one structured, field-scoped error reported by the API.
// Code is a stable machine identifier; Message is display text.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

// ErrAPI is any other non-2xx response from the upstream API.
// Message holds the server's error text verbatim when present, or the
// generic localized fallback.
type ErrAPI struct {
	Status  int
	Message string
	Fields  []FieldError
}

func (e *ErrAPI) Error() string {
	return fmt.Sprintf("api returned status %d: %s", e.Status, e.Message)
}

// ErrReadOnly indicates a write against a record in a terminal state
// (an archived invoice).
type ErrReadOnly struct {
	Resource string
	ID       string
}

func (e *ErrReadOnly) Error() string {
	return fmt.Sprintf("%s %s is archived and read-only", e.Resource, e.ID)
}

// ErrSuperseded indicates a response arrived after a newer request on the
// same collection was issued; its data was discarded.
type ErrSuperseded struct {
	Collection string
}

func (e *ErrSuperseded) Error() string {
	return fmt.Sprintf("%s: response superseded by a newer request", e.Collection)
}
