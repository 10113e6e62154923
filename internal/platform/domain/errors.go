package domain

import (
	"errors"
	"fmt"
)

// Sentinel error kinds. DomainError wraps exactly one of them.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrForbidden    = errors.New("forbidden")
	ErrUnauthorized = errors.New("unauthorized")
	ErrValidation   = errors.New("validation failed")
	ErrInvalidState = errors.New("invalid state transition")
)

// DomainError carries a caller-visible message alongside its kind.
type DomainError struct {
	Err     error
	Message string
}

func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap lets errors.Is match the sentinel kind.
func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewNotFoundError reports a missing entity.
func NewNotFoundError(entity, id string) *DomainError {
	return &DomainError{Err: ErrNotFound, Message: fmt.Sprintf("%s with id %s not found", entity, id)}
}

// NewConflictError reports a uniqueness or concurrency conflict.
func NewConflictError(message string) *DomainError {
	return &DomainError{Err: ErrConflict, Message: message}
}

// NewForbiddenError reports a rejected privileged operation.
func NewForbiddenError(message string) *DomainError {
	return &DomainError{Err: ErrForbidden, Message: message}
}

// NewUnauthorizedError reports a missing or invalid caller credential.
func NewUnauthorizedError(message string) *DomainError {
	return &DomainError{Err: ErrUnauthorized, Message: message}
}

// NewValidationError reports malformed input.
func NewValidationError(message string) *DomainError {
	return &DomainError{Err: ErrValidation, Message: message}
}

// NewInvalidStateError reports a lifecycle transition that is not allowed.
func NewInvalidStateError(from, to string) *DomainError {
	return &DomainError{Err: ErrInvalidState, Message: fmt.Sprintf("cannot transition from %s to %s", from, to)}
}
