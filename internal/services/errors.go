package services

import (
	"errors"

	"studybuddy-backend/internal/repository"
)

// ValidationError reports missing or malformed input. Fields is keyed by JSON field name.
type ValidationError struct {
	Message string
	Fields  map[string]string
}

func (e *ValidationError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return "Validation error"
}

func newValidationError(field, message string) *ValidationError {
	return &ValidationError{Message: message, Fields: map[string]string{field: message}}
}

// BadRequestError is a rejected state transition, such as leaving a room one owns.
type BadRequestError struct{ Message string }

func (e *BadRequestError) Error() string { return e.Message }

// ConflictError is a duplicate active membership or session.
type ConflictError struct{ Message string }

func (e *ConflictError) Error() string { return e.Message }

type NotFoundError struct{ Message string }

func (e *NotFoundError) Error() string { return e.Message }

type UnauthorizedError struct{ Message string }

func (e *UnauthorizedError) Error() string { return e.Message }

type ForbiddenError struct{ Message string }

func (e *ForbiddenError) Error() string { return e.Message }

type RateLimitError struct{ Message string }

func (e *RateLimitError) Error() string { return e.Message }

// notFoundOr converts repository.ErrNotFound into a NotFoundError carrying msg.
func notFoundOr(err error, msg string) error {
	if errors.Is(err, repository.ErrNotFound) {
		return &NotFoundError{Message: msg}
	}
	return err
}
