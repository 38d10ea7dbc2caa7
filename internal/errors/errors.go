// Package errors provides domain-specific error types and sentinel errors
// shared by the chat pipeline, storage, and ingestion packages.
package errors

import (
	"context"
	"errors"
	"fmt"
)

// Sentinel errors for common scenarios.
// Use errors.Is() to check these errors in your code.
var (
	// ErrNotFound indicates a requested record does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrCollaboratorUnavailable indicates storage, the Teams channel, or the
	// generation API failed or timed out.
	ErrCollaboratorUnavailable = errors.New("collaborator unavailable")

	// ErrUnauthenticated indicates a missing or invalid caller credential.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInvalidInput indicates user provided invalid input.
	ErrInvalidInput = errors.New("invalid input")

	// ErrTimeout indicates an operation timed out.
	ErrTimeout = errors.New("operation timed out")

	// ErrRateLimitExceeded indicates a caller exceeded its request budget.
	ErrRateLimitExceeded = errors.New("rate limit exceeded")
)

// CollaboratorError records which external collaborator failed and during
// which operation. It always matches ErrCollaboratorUnavailable, and
// ErrTimeout as well when the cause was a deadline.
type CollaboratorError struct {
	Collaborator string // "storage", "teams", "generation"
	Op           string
	Err          error
}

func (e *CollaboratorError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Collaborator, e.Op, e.Err)
}

func (e *CollaboratorError) Unwrap() error {
	return e.Err
}

// Is makes every CollaboratorError match ErrCollaboratorUnavailable.
func (e *CollaboratorError) Is(target error) bool {
	if target == ErrCollaboratorUnavailable {
		return true
	}
	return target == ErrTimeout && errors.Is(e.Err, context.DeadlineExceeded)
}

// NewCollaboratorError wraps err with collaborator context. Returns nil for a nil err.
func NewCollaboratorError(collaborator, op string, err error) error {
	if err == nil {
		return nil
	}
	return &CollaboratorError{Collaborator: collaborator, Op: op, Err: err}
}

// ValidationError represents input validation failures.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Is lets errors.Is(err, ErrInvalidInput) match validation failures.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}

// NewValidationError creates a new validation error.
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// ScraperError represents web scraping failures with context.
type ScraperError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *ScraperError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("scraper error (url=%s, status=%d): %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("scraper error (url=%s): %v", e.URL, e.Err)
}

func (e *ScraperError) Unwrap() error {
	return e.Err
}

// NewScraperError creates a new scraper error.
func NewScraperError(url string, statusCode int, err error) *ScraperError {
	return &ScraperError{
		URL:        url,
		StatusCode: statusCode,
		Err:        err,
	}
}

// IsNotFound reports whether err matches ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsCollaboratorUnavailable reports whether err came from a failed collaborator.
func IsCollaboratorUnavailable(err error) bool {
	return errors.Is(err, ErrCollaboratorUnavailable)
}

// IsUnauthenticated reports whether err matches ErrUnauthenticated.
func IsUnauthenticated(err error) bool {
	return errors.Is(err, ErrUnauthenticated)
}
