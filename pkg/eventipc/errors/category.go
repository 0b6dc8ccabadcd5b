// Package errors provides error categorization, typed transport errors and
// bounded retry for eventipc.
//
// Errors fall into four categories:
//   - Transient: a dial or listen that may succeed on a later attempt
//   - Permanent: misuse or a closed handle, retrying will not help
//   - Compromised: a frame failed authentication (tampering or wrong key)
//   - Malformed: a frame authenticated but could not be parsed
//
// Receive loops use the category to decide what to do with a frame; connect
// uses it to decide whether another attempt is worthwhile.
package errors

import (
	"errors"
	"fmt"
)

// Category represents how an error should be handled.
type Category int

const (
	// CategoryTransient indicates retry will likely help.
	// Examples: connection refused, endpoint not yet listening.
	CategoryTransient Category = iota

	// CategoryPermanent indicates retry won't help.
	// Examples: closed handle, invalid address.
	CategoryPermanent

	// CategoryCompromised indicates a frame failed authentication.
	CategoryCompromised

	// CategoryMalformed indicates a frame could not be parsed into an envelope.
	CategoryMalformed
)

// String returns the category name.
func (c Category) String() string {
	switch c {
	case CategoryTransient:
		return "transient"
	case CategoryPermanent:
		return "permanent"
	case CategoryCompromised:
		return "compromised"
	case CategoryMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// CategorizedError wraps an error with its category and context.
type CategorizedError struct {
	// Err is the underlying error.
	Err error

	// Category indicates how this error should be handled.
	Category Category

	// Retries is the number of attempts that have been made.
	Retries int

	// Context describes what operation was being attempted.
	Context string
}

// Error implements the error interface.
func (e *CategorizedError) Error() string {
	if e.Context != "" {
		return fmt.Sprintf("%s: %s (category: %s, attempts: %d)",
			e.Context, e.Err, e.Category, e.Retries)
	}
	return fmt.Sprintf("%s (category: %s, attempts: %d)",
		e.Err, e.Category, e.Retries)
}

// Unwrap returns the underlying error.
func (e *CategorizedError) Unwrap() error {
	return e.Err
}

// NewCategorized creates a new categorized error.
func NewCategorized(err error, category Category, context string) *CategorizedError {
	return &CategorizedError{
		Err:      err,
		Category: category,
		Context:  context,
	}
}

// Transient creates a transient error.
func Transient(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryTransient, context)
}

// Permanent creates a permanent error.
func Permanent(err error, context string) *CategorizedError {
	return NewCategorized(err, CategoryPermanent, context)
}

// Categorize determines how an error should be handled.
func Categorize(err error) Category {
	if err == nil {
		return CategoryPermanent // shouldn't happen, fail safe
	}

	var catErr *CategorizedError
	if errors.As(err, &catErr) {
		return catErr.Category
	}

	var tamperErr *TamperError
	if errors.As(err, &tamperErr) {
		return CategoryCompromised
	}

	var decodeErr *DecodeError
	if errors.As(err, &decodeErr) {
		return CategoryMalformed
	}

	var dialErr *DialError
	if errors.As(err, &dialErr) {
		return CategoryTransient
	}

	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		if transportErr.Timeout {
			return CategoryTransient
		}
		return CategoryPermanent
	}

	// Unknown errors are permanent (fail safe)
	return CategoryPermanent
}

// IsRetryable reports whether the error should be retried.
func IsRetryable(err error) bool {
	return Categorize(err) == CategoryTransient
}

// IsCompromised reports whether the error signals a failed authentication check.
func IsCompromised(err error) bool {
	return Categorize(err) == CategoryCompromised
}

// IsMalformed reports whether the error signals a structurally invalid frame.
func IsMalformed(err error) bool {
	return Categorize(err) == CategoryMalformed
}
