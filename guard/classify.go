package guard

import (
	"context"
	"errors"
)

// Category describes the kind of failure an operation produced. The retry
// layer uses it to decide whether another attempt can help.
type Category int

const (
	// CategoryUnknown is the category of unclassified errors. Treated as
	// retryable.
	CategoryUnknown Category = iota
	// CategoryValidation marks input that the dependency rejected.
	CategoryValidation
	// CategoryUnauthorized marks failed authentication or authorization.
	CategoryUnauthorized
	// CategoryNotFound marks a missing resource.
	CategoryNotFound
	// CategoryMalformed marks a request the dependency could not parse.
	CategoryMalformed
	// CategoryTimeout marks an attempt or call that ran out of time.
	CategoryTimeout
	// CategoryUnavailable marks a dependency that is unreachable or
	// returning server errors.
	CategoryUnavailable
	// CategoryRateLimited marks a dependency that is shedding load.
	CategoryRateLimited
	// CategoryInternal marks a dependency-side processing failure.
	CategoryInternal
)

// String returns the string representation of the category.
func (c Category) String() string {
	switch c {
	case CategoryValidation:
		return "validation"
	case CategoryUnauthorized:
		return "unauthorized"
	case CategoryNotFound:
		return "not_found"
	case CategoryMalformed:
		return "malformed"
	case CategoryTimeout:
		return "timeout"
	case CategoryUnavailable:
		return "unavailable"
	case CategoryRateLimited:
		return "rate_limited"
	case CategoryInternal:
		return "internal"
	default:
		return "unknown"
	}
}

// Terminal reports whether errors in this category must not be retried.
// Retrying a rejected input or a missing resource cannot succeed.
func (c Category) Terminal() bool {
	switch c {
	case CategoryValidation, CategoryUnauthorized, CategoryNotFound, CategoryMalformed:
		return true
	default:
		return false
	}
}

// classifiedError attaches a Category to an underlying error.
type classifiedError struct {
	category Category
	err      error
}

func (e *classifiedError) Error() string { return e.err.Error() }
func (e *classifiedError) Unwrap() error { return e.err }

// Classify wraps err with a failure category. Returns nil if err is nil.
func Classify(category Category, err error) error {
	if err == nil {
		return nil
	}
	return &classifiedError{category: category, err: err}
}

// CategoryOf returns the category attached to err, walking the wrap chain.
// Context deadline errors classify as timeouts.
func CategoryOf(err error) Category {
	var ce *classifiedError
	if errors.As(err, &ce) {
		return ce.category
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrOperationTimeout) {
		return CategoryTimeout
	}
	return CategoryUnknown
}

// Retryable reports whether another attempt at the operation could succeed.
// Unclassified errors are assumed transient.
func Retryable(err error) bool {
	return !CategoryOf(err).Terminal()
}
