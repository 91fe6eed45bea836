package tandemerrs

import (
	"fmt"
	"maps"
)

// Error is the interface implemented by all tandem errors.
type Error interface {
	error
	// Code returns the stable error code.
	Code() ErrorCode
	// Category returns the originating subsystem.
	Category() ErrorCategory
	// Unwrap returns the underlying cause, if any.
	Unwrap() error
	// Metadata returns additional structured context.
	Metadata() map[string]any
}

// BaseError is the shared implementation backing all error
// constructors in this package.
type BaseError struct {
	code     ErrorCode
	category ErrorCategory
	message  string
	cause    error
	metadata map[string]any
}

// New creates a BaseError with the given category, code and message.
func New(
	category ErrorCategory,
	code ErrorCode,
	message string,
	cause error,
) *BaseError {
	return &BaseError{
		code:     code,
		category: category,
		message:  message,
		cause:    cause,
		metadata: make(map[string]any),
	}
}

// Error implements the error interface.
func (e *BaseError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.category, e.message, e.cause)
	}

	return fmt.Sprintf("%s: %s", e.category, e.message)
}

// Code returns the error code.
func (e *BaseError) Code() ErrorCode { return e.code }

// Category returns the error category.
func (e *BaseError) Category() ErrorCategory { return e.category }

// Unwrap returns the underlying cause.
func (e *BaseError) Unwrap() error { return e.cause }

// Metadata returns the structured context attached to the error.
func (e *BaseError) Metadata() map[string]any { return e.metadata }

// WithMetadata attaches a single metadata entry and returns the error.
func (e *BaseError) WithMetadata(key string, value any) *BaseError {
	e.metadata[key] = value

	return e
}

// WithMetadataMap attaches several metadata entries at once.
func (e *BaseError) WithMetadataMap(md map[string]any) *BaseError {
	maps.Copy(e.metadata, md)

	return e
}

// HasCode reports whether err carries the given code anywhere in its
// chain.
func HasCode(err error, code ErrorCode) bool {
	for err != nil {
		if te, ok := err.(Error); ok && te.Code() == code {
			return true
		}
		u, ok := err.(interface{ Unwrap() error })
		if !ok {
			return false
		}
		err = u.Unwrap()
	}

	return false
}
