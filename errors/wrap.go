package errors

import (
	"errors"
	"fmt"
)

// Wrap wraps an error with additional context while preserving the error chain.
// If err is nil, Wrap returns nil.
// If err is already an EngineError, it wraps it with the new message and
// preserves its code and category.
// Otherwise, it creates a new Internal error wrapping the original.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	// If it's already an EngineError, preserve its properties
	var engineErr *Error
	if errors.As(err, &engineErr) {
		wrapped := &Error{
			code:        engineErr.code,
			category:    engineErr.category,
			message:     message,
			cause:       err,
			metadata:    engineErr.Metadata(),
			recoverable: engineErr.recoverable,
			taskID:      engineErr.taskID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	// Default to internal error for unknown errors
	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// WrapWithCode wraps an error with a specific error code.
func WrapWithCode(err error, code ErrorCode, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}
	opts = append(opts, WithCause(err))
	return New(code, message, opts...)
}

// AsEngineError attempts to extract an EngineError from an error chain.
// Returns nil if no EngineError is found.
func AsEngineError(err error) EngineError {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr
	}
	return nil
}

// Is checks if any error in the chain has the given error code.
func Is(err error, code ErrorCode) bool {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.code == code
	}
	return false
}

// Code extracts the error code from an error.
// Returns empty string if err is not an EngineError.
func Code(err error) ErrorCode {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.code
	}
	return ""
}

// Category extracts the error category from an error.
// Returns empty string if err is not an EngineError.
func Category(err error) ErrorCategory {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.category
	}
	return ""
}

// IsRecoverable reports whether the caller can recover from the error
// by fixing input and retrying. Unknown errors are not recoverable.
func IsRecoverable(err error) bool {
	var engineErr *Error
	if errors.As(err, &engineErr) {
		return engineErr.Recoverable()
	}
	return false
}

// Cause returns the root cause of the error chain.
func Cause(err error) error {
	for {
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return err
		}
		inner := unwrapper.Unwrap()
		if inner == nil {
			return err
		}
		err = inner
	}
}

// Convenience constructors for the engine's failure taxonomy.

// NotFound creates a NOT_FOUND error for a missing task.
func NotFound(message string, opts ...Option) *Error {
	return New(ErrCodeNotFound, message, opts...)
}

// InvalidTransition creates an INVALID_TRANSITION error for an illegal
// lifecycle edge.
func InvalidTransition(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidTransition, message, opts...)
}

// DuplicateContent creates a DUPLICATE_CONTENT error.
func DuplicateContent(message string, opts ...Option) *Error {
	return New(ErrCodeDuplicateContent, message, opts...)
}

// InvalidOrder creates an INVALID_ORDER error for a rejected reorder.
func InvalidOrder(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidOrder, message, opts...)
}

// OutsideReopenWindow creates a REOPEN_WINDOW error.
func OutsideReopenWindow(message string, opts ...Option) *Error {
	return New(ErrCodeReopenWindow, message, opts...)
}

// Validation creates a VALIDATION error for a business-rule violation.
func Validation(message string, opts ...Option) *Error {
	return New(ErrCodeValidation, message, opts...)
}

// Storage creates a STORAGE error wrapping an underlying I/O cause.
func Storage(message string, cause error, opts ...Option) *Error {
	if cause != nil {
		opts = append(opts, WithCause(cause))
	}
	return New(ErrCodeStorage, message, opts...)
}
