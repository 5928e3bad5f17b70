// Package errors provides the structured error taxonomy for taskkit.
// Every error carries a stable code and message sufficient to
// distinguish "your input was invalid" from "the store could not be
// read or written".
//
// # Error Categories
//
// Errors are classified into three categories:
//
//   - Business: rule violations, always recoverable by fixing input and retrying
//   - Storage: I/O failures in the storage layer, wrapping an underlying cause
//   - Internal: unexpected errors indicating bugs
//
// # Error Codes
//
// Each error has a specific code that identifies the type of failure:
//
//   - NOT_FOUND: task does not exist
//   - INVALID_TRANSITION: lifecycle edge not permitted
//   - DUPLICATE_CONTENT: identical content already pending/active
//   - INVALID_ORDER: target ordering not dense/known/unique
//   - REOPEN_WINDOW: reopen attempted outside the window
//   - VALIDATION: input failed a business rule
//   - STORAGE: store could not be read or written
//
// # Usage
//
// Create a new error:
//
//	err := errors.InvalidTransition("cannot start a completed task")
//
// Wrap an I/O failure:
//
//	wrapped := errors.Storage("writing task file", err)
//
// Check a code anywhere in the chain:
//
//	if errors.Is(err, errors.ErrCodeNotFound) {
//	    // handle missing task
//	}
//
// # JSON Serialization
//
// All errors support JSON serialization for the CLI result shell:
//
//	data, err := json.Marshal(engineErr)
package errors
