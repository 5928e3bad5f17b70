package errors

// ErrorCategory classifies errors by their nature and recovery semantics.
type ErrorCategory string

// Error categories define how errors should be handled.
const (
	// CategoryBusiness indicates a business-rule violation. Always
	// recoverable by the caller: fix the input and retry the call.
	// Engine state is never corrupted by a business error.
	CategoryBusiness ErrorCategory = "business"

	// CategoryStorage indicates an I/O failure in the storage layer,
	// wrapping an underlying cause. The in-memory state still reflects
	// the attempted mutation; persistence can be retried explicitly.
	CategoryStorage ErrorCategory = "storage"

	// CategoryInternal indicates unexpected errors or bugs.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRecoverable returns true if the caller can recover by fixing
// input and retrying the call.
func (c ErrorCategory) IsRecoverable() bool {
	return c == CategoryBusiness
}

// ErrorCode identifies specific failure types within categories.
type ErrorCode string

// Error codes for the engine's failure taxonomy.
const (
	// Business errors
	ErrCodeNotFound          ErrorCode = "NOT_FOUND"          // Task does not exist
	ErrCodeInvalidTransition ErrorCode = "INVALID_TRANSITION" // Lifecycle edge not permitted
	ErrCodeDuplicateContent  ErrorCode = "DUPLICATE_CONTENT"  // Identical content already pending/active
	ErrCodeInvalidOrder      ErrorCode = "INVALID_ORDER"      // Target ordering not dense/known/unique
	ErrCodeReopenWindow      ErrorCode = "REOPEN_WINDOW"      // Reopen attempted outside the window
	ErrCodeValidation        ErrorCode = "VALIDATION"         // Input failed a business rule

	// Storage errors
	ErrCodeStorage ErrorCode = "STORAGE" // Store could not be read or written

	// Internal errors
	ErrCodeInternal ErrorCode = "INTERNAL" // Unexpected internal error
)

// String returns the string representation of the error code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the default category for an error code.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeNotFound, ErrCodeInvalidTransition, ErrCodeDuplicateContent,
		ErrCodeInvalidOrder, ErrCodeReopenWindow, ErrCodeValidation:
		return CategoryBusiness
	case ErrCodeStorage:
		return CategoryStorage
	default:
		return CategoryInternal
	}
}

// DefaultRecoverable returns whether this error code is recoverable
// by fixing input and retrying.
func (c ErrorCode) DefaultRecoverable() bool {
	return c.DefaultCategory().IsRecoverable()
}

// codeDescriptions provides human-readable descriptions for error codes.
var codeDescriptions = map[ErrorCode]string{
	ErrCodeNotFound:          "task not found",
	ErrCodeInvalidTransition: "lifecycle transition not permitted",
	ErrCodeDuplicateContent:  "duplicate content among pending/active tasks",
	ErrCodeInvalidOrder:      "invalid target ordering",
	ErrCodeReopenWindow:      "reopen window has elapsed",
	ErrCodeValidation:        "input failed validation",
	ErrCodeStorage:           "store could not be read or written",
	ErrCodeInternal:          "internal error",
}

// Description returns a human-readable description for the error code.
func (c ErrorCode) Description() string {
	if desc, ok := codeDescriptions[c]; ok {
		return desc
	}
	return "unknown error"
}
