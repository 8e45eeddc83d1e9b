package errors

// ErrorCategory classifies errors by their retry semantics.
type ErrorCategory string

const (
	// CategoryTransient indicates failures where retry may succeed.
	// Examples: execution timeouts, event sink temporarily unreachable.
	CategoryTransient ErrorCategory = "transient"

	// CategoryPermanent indicates failures where retry will not help.
	// Examples: unmet dependencies, unknown task ids, invalid input.
	CategoryPermanent ErrorCategory = "permanent"

	// CategoryInternal indicates unexpected errors or scheduler bugs.
	CategoryInternal ErrorCategory = "internal"
)

// String returns the string representation of the category.
func (c ErrorCategory) String() string {
	return string(c)
}

// IsRetryable returns true if errors in this category may succeed on retry.
func (c ErrorCategory) IsRetryable() bool {
	return c == CategoryTransient
}

// ErrorCode identifies a specific failure type.
type ErrorCode string

const (
	// ErrCodeTimeout indicates an execution exceeded its allotted time.
	ErrCodeTimeout ErrorCode = "TIMEOUT"

	// ErrCodeDependencyUnmet indicates one or more dependencies of a task
	// are not satisfiable: not completed, not in flight, or already failed.
	ErrCodeDependencyUnmet ErrorCode = "DEPENDENCY_UNMET"

	// ErrCodeNotFound indicates the task id is not in active tracking.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeConflict indicates the operation collides with existing state,
	// e.g. assigning an id that is already active.
	ErrCodeConflict ErrorCode = "CONFLICT"

	// ErrCodeInvalidInput indicates malformed input (empty agent id,
	// self-dependency, nil task).
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"

	// ErrCodeCanceled indicates the task was cancelled.
	ErrCodeCanceled ErrorCode = "CANCELED"

	// ErrCodeAgentOffline indicates the holding agent is presumed dead.
	ErrCodeAgentOffline ErrorCode = "AGENT_OFFLINE"

	// ErrCodeBusUnavailable indicates the event sink rejected an emission.
	ErrCodeBusUnavailable ErrorCode = "BUS_UNAVAILABLE"

	// ErrCodeShutdown indicates the scheduler is shut down.
	ErrCodeShutdown ErrorCode = "SHUTDOWN"

	// ErrCodeInternal indicates an unexpected internal error.
	ErrCodeInternal ErrorCode = "INTERNAL"
)

// String returns the string representation of the code.
func (c ErrorCode) String() string {
	return string(c)
}

// DefaultCategory returns the category an error code belongs to unless
// explicitly overridden.
func (c ErrorCode) DefaultCategory() ErrorCategory {
	switch c {
	case ErrCodeTimeout, ErrCodeAgentOffline, ErrCodeBusUnavailable:
		return CategoryTransient
	case ErrCodeDependencyUnmet, ErrCodeNotFound, ErrCodeConflict,
		ErrCodeInvalidInput, ErrCodeCanceled, ErrCodeShutdown:
		return CategoryPermanent
	case ErrCodeInternal:
		return CategoryInternal
	default:
		return CategoryInternal
	}
}

// descriptions maps codes to default human-readable messages.
var descriptions = map[ErrorCode]string{
	ErrCodeTimeout:         "execution timed out",
	ErrCodeDependencyUnmet: "task dependencies not satisfied",
	ErrCodeNotFound:        "task not found in active tracking",
	ErrCodeConflict:        "conflicting task state",
	ErrCodeInvalidInput:    "invalid input",
	ErrCodeCanceled:        "task cancelled",
	ErrCodeAgentOffline:    "agent is offline",
	ErrCodeBusUnavailable:  "event sink unavailable",
	ErrCodeShutdown:        "scheduler is shut down",
	ErrCodeInternal:        "internal scheduler error",
}

// Description returns the default message for a code.
func (c ErrorCode) Description() string {
	if d, ok := descriptions[c]; ok {
		return d
	}
	return "unknown error"
}
