package errors

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Metadata keys used by the scheduling constructors.
const (
	// MetaUnmetDependencies holds a comma-separated list of unsatisfied
	// dependency ids on DEPENDENCY_UNMET errors.
	MetaUnmetDependencies = "unmet_dependencies"

	// MetaElapsed holds the elapsed runtime on TIMEOUT errors, formatted
	// with time.Duration.String.
	MetaElapsed = "elapsed"

	// MetaReason holds the cancellation reason on CANCELED errors.
	MetaReason = "reason"
)

// SchedError is the interface for all structured errors in schedkit.
// It extends the standard error interface with the context orchestrators
// need for retry and cascade decisions.
type SchedError interface {
	error

	// Code returns the specific error code identifying the failure type.
	Code() ErrorCode

	// Category returns the error category for retry decisions.
	Category() ErrorCategory

	// Retryable returns true if the operation may succeed on retry.
	Retryable() bool

	// Metadata returns additional context as key-value pairs.
	Metadata() map[string]string

	// Unwrap returns the underlying error, if any.
	Unwrap() error
}

// Error is the concrete implementation of SchedError.
type Error struct {
	code      ErrorCode
	category  ErrorCategory
	message   string
	cause     error
	metadata  map[string]string
	retryable *bool // nil means use the category default
	timestamp time.Time
	taskID    string
	agentID   string
}

var (
	_ SchedError       = (*Error)(nil)
	_ json.Marshaler   = (*Error)(nil)
	_ json.Unmarshaler = (*Error)(nil)
)

// Error returns the error message.
func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

// Code returns the error code.
func (e *Error) Code() ErrorCode {
	return e.code
}

// Category returns the error category.
func (e *Error) Category() ErrorCategory {
	return e.category
}

// Retryable returns whether this error is retryable.
func (e *Error) Retryable() bool {
	if e.retryable != nil {
		return *e.retryable
	}
	return e.category.IsRetryable()
}

// Metadata returns a copy of the error metadata.
func (e *Error) Metadata() map[string]string {
	result := make(map[string]string, len(e.metadata))
	for k, v := range e.metadata {
		result[k] = v
	}
	return result
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.cause
}

// Timestamp returns when the error occurred.
func (e *Error) Timestamp() time.Time {
	return e.timestamp
}

// TaskID returns the related task id, if set.
func (e *Error) TaskID() string {
	return e.taskID
}

// AgentID returns the related agent id, if set.
func (e *Error) AgentID() string {
	return e.agentID
}

// errorJSON is the wire representation of an Error.
type errorJSON struct {
	Code      ErrorCode         `json:"code"`
	Category  ErrorCategory     `json:"category"`
	Message   string            `json:"message"`
	Cause     string            `json:"cause,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Retryable bool              `json:"retryable"`
	Timestamp string            `json:"timestamp,omitempty"`
	TaskID    string            `json:"task_id,omitempty"`
	AgentID   string            `json:"agent_id,omitempty"`
}

// MarshalJSON implements json.Marshaler.
func (e *Error) MarshalJSON() ([]byte, error) {
	j := errorJSON{
		Code:      e.code,
		Category:  e.category,
		Message:   e.message,
		Metadata:  e.metadata,
		Retryable: e.Retryable(),
		TaskID:    e.taskID,
		AgentID:   e.agentID,
	}
	if e.cause != nil {
		j.Cause = e.cause.Error()
	}
	if !e.timestamp.IsZero() {
		j.Timestamp = e.timestamp.Format(time.RFC3339Nano)
	}
	return json.Marshal(j)
}

// UnmarshalJSON implements json.Unmarshaler.
func (e *Error) UnmarshalJSON(data []byte) error {
	var j errorJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	e.code = j.Code
	e.category = j.Category
	e.message = j.Message
	e.metadata = j.Metadata
	e.taskID = j.TaskID
	e.agentID = j.AgentID
	r := j.Retryable
	e.retryable = &r
	if j.Cause != "" {
		e.cause = fmt.Errorf("%s", j.Cause)
	}
	if j.Timestamp != "" {
		if t, err := time.Parse(time.RFC3339Nano, j.Timestamp); err == nil {
			e.timestamp = t
		}
	}
	return nil
}

// Option is a functional option for configuring an Error.
type Option func(*Error)

// WithCategory overrides the default category.
func WithCategory(cat ErrorCategory) Option {
	return func(e *Error) {
		e.category = cat
	}
}

// WithRetryable explicitly sets whether the error is retryable.
func WithRetryable(retryable bool) Option {
	return func(e *Error) {
		e.retryable = &retryable
	}
}

// WithMetadata adds a metadata key-value pair.
func WithMetadata(key, value string) Option {
	return func(e *Error) {
		if e.metadata == nil {
			e.metadata = make(map[string]string)
		}
		e.metadata[key] = value
	}
}

// WithTaskID sets the related task id.
func WithTaskID(id string) Option {
	return func(e *Error) {
		e.taskID = id
	}
}

// WithAgentID sets the related agent id.
func WithAgentID(id string) Option {
	return func(e *Error) {
		e.agentID = id
	}
}

// WithCause sets the underlying cause.
func WithCause(cause error) Option {
	return func(e *Error) {
		e.cause = cause
	}
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string, opts ...Option) *Error {
	e := &Error{
		code:      code,
		category:  code.DefaultCategory(),
		message:   message,
		timestamp: time.Now(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Newf creates a new Error with a formatted message.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...))
}

// DependencyUnmet creates a dependency error for a task whose listed
// dependencies cannot be satisfied. The unmet ids are preserved in
// metadata and recoverable via UnmetDependencies.
func DependencyUnmet(taskID string, missing []string, opts ...Option) *Error {
	opts = append(opts,
		WithTaskID(taskID),
		WithMetadata(MetaUnmetDependencies, strings.Join(missing, ",")),
	)
	return New(ErrCodeDependencyUnmet,
		fmt.Sprintf("task %s has unmet dependencies: %s", taskID, strings.Join(missing, ", ")),
		opts...)
}

// TaskNotFound creates a not-found error for a task id absent from active
// tracking.
func TaskNotFound(taskID string, opts ...Option) *Error {
	opts = append(opts, WithTaskID(taskID))
	return New(ErrCodeNotFound, fmt.Sprintf("task %s not found", taskID), opts...)
}

// ExecutionTimeout creates a timeout error carrying the elapsed runtime.
// The elapsed duration is recoverable via Elapsed.
func ExecutionTimeout(taskID string, elapsed time.Duration, opts ...Option) *Error {
	opts = append(opts,
		WithTaskID(taskID),
		WithMetadata(MetaElapsed, elapsed.String()),
	)
	return New(ErrCodeTimeout,
		fmt.Sprintf("task %s timed out after %s", taskID, elapsed),
		opts...)
}

// Canceled creates a cancellation error carrying the reason.
func Canceled(taskID, reason string, opts ...Option) *Error {
	opts = append(opts,
		WithTaskID(taskID),
		WithMetadata(MetaReason, reason),
	)
	return New(ErrCodeCanceled,
		fmt.Sprintf("task %s cancelled: %s", taskID, reason),
		opts...)
}

// AgentOffline creates an agent-offline error.
func AgentOffline(agentID string, opts ...Option) *Error {
	opts = append(opts, WithAgentID(agentID))
	return New(ErrCodeAgentOffline, fmt.Sprintf("agent %s is offline", agentID), opts...)
}

// InvalidInput creates an invalid input error.
func InvalidInput(message string, opts ...Option) *Error {
	return New(ErrCodeInvalidInput, message, opts...)
}

// Conflict creates a conflict error.
func Conflict(message string, opts ...Option) *Error {
	return New(ErrCodeConflict, message, opts...)
}

// Internal creates an internal error.
func Internal(message string, opts ...Option) *Error {
	return New(ErrCodeInternal, message, opts...)
}
