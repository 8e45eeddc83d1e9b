package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Wrap wraps an error with additional context while preserving the chain.
// If err is nil, Wrap returns nil. If err is already a SchedError, its
// code, category, and context are carried over.
func Wrap(err error, message string, opts ...Option) *Error {
	if err == nil {
		return nil
	}

	var schedErr *Error
	if errors.As(err, &schedErr) {
		wrapped := &Error{
			code:      schedErr.code,
			category:  schedErr.category,
			message:   message,
			cause:     err,
			metadata:  schedErr.Metadata(),
			retryable: schedErr.retryable,
			timestamp: time.Now(),
			taskID:    schedErr.taskID,
			agentID:   schedErr.agentID,
		}
		for _, opt := range opts {
			opt(wrapped)
		}
		return wrapped
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return New(ErrCodeTimeout, message, append(opts, WithCause(err))...)
	}
	if errors.Is(err, context.Canceled) {
		return New(ErrCodeCanceled, message, append(opts, WithCause(err))...)
	}

	return New(ErrCodeInternal, message, append(opts, WithCause(err))...)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) *Error {
	return Wrap(err, fmt.Sprintf(format, args...))
}

// AsSchedError extracts a SchedError from an error chain.
// Returns nil if no SchedError is found.
func AsSchedError(err error) SchedError {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr
	}
	return nil
}

// IsCode checks if any error in the chain has the given error code.
func IsCode(err error, code ErrorCode) bool {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr.code == code
	}
	return false
}

// Code extracts the error code from an error, if available.
// Returns empty string if err is not a SchedError.
func Code(err error) ErrorCode {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr.code
	}
	return ""
}

// Category extracts the error category, if available.
func Category(err error) ErrorCategory {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr.category
	}
	return ""
}

// IsRetryable checks if the error is retryable.
// Non-SchedErrors default to not retryable.
func IsRetryable(err error) bool {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr.Retryable()
	}
	return false
}

// TaskID extracts the related task id from an error chain.
func TaskID(err error) string {
	var schedErr *Error
	if errors.As(err, &schedErr) {
		return schedErr.taskID
	}
	return ""
}

// UnmetDependencies extracts the unmet dependency ids from a
// DEPENDENCY_UNMET error. Returns nil for any other error.
func UnmetDependencies(err error) []string {
	var schedErr *Error
	if !errors.As(err, &schedErr) || schedErr.code != ErrCodeDependencyUnmet {
		return nil
	}
	raw := schedErr.metadata[MetaUnmetDependencies]
	if raw == "" {
		return nil
	}
	return strings.Split(raw, ",")
}

// Elapsed extracts the elapsed runtime from a TIMEOUT error.
// Returns zero for any other error or unparsable metadata.
func Elapsed(err error) time.Duration {
	var schedErr *Error
	if !errors.As(err, &schedErr) || schedErr.code != ErrCodeTimeout {
		return 0
	}
	d, perr := time.ParseDuration(schedErr.metadata[MetaElapsed])
	if perr != nil {
		return 0
	}
	return d
}

// Reason extracts the cancellation reason from a CANCELED error.
func Reason(err error) string {
	var schedErr *Error
	if !errors.As(err, &schedErr) || schedErr.code != ErrCodeCanceled {
		return ""
	}
	return schedErr.metadata[MetaReason]
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
