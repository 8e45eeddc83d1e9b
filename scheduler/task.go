package scheduler

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Status represents the current lifecycle state of a task.
type Status string

const (
	// StatusPending indicates the task exists but has not been assigned.
	StatusPending Status = "pending"

	// StatusQueued indicates the task awaits reassignment after its
	// agent went away. Used only by the reassignment path.
	StatusQueued Status = "queued"

	// StatusAssigned indicates the task is registered with an agent and
	// waiting: either on unfinished dependencies or on a retry delay.
	StatusAssigned Status = "assigned"

	// StatusRunning indicates the task is executing.
	StatusRunning Status = "running"

	// StatusCompleted indicates the task finished successfully.
	StatusCompleted Status = "completed"

	// StatusFailed indicates the task exhausted its retries.
	StatusFailed Status = "failed"

	// StatusCancelled indicates the task was cancelled, directly or by a
	// cascade from a failed or cancelled parent.
	StatusCancelled Status = "cancelled"
)

// String returns the string representation of the status.
func (s Status) String() string {
	return string(s)
}

// IsTerminal returns true if the status is final. No further mutation of
// a task with a terminal status is permitted.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Task represents one unit of work. Callers construct a Task and hand it
// to AssignTask; the scheduler owns it afterwards. StartedAt and
// CompletedAt are set by the scheduler, never by the caller.
type Task struct {
	// ID is the unique identifier for the task.
	// Generated automatically on assignment if empty.
	ID string

	// Dependencies lists task ids that must complete before this task
	// may start.
	Dependencies []string

	// Status is the current lifecycle state.
	Status Status

	// AssignedAgent is the id of the agent responsible for the task.
	AssignedAgent string

	// Payload is the opaque work definition. The scheduler never reads it.
	Payload []byte

	// Output is the result payload, set on completion.
	Output []byte

	// Error is the failure detail, set on terminal failure.
	Error string

	// CreatedAt is when the task entered the scheduler.
	CreatedAt time.Time

	// StartedAt is when the current execution attempt began.
	StartedAt *time.Time

	// CompletedAt is when the task reached a terminal state.
	CompletedAt *time.Time
}

// Clone creates a deep copy of the task.
func (t *Task) Clone() *Task {
	clone := &Task{
		ID:            t.ID,
		Status:        t.Status,
		AssignedAgent: t.AssignedAgent,
		Error:         t.Error,
		CreatedAt:     t.CreatedAt,
	}

	if t.Dependencies != nil {
		clone.Dependencies = make([]string, len(t.Dependencies))
		copy(clone.Dependencies, t.Dependencies)
	}
	if t.Payload != nil {
		clone.Payload = make([]byte, len(t.Payload))
		copy(clone.Payload, t.Payload)
	}
	if t.Output != nil {
		clone.Output = make([]byte, len(t.Output))
		copy(clone.Output, t.Output)
	}
	if t.StartedAt != nil {
		started := *t.StartedAt
		clone.StartedAt = &started
	}
	if t.CompletedAt != nil {
		completed := *t.CompletedAt
		clone.CompletedAt = &completed
	}

	return clone
}

// scheduledTask is the scheduler's internal wrapper around a Task.
// Owned exclusively by the scheduler, mutated only under its mutex.
type scheduledTask struct {
	task    *Task
	agentID string

	// attempts counts execution attempts, incremented on each failure.
	attempts    int
	lastAttempt time.Time

	// retry produces the attempt-indexed backoff sequence
	// RetryDelay * 2^(n-1).
	retry *backoff.ExponentialBackOff

	// timer is the currently armed execution timeout or retry delay.
	// timerGen identifies the armed token; a callback whose generation
	// no longer matches must not act.
	timer    Timer
	timerGen uint64
}

// cancelTimer stops any armed timer and invalidates in-flight callbacks.
func (st *scheduledTask) cancelTimer() {
	if st.timer != nil {
		st.timer.Stop()
		st.timer = nil
	}
	st.timerGen++
}
