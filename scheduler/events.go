package scheduler

import (
	"encoding/json"
	"time"
)

// Lifecycle event subjects published to the event sink.
const (
	// SubjectTaskStarted announces an execution attempt beginning.
	SubjectTaskStarted = "task.started"

	// SubjectTaskCancelled announces a cancellation, direct or cascaded.
	SubjectTaskCancelled = "task.cancelled"

	// SubjectTaskCreated signals that a task needs reassignment.
	// External orchestration machinery picks it up and re-assigns.
	SubjectTaskCreated = "task.created"
)

// Cancellation reasons used by the scheduler itself. Direct callers may
// pass any reason; cascades use these verbatim.
const (
	ReasonParentCancelled = "Parent task cancelled"
	ReasonParentFailed    = "Parent task failed"
	ReasonAgentTerminated = "Agent terminated"
	ReasonShutdown        = "Scheduler shutdown"
)

// TaskEvent is the payload carried on every lifecycle subject.
type TaskEvent struct {
	// TaskID identifies the task.
	TaskID string `json:"task_id"`

	// AgentID identifies the holding agent, when one is involved.
	AgentID string `json:"agent_id,omitempty"`

	// Reason carries the cancellation reason on task.cancelled.
	Reason string `json:"reason,omitempty"`

	// Attempt is the 1-indexed execution attempt on task.started.
	Attempt int `json:"attempt,omitempty"`

	// Timestamp is when the transition happened.
	Timestamp time.Time `json:"timestamp"`
}

// Marshal serializes an event to JSON.
func (e *TaskEvent) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// UnmarshalEvent deserializes an event from JSON.
func UnmarshalEvent(data []byte) (*TaskEvent, error) {
	var e TaskEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return nil, err
	}
	return &e, nil
}

// emit publishes a lifecycle event. Emission is fire-and-forget: a sink
// failure is logged and otherwise ignored.
func (s *Scheduler) emit(subject string, event TaskEvent) {
	if s.events == nil {
		return
	}
	data, err := event.Marshal()
	if err != nil {
		s.log.EventDropped(subject, err)
		return
	}
	if err := s.events.Publish(subject, data); err != nil {
		s.log.EventDropped(subject, err)
	}
}
