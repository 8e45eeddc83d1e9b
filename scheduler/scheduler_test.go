package scheduler

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/vinayprograms/schedkit/errors"
	"github.com/vinayprograms/schedkit/logging"
)

// eventRecorder captures published lifecycle events for assertions.
type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

type recordedEvent struct {
	subject string
	event   TaskEvent
}

func (r *eventRecorder) Publish(subject string, data []byte) error {
	var e TaskEvent
	if err := json.Unmarshal(data, &e); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{subject: subject, event: e})
	return nil
}

// on returns every captured event on a subject, in publish order.
func (r *eventRecorder) on(subject string) []TaskEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []TaskEvent
	for _, rec := range r.events {
		if rec.subject == subject {
			out = append(out, rec.event)
		}
	}
	return out
}

func (r *eventRecorder) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = nil
}

func testConfig() Config {
	return Config{
		MaxRetries:          3,
		RetryDelay:          time.Second,
		ResourceTimeout:     time.Minute,
		MaintenanceInterval: time.Minute,
		HistoryLimit:        1000,
	}
}

func newTestScheduler(t *testing.T, cfg Config) (*Scheduler, *fakeClock, *eventRecorder) {
	t.Helper()
	clk := newFakeClock()
	rec := &eventRecorder{}
	quiet := logging.New()
	quiet.SetOutput(io.Discard)
	s := New(cfg, Deps{Events: rec, Logger: quiet, Clock: clk})
	t.Cleanup(s.Shutdown)
	return s, clk, rec
}

func mustAssign(t *testing.T, s *Scheduler, task *Task, agentID string) {
	t.Helper()
	if err := s.AssignTask(task, agentID); err != nil {
		t.Fatalf("AssignTask(%s, %s): %v", task.ID, agentID, err)
	}
}

func statusOf(t *testing.T, s *Scheduler, taskID string) Status {
	t.Helper()
	task, err := s.GetTask(taskID)
	if err != nil {
		t.Fatalf("GetTask(%s): %v", taskID, err)
	}
	return task.Status
}

func TestAssignWithoutDependenciesStartsImmediately(t *testing.T) {
	s, _, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")

	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status = %s, want %s", got, StatusRunning)
	}
	if n := s.GetAgentTaskCount("agent-1"); n != 1 {
		t.Fatalf("agent task count = %d, want 1", n)
	}

	started := rec.on(SubjectTaskStarted)
	if len(started) != 1 {
		t.Fatalf("started events = %d, want 1", len(started))
	}
	if started[0].TaskID != "t1" || started[0].AgentID != "agent-1" || started[0].Attempt != 1 {
		t.Fatalf("unexpected started event: %+v", started[0])
	}
}

func TestAssignGeneratesMissingID(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	task := &Task{}
	mustAssign(t, s, task, "agent-1")

	if task.ID == "" {
		t.Fatal("expected a generated task id")
	}
	if _, err := s.GetTask(task.ID); err != nil {
		t.Fatalf("GetTask(%s): %v", task.ID, err)
	}
}

func TestAssignRejectsUnmetDependencies(t *testing.T) {
	s, _, rec := newTestScheduler(t, testConfig())

	err := s.AssignTask(&Task{ID: "t1", Dependencies: []string{"ghost-a", "ghost-b"}}, "agent-1")
	if !errors.IsCode(err, errors.ErrCodeDependencyUnmet) {
		t.Fatalf("error = %v, want DEPENDENCY_UNMET", err)
	}

	unmet := errors.UnmetDependencies(err)
	sort.Strings(unmet)
	if len(unmet) != 2 || unmet[0] != "ghost-a" || unmet[1] != "ghost-b" {
		t.Fatalf("unmet dependencies = %v, want [ghost-a ghost-b]", unmet)
	}

	// Rejection must leave no trace.
	if _, err := s.GetTask("t1"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("GetTask after rejection = %v, want NOT_FOUND", err)
	}
	if n := s.GetAgentTaskCount("agent-1"); n != 0 {
		t.Fatalf("agent task count = %d, want 0", n)
	}
	if events := rec.on(SubjectTaskStarted); len(events) != 0 {
		t.Fatalf("started events = %d, want 0", len(events))
	}
}

func TestAssignValidation(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	if err := s.AssignTask(nil, "agent-1"); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("nil task: error = %v, want INVALID_INPUT", err)
	}
	if err := s.AssignTask(&Task{ID: "t1"}, ""); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("empty agent: error = %v, want INVALID_INPUT", err)
	}
	if err := s.AssignTask(&Task{ID: "t1", Dependencies: []string{"t1"}}, "agent-1"); !errors.IsCode(err, errors.ErrCodeInvalidInput) {
		t.Fatalf("self dependency: error = %v, want INVALID_INPUT", err)
	}
}

func TestAssignConflicts(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")
	if err := s.AssignTask(&Task{ID: "t1"}, "agent-2"); !errors.IsCode(err, errors.ErrCodeConflict) {
		t.Fatalf("active duplicate: error = %v, want CONFLICT", err)
	}

	if err := s.CompleteTask("t1", nil); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if err := s.AssignTask(&Task{ID: "t1"}, "agent-2"); !errors.IsCode(err, errors.ErrCodeConflict) {
		t.Fatalf("completed duplicate: error = %v, want CONFLICT", err)
	}
}

func TestDependentOnActiveTaskWaits(t *testing.T) {
	s, _, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "parent"}, "agent-1")
	mustAssign(t, s, &Task{ID: "child", Dependencies: []string{"parent"}}, "agent-2")

	if got := statusOf(t, s, "child"); got != StatusAssigned {
		t.Fatalf("child status = %s, want %s", got, StatusAssigned)
	}
	if events := rec.on(SubjectTaskStarted); len(events) != 1 {
		t.Fatalf("started events = %d, want 1 (parent only)", len(events))
	}
}

func TestCompleteStartsEligibleDependents(t *testing.T) {
	s, _, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "parent"}, "agent-1")
	mustAssign(t, s, &Task{ID: "child", Dependencies: []string{"parent"}}, "agent-2")
	rec.clear()

	if err := s.CompleteTask("parent", []byte(`{"ok":true}`)); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	// The dependent starts inside CompleteTask, not on a later tick.
	if got := statusOf(t, s, "child"); got != StatusRunning {
		t.Fatalf("child status = %s, want %s", got, StatusRunning)
	}
	started := rec.on(SubjectTaskStarted)
	if len(started) != 1 || started[0].TaskID != "child" {
		t.Fatalf("started events = %+v, want one for child", started)
	}

	if _, err := s.GetTask("parent"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("completed parent still active: %v", err)
	}
}

func TestCompleteWithMultipleDependenciesWaitsForAll(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	mustAssign(t, s, &Task{ID: "b"}, "agent-1")
	mustAssign(t, s, &Task{ID: "c", Dependencies: []string{"a", "b"}}, "agent-2")

	if err := s.CompleteTask("a", nil); err != nil {
		t.Fatalf("CompleteTask(a): %v", err)
	}
	if got := statusOf(t, s, "c"); got != StatusAssigned {
		t.Fatalf("c status after first completion = %s, want %s", got, StatusAssigned)
	}

	if err := s.CompleteTask("b", nil); err != nil {
		t.Fatalf("CompleteTask(b): %v", err)
	}
	if got := statusOf(t, s, "c"); got != StatusRunning {
		t.Fatalf("c status after both completions = %s, want %s", got, StatusRunning)
	}
}

func TestCompleteUnknownTask(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	if err := s.CompleteTask("ghost", nil); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("error = %v, want NOT_FOUND", err)
	}
}

func TestRetryBackoffDoubles(t *testing.T) {
	s, clk, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")

	// First failure: retry after 1s.
	if err := s.FailTask("t1", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	if got := statusOf(t, s, "t1"); got != StatusAssigned {
		t.Fatalf("status after first failure = %s, want %s", got, StatusAssigned)
	}

	clk.Advance(999 * time.Millisecond)
	if got := statusOf(t, s, "t1"); got != StatusAssigned {
		t.Fatalf("status before retry delay elapsed = %s, want %s", got, StatusAssigned)
	}
	clk.Advance(time.Millisecond)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status after 1s retry delay = %s, want %s", got, StatusRunning)
	}

	// Second failure: retry after 2s.
	if err := s.FailTask("t1", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	clk.Advance(1999 * time.Millisecond)
	if got := statusOf(t, s, "t1"); got != StatusAssigned {
		t.Fatalf("status before doubled delay elapsed = %s, want %s", got, StatusAssigned)
	}
	clk.Advance(time.Millisecond)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status after 2s retry delay = %s, want %s", got, StatusRunning)
	}

	started := rec.on(SubjectTaskStarted)
	if len(started) != 3 {
		t.Fatalf("started events = %d, want 3", len(started))
	}
	for i, e := range started {
		if e.Attempt != i+1 {
			t.Fatalf("started[%d].Attempt = %d, want %d", i, e.Attempt, i+1)
		}
	}

	// Third failure exhausts the three attempts.
	if err := s.FailTask("t1", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	if _, err := s.GetTask("t1"); !errors.IsCode(err, errors.ErrCodeNotFound) {
		t.Fatalf("terminally failed task still active: %v", err)
	}
	if n := s.GetAgentTaskCount("agent-1"); n != 0 {
		t.Fatalf("agent task count after terminal failure = %d, want 0", n)
	}
}

func TestTerminalFailureCancelsDependents(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	s, _, rec := newTestScheduler(t, cfg)

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	mustAssign(t, s, &Task{ID: "b", Dependencies: []string{"a"}}, "agent-2")
	mustAssign(t, s, &Task{ID: "c", Dependencies: []string{"b"}}, "agent-3")

	if err := s.FailTask("a", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	for _, id := range []string{"a", "b", "c"} {
		if _, err := s.GetTask(id); !errors.IsCode(err, errors.ErrCodeNotFound) {
			t.Fatalf("task %s still active after cascade: %v", id, err)
		}
	}

	cancelled := rec.on(SubjectTaskCancelled)
	if len(cancelled) != 2 {
		t.Fatalf("cancelled events = %d, want 2", len(cancelled))
	}
	for _, e := range cancelled {
		if e.Reason != ReasonParentFailed {
			t.Fatalf("cancel reason for %s = %q, want %q", e.TaskID, e.Reason, ReasonParentFailed)
		}
	}
}

func TestFailedDependencyBlocksLateArrivals(t *testing.T) {
	cfg := testConfig()
	cfg.MaxRetries = 1
	s, _, _ := newTestScheduler(t, cfg)

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	if err := s.FailTask("a", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	// Failed ids never enter the completed history.
	err := s.AssignTask(&Task{ID: "b", Dependencies: []string{"a"}}, "agent-2")
	if !errors.IsCode(err, errors.ErrCodeDependencyUnmet) {
		t.Fatalf("error = %v, want DEPENDENCY_UNMET", err)
	}
}

func TestFailWaitingTaskDoesNotBypassDependencyGate(t *testing.T) {
	s, clk, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "dep"}, "agent-1")
	mustAssign(t, s, &Task{ID: "waiter", Dependencies: []string{"dep"}}, "agent-2")

	// The waiter has no attempt in flight, so there is nothing to fail.
	err := s.FailTask("waiter", fmt.Errorf("boom"))
	if !errors.IsCode(err, errors.ErrCodeConflict) {
		t.Fatalf("FailTask on waiting task = %v, want CONFLICT", err)
	}

	// No retry timer may start the waiter while its dependency is in flight.
	clk.Advance(time.Second)
	if got := statusOf(t, s, "waiter"); got != StatusAssigned {
		t.Fatalf("waiter status = %s, want %s", got, StatusAssigned)
	}
	if started := rec.on(SubjectTaskStarted); len(started) != 1 {
		t.Fatalf("started events = %d, want 1 (dep only)", len(started))
	}

	// The rejected report must not have disturbed the normal hand-off.
	if err := s.CompleteTask("dep", nil); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}
	if got := statusOf(t, s, "waiter"); got != StatusRunning {
		t.Fatalf("waiter status after dependency completed = %s, want %s", got, StatusRunning)
	}
}

func TestFailQueuedTaskRejected(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")
	s.RescheduleAgentTasks("agent-1")

	// A queued task leaves via reassignment, not via the retry path.
	if err := s.FailTask("t1", fmt.Errorf("boom")); !errors.IsCode(err, errors.ErrCodeConflict) {
		t.Fatalf("FailTask on queued task = %v, want CONFLICT", err)
	}
	if got := statusOf(t, s, "t1"); got != StatusQueued {
		t.Fatalf("status = %s, want %s", got, StatusQueued)
	}
}

func TestFailDuringRetryWaitRejected(t *testing.T) {
	s, clk, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")
	if err := s.FailTask("t1", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}

	// The attempt already concluded; a late report must not count twice.
	if err := s.FailTask("t1", fmt.Errorf("late")); !errors.IsCode(err, errors.ErrCodeConflict) {
		t.Fatalf("FailTask during retry wait = %v, want CONFLICT", err)
	}

	clk.Advance(time.Second)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status after retry delay = %s, want %s", got, StatusRunning)
	}
}

func TestExecutionTimeoutTriggersRetry(t *testing.T) {
	s, clk, rec := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")

	clk.Advance(time.Minute)
	if got := statusOf(t, s, "t1"); got != StatusAssigned {
		t.Fatalf("status after timeout = %s, want %s (awaiting retry)", got, StatusAssigned)
	}

	clk.Advance(time.Second)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status after retry delay = %s, want %s", got, StatusRunning)
	}

	started := rec.on(SubjectTaskStarted)
	if len(started) != 2 || started[1].Attempt != 2 {
		t.Fatalf("started events = %+v, want attempts 1 and 2", started)
	}
}

func TestCompletionDisarmsExecutionTimeout(t *testing.T) {
	s, clk, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")
	if err := s.CompleteTask("t1", nil); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	// The stale timeout callback must not resurrect or fail anything.
	clk.Advance(2 * time.Minute)
	if err := s.AssignTask(&Task{ID: "t2", Dependencies: []string{"t1"}}, "agent-1"); err != nil {
		t.Fatalf("dependency on completed task rejected: %v", err)
	}
	if got := statusOf(t, s, "t2"); got != StatusRunning {
		t.Fatalf("t2 status = %s, want %s", got, StatusRunning)
	}
}

func TestTimeoutClockRestartsPerAttempt(t *testing.T) {
	s, clk, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1"}, "agent-1")

	// Fail at 30s; the retry attempt gets a fresh full timeout.
	clk.Advance(30 * time.Second)
	if err := s.FailTask("t1", fmt.Errorf("boom")); err != nil {
		t.Fatalf("FailTask: %v", err)
	}
	clk.Advance(time.Second)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status = %s, want %s", got, StatusRunning)
	}

	clk.Advance(59 * time.Second)
	if got := statusOf(t, s, "t1"); got != StatusRunning {
		t.Fatalf("status 59s into attempt 2 = %s, want %s", got, StatusRunning)
	}
	clk.Advance(time.Second)
	if got := statusOf(t, s, "t1"); got != StatusAssigned {
		t.Fatalf("status 60s into attempt 2 = %s, want %s", got, StatusAssigned)
	}
}

func TestShutdownCancelsEverything(t *testing.T) {
	s, clk, rec := newTestScheduler(t, testConfig())
	s.Initialize()

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	mustAssign(t, s, &Task{ID: "b", Dependencies: []string{"a"}}, "agent-2")
	rec.clear()

	s.Shutdown()

	cancelled := rec.on(SubjectTaskCancelled)
	if len(cancelled) != 2 {
		t.Fatalf("cancelled events = %d, want 2", len(cancelled))
	}
	for _, e := range cancelled {
		if e.Reason != ReasonShutdown {
			t.Fatalf("cancel reason for %s = %q, want %q", e.TaskID, e.Reason, ReasonShutdown)
		}
	}

	if err := s.AssignTask(&Task{ID: "c"}, "agent-1"); !errors.IsCode(err, errors.ErrCodeShutdown) {
		t.Fatalf("assign after shutdown = %v, want SHUTDOWN", err)
	}

	// Timeout and maintenance timers are all released.
	if n := clk.pending(); n != 0 {
		t.Fatalf("pending timers after shutdown = %d, want 0", n)
	}

	// Second shutdown is a no-op.
	rec.clear()
	s.Shutdown()
	if events := rec.on(SubjectTaskCancelled); len(events) != 0 {
		t.Fatalf("repeat shutdown emitted %d events", len(events))
	}
}

func TestHealthStatus(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())
	s.Initialize()

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	mustAssign(t, s, &Task{ID: "b", Dependencies: []string{"a"}}, "agent-2")
	if err := s.CompleteTask("a", nil); err != nil {
		t.Fatalf("CompleteTask: %v", err)
	}

	hs := s.GetHealthStatus()
	if !hs.Healthy {
		t.Fatal("expected healthy")
	}
	if hs.Metrics.ActiveTasks != 1 || hs.Metrics.Agents != 1 {
		t.Fatalf("metrics = %+v, want 1 active task on 1 agent", hs.Metrics)
	}
	if hs.Metrics.ByStatus[StatusRunning] != 1 {
		t.Fatalf("running count = %d, want 1", hs.Metrics.ByStatus[StatusRunning])
	}
	if hs.Metrics.CompletedHistory != 1 {
		t.Fatalf("completed history = %d, want 1", hs.Metrics.CompletedHistory)
	}

	s.Shutdown()
	if s.GetHealthStatus().Healthy {
		t.Fatal("expected unhealthy after shutdown")
	}
}

func TestGetTaskReturnsCopy(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "t1", Payload: []byte("work")}, "agent-1")

	got, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	got.Status = StatusCancelled
	got.Payload[0] = 'X'

	again, err := s.GetTask("t1")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if again.Status != StatusRunning || string(again.Payload) != "work" {
		t.Fatal("mutating a returned task leaked into scheduler state")
	}
}

func TestGetAgentTasks(t *testing.T) {
	s, _, _ := newTestScheduler(t, testConfig())

	mustAssign(t, s, &Task{ID: "a"}, "agent-1")
	mustAssign(t, s, &Task{ID: "b"}, "agent-1")
	mustAssign(t, s, &Task{ID: "c"}, "agent-2")

	tasks := s.GetAgentTasks("agent-1")
	if len(tasks) != 2 {
		t.Fatalf("agent-1 tasks = %d, want 2", len(tasks))
	}
	ids := []string{tasks[0].ID, tasks[1].ID}
	sort.Strings(ids)
	if ids[0] != "a" || ids[1] != "b" {
		t.Fatalf("agent-1 task ids = %v, want [a b]", ids)
	}
	if tasks := s.GetAgentTasks("ghost"); len(tasks) != 0 {
		t.Fatalf("unknown agent tasks = %d, want 0", len(tasks))
	}
}
