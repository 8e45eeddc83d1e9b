package scheduler

import (
	"sync"

	"github.com/google/uuid"

	"github.com/vinayprograms/schedkit/bus"
	"github.com/vinayprograms/schedkit/errors"
	"github.com/vinayprograms/schedkit/logging"
)

// Deps holds the scheduler's injected collaborators.
type Deps struct {
	// Events is the lifecycle event sink. Nil disables emission.
	Events bus.Publisher

	// Logger is the diagnostic sink. Nil disables diagnostics.
	Logger *logging.Logger

	// Clock is the timer service. Nil selects the real clock.
	Clock Clock
}

// Scheduler owns all task, agent, and dependency state. All public
// operations serialize behind one mutex guarding the four indices as a
// unit; see the package documentation for the concurrency contract.
type Scheduler struct {
	cfg    Config
	events bus.Publisher
	log    *logging.Logger
	clock  Clock

	mu          sync.Mutex
	active      map[string]*scheduledTask
	agents      map[string]map[string]struct{}
	dependents  map[string]map[string]struct{}
	history     *completedHistory
	maintenance Timer
	initialized bool
	closed      bool
}

// New creates a Scheduler. Zero-valued optional fields in cfg are
// treated as unset and replaced by defaults; call cfg.Validate
// beforehand to reject bad explicit values.
func New(cfg Config, deps Deps) *Scheduler {
	cfg = cfg.withDefaults()

	log := deps.Logger
	if log == nil {
		log = logging.New()
		log.SetLevel(logging.LevelError)
	}
	clock := deps.Clock
	if clock == nil {
		clock = NewClock()
	}

	return &Scheduler{
		cfg:        cfg,
		events:     deps.Events,
		log:        log.WithComponent("scheduler"),
		clock:      clock,
		active:     make(map[string]*scheduledTask),
		agents:     make(map[string]map[string]struct{}),
		dependents: make(map[string]map[string]struct{}),
		history:    newCompletedHistory(cfg.HistoryLimit),
	}
}

// Initialize arms the recurring maintenance timer. Idempotent.
func (s *Scheduler) Initialize() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.initialized || s.closed {
		return
	}
	s.initialized = true
	s.armMaintenanceLocked()
	s.log.Info("scheduler initialized", map[string]interface{}{
		"maintenance_interval": s.cfg.MaintenanceInterval.String(),
	})
}

// Shutdown cancels every active task with reason "Scheduler shutdown",
// then clears all indices. All cancellation cascades complete before
// Shutdown returns. Idempotent.
func (s *Scheduler) Shutdown() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	if s.maintenance != nil {
		s.maintenance.Stop()
		s.maintenance = nil
	}

	// A shared visited set tolerates cascades reaching tasks the outer
	// loop has not visited yet: cancelling an absent id is a no-op.
	visited := make(map[string]struct{})
	for _, id := range s.activeIDsLocked() {
		s.cancelTreeLocked(id, ReasonShutdown, ReasonShutdown, visited)
	}

	s.active = make(map[string]*scheduledTask)
	s.agents = make(map[string]map[string]struct{})
	s.dependents = make(map[string]map[string]struct{})
	s.history.reset()
	s.initialized = false
	s.closed = true
	s.log.Info("scheduler shut down")
}

// AssignTask validates dependencies, registers the task under the given
// agent, and starts it if every dependency is already completed. A task
// depending on in-flight work waits in assigned until CompleteTask on the
// last dependency starts it.
//
// A dependency is unmet when it is neither completed nor currently
// active: unknown, failed, cancelled, or evicted ids are permanently
// unsatisfiable and produce a DEPENDENCY_UNMET error with the offending
// ids. No state is mutated on a failed precondition.
//
// Re-assigning a queued task (reassignment path) moves it to the new
// agent and restarts it.
func (s *Scheduler) AssignTask(task *Task, agentID string) error {
	if task == nil {
		return errors.InvalidInput("task must not be nil")
	}
	if agentID == "" {
		return errors.InvalidInput("agent id must not be empty", errors.WithTaskID(task.ID))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return errors.New(errors.ErrCodeShutdown, "scheduler is shut down")
	}

	if task.ID == "" {
		task.ID = uuid.NewString()
	}
	for _, dep := range task.Dependencies {
		if dep == task.ID {
			return errors.InvalidInput("task depends on itself", errors.WithTaskID(task.ID))
		}
	}

	if st, ok := s.active[task.ID]; ok {
		if st.task.Status == StatusQueued {
			s.reassignLocked(st, agentID)
			return nil
		}
		return errors.Conflict("task already active", errors.WithTaskID(task.ID))
	}
	if s.history.contains(task.ID) {
		return errors.Conflict("task id already completed", errors.WithTaskID(task.ID))
	}

	var unmet []string
	for _, dep := range task.Dependencies {
		if s.history.contains(dep) {
			continue
		}
		if _, inFlight := s.active[dep]; inFlight {
			continue
		}
		unmet = append(unmet, dep)
	}
	if len(unmet) > 0 {
		return errors.DependencyUnmet(task.ID, unmet, errors.WithAgentID(agentID))
	}

	now := s.clock.Now()
	task.Status = StatusAssigned
	task.AssignedAgent = agentID
	if task.CreatedAt.IsZero() {
		task.CreatedAt = now
	}

	st := &scheduledTask{
		task:    task,
		agentID: agentID,
		retry:   newRetryBackoff(s.cfg),
	}
	s.active[task.ID] = st
	if s.agents[agentID] == nil {
		s.agents[agentID] = make(map[string]struct{})
	}
	s.agents[agentID][task.ID] = struct{}{}
	for _, dep := range task.Dependencies {
		if s.dependents[dep] == nil {
			s.dependents[dep] = make(map[string]struct{})
		}
		s.dependents[dep][task.ID] = struct{}{}
	}

	if s.depsSatisfiedLocked(task) {
		s.startLocked(st)
	} else {
		s.log.TaskAssigned(task.ID, agentID, len(task.Dependencies))
	}

	return nil
}

// reassignLocked moves a queued task onto a fresh agent and restarts it.
func (s *Scheduler) reassignLocked(st *scheduledTask, agentID string) {
	id := st.task.ID
	if prev := s.agents[st.agentID]; prev != nil {
		delete(prev, id)
		if len(prev) == 0 {
			delete(s.agents, st.agentID)
		}
	}
	st.agentID = agentID
	st.task.AssignedAgent = agentID
	st.task.Status = StatusAssigned
	if s.agents[agentID] == nil {
		s.agents[agentID] = make(map[string]struct{})
	}
	s.agents[agentID][id] = struct{}{}

	if s.depsSatisfiedLocked(st.task) {
		s.startLocked(st)
	} else {
		s.log.TaskAssigned(id, agentID, len(st.task.Dependencies))
	}
}

// CompleteTask records a successful result, retires the task into the
// completed history, and synchronously starts every dependent whose
// dependencies are now all satisfied.
func (s *Scheduler) CompleteTask(taskID string, result []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[taskID]
	if !ok {
		return errors.TaskNotFound(taskID)
	}

	st.cancelTimer()

	now := s.clock.Now()
	st.task.Status = StatusCompleted
	st.task.Output = result
	st.task.CompletedAt = &now
	s.removeLocked(st)

	for _, evicted := range s.history.add(taskID) {
		delete(s.dependents, evicted)
	}

	if st.task.StartedAt != nil {
		s.log.TaskCompleted(taskID, now.Sub(*st.task.StartedAt))
	} else {
		s.log.TaskCompleted(taskID, 0)
	}

	for _, depID := range s.dependentIDsLocked(taskID) {
		dst, active := s.active[depID]
		if !active {
			continue
		}
		// Only tasks parked on dependencies are eligible; queued tasks
		// wait for reassignment and retry waits keep their timer.
		if dst.task.Status != StatusAssigned || dst.timer != nil {
			continue
		}
		if s.depsSatisfiedLocked(dst.task) {
			s.startLocked(dst)
		}
	}

	return nil
}

// FailTask records a failed execution attempt. While attempts remain the
// task stays registered and a retry is scheduled with exponential
// backoff; once retries are exhausted the task fails terminally and all
// transitive dependents are cancelled.
//
// Only a running task can fail: a task waiting on dependencies, a retry
// delay, or reassignment has no attempt in flight to report on, and
// admitting such a report would let the retry timer start it without its
// dependencies completed. Those reports are rejected with CONFLICT.
func (s *Scheduler) FailTask(taskID string, taskErr error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[taskID]
	if !ok {
		return errors.TaskNotFound(taskID)
	}
	if st.task.Status != StatusRunning {
		return errors.Conflict("task is not running", errors.WithTaskID(taskID))
	}

	s.failLocked(st, taskErr)
	return nil
}

// failLocked applies the retry policy to a failed attempt.
func (s *Scheduler) failLocked(st *scheduledTask, taskErr error) {
	id := st.task.ID
	st.cancelTimer()

	now := s.clock.Now()
	st.attempts++
	st.lastAttempt = now

	if st.attempts < s.cfg.MaxRetries {
		delay := st.retry.NextBackOff()
		st.task.Status = StatusAssigned
		s.log.TaskRetry(id, st.attempts, delay, taskErr)

		gen := st.timerGen
		st.timer = s.clock.AfterFunc(delay, func() {
			s.onRetryElapsed(id, gen)
		})
		return
	}

	st.task.Status = StatusFailed
	st.task.CompletedAt = &now
	if taskErr != nil {
		st.task.Error = taskErr.Error()
	}
	s.removeLocked(st)
	s.log.TaskFailed(id, st.attempts, taskErr)

	// Failed ids never enter the completed history, so dependents are
	// permanently blocked; the cascade releases them.
	visited := map[string]struct{}{id: {}}
	for _, depID := range s.dependentIDsLocked(id) {
		s.cancelTreeLocked(depID, ReasonParentFailed, ReasonParentFailed, visited)
	}
	delete(s.dependents, id)
}

// onRetryElapsed restarts a task whose retry delay expired, provided the
// armed timer token is still current.
func (s *Scheduler) onRetryElapsed(taskID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[taskID]
	if !ok || st.timerGen != gen || st.task.Status != StatusAssigned {
		return
	}
	st.timer = nil
	st.timerGen++
	s.startLocked(st)
}

// startLocked transitions a task to running, emits the started event,
// and arms the execution timeout.
func (s *Scheduler) startLocked(st *scheduledTask) {
	id := st.task.ID
	now := s.clock.Now()

	st.task.Status = StatusRunning
	st.task.StartedAt = &now

	s.log.TaskStarted(id, st.agentID, st.attempts+1)
	s.emit(SubjectTaskStarted, TaskEvent{
		TaskID:    id,
		AgentID:   st.agentID,
		Attempt:   st.attempts + 1,
		Timestamp: now,
	})

	gen := st.timerGen
	st.timer = s.clock.AfterFunc(s.cfg.ResourceTimeout, func() {
		s.onExecutionTimeout(id, gen)
	})
}

// onExecutionTimeout force-fails a task whose execution timer fired
// before completion or failure was reported. This is the sole mechanism
// turning executor silence into a failure; it feeds the same retry and
// cascade path as any reported failure.
func (s *Scheduler) onExecutionTimeout(taskID string, gen uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[taskID]
	if !ok || st.timerGen != gen || st.task.Status != StatusRunning {
		return
	}
	st.timer = nil
	st.timerGen++

	elapsed := s.cfg.ResourceTimeout
	if st.task.StartedAt != nil {
		elapsed = s.clock.Now().Sub(*st.task.StartedAt)
	}
	s.failLocked(st, errors.ExecutionTimeout(taskID, elapsed, errors.WithAgentID(st.agentID)))
}

// depsSatisfiedLocked reports whether every dependency is in the
// completed history.
func (s *Scheduler) depsSatisfiedLocked(task *Task) bool {
	for _, dep := range task.Dependencies {
		if !s.history.contains(dep) {
			return false
		}
	}
	return true
}

// removeLocked drops a task from the active and agent indices and prunes
// its incoming reverse-dependency registrations. Always called together
// so the indices never dangle.
func (s *Scheduler) removeLocked(st *scheduledTask) {
	id := st.task.ID
	delete(s.active, id)
	if set := s.agents[st.agentID]; set != nil {
		delete(set, id)
		if len(set) == 0 {
			delete(s.agents, st.agentID)
		}
	}
	for _, dep := range st.task.Dependencies {
		if set := s.dependents[dep]; set != nil {
			delete(set, id)
			if len(set) == 0 {
				delete(s.dependents, dep)
			}
		}
	}
}

// activeIDsLocked snapshots the active task ids.
func (s *Scheduler) activeIDsLocked() []string {
	ids := make([]string, 0, len(s.active))
	for id := range s.active {
		ids = append(ids, id)
	}
	return ids
}

// dependentIDsLocked snapshots the dependents of a task id. Cascades
// mutate the underlying set while walking it, so iteration works on a
// copy.
func (s *Scheduler) dependentIDsLocked(taskID string) []string {
	set := s.dependents[taskID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
