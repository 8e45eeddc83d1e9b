package scheduler

import (
	"github.com/vinayprograms/schedkit/errors"
)

// RescheduleAgentTasks resets every running task held by the agent to
// queued with a zeroed attempt counter and emits a task.created event per
// task for external reassignment machinery. It neither cancels nor
// reassigns anything itself: the task node stays registered under the
// original agent until a fresh AssignTask moves it.
func (s *Scheduler) RescheduleAgentTasks(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	requeued := 0
	now := s.clock.Now()
	for _, id := range s.agentTaskIDsLocked(agentID) {
		st, ok := s.active[id]
		if !ok || st.task.Status != StatusRunning {
			continue
		}

		st.cancelTimer()
		st.task.Status = StatusQueued
		st.task.StartedAt = nil
		st.attempts = 0
		st.retry.Reset()

		s.log.TaskRequeued(id, agentID)
		s.emit(SubjectTaskCreated, TaskEvent{
			TaskID:    id,
			AgentID:   agentID,
			Timestamp: now,
		})
		requeued++
	}

	if requeued > 0 {
		s.log.AgentRescheduled(agentID, requeued)
	}
}

// PerformMaintenance runs the bounded-history cleanup and force-fails
// stuck executions: any running task whose elapsed runtime exceeds twice
// the configured execution timeout is failed with a TimeoutError through
// the standard retry and cascade path. This safety net is independent of
// the per-task timer and covers lost timers and runtime drift.
func (s *Scheduler) PerformMaintenance() {
	s.mu.Lock()
	defer s.mu.Unlock()

	evicted := s.cleanupLocked()

	now := s.clock.Now()
	limit := 2 * s.cfg.ResourceTimeout
	var stuck []string
	for id, st := range s.active {
		if st.task.Status != StatusRunning || st.task.StartedAt == nil {
			continue
		}
		if now.Sub(*st.task.StartedAt) > limit {
			stuck = append(stuck, id)
		}
	}

	s.log.MaintenanceSweep(len(s.active), len(stuck), evicted)

	for _, id := range stuck {
		// A previous force-failure may have cascaded this one away.
		st, ok := s.active[id]
		if !ok || st.task.Status != StatusRunning || st.task.StartedAt == nil {
			continue
		}
		elapsed := now.Sub(*st.task.StartedAt)
		s.failLocked(st, errors.ExecutionTimeout(id, elapsed, errors.WithAgentID(st.agentID)))
	}
}

// cleanupLocked trims the completed history to its cap and prunes the
// reverse-dependency edges of evicted ids. Returns the eviction count.
func (s *Scheduler) cleanupLocked() int {
	evicted := s.history.trim()
	for _, id := range evicted {
		delete(s.dependents, id)
	}
	return len(evicted)
}

// armMaintenanceLocked schedules the next maintenance sweep. The timer
// re-arms itself after every sweep until shutdown.
func (s *Scheduler) armMaintenanceLocked() {
	s.maintenance = s.clock.AfterFunc(s.cfg.MaintenanceInterval, func() {
		s.PerformMaintenance()

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.initialized && !s.closed {
			s.armMaintenanceLocked()
		}
	})
}
