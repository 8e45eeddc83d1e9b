package scheduler

import (
	"github.com/vinayprograms/schedkit/errors"
)

// HealthMetrics summarizes the scheduler's working set.
type HealthMetrics struct {
	// ActiveTasks is the number of tasks in active tracking.
	ActiveTasks int `json:"active_tasks"`

	// ByStatus counts active tasks per lifecycle status.
	ByStatus map[Status]int `json:"by_status"`

	// Agents is the number of agents currently holding tasks.
	Agents int `json:"agents"`

	// CompletedHistory is the number of retained completed ids.
	CompletedHistory int `json:"completed_history"`
}

// HealthStatus is the scheduler's self-report.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Metrics HealthMetrics `json:"metrics"`
}

// GetTask returns a copy of an active task. Terminal or unknown ids
// produce a NOT_FOUND error.
func (s *Scheduler) GetTask(taskID string) (*Task, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.active[taskID]
	if !ok {
		return nil, errors.TaskNotFound(taskID)
	}
	return st.task.Clone(), nil
}

// GetAgentTaskCount returns how many active tasks an agent holds.
func (s *Scheduler) GetAgentTaskCount(agentID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.agents[agentID])
}

// GetAgentTasks returns copies of every active task an agent holds.
func (s *Scheduler) GetAgentTasks(agentID string) []*Task {
	s.mu.Lock()
	defer s.mu.Unlock()

	ids := s.agentTaskIDsLocked(agentID)
	tasks := make([]*Task, 0, len(ids))
	for _, id := range ids {
		if st, ok := s.active[id]; ok {
			tasks = append(tasks, st.task.Clone())
		}
	}
	return tasks
}

// GetHealthStatus reports liveness and counts-by-status for the active
// working set.
func (s *Scheduler) GetHealthStatus() HealthStatus {
	s.mu.Lock()
	defer s.mu.Unlock()

	byStatus := make(map[Status]int)
	for _, st := range s.active {
		byStatus[st.task.Status]++
	}

	return HealthStatus{
		Healthy: s.initialized && !s.closed,
		Metrics: HealthMetrics{
			ActiveTasks:      len(s.active),
			ByStatus:         byStatus,
			Agents:           len(s.agents),
			CompletedHistory: s.history.size(),
		},
	}
}
