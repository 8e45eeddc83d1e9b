package scheduler

// CancelTask cancels an active task and, depth-first, every transitive
// dependent. The direct task carries the caller's reason verbatim;
// descendants carry "Parent task cancelled". Cancelling an id that is not
// active is a benign no-op, which keeps cascades idempotent.
func (s *Scheduler) CancelTask(taskID, reason string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.active[taskID]; !ok {
		return
	}
	s.cancelTreeLocked(taskID, reason, ReasonParentCancelled, make(map[string]struct{}))
}

// cancelTreeLocked cancels a task and recurses through its dependents.
// The visited set guarantees termination on cyclic dependency graphs and
// lets overlapping cascades skip already-processed nodes. Recursion
// continues through inactive ids so that grandchildren of an
// already-terminal node are still reached.
func (s *Scheduler) cancelTreeLocked(taskID, reason, descendantReason string, visited map[string]struct{}) {
	if _, seen := visited[taskID]; seen {
		return
	}
	visited[taskID] = struct{}{}

	if st, ok := s.active[taskID]; ok {
		st.cancelTimer()
		now := s.clock.Now()
		st.task.Status = StatusCancelled
		st.task.CompletedAt = &now
		s.removeLocked(st)

		s.log.TaskCancelled(taskID, reason)
		s.emit(SubjectTaskCancelled, TaskEvent{
			TaskID:    taskID,
			AgentID:   st.agentID,
			Reason:    reason,
			Timestamp: now,
		})
	}

	for _, depID := range s.dependentIDsLocked(taskID) {
		s.cancelTreeLocked(depID, descendantReason, descendantReason, visited)
	}
	delete(s.dependents, taskID)
}

// CancelAgentTasks cancels every active task held by the given agent with
// reason "Agent terminated" and removes the agent's index entry entirely.
// Used when an agent process is known to be gone for good.
func (s *Scheduler) CancelAgentTasks(agentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	visited := make(map[string]struct{})
	for _, id := range s.agentTaskIDsLocked(agentID) {
		s.cancelTreeLocked(id, ReasonAgentTerminated, ReasonParentCancelled, visited)
	}
	delete(s.agents, agentID)
}

// agentTaskIDsLocked snapshots the task ids held by an agent.
func (s *Scheduler) agentTaskIDsLocked(agentID string) []string {
	set := s.agents[agentID]
	if len(set) == 0 {
		return nil
	}
	ids := make([]string, 0, len(set))
	for id := range set {
		ids = append(ids, id)
	}
	return ids
}
