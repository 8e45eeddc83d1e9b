// Package errors provides the structured error taxonomy for schedkit's
// task scheduling core. Every caller-visible failure carries a code, a
// category, and optional task/agent context so that orchestrators can make
// retry and routing decisions without string matching.
//
// # Error Categories
//
// Errors fall into three categories:
//
//   - Transient: failures where retrying the operation may succeed
//     (execution timeouts, unreachable event sinks)
//   - Permanent: failures where retry will not help (unmet dependencies,
//     unknown task ids, invalid input)
//   - Internal: unexpected failures indicating a bug in the scheduler
//
// # Scheduling Codes
//
// The three failure modes the scheduler surfaces map to codes:
//
//   - DEPENDENCY_UNMET: one or more dependencies are not satisfiable;
//     the unmet ids travel in the error metadata
//   - NOT_FOUND: the task id is not in active tracking (terminal, purged,
//     or never assigned)
//   - TIMEOUT: an execution exceeded its allotted time; the elapsed
//     duration travels in the error metadata
//
// # Usage
//
// Create a dependency failure listing the blocking ids:
//
//	err := errors.DependencyUnmet("task-9", []string{"task-3", "task-7"})
//	missing := errors.UnmetDependencies(err) // ["task-3", "task-7"]
//
// Check a failure mode without unwrapping by hand:
//
//	if errors.IsCode(err, errors.ErrCodeNotFound) {
//	    // task already reached a terminal state
//	}
//
// # JSON Serialization
//
// Errors serialize to JSON so they can ride on lifecycle events and
// diagnostic records:
//
//	data, _ := json.Marshal(schedErr)
package errors
