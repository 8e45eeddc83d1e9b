// Package scheduler provides dependency-aware task scheduling for agent
// swarms. It owns all task, agent, and dependency state, drives lifecycle
// transitions, retries failed work with exponential backoff, detects stuck
// executions, and cascades failure and cancellation through dependent tasks.
//
// # Collaborators
//
// The scheduler consumes three injected collaborators and decides nothing
// else: a bus.Publisher for lifecycle events (fire-and-forget), a
// logging.Logger for diagnostics, and a Clock for timers. It never chooses
// which agent receives a task, never persists state, and never interprets
// task payloads.
//
// # Lifecycle
//
// Tasks move through:
//
//	pending → assigned → running → {completed | failed | cancelled}
//
// A task whose dependencies are all completed starts inside AssignTask. A
// task depending on in-flight work waits in assigned and is started
// synchronously by the CompleteTask call that satisfies its last
// dependency. The queued status exists only on the reassignment path:
// RescheduleAgentTasks parks a dead agent's running tasks there and emits
// task.created events for external machinery to re-assign them.
//
// # Failure handling
//
// A failure (reported via FailTask or synthesized by the execution-timeout
// timer) increments the attempt counter. Only a running task can fail;
// reports for tasks waiting on dependencies, a retry delay, or
// reassignment are rejected. While attempts < MaxRetries the
// task stays registered and is restarted after RetryDelay * 2^(n-1).
// Once retries are exhausted the task fails terminally and every
// transitive dependent is cancelled with reason "Parent task failed".
// Failed ids never satisfy dependencies.
//
// # Usage
//
//	sched := scheduler.New(scheduler.Config{
//	    MaxRetries:      3,
//	    RetryDelay:      time.Second,
//	    ResourceTimeout: time.Minute,
//	}, scheduler.Deps{Events: b, Logger: log})
//	sched.Initialize()
//	defer sched.Shutdown()
//
//	err := sched.AssignTask(&scheduler.Task{ID: "build"}, "agent-1")
//	// executor reports back:
//	err = sched.CompleteTask("build", []byte("ok"))
//
// # Concurrency
//
// All public operations serialize behind a single mutex guarding the four
// indices as one unit. Index mutation and any dependent-starting or
// cancellation cascade complete before the call returns, so a caller
// observing a return sees a consistent snapshot. Timer callbacks
// re-validate their token under the same mutex, so a superseded or
// cancelled timer never mutates state.
package scheduler
