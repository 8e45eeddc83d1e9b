// Package logging provides the scheduler's diagnostic sink: leveled,
// structured console output in key=value form. Diagnostics are best-effort
// and never behavior-affecting; lifecycle facts that collaborators depend
// on travel over the event bus instead.
package logging

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// ParseLevel converts a string into a Level, defaulting to INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

// Logger writes structured log lines to a single output.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
}

// New creates a new Logger writing to stdout at INFO.
func New() *Logger {
	return &Logger{
		output:   os.Stdout,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger scoped to the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stdout).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields renders fields as sorted key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return " " + strings.Join(parts, " ")
}

// log writes one line: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// --- Scheduler-derived logging methods ---
// Convenience wrappers called by the scheduler after each lifecycle
// transition, keeping field names consistent across the codebase.

// TaskAssigned logs a task registration.
func (l *Logger) TaskAssigned(taskID, agentID string, waiting int) {
	l.Info("task_assigned", map[string]interface{}{
		"task":    taskID,
		"agent":   agentID,
		"waiting": waiting,
	})
}

// TaskStarted logs an execution start.
func (l *Logger) TaskStarted(taskID, agentID string, attempt int) {
	l.Info("task_started", map[string]interface{}{
		"task":    taskID,
		"agent":   agentID,
		"attempt": attempt,
	})
}

// TaskCompleted logs a successful completion.
func (l *Logger) TaskCompleted(taskID string, duration time.Duration) {
	l.Info("task_completed", map[string]interface{}{
		"task":     taskID,
		"duration": duration.String(),
	})
}

// TaskRetry logs a scheduled retry.
func (l *Logger) TaskRetry(taskID string, attempt int, delay time.Duration, err error) {
	l.Warn("task_retry", map[string]interface{}{
		"task":    taskID,
		"attempt": attempt,
		"delay":   delay.String(),
		"error":   errString(err),
	})
}

// TaskFailed logs a terminal failure.
func (l *Logger) TaskFailed(taskID string, attempts int, err error) {
	l.Error("task_failed", map[string]interface{}{
		"task":     taskID,
		"attempts": attempts,
		"error":    errString(err),
	})
}

func errString(err error) string {
	if err == nil {
		return "unspecified"
	}
	return err.Error()
}

// TaskCancelled logs a cancellation.
func (l *Logger) TaskCancelled(taskID, reason string) {
	l.Info("task_cancelled", map[string]interface{}{
		"task":   taskID,
		"reason": reason,
	})
}

// TaskRequeued logs a task reset for reassignment.
func (l *Logger) TaskRequeued(taskID, agentID string) {
	l.Info("task_requeued", map[string]interface{}{
		"task":  taskID,
		"agent": agentID,
	})
}

// AgentRescheduled logs a full agent reschedule.
func (l *Logger) AgentRescheduled(agentID string, requeued int) {
	l.Warn("agent_rescheduled", map[string]interface{}{
		"agent":    agentID,
		"requeued": requeued,
	})
}

// MaintenanceSweep logs one maintenance pass.
func (l *Logger) MaintenanceSweep(active, stuck, evicted int) {
	l.Debug("maintenance_sweep", map[string]interface{}{
		"active":  active,
		"stuck":   stuck,
		"evicted": evicted,
	})
}

// EventDropped logs a failed event emission. Emission is fire-and-forget,
// so this is the only trace a lost event leaves.
func (l *Logger) EventDropped(subject string, err error) {
	l.Warn("event_dropped", map[string]interface{}{
		"subject": subject,
		"error":   err.Error(),
	})
}
