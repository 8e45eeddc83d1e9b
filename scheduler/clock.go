package scheduler

import "time"

// Clock is the timer-service collaborator: it supplies the current time
// and schedules delayed callbacks. Production code uses the real clock;
// tests inject a fake to drive timeouts and retries deterministically.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// AfterFunc schedules f to run after d and returns a cancellable
	// handle.
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a handle to a pending callback.
type Timer interface {
	// Stop cancels the pending callback. It reports whether the call
	// was prevented from firing. Callers must not rely on Stop alone to
	// prevent a concurrent firing; the scheduler re-validates timer
	// generations under its mutex.
	Stop() bool
}

// realClock implements Clock with the time package.
type realClock struct{}

// NewClock returns the real wall clock.
func NewClock() Clock {
	return realClock{}
}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) AfterFunc(d time.Duration, f func()) Timer {
	return time.AfterFunc(d, f)
}
