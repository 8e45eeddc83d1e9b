package bus

import (
	"errors"
	"strings"
)

// Common errors.
var (
	ErrClosed         = errors.New("bus closed")
	ErrInvalidSubject = errors.New("invalid subject")
	ErrInvalidQueue   = errors.New("invalid queue group")
)

// Message represents a message received from the bus.
type Message struct {
	// Subject the message was published to.
	Subject string

	// Data is the message payload.
	Data []byte
}

// Publisher is the emission half of the bus. The scheduler depends only on
// this interface; it never subscribes.
type Publisher interface {
	// Publish sends a message to all subscribers of a subject.
	// Fire-and-forget: a returned error means the sink rejected the
	// message, not that no one was listening.
	Publish(subject string, data []byte) error
}

// MessageBus provides pub/sub messaging for scheduler collaborators.
type MessageBus interface {
	Publisher

	// Subscribe creates a subscription to a subject. All subscribers
	// receive all messages. A trailing ">" token matches any suffix
	// ("task.>" receives task.started, task.cancelled, ...).
	Subscribe(subject string) (Subscription, error)

	// QueueSubscribe creates a queue subscription. Messages are
	// load-balanced across members of the same queue group.
	QueueSubscribe(subject, queue string) (Subscription, error)

	// Close shuts down the bus and all subscriptions.
	Close() error
}

// Subscription represents an active subscription.
type Subscription interface {
	// Messages returns the channel for incoming messages.
	// The channel is closed when the subscription ends.
	Messages() <-chan *Message

	// Unsubscribe cancels the subscription.
	Unsubscribe() error
}

// Config holds common bus configuration.
type Config struct {
	// BufferSize for subscription channels.
	// Default: 256
	BufferSize int
}

// DefaultConfig returns configuration with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BufferSize: 256,
	}
}

// ValidateSubject checks if a subject is publishable. Wildcards are only
// legal in subscriptions.
func ValidateSubject(subject string) error {
	if subject == "" || strings.Contains(subject, ">") {
		return ErrInvalidSubject
	}
	return nil
}

// ValidatePattern checks if a subject pattern is subscribable. A single
// trailing ">" is the only wildcard form supported.
func ValidatePattern(pattern string) error {
	if pattern == "" {
		return ErrInvalidSubject
	}
	if i := strings.Index(pattern, ">"); i >= 0 {
		if i != len(pattern)-1 || (i > 0 && pattern[i-1] != '.') {
			return ErrInvalidSubject
		}
	}
	return nil
}

// matchSubject reports whether a concrete subject matches a pattern.
func matchSubject(pattern, subject string) bool {
	if pattern == subject {
		return true
	}
	if strings.HasSuffix(pattern, ">") {
		prefix := strings.TrimSuffix(pattern, ">")
		return strings.HasPrefix(subject, prefix)
	}
	return false
}
