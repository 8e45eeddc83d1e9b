package bus

import (
	"sync"
	"sync/atomic"
)

// MemoryBus implements MessageBus using in-memory channels.
// Useful for tests and single-process deployments.
type MemoryBus struct {
	config Config

	mu     sync.RWMutex
	subs   []*memorySub            // pattern subscribers, wildcard-aware
	queues map[string][]*memorySub // queue group -> members
	rr     map[string]int          // queue group -> round-robin cursor
	closed atomic.Bool
}

type memorySub struct {
	pattern string
	queue   string
	ch      chan *Message
	closed  atomic.Bool
	bus     *MemoryBus
}

// NewMemoryBus creates a new in-memory message bus.
func NewMemoryBus(cfg Config) *MemoryBus {
	if cfg.BufferSize <= 0 {
		cfg.BufferSize = DefaultConfig().BufferSize
	}
	return &MemoryBus{
		config: cfg,
		queues: make(map[string][]*memorySub),
		rr:     make(map[string]int),
	}
}

// Publish sends a message to every matching subscriber and to one member
// of every matching queue group. Full buffers drop the message.
func (b *MemoryBus) Publish(subject string, data []byte) error {
	if err := ValidateSubject(subject); err != nil {
		return err
	}
	if b.closed.Load() {
		return ErrClosed
	}

	msg := &Message{Subject: subject, Data: data}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if sub.closed.Load() || !matchSubject(sub.pattern, subject) {
			continue
		}
		select {
		case sub.ch <- msg:
		default:
			// Buffer full, drop for this subscriber
		}
	}

	for group, members := range b.queues {
		b.deliverToQueue(group, members, msg)
	}

	return nil
}

// deliverToQueue hands the message to one matching member of a queue
// group, round-robin, skipping members with full buffers.
func (b *MemoryBus) deliverToQueue(group string, members []*memorySub, msg *Message) {
	n := len(members)
	if n == 0 {
		return
	}
	start := b.rr[group] % n
	for i := 0; i < n; i++ {
		sub := members[(start+i)%n]
		if sub.closed.Load() || !matchSubject(sub.pattern, msg.Subject) {
			continue
		}
		select {
		case sub.ch <- msg:
			b.rr[group] = (start + i + 1) % n
			return
		default:
			continue
		}
	}
}

// Subscribe creates a subscription to a subject pattern.
func (b *MemoryBus) Subscribe(pattern string) (Subscription, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		pattern: pattern,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()

	return sub, nil
}

// QueueSubscribe creates a queue subscription.
func (b *MemoryBus) QueueSubscribe(pattern, queue string) (Subscription, error) {
	if err := ValidatePattern(pattern); err != nil {
		return nil, err
	}
	if queue == "" {
		return nil, ErrInvalidQueue
	}
	if b.closed.Load() {
		return nil, ErrClosed
	}

	sub := &memorySub{
		pattern: pattern,
		queue:   queue,
		ch:      make(chan *Message, b.config.BufferSize),
		bus:     b,
	}

	b.mu.Lock()
	b.queues[queue] = append(b.queues[queue], sub)
	b.mu.Unlock()

	return sub, nil
}

// Close shuts down the bus and all subscriptions.
func (b *MemoryBus) Close() error {
	if b.closed.Swap(true) {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, sub := range b.subs {
		if !sub.closed.Swap(true) {
			close(sub.ch)
		}
	}
	for _, members := range b.queues {
		for _, sub := range members {
			if !sub.closed.Swap(true) {
				close(sub.ch)
			}
		}
	}

	b.subs = nil
	b.queues = nil

	return nil
}

// Messages returns the message channel.
func (s *memorySub) Messages() <-chan *Message {
	return s.ch
}

// Unsubscribe cancels the subscription.
func (s *memorySub) Unsubscribe() error {
	if s.closed.Swap(true) {
		return nil
	}

	s.bus.mu.Lock()
	defer s.bus.mu.Unlock()

	if s.queue == "" {
		s.bus.subs = removeSub(s.bus.subs, s)
	} else if s.bus.queues != nil {
		s.bus.queues[s.queue] = removeSub(s.bus.queues[s.queue], s)
	}

	close(s.ch)
	return nil
}

func removeSub(subs []*memorySub, target *memorySub) []*memorySub {
	for i, sub := range subs {
		if sub == target {
			return append(subs[:i], subs[i+1:]...)
		}
	}
	return subs
}
