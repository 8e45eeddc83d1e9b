package heartbeat

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/vinayprograms/schedkit/bus"
)

// Monitor tracks agent liveness from heartbeats on the bus and reports
// agents that fall silent.
type Monitor struct {
	bus           bus.MessageBus
	timeout       time.Duration
	checkInterval time.Duration

	mu       sync.RWMutex
	lastSeen map[string]*Heartbeat
	reported map[string]bool
	deadCBs  []func(agentID string)

	running atomic.Bool
	sub     bus.Subscription
	stopCh  chan struct{}
	doneCh  chan struct{}
}

// NewMonitor creates a heartbeat monitor.
func NewMonitor(cfg MonitorConfig) (*Monitor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultMonitorConfig().Timeout
	}
	checkInterval := cfg.CheckInterval
	if checkInterval <= 0 {
		checkInterval = DefaultMonitorConfig().CheckInterval
	}

	return &Monitor{
		bus:           cfg.Bus,
		timeout:       timeout,
		checkInterval: checkInterval,
		lastSeen:      make(map[string]*Heartbeat),
		reported:      make(map[string]bool),
	}, nil
}

// OnDead registers a callback invoked once per silence: when an agent's
// last heartbeat ages past the timeout. A fresh heartbeat from the agent
// re-arms the report.
func (m *Monitor) OnDead(callback func(agentID string)) {
	m.mu.Lock()
	m.deadCBs = append(m.deadCBs, callback)
	m.mu.Unlock()
}

// Start subscribes to all agent heartbeats and begins the dead-agent
// check loop.
func (m *Monitor) Start() error {
	if m.running.Swap(true) {
		return ErrAlreadyStarted
	}

	sub, err := m.bus.Subscribe(SubjectPrefix + ">")
	if err != nil {
		m.running.Store(false)
		return err
	}
	m.sub = sub
	m.stopCh = make(chan struct{})
	m.doneCh = make(chan struct{})

	go m.run()
	return nil
}

func (m *Monitor) run() {
	defer close(m.doneCh)

	ticker := time.NewTicker(m.checkInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case msg, ok := <-m.sub.Messages():
			if !ok {
				return
			}
			m.record(msg)
		case <-ticker.C:
			m.CheckNow()
		}
	}
}

// record ingests one heartbeat message.
func (m *Monitor) record(msg *bus.Message) {
	hb, err := Unmarshal(msg.Data)
	if err != nil {
		return
	}
	if hb.AgentID == "" && strings.HasPrefix(msg.Subject, SubjectPrefix) {
		hb.AgentID = strings.TrimPrefix(msg.Subject, SubjectPrefix)
	}
	if hb.AgentID == "" {
		return
	}

	m.mu.Lock()
	m.lastSeen[hb.AgentID] = hb
	delete(m.reported, hb.AgentID)
	m.mu.Unlock()
}

// CheckNow runs one dead-agent sweep immediately. The check loop calls
// this on every tick; tests call it directly.
func (m *Monitor) CheckNow() {
	now := time.Now()
	var dead []string

	m.mu.RLock()
	for agentID, hb := range m.lastSeen {
		if now.Sub(hb.Timestamp) > m.timeout && !m.reported[agentID] {
			dead = append(dead, agentID)
		}
	}
	callbacks := make([]func(string), len(m.deadCBs))
	copy(callbacks, m.deadCBs)
	m.mu.RUnlock()

	if len(dead) == 0 {
		return
	}

	m.mu.Lock()
	for _, id := range dead {
		m.reported[id] = true
	}
	m.mu.Unlock()

	for _, agentID := range dead {
		for _, cb := range callbacks {
			cb(agentID)
		}
	}
}

// IsAlive reports whether an agent heartbeated within the timeout.
func (m *Monitor) IsAlive(agentID string) bool {
	m.mu.RLock()
	hb, ok := m.lastSeen[agentID]
	m.mu.RUnlock()

	if !ok {
		return false
	}
	return time.Since(hb.Timestamp) <= m.timeout
}

// LastSeen returns the last heartbeat from an agent, or nil.
func (m *Monitor) LastSeen(agentID string) *Heartbeat {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastSeen[agentID]
}

// Agents returns the ids of every agent seen so far.
func (m *Monitor) Agents() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ids := make([]string, 0, len(m.lastSeen))
	for id := range m.lastSeen {
		ids = append(ids, id)
	}
	return ids
}

// Stop stops monitoring.
func (m *Monitor) Stop() error {
	if !m.running.Swap(false) {
		return ErrNotStarted
	}

	if m.sub != nil {
		m.sub.Unsubscribe()
	}
	close(m.stopCh)
	<-m.doneCh
	return nil
}
