package session

import (
	"sync"
	"time"

	"github.com/leandrodaf/midirec/sdk/contracts"
)

// SilenceMonitor signals when no event was seen for a configured timeout.
// Each call to Reset arms a new deadline; an armed deadline that passes is
// reported once on Expired. A zero timeout disables the monitor.
type SilenceMonitor struct {
	timeout time.Duration
	clock   contracts.Clock

	mu       sync.Mutex
	gen      uint64 // Incremented on every Reset/Stop so stale timers are ignored.
	armed    bool
	set      bool // A deadline was armed since the last Stop, fired or not.
	deadline time.Duration
	timer    *time.Timer
	expired  chan time.Duration
}

// NewSilenceMonitor returns a stopped monitor.
func NewSilenceMonitor(timeout time.Duration, clock contracts.Clock) *SilenceMonitor {
	if timeout < 0 {
		timeout = 0
	}
	return &SilenceMonitor{
		timeout: timeout,
		clock:   clock,
		expired: make(chan time.Duration, 1),
	}
}

// Enabled reports whether a timeout is configured.
func (m *SilenceMonitor) Enabled() bool {
	return m.timeout > 0
}

// Timeout returns the configured silence timeout.
func (m *SilenceMonitor) Timeout() time.Duration {
	return m.timeout
}

// Expired delivers the deadline that passed without a Reset.
func (m *SilenceMonitor) Expired() <-chan time.Duration {
	return m.expired
}

// Deadline returns the armed deadline, if any.
func (m *SilenceMonitor) Deadline() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deadline, m.armed
}

// Passed reports whether ts is at or past the last deadline set by Reset,
// including one that already fired.
func (m *SilenceMonitor) Passed(ts time.Duration) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.set && ts >= m.deadline
}

// Reset arms the deadline ts+timeout, replacing any previous one. A signal
// from the previous deadline that was not consumed yet is discarded.
func (m *SilenceMonitor) Reset(ts time.Duration) {
	if !m.Enabled() {
		return
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.disarm()
	m.armed = true
	m.set = true
	m.deadline = ts + m.timeout

	wait := m.deadline - m.clock()
	if wait < 0 {
		wait = 0
	}
	gen := m.gen
	m.timer = time.AfterFunc(wait, func() { m.fire(gen) })
}

// Stop disarms the monitor.
func (m *SilenceMonitor) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.disarm()
}

func (m *SilenceMonitor) disarm() {
	m.gen++
	m.armed = false
	m.set = false
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	select {
	case <-m.expired:
	default:
	}
}

func (m *SilenceMonitor) fire(gen uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if gen != m.gen || !m.armed {
		return
	}
	m.armed = false
	select {
	case m.expired <- m.deadline:
	default:
	}
}
