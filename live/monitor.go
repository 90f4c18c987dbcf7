package live

import (
	"log"
	"sync"
	"time"
)

// Monitor tracks whether the data backend is reachable. On construction it
// tries to enable network access, retrying with exponential backoff (1s
// doubling, capped at 10s) and giving up after 5 attempts, after which the
// session is degraded: queries report empty results instead of erroring.
//
// OS-level online/offline transitions arrive via SetOnline/SetOffline:
// offline forces a disable call and flips the state; online resets the retry
// counter and re-attempts the connection.
type Monitor struct {
	enable  func() error
	disable func() error

	baseDelay   time.Duration
	maxDelay    time.Duration
	maxAttempts int

	mu        sync.Mutex
	connected bool
	degraded  bool
	attempt   int
}

// NewMonitor builds a monitor around the backend's enable/disable calls and
// starts the initial connection attempt in the background.
func NewMonitor(enable, disable func() error) *Monitor {
	m := &Monitor{
		enable:      enable,
		disable:     disable,
		baseDelay:   time.Second,
		maxDelay:    10 * time.Second,
		maxAttempts: 5,
	}
	go m.connect()
	return m
}

// IsConnected reports whether the backend is currently reachable.
func (m *Monitor) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Degraded reports whether the monitor gave up for this session. Downstream
// components then serve empty results rather than erroring on every call.
func (m *Monitor) Degraded() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.degraded
}

// SetOffline records a network-loss transition: the backend connection is
// disabled and the state flips to disconnected. No user-visible error.
func (m *Monitor) SetOffline() {
	m.mu.Lock()
	m.connected = false
	m.mu.Unlock()

	if m.disable != nil {
		if err := m.disable(); err != nil {
			log.Printf("live: disable network failed: %v", err)
		}
	}
}

// SetOnline records a network-restored transition: the retry counter resets
// and the connection is re-attempted.
func (m *Monitor) SetOnline() {
	m.mu.Lock()
	m.attempt = 0
	m.degraded = false
	m.mu.Unlock()

	go m.connect()
}

func (m *Monitor) connect() {
	delay := m.baseDelay
	for {
		err := m.enable()
		if err == nil {
			m.mu.Lock()
			m.connected = true
			m.attempt = 0
			m.mu.Unlock()
			return
		}

		m.mu.Lock()
		m.attempt++
		attempts := m.attempt
		m.mu.Unlock()

		if attempts >= m.maxAttempts {
			m.mu.Lock()
			m.degraded = true
			m.connected = false
			m.mu.Unlock()
			log.Printf("live: backend unreachable after %d attempts, degrading to empty results: %v", attempts, err)
			return
		}

		time.Sleep(delay)
		delay *= 2
		if delay > m.maxDelay {
			delay = m.maxDelay
		}
	}
}
