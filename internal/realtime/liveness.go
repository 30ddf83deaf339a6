package realtime

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

const defaultPingInterval = 30 * time.Second

// LivenessMonitor pings every connection once per interval and evicts the
// ones that did not answer the previous ping.
//
// Each connection is either alive or suspect. A tick evicts suspect
// connections and moves alive ones to suspect before pinging them; a pong
// or client ping moves a connection back to alive.
type LivenessMonitor struct {
	registry    *ConnectionRegistry
	broadcaster *Broadcaster
	clock       clockwork.Clock
	interval    time.Duration
	evict       evictFunc

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewLivenessMonitor creates a monitor; a non-positive interval uses 30s
func NewLivenessMonitor(registry *ConnectionRegistry, broadcaster *Broadcaster, clock clockwork.Clock, interval time.Duration, evict evictFunc) *LivenessMonitor {
	if interval <= 0 {
		interval = defaultPingInterval
	}
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &LivenessMonitor{
		registry:    registry,
		broadcaster: broadcaster,
		clock:       clock,
		interval:    interval,
		evict:       evict,
	}
}

// Start begins the periodic liveness rounds
func (m *LivenessMonitor) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.running {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.done = make(chan struct{})
	m.running = true

	go m.run(ctx, m.done)

	logger.Info("Liveness monitor started",
		logger.Duration("interval", m.interval),
	)
}

// Stop halts the timer and waits for an in-flight round to finish
func (m *LivenessMonitor) Stop() {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return
	}
	m.running = false
	cancel, done := m.cancel, m.done
	m.mu.Unlock()

	cancel()
	<-done
	logger.Info("Liveness monitor stopped")
}

// Running reports whether the timer is active
func (m *LivenessMonitor) Running() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running
}

func (m *LivenessMonitor) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := m.clock.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			m.Tick()
		}
	}
}

// Tick runs a single liveness round over a registry snapshot
func (m *LivenessMonitor) Tick() {
	livenessTicks.Inc()

	ping := NewEvent(EventPing, nil, m.clock.Now())
	data, ok := m.broadcaster.encode(ping)
	if !ok {
		return
	}

	evicted := 0
	m.registry.ForEach(func(conn *Connection) {
		// Skip sessions removed earlier in this round
		if _, exists := m.registry.Lookup(conn.SessionID); !exists {
			return
		}
		if !conn.beginPing() {
			if m.evict(conn, EvictLivenessTimeout) {
				logger.Info("Evicted unresponsive connection",
					logger.String("session_id", conn.SessionID),
					logger.String("user_id", conn.UserID()),
					logger.Time("last_ping", conn.LastPingTime()),
				)
				evicted++
			}
			return
		}
		if !m.broadcaster.deliver(conn, EventPing, data) {
			if m.evict(conn, EvictSendFailed) {
				logger.Info("Evicted connection after failed ping",
					logger.String("session_id", conn.SessionID),
					logger.String("user_id", conn.UserID()),
				)
				evicted++
			}
		}
	})

	logger.Debug("Liveness round complete",
		logger.Int("evicted", evicted),
		logger.Int("remaining", m.registry.Count()),
	)
}
