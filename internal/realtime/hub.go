package realtime

import (
	"sync"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// Hub owns the connection registry and wires the router, broadcaster and
// liveness monitor around it
type Hub struct {
	config      config.RealtimeConfig
	clock       clockwork.Clock
	registry    *ConnectionRegistry
	broadcaster *Broadcaster
	router      *Router
	monitor     *LivenessMonitor

	mu      sync.Mutex
	running bool
	closed  bool
}

// NewHub creates a hub; auth, activity and clock may be nil
func NewHub(cfg config.RealtimeConfig, auth *AuthManager, activity ActivityRecorder, clock clockwork.Clock) *Hub {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	h := &Hub{
		config:   cfg,
		clock:    clock,
		registry: NewConnectionRegistry(clock),
	}
	h.broadcaster = NewBroadcaster(h.registry, h.evict)
	h.router = NewRouter(h.registry, h.broadcaster, auth, activity, clock)
	h.monitor = NewLivenessMonitor(h.registry, h.broadcaster, clock, cfg.PingInterval, h.evict)
	return h
}

// Start starts the liveness monitor. A hub that has been cleaned up
// stays stopped.
func (h *Hub) Start() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.running || h.closed {
		return
	}
	h.running = true
	h.monitor.Start()

	logger.Info("Realtime hub started")
}

// Running reports whether the hub accepts connections
func (h *Hub) Running() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.running
}

// Registry returns the connection registry
func (h *Hub) Registry() *ConnectionRegistry {
	return h.registry
}

// Broadcaster returns the multicast broadcaster
func (h *Hub) Broadcaster() *Broadcaster {
	return h.broadcaster
}

// Monitor returns the liveness monitor
func (h *Hub) Monitor() *LivenessMonitor {
	return h.monitor
}

// Clock returns the hub's time source
func (h *Hub) Clock() clockwork.Clock {
	return h.clock
}

// HandleOpen registers a newly opened transport under a fresh session id
// It fails with models.ErrHubClosed once Cleanup has started.
func (h *Hub) HandleOpen(transport Transport) (*Connection, error) {
	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		logger.Warn("Refusing connection, hub is shut down")
		return nil, models.ErrHubClosed
	}
	conn, err := h.registry.Register(uuid.New().String(), transport)
	h.mu.Unlock()
	if err != nil {
		logger.Warn("Failed to register connection",
			logger.ErrorField(err),
		)
		return nil, err
	}

	connectionsOpened.Inc()
	connectionsActive.Inc()

	logger.Info("Connection registered",
		logger.String("session_id", conn.SessionID),
		logger.Int("total_connections", h.registry.Count()),
	)
	return conn, nil
}

// HandleMessage routes an inbound frame
func (h *Hub) HandleMessage(transport Transport, raw []byte) {
	h.router.HandleMessage(transport, raw)
}

// HandlePong treats a protocol-level pong as a liveness signal
func (h *Hub) HandlePong(transport Transport) {
	sessionID, ok := h.registry.LookupByTransport(transport)
	if !ok {
		return
	}
	if conn, ok := h.registry.Lookup(sessionID); ok {
		h.router.MarkAlive(conn)
	}
}

// HandleClose removes the session of a transport the peer closed
func (h *Hub) HandleClose(transport Transport) {
	sessionID, ok := h.registry.LookupByTransport(transport)
	if !ok {
		return
	}
	if conn, ok := h.registry.Lookup(sessionID); ok {
		h.evict(conn, EvictClientClosed)
	}
}

// evict removes conn, closes its transport and tells its store the user left.
// It reports false when conn was already gone.
func (h *Hub) evict(conn *Connection, reason EvictReason) bool {
	if _, removed := h.registry.Remove(conn.SessionID); !removed {
		return false
	}

	connectionsActive.Dec()
	connectionsRemoved.WithLabelValues(string(reason)).Inc()

	userID, storeID := conn.Identity()
	logger.Info("Connection removed",
		logger.String("session_id", conn.SessionID),
		logger.String("user_id", userID),
		logger.String("store_id", storeID),
		logger.String("reason", string(reason)),
		logger.Duration("connected_for", h.clock.Since(conn.ConnectedAt())),
		logger.Int("total_connections", h.registry.Count()),
	)

	if storeID != "" {
		h.broadcaster.ToStore(storeID, userLeftEvent(conn.SessionID, userID, storeID, string(reason), h.clock.Now()), conn.SessionID)
	}
	return true
}

// SendToSession sends event to one session
func (h *Hub) SendToSession(sessionID string, event Event) bool {
	return h.broadcaster.ToOne(sessionID, event)
}

// SendToUser sends event to every connection of a user
func (h *Hub) SendToUser(userID string, event Event) int {
	return h.broadcaster.ToUser(userID, event)
}

// SendToStore sends event to a store, optionally excluding one session
func (h *Hub) SendToStore(storeID string, event Event, excludeSessionID string) int {
	return h.broadcaster.ToStore(storeID, event, excludeSessionID)
}

// SendToAll sends event to every connection, optionally excluding one session
func (h *Hub) SendToAll(event Event, excludeSessionID string) int {
	return h.broadcaster.ToAll(event, excludeSessionID)
}

// NewEvent builds an event stamped with the hub clock
func (h *Hub) NewEvent(kind EventKind, data interface{}) Event {
	return NewEvent(kind, data, h.clock.Now())
}

// Cleanup stops the liveness timer, then closes and clears every
// connection. Calling it more than once is safe.
func (h *Hub) Cleanup() {
	h.mu.Lock()
	h.running = false
	h.closed = true
	h.mu.Unlock()

	h.monitor.Stop()

	closed := h.registry.Clear()
	if len(closed) > 0 {
		connectionsActive.Sub(float64(len(closed)))
	}

	logger.Info("Realtime hub cleaned up",
		logger.Int("closed_connections", len(closed)),
	)
}
