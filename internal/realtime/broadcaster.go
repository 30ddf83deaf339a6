package realtime

import (
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// evictFunc removes a connection from the hub for the given reason and
// reports whether it was still registered
type evictFunc func(conn *Connection, reason EvictReason) bool

// Broadcaster delivers events to one, some or all registered connections.
// Delivery is best effort: a failed send evicts the recipient and is never
// reported to the caller.
type Broadcaster struct {
	registry *ConnectionRegistry
	evict    evictFunc
}

// NewBroadcaster creates a broadcaster over registry
func NewBroadcaster(registry *ConnectionRegistry, evict evictFunc) *Broadcaster {
	if evict == nil {
		evict = func(conn *Connection, _ EvictReason) bool {
			_, removed := registry.Remove(conn.SessionID)
			return removed
		}
	}
	return &Broadcaster{
		registry: registry,
		evict:    evict,
	}
}

// ToOne sends event to a single session
func (b *Broadcaster) ToOne(sessionID string, event Event) bool {
	conn, exists := b.registry.Lookup(sessionID)
	if !exists {
		logger.Debug("Dropping event for unknown session",
			logger.String("session_id", sessionID),
			logger.String("type", string(event.Type)),
		)
		return false
	}

	data, ok := b.encode(event)
	if !ok {
		return false
	}
	if !b.deliver(conn, event.Type, data) {
		b.evict(conn, EvictSendFailed)
		return false
	}
	return true
}

// ToUser sends event to every connection of userID
func (b *Broadcaster) ToUser(userID string, event Event) int {
	if userID == "" {
		return 0
	}
	return b.multicast(event, func(conn *Connection) bool {
		return conn.UserID() == userID
	})
}

// ToStore sends event to every connection of storeID except excludeSessionID.
// No event crosses a store boundary through this path.
func (b *Broadcaster) ToStore(storeID string, event Event, excludeSessionID string) int {
	if storeID == "" {
		return 0
	}
	return b.multicast(event, func(conn *Connection) bool {
		return conn.SessionID != excludeSessionID && conn.StoreID() == storeID
	})
}

// ToAll sends event to every connection except excludeSessionID
func (b *Broadcaster) ToAll(event Event, excludeSessionID string) int {
	return b.multicast(event, func(conn *Connection) bool {
		return conn.SessionID != excludeSessionID
	})
}

func (b *Broadcaster) multicast(event Event, match func(*Connection) bool) int {
	data, ok := b.encode(event)
	if !ok {
		return 0
	}

	sent := 0
	var failed []*Connection
	b.registry.ForEach(func(conn *Connection) {
		if !match(conn) {
			return
		}
		if b.deliver(conn, event.Type, data) {
			sent++
			return
		}
		failed = append(failed, conn)
	})

	// Evictions may broadcast user_left, so they run after the loop.
	for _, conn := range failed {
		b.evict(conn, EvictSendFailed)
	}

	logger.Debug("Broadcast event",
		logger.String("type", string(event.Type)),
		logger.Int("sent", sent),
		logger.Int("failed", len(failed)),
	)
	return sent
}

// deliver attempts a single send and reports success
func (b *Broadcaster) deliver(conn *Connection, kind EventKind, data []byte) bool {
	if err := conn.Send(data); err != nil {
		eventsFailed.WithLabelValues(string(kind)).Inc()
		logger.Debug("Failed to send event to connection",
			logger.ErrorField(err),
			logger.String("session_id", conn.SessionID),
			logger.String("type", string(kind)),
		)
		return false
	}
	eventsSent.WithLabelValues(string(kind)).Inc()
	return true
}

func (b *Broadcaster) encode(event Event) ([]byte, bool) {
	data, err := event.Encode()
	if err != nil {
		logger.Error("Failed to encode event",
			logger.ErrorField(err),
			logger.String("type", string(event.Type)),
		)
		return nil, false
	}
	return data, true
}
