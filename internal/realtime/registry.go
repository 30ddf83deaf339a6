package realtime

import (
	"fmt"
	"sync"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
)

// ConnectionRegistry manages all active connections
type ConnectionRegistry struct {
	connections map[string]*Connection // session_id -> connection
	byTransport map[Transport]string   // transport -> session_id
	clock       clockwork.Clock
	mu          sync.RWMutex
}

// NewConnectionRegistry creates a new connection registry
func NewConnectionRegistry(clock clockwork.Clock) *ConnectionRegistry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &ConnectionRegistry{
		connections: make(map[string]*Connection),
		byTransport: make(map[Transport]string),
		clock:       clock,
	}
}

// Register inserts a new alive connection for transport
func (r *ConnectionRegistry) Register(sessionID string, transport Transport) (*Connection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.connections[sessionID]; exists {
		return nil, fmt.Errorf("register %s: %w", sessionID, models.ErrDuplicateSession)
	}
	if existing, exists := r.byTransport[transport]; exists {
		return nil, fmt.Errorf("register %s (held by %s): %w", sessionID, existing, models.ErrDuplicateTransport)
	}

	conn := newConnection(sessionID, transport, r.clock.Now())
	r.connections[sessionID] = conn
	r.byTransport[transport] = sessionID
	return conn, nil
}

// Lookup retrieves a connection by session ID
func (r *ConnectionRegistry) Lookup(sessionID string) (*Connection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	conn, exists := r.connections[sessionID]
	return conn, exists
}

// LookupByTransport resolves the session registered for transport
func (r *ConnectionRegistry) LookupByTransport(transport Transport) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sessionID, exists := r.byTransport[transport]
	return sessionID, exists
}

// Remove deletes the connection and closes its transport.
// Removing an unknown session is a no-op.
func (r *ConnectionRegistry) Remove(sessionID string) (*Connection, bool) {
	r.mu.Lock()
	conn, exists := r.connections[sessionID]
	if exists {
		delete(r.connections, sessionID)
		delete(r.byTransport, conn.transport)
	}
	r.mu.Unlock()

	if !exists {
		return nil, false
	}
	conn.Close()
	return conn, true
}

// ForEach calls visit for every connection in a snapshot taken at call time.
// The registry lock is not held while visit runs.
func (r *ConnectionRegistry) ForEach(visit func(*Connection)) {
	for _, conn := range r.GetAll() {
		visit(conn)
	}
}

// GetAll returns a snapshot of all connections
func (r *ConnectionRegistry) GetAll() []*Connection {
	r.mu.RLock()
	defer r.mu.RUnlock()

	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	return connections
}

// Count returns the total number of connections
func (r *ConnectionRegistry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.connections)
}

// Clear closes every transport and empties the registry
func (r *ConnectionRegistry) Clear() []*Connection {
	r.mu.Lock()
	connections := make([]*Connection, 0, len(r.connections))
	for _, conn := range r.connections {
		connections = append(connections, conn)
	}
	r.connections = make(map[string]*Connection)
	r.byTransport = make(map[Transport]string)
	r.mu.Unlock()

	for _, conn := range connections {
		conn.Close()
	}
	return connections
}
