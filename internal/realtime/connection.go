package realtime

import (
	"sync"
	"time"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
)

// Connection represents one live client session
type Connection struct {
	SessionID string

	transport Transport
	closeOnce sync.Once

	mu             sync.RWMutex
	userID         string
	storeID        string
	isAlive        bool
	connectedAt    time.Time
	lastPingTime   time.Time
	lastActiveTime time.Time
}

func newConnection(sessionID string, transport Transport, now time.Time) *Connection {
	return &Connection{
		SessionID:      sessionID,
		transport:      transport,
		isAlive:        true,
		connectedAt:    now,
		lastPingTime:   now,
		lastActiveTime: now,
	}
}

// Transport returns the underlying transport
func (c *Connection) Transport() Transport {
	return c.transport
}

// Authenticate sets the user and store identity in one step
func (c *Connection) Authenticate(userID, storeID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.userID = userID
	c.storeID = storeID
}

// Identity returns the user and store ids; both are empty until authenticated
func (c *Connection) Identity() (userID, storeID string) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID, c.storeID
}

// UserID returns the authenticated user id
func (c *Connection) UserID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.userID
}

// StoreID returns the tenant the connection belongs to
func (c *Connection) StoreID() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.storeID
}

// IsAuthenticated reports whether an authenticate message was accepted
func (c *Connection) IsAuthenticated() bool {
	return c.UserID() != ""
}

// IsAlive reports the liveness flag
func (c *Connection) IsAlive() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.isAlive
}

// MarkAlive records a liveness signal from the peer
func (c *Connection) MarkAlive(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.isAlive = true
	c.lastPingTime = now
	c.lastActiveTime = now
}

// Touch records inbound activity without affecting liveness
func (c *Connection) Touch(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastActiveTime = now
}

// beginPing moves an alive connection to suspect and reports true.
// It reports false when the connection never answered the previous ping.
func (c *Connection) beginPing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.isAlive {
		return false
	}
	c.isAlive = false
	return true
}

// ConnectedAt returns the time the connection was registered
func (c *Connection) ConnectedAt() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.connectedAt
}

// LastPingTime returns the time of the last liveness signal
func (c *Connection) LastPingTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastPingTime
}

// LastActiveTime returns the time of the last inbound message
func (c *Connection) LastActiveTime() time.Time {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastActiveTime
}

// ConnectedAtMs returns ConnectedAt as epoch milliseconds
func (c *Connection) ConnectedAtMs() int64 {
	return c.ConnectedAt().UnixMilli()
}

// LastPingTimeMs returns LastPingTime as epoch milliseconds
func (c *Connection) LastPingTimeMs() int64 {
	return c.LastPingTime().UnixMilli()
}

// LastActiveTimeMs returns LastActiveTime as epoch milliseconds
func (c *Connection) LastActiveTimeMs() int64 {
	return c.LastActiveTime().UnixMilli()
}

// Ready reports whether the transport can accept frames
func (c *Connection) Ready() bool {
	return c.transport != nil && c.transport.Ready()
}

// Send writes data if the transport is ready
func (c *Connection) Send(data []byte) error {
	if !c.Ready() {
		return models.ErrTransportClosed
	}
	return c.transport.Send(data)
}

// Close closes the transport exactly once
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		if c.transport != nil {
			c.transport.Close()
		}
	})
}
