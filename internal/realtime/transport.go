package realtime

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// Transport is the minimal capability the hub needs from a client channel
type Transport interface {
	// Send queues a text frame for delivery
	Send(data []byte) error
	// Close closes the channel; closing twice is a no-op
	Close() error
	// Ready reports whether the channel is still open
	Ready() bool
}

const defaultSendQueueSize = 256

// WSTransport adapts a gorilla websocket connection to Transport.
// Writes are performed by a dedicated goroutine so a slow peer only fills
// its own queue.
type WSTransport struct {
	conn         *websocket.Conn
	send         chan []byte
	done         chan struct{}
	closeOnce    sync.Once
	closed       atomic.Bool
	writeTimeout time.Duration
}

// NewWSTransport wraps conn and starts its write pump
func NewWSTransport(conn *websocket.Conn, writeTimeout time.Duration, queueSize int) *WSTransport {
	if queueSize <= 0 {
		queueSize = defaultSendQueueSize
	}
	t := &WSTransport{
		conn:         conn,
		send:         make(chan []byte, queueSize),
		done:         make(chan struct{}),
		writeTimeout: writeTimeout,
	}
	go t.writePump()
	return t
}

// Send queues data for the write pump. A full queue is reported as a failure.
func (t *WSTransport) Send(data []byte) error {
	if t.closed.Load() {
		return models.ErrTransportClosed
	}
	select {
	case <-t.done:
		return models.ErrTransportClosed
	case t.send <- data:
		return nil
	default:
		return models.ErrSendQueueFull
	}
}

// Ready reports whether the transport is open
func (t *WSTransport) Ready() bool {
	return !t.closed.Load()
}

// Close sends a close frame and closes the underlying connection once
func (t *WSTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		t.closed.Store(true)
		close(t.done)
		deadline := time.Now().Add(time.Second)
		_ = t.conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		err = t.conn.Close()
	})
	return err
}

// writePump drains the send queue until the transport is closed
func (t *WSTransport) writePump() {
	for {
		select {
		case <-t.done:
			return
		case message := <-t.send:
			if t.writeTimeout > 0 {
				t.conn.SetWriteDeadline(time.Now().Add(t.writeTimeout))
			}
			if err := t.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				logger.Debug("WebSocket write failed",
					logger.ErrorField(err),
					logger.String("remote_addr", t.conn.RemoteAddr().String()),
				)
				t.Close()
				return
			}
		}
	}
}
