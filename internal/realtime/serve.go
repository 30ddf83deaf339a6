package realtime

import (
	"github.com/gorilla/websocket"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// ServeConn registers an upgraded websocket and pumps its inbound frames
// until the peer goes away. It blocks for the lifetime of the connection.
func (h *Hub) ServeConn(ws *websocket.Conn) {
	transport := NewWSTransport(ws, h.config.WriteTimeout, defaultSendQueueSize)

	conn, err := h.HandleOpen(transport)
	if err != nil {
		transport.Close()
		return
	}

	if h.config.MaxMessageSize > 0 {
		ws.SetReadLimit(h.config.MaxMessageSize)
	}
	ws.SetPongHandler(func(string) error {
		h.HandlePong(transport)
		return nil
	})

	for {
		messageType, message, err := ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket read error",
					logger.ErrorField(err),
					logger.String("session_id", conn.SessionID),
				)
			}
			break
		}
		if messageType != websocket.TextMessage {
			logger.Debug("Ignoring non-text frame",
				logger.String("session_id", conn.SessionID),
				logger.Int("message_type", messageType),
			)
			continue
		}
		h.HandleMessage(transport, message)
	}

	h.HandleClose(transport)
}
