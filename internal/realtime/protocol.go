package realtime

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
)

// EventKind enumerates outbound event types
type EventKind string

const (
	EventProfileUpdated      EventKind = "profile_updated"
	EventOrderCreated        EventKind = "order_created"
	EventOrderUpdated        EventKind = "order_updated"
	EventOrderStatusChanged  EventKind = "order_status_changed"
	EventCustomerCreated     EventKind = "customer_created"
	EventCustomerUpdated     EventKind = "customer_updated"
	EventProductUpdated      EventKind = "product_updated"
	EventCategoryUpdated     EventKind = "category_updated"
	EventStoreUpdated        EventKind = "store_updated"
	EventUserJoined          EventKind = "user_joined"
	EventUserLeft            EventKind = "user_left"
	EventGeneralNotification EventKind = "general_notification"
	EventPing                EventKind = "ping"
	EventPong                EventKind = "pong"
	EventError               EventKind = "error"
)

var eventKinds = map[EventKind]bool{
	EventProfileUpdated:      true,
	EventOrderCreated:        true,
	EventOrderUpdated:        true,
	EventOrderStatusChanged:  true,
	EventCustomerCreated:     true,
	EventCustomerUpdated:     true,
	EventProductUpdated:      true,
	EventCategoryUpdated:     true,
	EventStoreUpdated:        true,
	EventUserJoined:          true,
	EventUserLeft:            true,
	EventGeneralNotification: true,
	EventPing:                true,
	EventPong:                true,
	EventError:               true,
}

// Valid reports whether k is a known event kind
func (k EventKind) Valid() bool {
	return eventKinds[k]
}

// ParseEventKind validates a raw event type
func ParseEventKind(s string) (EventKind, error) {
	k := EventKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("%q: %w", s, models.ErrInvalidEventKind)
	}
	return k, nil
}

// MessageType represents the type of an inbound frame
type MessageType string

const (
	MessageTypeAuthenticate MessageType = "authenticate"
	MessageTypePing         MessageType = "ping"
	MessageTypePong         MessageType = "pong"
)

// InboundFrame is the wire envelope of a client message
type InboundFrame struct {
	Type      string          `json:"type"`
	Data      json.RawMessage `json:"data,omitempty"`
	Timestamp string          `json:"timestamp,omitempty"`
}

// InboundMessage is a decoded client message
type InboundMessage interface {
	messageType() MessageType
}

// AuthenticateMessage binds a session to a user and store
type AuthenticateMessage struct {
	UserID  string `json:"userId"`
	StoreID string `json:"storeId,omitempty"`
	Token   string `json:"token,omitempty"`
}

// PingMessage is a client-initiated liveness probe
type PingMessage struct{}

// PongMessage answers a server ping
type PongMessage struct{}

// UnknownMessage carries a frame type the server does not handle
type UnknownMessage struct {
	Type string
}

func (AuthenticateMessage) messageType() MessageType { return MessageTypeAuthenticate }
func (PingMessage) messageType() MessageType         { return MessageTypePing }
func (PongMessage) messageType() MessageType         { return MessageTypePong }
func (m UnknownMessage) messageType() MessageType    { return MessageType(m.Type) }

// DecodeInbound parses a raw frame into its typed message
func DecodeInbound(raw []byte) (InboundMessage, error) {
	var frame InboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrMalformedFrame, err)
	}
	if frame.Type == "" {
		return nil, fmt.Errorf("%w: missing type", models.ErrMalformedFrame)
	}

	switch MessageType(frame.Type) {
	case MessageTypeAuthenticate:
		var msg AuthenticateMessage
		if len(frame.Data) == 0 || bytes.Equal(frame.Data, []byte("null")) {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedFrame, models.ErrMissingUserID)
		}
		if err := json.Unmarshal(frame.Data, &msg); err != nil {
			return nil, fmt.Errorf("%w: authenticate data: %v", models.ErrMalformedFrame, err)
		}
		if msg.UserID == "" {
			return nil, fmt.Errorf("%w: %v", models.ErrMalformedFrame, models.ErrMissingUserID)
		}
		return msg, nil
	case MessageTypePing:
		return PingMessage{}, nil
	case MessageTypePong:
		return PongMessage{}, nil
	default:
		return UnknownMessage{Type: frame.Type}, nil
	}
}

const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatTimestamp renders t as an ISO-8601 UTC timestamp with milliseconds
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Event is an outbound message
type Event struct {
	Type      EventKind   `json:"type"`
	Data      interface{} `json:"data"`
	Timestamp string      `json:"timestamp"`
	UserID    string      `json:"userId,omitempty"`
	StoreID   string      `json:"storeId,omitempty"`
	SessionID string      `json:"sessionId,omitempty"`
}

// NewEvent builds an event stamped at now
func NewEvent(kind EventKind, data interface{}, now time.Time) Event {
	if data == nil {
		data = struct{}{}
	}
	return Event{
		Type:      kind,
		Data:      data,
		Timestamp: FormatTimestamp(now),
	}
}

// Encode marshals the event
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s event: %w", e.Type, err)
	}
	return data, nil
}

// PresencePayload is the data of user_joined and user_left events
type PresencePayload struct {
	UserID    string `json:"userId"`
	StoreID   string `json:"storeId"`
	SessionID string `json:"sessionId"`
	Reason    string `json:"reason,omitempty"`
}

// ErrorPayload is the data of error events
type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
