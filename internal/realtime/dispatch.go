package realtime

import (
	"encoding/json"
	"fmt"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
)

// Scope selects the addressing mode of an Envelope
type Scope string

const (
	ScopeSession Scope = "session"
	ScopeUser    Scope = "user"
	ScopeStore   Scope = "store"
	ScopeAll     Scope = "all"
)

// Envelope is an addressed event submitted by request-handling code
type Envelope struct {
	Scope            Scope           `json:"scope"`
	Target           string          `json:"target,omitempty"`
	Type             string          `json:"type"`
	Data             json.RawMessage `json:"data,omitempty"`
	UserID           string          `json:"userId,omitempty"`
	ExcludeSessionID string          `json:"excludeSessionId,omitempty"`
}

// reservedKinds are emitted only by the hub itself
var reservedKinds = map[EventKind]bool{
	EventPing:       true,
	EventPong:       true,
	EventUserJoined: true,
	EventUserLeft:   true,
	EventError:      true,
}

// Validate checks scope, target and event type. Protocol and presence
// kinds cannot be dispatched.
func (e *Envelope) Validate() error {
	kind, err := ParseEventKind(e.Type)
	if err != nil {
		return err
	}
	if reservedKinds[kind] {
		return fmt.Errorf("%q is reserved: %w", e.Type, models.ErrInvalidEventKind)
	}
	switch e.Scope {
	case ScopeSession, ScopeUser, ScopeStore:
		if e.Target == "" {
			return fmt.Errorf("scope %s requires a target", e.Scope)
		}
	case ScopeAll:
	default:
		return fmt.Errorf("unknown scope %q", e.Scope)
	}
	return nil
}

// Dispatch validates env and delivers it. It returns the number of
// connections the event reached.
func (h *Hub) Dispatch(env Envelope) (int, error) {
	if err := env.Validate(); err != nil {
		return 0, err
	}

	var data interface{} = struct{}{}
	if len(env.Data) > 0 {
		data = env.Data
	}
	event := h.NewEvent(EventKind(env.Type), data)
	event.UserID = env.UserID

	switch env.Scope {
	case ScopeSession:
		event.SessionID = env.Target
		if h.SendToSession(env.Target, event) {
			return 1, nil
		}
		return 0, nil
	case ScopeUser:
		event.UserID = env.Target
		return h.SendToUser(env.Target, event), nil
	case ScopeStore:
		event.StoreID = env.Target
		return h.SendToStore(env.Target, event, env.ExcludeSessionID), nil
	default:
		return h.SendToAll(event, env.ExcludeSessionID), nil
	}
}
