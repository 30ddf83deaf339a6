package realtime

import (
	"errors"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// ActivityRecorder receives "last active" signals for authenticated users.
// Implementations must not block.
type ActivityRecorder interface {
	RecordActivity(userID string)
}

// Router decodes inbound frames and dispatches them by type
type Router struct {
	registry    *ConnectionRegistry
	broadcaster *Broadcaster
	auth        *AuthManager
	activity    ActivityRecorder
	clock       clockwork.Clock
}

// NewRouter creates a router; auth and activity may be nil
func NewRouter(registry *ConnectionRegistry, broadcaster *Broadcaster, auth *AuthManager, activity ActivityRecorder, clock clockwork.Clock) *Router {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Router{
		registry:    registry,
		broadcaster: broadcaster,
		auth:        auth,
		activity:    activity,
		clock:       clock,
	}
}

// HandleMessage routes one raw frame received on transport
func (r *Router) HandleMessage(transport Transport, raw []byte) {
	sessionID, ok := r.registry.LookupByTransport(transport)
	if !ok {
		logger.Warn("Dropping frame from unregistered transport",
			logger.Int("size", len(raw)),
		)
		return
	}
	conn, ok := r.registry.Lookup(sessionID)
	if !ok {
		logger.Warn("Dropping frame for removed session",
			logger.String("session_id", sessionID),
		)
		return
	}

	msg, err := DecodeInbound(raw)
	if err != nil {
		inboundFrames.WithLabelValues("malformed").Inc()
		logger.Warn("Dropping malformed frame",
			logger.ErrorField(err),
			logger.String("session_id", sessionID),
		)
		return
	}

	conn.Touch(r.clock.Now())

	switch m := msg.(type) {
	case AuthenticateMessage:
		inboundFrames.WithLabelValues(string(MessageTypeAuthenticate)).Inc()
		r.handleAuthenticate(conn, m)

	case PingMessage:
		inboundFrames.WithLabelValues(string(MessageTypePing)).Inc()
		r.MarkAlive(conn)
		r.broadcaster.ToOne(conn.SessionID, NewEvent(EventPong, nil, r.clock.Now()))

	case PongMessage:
		inboundFrames.WithLabelValues(string(MessageTypePong)).Inc()
		r.MarkAlive(conn)

	case UnknownMessage:
		inboundFrames.WithLabelValues("unknown").Inc()
		logger.Debug("Ignoring unknown message type",
			logger.String("session_id", conn.SessionID),
			logger.String("type", m.Type),
		)
	}
}

// MarkAlive records a liveness signal and refreshes last-active for the user
func (r *Router) MarkAlive(conn *Connection) {
	conn.MarkAlive(r.clock.Now())
	if userID := conn.UserID(); userID != "" && r.activity != nil {
		r.activity.RecordActivity(userID)
	}
}

func (r *Router) handleAuthenticate(conn *Connection, msg AuthenticateMessage) {
	if err := r.verifyIdentity(msg); err != nil {
		logger.Warn("Rejecting authenticate message",
			logger.ErrorField(err),
			logger.String("session_id", conn.SessionID),
			logger.String("user_id", msg.UserID),
		)
		r.broadcaster.ToOne(conn.SessionID, NewEvent(EventError, ErrorPayload{
			Code:    "authentication_failed",
			Message: err.Error(),
		}, r.clock.Now()))
		return
	}

	prevUserID, prevStoreID := conn.Identity()
	if prevStoreID != "" && prevStoreID != msg.StoreID {
		r.broadcaster.ToStore(prevStoreID, userLeftEvent(conn.SessionID, prevUserID, prevStoreID, "store_changed", r.clock.Now()), conn.SessionID)
	}

	conn.Authenticate(msg.UserID, msg.StoreID)

	logger.Info("Connection authenticated",
		logger.String("session_id", conn.SessionID),
		logger.String("user_id", msg.UserID),
		logger.String("store_id", msg.StoreID),
	)

	if msg.StoreID == "" {
		return
	}
	joined := NewEvent(EventUserJoined, PresencePayload{
		UserID:    msg.UserID,
		StoreID:   msg.StoreID,
		SessionID: conn.SessionID,
	}, r.clock.Now())
	joined.UserID = msg.UserID
	joined.StoreID = msg.StoreID
	joined.SessionID = conn.SessionID
	r.broadcaster.ToStore(msg.StoreID, joined, conn.SessionID)
}

// verifyIdentity checks the optional token when validation is configured
func (r *Router) verifyIdentity(msg AuthenticateMessage) error {
	if !r.auth.Enabled() {
		return nil
	}
	if msg.Token == "" {
		return errors.New("token required")
	}
	subject, err := r.auth.ValidateToken(msg.Token)
	if err != nil {
		return err
	}
	if subject != msg.UserID {
		return models.ErrIdentityMismatch
	}
	return nil
}

func userLeftEvent(sessionID, userID, storeID, reason string, now time.Time) Event {
	left := NewEvent(EventUserLeft, PresencePayload{
		UserID:    userID,
		StoreID:   storeID,
		SessionID: sessionID,
		Reason:    reason,
	}, now)
	left.UserID = userID
	left.StoreID = storeID
	left.SessionID = sessionID
	return left
}
