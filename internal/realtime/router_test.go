package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRouter_AuthenticateBroadcastsUserJoined(t *testing.T) {
	hub, _, _ := newTestHub(t)
	connA, trA := openConn(t, hub)
	_, trB := openConn(t, hub)
	_, trC := openConn(t, hub)
	authenticate(hub, trB, "user-b", "s1")
	authenticate(hub, trC, "user-c", "s2")
	trB.reset()
	trC.reset()

	authenticate(hub, trA, "user-a", "s1")

	assert.Equal(t, "user-a", connA.UserID())
	assert.Equal(t, "s1", connA.StoreID())
	assert.Empty(t, trA.eventTypes(t), "sender is excluded from its own user_joined")
	assert.Empty(t, trC.eventTypes(t))

	events := trB.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventUserJoined, events[0].Type)
	assert.Equal(t, "user-a", events[0].UserID)
	assert.Equal(t, "s1", events[0].StoreID)
	assert.Equal(t, connA.SessionID, events[0].SessionID)
}

func TestRouter_ReauthenticateIntoOtherStore(t *testing.T) {
	hub, _, _ := newTestHub(t)
	connA, trA := openConn(t, hub)
	_, trOld := openConn(t, hub)
	_, trNew := openConn(t, hub)
	authenticate(hub, trA, "user-a", "s1")
	authenticate(hub, trOld, "user-old", "s1")
	authenticate(hub, trNew, "user-new", "s2")
	trA.reset()
	trOld.reset()
	trNew.reset()

	authenticate(hub, trA, "user-a", "s2")

	assert.Equal(t, "s2", connA.StoreID())
	assert.Empty(t, trA.eventTypes(t))

	left := trOld.events(t)
	require.Len(t, left, 1)
	assert.Equal(t, EventUserLeft, left[0].Type)
	assert.Equal(t, "user-a", left[0].UserID)
	assert.Equal(t, "s1", left[0].StoreID)
	assert.Equal(t, connA.SessionID, left[0].SessionID)

	presence, ok := left[0].Data.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "store_changed", presence["reason"])

	assert.Equal(t, []EventKind{EventUserJoined}, trNew.eventTypes(t))
}

func TestRouter_ReauthenticateSameStoreHasNoUserLeft(t *testing.T) {
	hub, _, _ := newTestHub(t)
	_, trA := openConn(t, hub)
	_, trB := openConn(t, hub)
	authenticate(hub, trA, "user-a", "s1")
	authenticate(hub, trB, "user-b", "s1")
	trB.reset()

	authenticate(hub, trA, "user-a", "s1")

	assert.Equal(t, []EventKind{EventUserJoined}, trB.eventTypes(t))
}

func TestRouter_AuthenticateWithoutStore(t *testing.T) {
	hub, _, _ := newTestHub(t)
	connA, trA := openConn(t, hub)
	_, trB := openConn(t, hub)

	hub.HandleMessage(trA, []byte(`{"type":"authenticate","data":{"userId":"u1"}}`))

	assert.Equal(t, "u1", connA.UserID())
	assert.Empty(t, connA.StoreID())
	assert.Empty(t, trB.eventTypes(t))
}

func TestRouter_PingRepliesPong(t *testing.T) {
	hub, _, activity := newTestHub(t)
	conn, tr := openConn(t, hub)
	authenticate(hub, tr, "u1", "s1")
	conn.beginPing()

	hub.HandleMessage(tr, []byte(`{"type":"ping","data":{}}`))

	assert.True(t, conn.IsAlive())
	assert.Equal(t, []EventKind{EventPong}, tr.eventTypes(t))
	assert.Equal(t, []string{"u1"}, activity.calls())
}

func TestRouter_PongHasNoReply(t *testing.T) {
	hub, _, activity := newTestHub(t)
	conn, tr := openConn(t, hub)
	conn.beginPing()

	hub.HandleMessage(tr, []byte(`{"type":"pong"}`))

	assert.True(t, conn.IsAlive())
	assert.Empty(t, tr.eventTypes(t))
	assert.Empty(t, activity.calls(), "unauthenticated sessions do not refresh last-active")
}

func TestRouter_UnknownAndMalformedFramesKeepConnection(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	hub, _, _ := newTestHub(t)
	conn, tr := openConn(t, hub)

	hub.HandleMessage(tr, []byte(`{"type":"subscribe","data":{}}`))
	hub.HandleMessage(tr, []byte(`{not json`))
	hub.HandleMessage(tr, []byte(`{"type":"authenticate","data":{}}`))

	_, exists := hub.Registry().Lookup(conn.SessionID)
	assert.True(t, exists)
	assert.Equal(t, 0, tr.closeCount())
	assert.Empty(t, tr.eventTypes(t))
	assert.False(t, conn.IsAuthenticated())

	assert.Equal(t, 1, logs.FilterMessage("Ignoring unknown message type").Len())
	assert.Equal(t, 2, logs.FilterMessage("Dropping malformed frame").Len())
}

func TestRouter_UnregisteredTransportIsDropped(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	prev := logger.SetLogger(zap.New(core))
	defer logger.SetLogger(prev)

	hub, _, _ := newTestHub(t)
	stray := newFakeTransport()

	hub.HandleMessage(stray, []byte(`{"type":"ping"}`))

	assert.Empty(t, stray.eventTypes(t))
	assert.Equal(t, 1, logs.FilterMessage("Dropping frame from unregistered transport").Len())
}

func TestRouter_TokenValidation(t *testing.T) {
	const secret = "router-secret"
	clock := clockwork.NewFakeClock()
	hub := NewHub(config.RealtimeConfig{PingInterval: 30 * time.Second}, NewAuthManager(secret), nil, clock)

	send := func(tr Transport, userID, token string) {
		frame, _ := json.Marshal(map[string]interface{}{
			"type": "authenticate",
			"data": map[string]string{"userId": userID, "storeId": "s1", "token": token},
		})
		hub.HandleMessage(tr, frame)
	}

	t.Run("missing token", func(t *testing.T) {
		conn, tr := openConn(t, hub)
		send(tr, "u1", "")
		assert.False(t, conn.IsAuthenticated())
		assert.Equal(t, []EventKind{EventError}, tr.eventTypes(t))
	})

	t.Run("subject mismatch", func(t *testing.T) {
		conn, tr := openConn(t, hub)
		send(tr, "u1", signToken(t, secret, jwt.MapClaims{"user_id": "u2"}))
		assert.False(t, conn.IsAuthenticated())
		assert.Equal(t, []EventKind{EventError}, tr.eventTypes(t))
	})

	t.Run("valid token", func(t *testing.T) {
		conn, tr := openConn(t, hub)
		send(tr, "u1", signToken(t, secret, jwt.MapClaims{"user_id": "u1"}))
		assert.True(t, conn.IsAuthenticated())
		assert.Equal(t, "s1", conn.StoreID())
		assert.Empty(t, tr.eventTypes(t))
	})
}
