package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLiveness_EvictsOnSecondTickWithoutPong(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn, tr := openConn(t, hub)

	hub.Monitor().Tick()

	_, exists := hub.Registry().Lookup(conn.SessionID)
	require.True(t, exists, "must not be evicted on the first tick")
	assert.False(t, conn.IsAlive())
	assert.Equal(t, []EventKind{EventPing}, tr.eventTypes(t))

	hub.Monitor().Tick()

	_, exists = hub.Registry().Lookup(conn.SessionID)
	assert.False(t, exists, "must be evicted on the second tick")
	assert.Equal(t, 1, tr.closeCount())
	assert.Equal(t, []EventKind{EventPing}, tr.eventTypes(t), "no second ping for a suspect connection")
}

func TestLiveness_PongKeepsConnection(t *testing.T) {
	hub, clock, activity := newTestHub(t)
	conn, tr := openConn(t, hub)
	authenticate(hub, tr, "u1", "s1")

	hub.Monitor().Tick()
	require.False(t, conn.IsAlive())

	clock.Advance(5 * time.Second)
	hub.HandleMessage(tr, []byte(`{"type":"pong"}`))
	assert.True(t, conn.IsAlive())
	assert.Equal(t, clock.Now(), conn.LastPingTime())
	assert.Equal(t, []string{"u1"}, activity.calls())

	hub.Monitor().Tick()
	_, exists := hub.Registry().Lookup(conn.SessionID)
	assert.True(t, exists)
	assert.False(t, conn.IsAlive())
}

func TestLiveness_ClientPingCountsAsSignal(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn, tr := openConn(t, hub)

	hub.Monitor().Tick()
	hub.HandleMessage(tr, []byte(`{"type":"ping"}`))
	assert.True(t, conn.IsAlive())

	hub.Monitor().Tick()
	_, exists := hub.Registry().Lookup(conn.SessionID)
	assert.True(t, exists)
}

func TestLiveness_ProtocolPongCountsAsSignal(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn, tr := openConn(t, hub)

	hub.Monitor().Tick()
	hub.HandlePong(tr)
	assert.True(t, conn.IsAlive())
}

func TestLiveness_FailedPingEvictsImmediately(t *testing.T) {
	hub, _, _ := newTestHub(t)
	conn, tr := openConn(t, hub)
	tr.setFailSend(true)

	hub.Monitor().Tick()

	_, exists := hub.Registry().Lookup(conn.SessionID)
	assert.False(t, exists)
}

func TestLiveness_EvictionNotifiesStore(t *testing.T) {
	hub, _, _ := newTestHub(t)
	silent, trSilent := openConn(t, hub)
	_, trPeer := openConn(t, hub)
	_, trOther := openConn(t, hub)
	authenticate(hub, trSilent, "u-silent", "s1")
	authenticate(hub, trPeer, "u-peer", "s1")
	authenticate(hub, trOther, "u-other", "s2")

	hub.Monitor().Tick()
	hub.HandleMessage(trPeer, []byte(`{"type":"pong"}`))
	hub.HandleMessage(trOther, []byte(`{"type":"pong"}`))
	trPeer.reset()
	trOther.reset()

	hub.Monitor().Tick()

	_, exists := hub.Registry().Lookup(silent.SessionID)
	require.False(t, exists)

	var left []Event
	for _, ev := range trPeer.events(t) {
		if ev.Type == EventUserLeft {
			left = append(left, ev)
		}
	}
	require.Len(t, left, 1)
	assert.Equal(t, "u-silent", left[0].UserID)
	assert.Equal(t, "s1", left[0].StoreID)
	assert.Equal(t, silent.SessionID, left[0].SessionID)

	for _, ev := range trOther.events(t) {
		assert.NotEqual(t, EventUserLeft, ev.Type)
	}
}

func TestLiveness_SkipsSessionsRemovedDuringRound(t *testing.T) {
	registry := NewConnectionRegistry(nil)
	for _, id := range []string{"sess-1", "sess-2", "sess-3"} {
		conn, err := registry.Register(id, newFakeTransport())
		require.NoError(t, err)
		conn.beginPing()
	}

	var evicted []string
	evict := func(conn *Connection, _ EvictReason) bool {
		evicted = append(evicted, conn.SessionID)
		// the first eviction takes every other session down with it
		for _, other := range registry.GetAll() {
			registry.Remove(other.SessionID)
		}
		return true
	}
	monitor := NewLivenessMonitor(registry, NewBroadcaster(registry, evict), nil, time.Second, evict)

	monitor.Tick()

	assert.Len(t, evicted, 1)
	assert.Equal(t, 0, registry.Count())
}

func TestLiveness_TimerDrivesTicks(t *testing.T) {
	hub, clock, _ := newTestHub(t)
	conn, tr := openConn(t, hub)

	hub.Start()
	defer hub.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool {
		return tr.frameCount() == 1
	}, time.Second, 5*time.Millisecond)

	clock.Advance(30 * time.Second)
	assert.Eventually(t, func() bool {
		_, exists := hub.Registry().Lookup(conn.SessionID)
		return !exists
	}, time.Second, 5*time.Millisecond)
}

func TestLiveness_StopIsIdempotent(t *testing.T) {
	hub, _, _ := newTestHub(t)
	monitor := hub.Monitor()

	monitor.Stop()
	monitor.Start()
	monitor.Start()
	assert.True(t, monitor.Running())
	monitor.Stop()
	monitor.Stop()
	assert.False(t, monitor.Running())
}
