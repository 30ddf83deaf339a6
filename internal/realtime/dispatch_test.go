package realtime

import (
	"encoding/json"
	"testing"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Validate(t *testing.T) {
	tests := []struct {
		name    string
		env     Envelope
		wantErr bool
	}{
		{name: "store", env: Envelope{Scope: ScopeStore, Target: "s1", Type: "order_created"}},
		{name: "all", env: Envelope{Scope: ScopeAll, Type: "general_notification"}},
		{name: "missing target", env: Envelope{Scope: ScopeUser, Type: "profile_updated"}, wantErr: true},
		{name: "unknown scope", env: Envelope{Scope: "region", Target: "eu", Type: "order_created"}, wantErr: true},
		{name: "unknown type", env: Envelope{Scope: ScopeAll, Type: "order_deleted"}, wantErr: true},
		{name: "ping reserved", env: Envelope{Scope: ScopeAll, Type: "ping"}, wantErr: true},
		{name: "pong reserved", env: Envelope{Scope: ScopeAll, Type: "pong"}, wantErr: true},
		{name: "user_joined reserved", env: Envelope{Scope: ScopeStore, Target: "s1", Type: "user_joined"}, wantErr: true},
		{name: "user_left reserved", env: Envelope{Scope: ScopeStore, Target: "s1", Type: "user_left"}, wantErr: true},
		{name: "error reserved", env: Envelope{Scope: ScopeSession, Target: "sess", Type: "error"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.env.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestHub_Dispatch(t *testing.T) {
	hub, _, _ := newTestHub(t)
	connA, trA := openConn(t, hub)
	_, trB := openConn(t, hub)
	authenticate(hub, trA, "ua", "s1")
	authenticate(hub, trB, "ub", "s2")
	trA.reset()
	trB.reset()

	n, err := hub.Dispatch(Envelope{
		Scope:  ScopeStore,
		Target: "s1",
		Type:   "order_created",
		Data:   json.RawMessage(`{"orderId":"o1"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	events := trA.events(t)
	require.Len(t, events, 1)
	assert.Equal(t, EventOrderCreated, events[0].Type)
	assert.Equal(t, "s1", events[0].StoreID)
	assert.Equal(t, map[string]interface{}{"orderId": "o1"}, events[0].Data)
	assert.Empty(t, trB.events(t))

	n, err = hub.Dispatch(Envelope{Scope: ScopeSession, Target: connA.SessionID, Type: "general_notification"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = hub.Dispatch(Envelope{Scope: ScopeUser, Target: "ub", Type: "profile_updated"})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = hub.Dispatch(Envelope{Scope: ScopeAll, Type: "store_updated", ExcludeSessionID: connA.SessionID})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = hub.Dispatch(Envelope{Scope: ScopeSession, Target: "missing", Type: "general_notification"})
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = hub.Dispatch(Envelope{Scope: ScopeAll, Type: "nope"})
	assert.ErrorIs(t, err, models.ErrInvalidEventKind)
}
