package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/stretchr/testify/require"
)

// fakeTransport records frames and close calls
type fakeTransport struct {
	mu       sync.Mutex
	frames   [][]byte
	closes   int
	closed   bool
	failSend bool
}

func newFakeTransport() *fakeTransport {
	return &fakeTransport{}
}

func (f *fakeTransport) Send(data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSend {
		return errors.New("broken pipe")
	}
	f.frames = append(f.frames, data)
	return nil
}

func (f *fakeTransport) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.closes++
	f.closed = true
	return nil
}

func (f *fakeTransport) Ready() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return !f.closed
}

func (f *fakeTransport) setFailSend(fail bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failSend = fail
}

func (f *fakeTransport) closeCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closes
}

// events decodes every recorded frame
func (f *fakeTransport) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	events := make([]Event, 0, len(f.frames))
	for _, frame := range f.frames {
		var ev Event
		require.NoError(t, json.Unmarshal(frame, &ev))
		events = append(events, ev)
	}
	return events
}

// eventTypes returns the types of every recorded frame in order
func (f *fakeTransport) eventTypes(t *testing.T) []EventKind {
	t.Helper()
	var kinds []EventKind
	for _, ev := range f.events(t) {
		kinds = append(kinds, ev.Type)
	}
	return kinds
}

func (f *fakeTransport) frameCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.frames)
}

func (f *fakeTransport) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = nil
}

// recordingActivity collects RecordActivity calls
type recordingActivity struct {
	mu    sync.Mutex
	users []string
}

func (r *recordingActivity) RecordActivity(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = append(r.users, userID)
}

func (r *recordingActivity) calls() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.users...)
}

func newTestHub(t *testing.T) (*Hub, *clockwork.FakeClock, *recordingActivity) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC))
	activity := &recordingActivity{}
	hub := NewHub(config.RealtimeConfig{PingInterval: 30 * time.Second}, nil, activity, clock)
	return hub, clock, activity
}

// openConn registers a fresh fake transport
func openConn(t *testing.T, hub *Hub) (*Connection, *fakeTransport) {
	t.Helper()
	transport := newFakeTransport()
	conn, err := hub.HandleOpen(transport)
	require.NoError(t, err)
	return conn, transport
}

// authenticate sends an authenticate frame on transport
func authenticate(hub *Hub, transport Transport, userID, storeID string) {
	frame, _ := json.Marshal(map[string]interface{}{
		"type": "authenticate",
		"data": map[string]string{"userId": userID, "storeId": storeID},
	})
	hub.HandleMessage(transport, frame)
}

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}
