package storage

import (
	"context"
	"encoding/json"
	"sync"
	"time"
)

// ActivityUpdate is one call recorded by MockActivityStore
type ActivityUpdate struct {
	UserID string
	At     time.Time
}

// MockActivityStore is a mock implementation of ActivityStore for testing
type MockActivityStore struct {
	mu       sync.Mutex
	Updates  []ActivityUpdate
	WriteErr error
	Closed   bool
}

func (m *MockActivityStore) UpdateLastActive(ctx context.Context, userID string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.Updates = append(m.Updates, ActivityUpdate{UserID: userID, At: at})
	return nil
}

// GetUpdates returns a copy of the recorded updates
func (m *MockActivityStore) GetUpdates() []ActivityUpdate {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]ActivityUpdate, len(m.Updates))
	copy(result, m.Updates)
	return result
}

// SetWriteErr changes the error returned by UpdateLastActive
func (m *MockActivityStore) SetWriteErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.WriteErr = err
}

func (m *MockActivityStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Closed = true
	return nil
}

// MockRedisClient is a mock implementation of RedisClient for testing
type MockRedisClient struct {
	mu         sync.Mutex
	Data       map[string]string
	TTLs       map[string]time.Duration
	Published  []PubSubMessage
	PubSubData []PubSubMessage
	PublishErr error
	GetErr     error
	SetErr     error
	PingErr    error

	SubscribeErr error
	// SubscribeChan, when set, is returned by Subscribe instead of PubSubData
	SubscribeChan chan PubSubMessage
}

func NewMockRedisClient() *MockRedisClient {
	return &MockRedisClient{
		Data: make(map[string]string),
		TTLs: make(map[string]time.Duration),
	}
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SetErr != nil {
		return m.SetErr
	}
	// Marshal to JSON like the real implementation
	jsonData, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.Data[key] = string(jsonData)
	m.TTLs[key] = ttl
	return nil
}

func (m *MockRedisClient) GetJSON(ctx context.Context, key string, dest interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.GetErr != nil {
		return m.GetErr
	}
	value, exists := m.Data[key]
	if !exists {
		return nil
	}
	return json.Unmarshal([]byte(value), dest)
}

func (m *MockRedisClient) Publish(ctx context.Context, channel string, message interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.PublishErr != nil {
		return m.PublishErr
	}
	jsonData, err := json.Marshal(message)
	if err != nil {
		return err
	}
	m.Published = append(m.Published, PubSubMessage{Channel: channel, Message: string(jsonData)})
	return nil
}

// GetPublished returns a copy of the published messages
func (m *MockRedisClient) GetPublished() []PubSubMessage {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]PubSubMessage, len(m.Published))
	copy(result, m.Published)
	return result
}

func (m *MockRedisClient) Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SubscribeErr != nil {
		return nil, m.SubscribeErr
	}
	if m.SubscribeChan != nil {
		return m.SubscribeChan, nil
	}
	ch := make(chan PubSubMessage, len(m.PubSubData))
	for _, msg := range m.PubSubData {
		ch <- msg
	}
	close(ch)
	return ch, nil
}

func (m *MockRedisClient) Ping(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.PingErr
}

// SetPingErr makes subsequent Ping calls fail with err
func (m *MockRedisClient) SetPingErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PingErr = err
}

func (m *MockRedisClient) Close() error {
	return nil
}
