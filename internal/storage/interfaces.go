package storage

import (
	"context"
	"time"
)

// ActivityStore persists the last time a user was seen on a live connection
type ActivityStore interface {
	// UpdateLastActive records that userID was active at the given time
	UpdateLastActive(ctx context.Context, userID string, at time.Time) error

	// Close closes the storage connection
	Close() error
}

// RedisClient defines the interface for Redis operations
type RedisClient interface {
	// Key-value operations
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	GetJSON(ctx context.Context, key string, dest interface{}) error

	// Pub/Sub operations
	Publish(ctx context.Context, channel string, message interface{}) error
	Subscribe(ctx context.Context, channels ...string) (<-chan PubSubMessage, error)

	// Ping checks the connection
	Ping(ctx context.Context) error

	// Close closes the Redis connection
	Close() error
}

// PubSubMessage represents a message from Redis pub/sub
type PubSubMessage struct {
	Channel string
	Message string
}
