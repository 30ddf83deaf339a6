package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
)

// RedisActivityStore keeps one key per user holding the last-active record
type RedisActivityStore struct {
	client    RedisClient
	keyPrefix string
	ttl       time.Duration
}

// NewRedisActivityStore creates a store writing keys as keyPrefix+userID
func NewRedisActivityStore(client RedisClient, keyPrefix string, ttl time.Duration) *RedisActivityStore {
	return &RedisActivityStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
	}
}

// Key returns the redis key for userID
func (r *RedisActivityStore) Key(userID string) string {
	return r.keyPrefix + userID
}

// UpdateLastActive stores the record with the configured TTL
func (r *RedisActivityStore) UpdateLastActive(ctx context.Context, userID string, at time.Time) error {
	record := models.ActivityRecord{UserID: userID, LastActive: at.UTC()}
	if err := record.Validate(); err != nil {
		return err
	}

	if err := r.client.Set(ctx, r.Key(userID), record, r.ttl); err != nil {
		return fmt.Errorf("failed to store last active for %s: %w", userID, err)
	}
	return nil
}

// LastActive reads the stored record. ok is false when no key exists.
func (r *RedisActivityStore) LastActive(ctx context.Context, userID string) (rec models.ActivityRecord, ok bool, err error) {
	if err := r.client.GetJSON(ctx, r.Key(userID), &rec); err != nil {
		return models.ActivityRecord{}, false, err
	}
	return rec, rec.UserID != "", nil
}

// Close is a no-op; the shared client is closed by its owner
func (r *RedisActivityStore) Close() error {
	return nil
}

// NoopActivityStore discards activity updates
type NoopActivityStore struct{}

func (NoopActivityStore) UpdateLastActive(ctx context.Context, userID string, at time.Time) error {
	return nil
}

func (NoopActivityStore) Close() error {
	return nil
}
