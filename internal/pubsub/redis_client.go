package pubsub

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	"github.com/redis/go-redis/v9"
)

// RedisClientImpl implements the storage.RedisClient interface
type RedisClientImpl struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client and verifies the connection
func NewRedisClient(cfg config.RedisConfig) (storage.RedisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Connected to Redis",
		logger.String("host", cfg.Host),
		logger.Int("port", cfg.Port),
	)

	return &RedisClientImpl{client: rdb}, nil
}

// Set stores value as JSON with a TTL
func (r *RedisClientImpl) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	jsonData, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}

	return r.client.Set(ctx, key, jsonData, ttl).Err()
}

// GetJSON gets a JSON value and unmarshals it; a missing key leaves dest untouched
func (r *RedisClientImpl) GetJSON(ctx context.Context, key string, dest interface{}) error {
	data, err := r.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(data, dest)
}

// Publish publishes a JSON message to a pub/sub channel
func (r *RedisClientImpl) Publish(ctx context.Context, channel string, message interface{}) error {
	jsonData, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	return r.client.Publish(ctx, channel, jsonData).Err()
}

// Subscribe subscribes to pub/sub channels until ctx is cancelled
func (r *RedisClientImpl) Subscribe(ctx context.Context, channels ...string) (<-chan storage.PubSubMessage, error) {
	sub := r.client.Subscribe(ctx, channels...)

	// Wait for the subscription confirmation so errors surface here
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("failed to subscribe to %v: %w", channels, err)
	}

	messageChan := make(chan storage.PubSubMessage, 100)

	go func() {
		defer close(messageChan)
		defer sub.Close()
		ch := sub.Channel()

		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				psMsg := storage.PubSubMessage{
					Channel: msg.Channel,
					Message: msg.Payload,
				}
				select {
				case messageChan <- psMsg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return messageChan, nil
}

// Ping checks the connection
func (r *RedisClientImpl) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

// Close closes the Redis connection
func (r *RedisClientImpl) Close() error {
	return r.client.Close()
}
