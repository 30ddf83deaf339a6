package notify

import (
	"context"

	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

// Notifier reports server availability changes to an external system
type Notifier interface {
	NotifyServerStatus(ctx context.Context, status models.ServerStatus) error
}

// NoopNotifier is used when no bridge is configured; it only logs
type NoopNotifier struct{}

func (NoopNotifier) NotifyServerStatus(ctx context.Context, status models.ServerStatus) error {
	logger.Info("Server status changed (no notifier configured)",
		logger.String("status", string(status.Status)),
		logger.Int("active_connections", status.ActiveConnections),
		logger.Duration("downtime", status.Downtime()),
	)
	return nil
}

// RedisNotifier publishes status changes on a pub/sub channel
type RedisNotifier struct {
	redis   storage.RedisClient
	channel string
}

// NewRedisNotifier creates a notifier publishing to channel
func NewRedisNotifier(redis storage.RedisClient, channel string) *RedisNotifier {
	return &RedisNotifier{redis: redis, channel: channel}
}

func (n *RedisNotifier) NotifyServerStatus(ctx context.Context, status models.ServerStatus) error {
	if err := status.Validate(); err != nil {
		return err
	}
	return n.redis.Publish(ctx, n.channel, status)
}
