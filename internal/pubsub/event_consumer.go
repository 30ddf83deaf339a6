package pubsub

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/mohamedkhairy/storefront-realtime/internal/realtime"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var consumedEventsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "realtime_pubsub_events_total",
		Help: "Envelopes received on the event channel, by outcome",
	},
	[]string{"status"}, // "dispatched" or "invalid"
)

// Dispatcher delivers an addressed event to live connections
type Dispatcher interface {
	Dispatch(env realtime.Envelope) (int, error)
}

// EventConsumer feeds envelopes published on a Redis channel to a Dispatcher
type EventConsumer struct {
	redis      storage.RedisClient
	channel    string
	dispatcher Dispatcher

	mu      sync.Mutex
	cancel  context.CancelFunc
	done    chan struct{}
	running bool
}

// NewEventConsumer creates a consumer for channel
func NewEventConsumer(redis storage.RedisClient, channel string, dispatcher Dispatcher) *EventConsumer {
	return &EventConsumer{
		redis:      redis,
		channel:    channel,
		dispatcher: dispatcher,
	}
}

// Start subscribes and begins consuming in the background
func (c *EventConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.running {
		return nil
	}

	consumeCtx, cancel := context.WithCancel(ctx)
	messageChan, err := c.redis.Subscribe(consumeCtx, c.channel)
	if err != nil {
		cancel()
		return fmt.Errorf("failed to subscribe to event channel: %w", err)
	}

	c.cancel = cancel
	c.done = make(chan struct{})
	c.running = true

	logger.Info("Consuming realtime events", logger.String("channel", c.channel))

	go c.consume(consumeCtx, messageChan, c.done)
	return nil
}

// Stop cancels the subscription and waits for the consumer to exit
func (c *EventConsumer) Stop() {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return
	}
	c.running = false
	cancel, done := c.cancel, c.done
	c.mu.Unlock()

	cancel()
	<-done
	logger.Info("Event consumer stopped", logger.String("channel", c.channel))
}

func (c *EventConsumer) consume(ctx context.Context, messageChan <-chan storage.PubSubMessage, done chan struct{}) {
	defer close(done)

	for {
		select {
		case <-ctx.Done():
			return

		case msg, ok := <-messageChan:
			if !ok {
				logger.Warn("Event channel closed", logger.String("channel", c.channel))
				return
			}
			c.handle(msg)
		}
	}
}

func (c *EventConsumer) handle(msg storage.PubSubMessage) {
	var env realtime.Envelope
	if err := json.Unmarshal([]byte(msg.Message), &env); err != nil {
		consumedEventsTotal.WithLabelValues("invalid").Inc()
		logger.Warn("Failed to decode event envelope",
			logger.ErrorField(err),
			logger.String("channel", msg.Channel),
		)
		return
	}

	delivered, err := c.dispatcher.Dispatch(env)
	if err != nil {
		consumedEventsTotal.WithLabelValues("invalid").Inc()
		logger.Warn("Rejected event envelope",
			logger.ErrorField(err),
			logger.String("type", env.Type),
			logger.String("scope", string(env.Scope)),
		)
		return
	}

	consumedEventsTotal.WithLabelValues("dispatched").Inc()
	logger.Debug("Dispatched event envelope",
		logger.String("type", env.Type),
		logger.String("scope", string(env.Scope)),
		logger.String("target", env.Target),
		logger.Int("delivered", delivered),
	)
}
