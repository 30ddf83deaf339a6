package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/jonboulle/clockwork"
	"github.com/mohamedkhairy/storefront-realtime/internal/activity"
	"github.com/mohamedkhairy/storefront-realtime/internal/api"
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/notify"
	"github.com/mohamedkhairy/storefront-realtime/internal/pubsub"
	"github.com/mohamedkhairy/storefront-realtime/internal/realtime"
	"github.com/mohamedkhairy/storefront-realtime/internal/storage"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logger.Init(cfg.LogLevel, cfg.Environment); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	logger.Info("Starting realtime service",
		logger.Int("port", cfg.Server.Port),
		logger.Duration("ping_interval", cfg.Realtime.PingInterval),
		logger.Int("max_connections", cfg.Server.MaxConnections),
		logger.String("activity_store", cfg.Activity.Store),
		logger.String("notify_bridge", cfg.Notify.Bridge),
	)

	clock := clockwork.NewRealClock()

	var redisClient storage.RedisClient
	if cfg.UsesRedis() {
		redisClient, err = pubsub.NewRedisClient(cfg.Redis)
		if err != nil {
			logger.Fatal("Failed to initialize Redis client", logger.ErrorField(err))
		}
		defer redisClient.Close()
	}

	activityStore, err := newActivityStore(cfg, redisClient)
	if err != nil {
		logger.Fatal("Failed to initialize activity store", logger.ErrorField(err))
	}
	defer activityStore.Close()

	recorder := activity.NewRecorder(activityStore, cfg.Activity, clock)
	recorder.Start()

	authManager := realtime.NewAuthManager(cfg.Realtime.JWTSecret)
	if !authManager.Enabled() {
		logger.Warn("REALTIME_JWT_SECRET not set, authenticate frames and the broadcast API are not verified")
	}

	hub := realtime.NewHub(cfg.Realtime, authManager, recorder, clock)
	hub.Start()

	watcher := notify.NewStatusWatcher(hub, newNotifier(cfg, redisClient), clock, cfg.Notify.PollInterval)
	watcher.Start()

	var consumer *pubsub.EventConsumer
	if cfg.Realtime.EventChannel != "" {
		consumer = pubsub.NewEventConsumer(redisClient, cfg.Realtime.EventChannel, hub)
		if err := consumer.Start(context.Background()); err != nil {
			logger.Fatal("Failed to start event consumer", logger.ErrorField(err))
		}
	}

	handler := api.NewHandler(hub, authManager, redisClient, cfg.Server)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      handler.Router(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		logger.Info("Starting HTTP server", logger.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Failed to start HTTP server", logger.ErrorField(err))
		}
	}()

	// Graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	sig := <-sigChan
	logger.Info("Shutting down realtime service", logger.String("signal", sig.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Error("Error shutting down HTTP server", logger.ErrorField(err))
	}

	if consumer != nil {
		consumer.Stop()
	}
	watcher.Stop()
	hub.Cleanup()
	recorder.Stop()

	logger.Info("Realtime service stopped")
}

func newActivityStore(cfg *config.Config, redisClient storage.RedisClient) (storage.ActivityStore, error) {
	switch cfg.Activity.Store {
	case "redis":
		return storage.NewRedisActivityStore(redisClient, cfg.Activity.KeyPrefix, cfg.Activity.KeyTTL), nil
	case "postgres":
		return storage.NewPostgresActivityStore(cfg.Database)
	default:
		return storage.NoopActivityStore{}, nil
	}
}

func newNotifier(cfg *config.Config, redisClient storage.RedisClient) notify.Notifier {
	switch cfg.Notify.Bridge {
	case "webhook":
		return notify.NewWebhookNotifier(cfg.Notify.WebhookURL, cfg.Notify.WebhookTimeout)
	case "redis":
		return notify.NewRedisNotifier(redisClient, cfg.Notify.RedisChannel)
	default:
		return notify.NoopNotifier{}
	}
}
