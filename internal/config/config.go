package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Common
	Environment string
	LogLevel    string

	Server   ServerConfig
	Realtime RealtimeConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Activity ActivityConfig
	Notify   NotifyConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
	MaxConnections  int
	APIRateLimitRPS int
	APIRateBurst    int
}

// RealtimeConfig holds connection manager configuration
type RealtimeConfig struct {
	PingInterval   time.Duration
	WriteTimeout   time.Duration
	MaxMessageSize int64
	JWTSecret      string
	EventChannel   string // redis pub/sub channel for inbound broadcasts, empty disables
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxConnections  int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host         string
	Port         int
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
}

// ActivityConfig holds last-active persistence configuration
type ActivityConfig struct {
	Store          string // "none", "redis" or "postgres"
	QueueSize      int
	WriteTimeout   time.Duration
	ThrottleWindow time.Duration
	KeyPrefix      string
	KeyTTL         time.Duration
}

// NotifyConfig holds server status notification configuration
type NotifyConfig struct {
	Bridge         string // "none", "webhook" or "redis"
	WebhookURL     string
	WebhookTimeout time.Duration
	RedisChannel   string
	PollInterval   time.Duration
}

// Load loads configuration from environment variables
// It automatically loads .env file if it exists in the current directory
func Load() (*Config, error) {
	// Try to load .env file (ignore error if it doesn't exist)
	_ = godotenv.Load()

	cfg := &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		Server: ServerConfig{
			Port:            getEnvAsInt("SERVER_PORT", 8088),
			ReadTimeout:     getEnvAsDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:    getEnvAsDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			ShutdownTimeout: getEnvAsDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getEnvAsStringSlice("SERVER_ALLOWED_ORIGINS", []string{}),
			MaxConnections:  getEnvAsInt("SERVER_MAX_CONNECTIONS", 5000),
			APIRateLimitRPS: getEnvAsInt("SERVER_API_RATE_LIMIT_RPS", 100),
			APIRateBurst:    getEnvAsInt("SERVER_API_RATE_BURST", 200),
		},
		Realtime: RealtimeConfig{
			PingInterval:   getEnvAsDuration("REALTIME_PING_INTERVAL", 30*time.Second),
			WriteTimeout:   getEnvAsDuration("REALTIME_WRITE_TIMEOUT", 10*time.Second),
			MaxMessageSize: int64(getEnvAsInt("REALTIME_MAX_MESSAGE_SIZE", 64*1024)),
			JWTSecret:      getEnv("REALTIME_JWT_SECRET", ""),
			EventChannel:   getEnv("REALTIME_EVENT_CHANNEL", ""),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnvAsInt("DB_PORT", 5432),
			User:            getEnv("DB_USER", "postgres"),
			Password:        getEnv("DB_PASSWORD", "postgres"),
			Database:        getEnv("DB_NAME", "storefront"),
			SSLMode:         getEnv("DB_SSL_MODE", "disable"),
			MaxConnections:  getEnvAsInt("DB_MAX_CONNECTIONS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Host:         getEnv("REDIS_HOST", "localhost"),
			Port:         getEnvAsInt("REDIS_PORT", 6379),
			Password:     getEnv("REDIS_PASSWORD", ""),
			DB:           getEnvAsInt("REDIS_DB", 0),
			PoolSize:     getEnvAsInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: getEnvAsInt("REDIS_MIN_IDLE_CONNS", 2),
		},
		Activity: ActivityConfig{
			Store:          strings.ToLower(getEnv("ACTIVITY_STORE", "none")),
			QueueSize:      getEnvAsInt("ACTIVITY_QUEUE_SIZE", 1024),
			WriteTimeout:   getEnvAsDuration("ACTIVITY_WRITE_TIMEOUT", 5*time.Second),
			ThrottleWindow: getEnvAsDuration("ACTIVITY_THROTTLE_WINDOW", 30*time.Second),
			KeyPrefix:      getEnv("ACTIVITY_KEY_PREFIX", "user:last_active:"),
			KeyTTL:         getEnvAsDuration("ACTIVITY_KEY_TTL", 30*24*time.Hour),
		},
		Notify: NotifyConfig{
			Bridge:         strings.ToLower(getEnv("NOTIFY_BRIDGE", "none")),
			WebhookURL:     getEnv("NOTIFY_WEBHOOK_URL", ""),
			WebhookTimeout: getEnvAsDuration("NOTIFY_WEBHOOK_TIMEOUT", 5*time.Second),
			RedisChannel:   getEnv("NOTIFY_REDIS_CHANNEL", "realtime.server_status"),
			PollInterval:   getEnvAsDuration("NOTIFY_POLL_INTERVAL", 5*time.Second),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 {
		return fmt.Errorf("SERVER_PORT must be positive")
	}
	if c.Realtime.PingInterval <= 0 {
		return fmt.Errorf("REALTIME_PING_INTERVAL must be positive")
	}
	if c.Realtime.EventChannel != "" && c.Redis.Host == "" {
		return fmt.Errorf("REDIS_HOST is required when REALTIME_EVENT_CHANNEL is set")
	}
	switch c.Activity.Store {
	case "none":
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required when ACTIVITY_STORE=redis")
		}
	case "postgres":
		if c.Database.Host == "" {
			return fmt.Errorf("DB_HOST is required when ACTIVITY_STORE=postgres")
		}
	default:
		return fmt.Errorf("unsupported ACTIVITY_STORE %q", c.Activity.Store)
	}
	switch c.Notify.Bridge {
	case "none":
	case "webhook":
		if c.Notify.WebhookURL == "" {
			return fmt.Errorf("NOTIFY_WEBHOOK_URL is required when NOTIFY_BRIDGE=webhook")
		}
	case "redis":
		if c.Redis.Host == "" {
			return fmt.Errorf("REDIS_HOST is required when NOTIFY_BRIDGE=redis")
		}
	default:
		return fmt.Errorf("unsupported NOTIFY_BRIDGE %q", c.Notify.Bridge)
	}
	return nil
}

// UsesRedis reports whether any component needs a Redis connection
func (c *Config) UsesRedis() bool {
	return c.Activity.Store == "redis" || c.Notify.Bridge == "redis" || c.Realtime.EventChannel != ""
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue
	}
	return intValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	duration, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return duration
}

func getEnvAsStringSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	// Split by comma and trim spaces
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
