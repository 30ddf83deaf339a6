package storage

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver
	"github.com/mohamedkhairy/storefront-realtime/internal/config"
	"github.com/mohamedkhairy/storefront-realtime/internal/models"
	"github.com/mohamedkhairy/storefront-realtime/pkg/logger"
)

const updateLastActiveQuery = `UPDATE users SET last_active_at = $2 WHERE id = $1`

// PostgresActivityStore writes last-active timestamps to the users table
type PostgresActivityStore struct {
	db *sql.DB
}

// NewPostgresActivityStore opens and verifies a connection pool
func NewPostgresActivityStore(dbConfig config.DatabaseConfig) (*PostgresActivityStore, error) {
	connStr := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		dbConfig.Host,
		dbConfig.Port,
		dbConfig.User,
		dbConfig.Password,
		dbConfig.Database,
		dbConfig.SSLMode,
	)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	db.SetMaxOpenConns(dbConfig.MaxConnections)
	db.SetMaxIdleConns(dbConfig.MaxIdleConns)
	db.SetConnMaxLifetime(dbConfig.ConnMaxLifetime)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("Connected to PostgreSQL",
		logger.String("host", dbConfig.Host),
		logger.Int("port", dbConfig.Port),
		logger.String("database", dbConfig.Database),
	)

	return NewPostgresActivityStoreFromDB(db), nil
}

// NewPostgresActivityStoreFromDB wraps an existing pool
func NewPostgresActivityStoreFromDB(db *sql.DB) *PostgresActivityStore {
	return &PostgresActivityStore{db: db}
}

// UpdateLastActive sets users.last_active_at for userID. A missing user
// row is not an error.
func (p *PostgresActivityStore) UpdateLastActive(ctx context.Context, userID string, at time.Time) error {
	record := models.ActivityRecord{UserID: userID, LastActive: at}
	if err := record.Validate(); err != nil {
		return err
	}

	res, err := p.db.ExecContext(ctx, updateLastActiveQuery, record.UserID, record.LastActive.UTC())
	if err != nil {
		return fmt.Errorf("failed to update last_active_at for %s: %w", userID, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		logger.Debug("No user row for activity update", logger.String("user_id", userID))
	}
	return nil
}

// Close closes the database pool
func (p *PostgresActivityStore) Close() error {
	return p.db.Close()
}
