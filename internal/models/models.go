package models

import (
	"time"
)

// ServerStatusValue is the aggregate availability reported to notifiers
type ServerStatusValue string

const (
	ServerOnline  ServerStatusValue = "online"
	ServerOffline ServerStatusValue = "offline"
)

// ServerStatus describes a transition of the realtime server to or from
// having zero active connections
type ServerStatus struct {
	Status            ServerStatusValue `json:"status"`
	ActiveConnections int               `json:"activeConnections"`
	DowntimeMs        int64             `json:"downtimeMs,omitempty"`
	Timestamp         time.Time         `json:"timestamp"`
}

// Validate validates a ServerStatus
func (s *ServerStatus) Validate() error {
	if s.Status != ServerOnline && s.Status != ServerOffline {
		return ErrInvalidStatus
	}
	if s.Timestamp.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}

// Downtime returns the reported downtime as a duration
func (s *ServerStatus) Downtime() time.Duration {
	return time.Duration(s.DowntimeMs) * time.Millisecond
}

// ActivityRecord is a single "last active" update for a user
type ActivityRecord struct {
	UserID     string    `json:"userId"`
	LastActive time.Time `json:"lastActive"`
}

// Validate validates an ActivityRecord
func (a *ActivityRecord) Validate() error {
	if a.UserID == "" {
		return ErrInvalidUserID
	}
	if a.LastActive.IsZero() {
		return ErrInvalidTimestamp
	}
	return nil
}
