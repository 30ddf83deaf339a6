package models

import "errors"

var (
	ErrDuplicateSession   = errors.New("session already registered")
	ErrDuplicateTransport = errors.New("transport already registered")
	ErrHubClosed          = errors.New("hub is shut down")
	ErrTransportClosed    = errors.New("transport closed")
	ErrSendQueueFull      = errors.New("send queue full")
	ErrMalformedFrame     = errors.New("malformed frame")
	ErrMissingUserID      = errors.New("authenticate requires userId")
	ErrIdentityMismatch   = errors.New("token subject does not match userId")
	ErrInvalidEventKind   = errors.New("invalid event kind")
	ErrInvalidUserID      = errors.New("invalid user ID")
	ErrInvalidStatus      = errors.New("invalid server status")
	ErrInvalidTimestamp   = errors.New("invalid timestamp")
)
