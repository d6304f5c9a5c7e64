// Package storage defines persistence interfaces for the relay.
package storage

import (
	"context"

	relay "github.com/oddskit/oddsrelay/internal"
)

// SessionStore persists the backend session so a restart does not force
// a fresh login. There is at most one session per relay process.
type SessionStore interface {
	// SaveSession inserts or replaces the stored session.
	SaveSession(ctx context.Context, s *relay.Session) error
	// GetSession returns the stored session, or relay.ErrSessionMissing.
	GetSession(ctx context.Context) (*relay.Session, error)
	// DeleteSession removes the stored session if present.
	DeleteSession(ctx context.Context) error
}

// Store combines all storage interfaces with lifecycle management.
type Store interface {
	SessionStore
	Ping(ctx context.Context) error
	Close() error
}
