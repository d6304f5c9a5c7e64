package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	relay "github.com/oddskit/oddsrelay/internal"
)

// SaveSession inserts or replaces the single stored session row.
func (s *Store) SaveSession(ctx context.Context, sess *relay.Session) error {
	_, err := s.write.ExecContext(ctx,
		`INSERT INTO sessions (id, access_token, refresh_token, expires_at, updated_at)
		 VALUES (1, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
		   access_token=excluded.access_token,
		   refresh_token=excluded.refresh_token,
		   expires_at=excluded.expires_at,
		   updated_at=excluded.updated_at`,
		sess.AccessToken, sess.RefreshToken,
		sess.ExpiresAt.UTC().Format(time.RFC3339),
		sess.UpdatedAt.UTC().Format(time.RFC3339),
	)
	return err
}

// GetSession returns the stored session, or relay.ErrSessionMissing.
func (s *Store) GetSession(ctx context.Context) (*relay.Session, error) {
	row := s.read.QueryRowContext(ctx,
		`SELECT access_token, refresh_token, expires_at, updated_at FROM sessions WHERE id=1`,
	)

	var sess relay.Session
	var expiresAt, updatedAt string
	err := row.Scan(&sess.AccessToken, &sess.RefreshToken, &expiresAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, relay.ErrSessionMissing
	}
	if err != nil {
		return nil, err
	}

	if sess.ExpiresAt, err = time.Parse(time.RFC3339, expiresAt); err != nil {
		return nil, fmt.Errorf("parse expires_at: %w", err)
	}
	if sess.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parse updated_at: %w", err)
	}
	return &sess, nil
}

// DeleteSession removes the stored session if present.
func (s *Store) DeleteSession(ctx context.Context) error {
	_, err := s.write.ExecContext(ctx, `DELETE FROM sessions WHERE id=1`)
	return err
}
