package model

import (
	"context"
	"errors"
)

// ErrSessionNotFound is returned by backends when no session exists for a key.
var ErrSessionNotFound = errors.New("session not found")

// SessionStore persists sessions for the lifetime of the process (or of the
// backing store). Callers serialize access per key; implementations only have
// to be safe across distinct keys.
type SessionStore interface {
	// GetOrCreate loads the session for key, creating an empty one if absent.
	GetOrCreate(ctx context.Context, key string) (*Session, error)

	// Save upserts the session under its key.
	Save(ctx context.Context, session *Session) error

	// Reset clears the dialogue fields and history of the session, keeping its key.
	Reset(ctx context.Context, key string) error
}
