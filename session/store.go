package session

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned when no session matches the lookup key.
	ErrNotFound = errors.New("session: not found")

	// ErrConflict is returned by Rotate when the stored refresh token no
	// longer equals the expected old value: the loser of a concurrent
	// rotation race, or a replayed token.
	ErrConflict = errors.New("session: refresh token conflict")
)

// Store persists sessions. Implementations must make Rotate atomic with
// respect to concurrent rotations of the same session: of two concurrent
// calls carrying the same oldToken, exactly one may succeed.
type Store interface {
	// Create persists a new session.
	Create(ctx context.Context, s *Session) error

	// FindByID returns a session regardless of revocation state.
	FindByID(ctx context.Context, id string) (*Session, error)

	// FindActiveByID returns a session only if it is not revoked. The
	// store-level revocation filter is defense in depth alongside the
	// in-memory IsValid check.
	FindActiveByID(ctx context.Context, id string) (*Session, error)

	// FindByRefreshToken looks a session up by its current refresh token.
	// Superseded tokens are not indexed, so replay fails with ErrNotFound.
	FindByRefreshToken(ctx context.Context, refreshToken string) (*Session, error)

	// Rotate persists an already-rotated session, conditioned on the
	// stored refresh token still being oldToken. Returns ErrConflict when
	// the condition fails and ErrNotFound when the session is gone.
	Rotate(ctx context.Context, s *Session, oldToken string) error

	// Revoke marks a session revoked. Idempotent; revoking a revoked
	// session succeeds without effect.
	Revoke(ctx context.Context, id string) error

	// ListByUser returns all sessions belonging to a user.
	ListByUser(ctx context.Context, userID string) ([]*Session, error)

	// RevokeAllForUser revokes every session belonging to a user.
	RevokeAllForUser(ctx context.Context, userID string) error

	// DeleteByUser removes all sessions of a user. Only called when the
	// owning identity is deleted (cascade).
	DeleteByUser(ctx context.Context, userID string) error
}
