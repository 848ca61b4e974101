// Package session owns the authenticated-session entity and its
// lifecycle: refresh-token rotation, revocation, and fingerprint checks.
// Persistence is behind the Store interface with memory, bbolt, and
// postgres backends.
package session

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	// ErrTokenRevoked is returned by Refresh on a revoked session.
	ErrTokenRevoked = errors.New("session: refresh token revoked")

	// ErrTokenExpired is returned by Refresh when the refresh window has
	// passed. Both errors are internal to the lifecycle; HTTP clients only
	// ever see a generic "invalid or expired" outcome.
	ErrTokenExpired = errors.New("session: refresh token expired")
)

// Session is the server-side record backing issued tokens.
//
// The (IPAddress, UserAgent) pair is the binding fingerprint captured at
// creation and immutable afterwards. RefreshToken always holds the
// current rotation value only; replaying a superseded token fails
// lookup because nothing is keyed by old values.
type Session struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	IPAddress             string    `json:"ip_address"`
	UserAgent             string    `json:"user_agent"`
	RefreshToken          string    `json:"refresh_token"`
	RefreshTokenExpiresAt time.Time `json:"refresh_token_expires_at"`
	RefreshCount          uint64    `json:"refresh_count"`
	LastRefreshedAt       time.Time `json:"last_refreshed_at,omitzero"`
	Revoked               bool      `json:"revoked"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// New creates an Active session bound to the request fingerprint, holding
// its initial refresh token with a refresh window of ttl.
func New(userID, ip, userAgent, refreshToken string, ttl time.Duration) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:                    uuid.NewString(),
		UserID:                userID,
		IPAddress:             ip,
		UserAgent:             userAgent,
		RefreshToken:          refreshToken,
		RefreshTokenExpiresAt: now.Add(ttl),
		CreatedAt:             now,
		UpdatedAt:             now,
	}
}

// IsValid reports whether an access token derived from this session may
// still be trusted: not revoked and the refresh window has not lapsed.
// This is the belt-and-suspenders check beyond the token's own expiry.
func (s *Session) IsValid() bool {
	return !s.Revoked && time.Now().Before(s.RefreshTokenExpiresAt)
}

// Refresh rotates the session onto newToken, bumps the rotation counter,
// and extends the refresh window (sliding expiry). The mutation is local;
// callers must persist it through Store.Rotate, conditioned on the old
// token, so that two concurrent refreshes cannot both succeed.
func (s *Session) Refresh(newToken string, ttl time.Duration) error {
	if s.Revoked {
		return ErrTokenRevoked
	}
	now := time.Now().UTC()
	if !now.Before(s.RefreshTokenExpiresAt) {
		return ErrTokenExpired
	}
	s.RefreshToken = newToken
	s.RefreshCount++
	s.LastRefreshedAt = now
	s.RefreshTokenExpiresAt = now.Add(ttl)
	s.UpdatedAt = now
	return nil
}

// Revoke marks the session permanently unusable. Idempotent: revoking an
// already-revoked session is a no-op, not an error.
func (s *Session) Revoke() {
	if s.Revoked {
		return
	}
	s.Revoked = true
	s.UpdatedAt = time.Now().UTC()
}

// MatchesRequest reports whether the request fingerprint equals the one
// captured at creation. A mismatch is treated as "not authenticated" by
// callers, never surfaced as a distinct error, to avoid leaking why.
func (s *Session) MatchesRequest(ip, userAgent string) bool {
	return s.IPAddress == ip && s.UserAgent == userAgent
}
