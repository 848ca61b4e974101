package session_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlyBadawy/Securial-sub000/session"
)

func TestNewSession(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, "user-1", s.UserID)
	assert.Equal(t, "203.0.113.7", s.IPAddress)
	assert.Equal(t, "agent/1.0", s.UserAgent)
	assert.Equal(t, "token-0", s.RefreshToken)
	assert.Equal(t, uint64(0), s.RefreshCount)
	assert.False(t, s.Revoked)
	assert.True(t, s.IsValid())

	other := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
	assert.NotEqual(t, s.ID, other.ID)
}

func TestRefreshRotates(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
	before := s.RefreshTokenExpiresAt

	time.Sleep(time.Millisecond)
	require.NoError(t, s.Refresh("token-1", time.Hour))

	assert.Equal(t, "token-1", s.RefreshToken)
	assert.Equal(t, uint64(1), s.RefreshCount)
	assert.False(t, s.LastRefreshedAt.IsZero())
	// Sliding expiry: each rotation pushes the window forward.
	assert.True(t, s.RefreshTokenExpiresAt.After(before))
}

func TestRefreshRevokedSessionFails(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)
	s.Revoke()

	err := s.Refresh("token-1", time.Hour)
	assert.ErrorIs(t, err, session.ErrTokenRevoked)
	assert.Equal(t, "token-0", s.RefreshToken)
	assert.Equal(t, uint64(0), s.RefreshCount)
}

func TestRefreshExpiredSessionFails(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", -time.Minute)
	require.False(t, s.IsValid())

	err := s.Refresh("token-1", time.Hour)
	assert.ErrorIs(t, err, session.ErrTokenExpired)
	assert.Equal(t, "token-0", s.RefreshToken)
}

func TestRevokeIsIdempotentAndTerminal(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)

	s.Revoke()
	assert.True(t, s.Revoked)
	assert.False(t, s.IsValid())

	s.Revoke()
	assert.True(t, s.Revoked)

	// Revocation wins over everything that follows.
	assert.ErrorIs(t, s.Refresh("token-1", time.Hour), session.ErrTokenRevoked)
}

func TestMatchesRequest(t *testing.T) {
	s := session.New("user-1", "203.0.113.7", "agent/1.0", "token-0", time.Hour)

	assert.True(t, s.MatchesRequest("203.0.113.7", "agent/1.0"))
	assert.False(t, s.MatchesRequest("203.0.113.8", "agent/1.0"))
	assert.False(t, s.MatchesRequest("203.0.113.7", "agent/2.0"))
	assert.False(t, s.MatchesRequest("", ""))
}
