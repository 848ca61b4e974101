package token_test

import (
	"encoding/hex"
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlyBadawy/Securial-sub000/token"
)

func newTestGenerator(t *testing.T) *token.Generator {
	t.Helper()
	gen, err := token.NewGenerator([]byte("refresh-hmac-secret"))
	require.NoError(t, err)
	return gen
}

func TestRefreshTokenShape(t *testing.T) {
	gen := newTestGenerator(t)

	tokenStr, err := gen.RefreshToken()
	require.NoError(t, err)

	// 32-byte tag plus 32 bytes of entropy, hex encoded.
	assert.Len(t, tokenStr, 128)
	_, err = hex.DecodeString(tokenStr)
	assert.NoError(t, err)
}

func TestRefreshTokensAreUnique(t *testing.T) {
	gen := newTestGenerator(t)

	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		tokenStr, err := gen.RefreshToken()
		require.NoError(t, err)
		require.False(t, seen[tokenStr])
		seen[tokenStr] = true
	}
}

func TestVerifyRefreshToken(t *testing.T) {
	gen := newTestGenerator(t)

	tokenStr, err := gen.RefreshToken()
	require.NoError(t, err)
	assert.True(t, gen.VerifyRefreshToken(tokenStr))

	// A flipped character breaks the tag.
	mutated := []byte(tokenStr)
	if mutated[0] == 'a' {
		mutated[0] = 'b'
	} else {
		mutated[0] = 'a'
	}
	assert.False(t, gen.VerifyRefreshToken(string(mutated)))

	assert.False(t, gen.VerifyRefreshToken(""))
	assert.False(t, gen.VerifyRefreshToken("deadbeef"))
	assert.False(t, gen.VerifyRefreshToken(tokenStr+"00"))
}

func TestVerifyRefreshTokenRejectsForeignSecret(t *testing.T) {
	gen := newTestGenerator(t)
	other, err := token.NewGenerator([]byte("a-different-secret"))
	require.NoError(t, err)

	tokenStr, err := other.RefreshToken()
	require.NoError(t, err)
	assert.False(t, gen.VerifyRefreshToken(tokenStr))
}

func TestResetCodeShape(t *testing.T) {
	shape := regexp.MustCompile(`^[23456789ABCDEFGHJKLMNPQRSTVWXYZ]{6}-[23456789ABCDEFGHJKLMNPQRSTVWXYZ]{6}$`)

	for i := 0; i < 20; i++ {
		code, err := token.ResetCode()
		require.NoError(t, err)
		assert.Regexp(t, shape, code)
	}
}
