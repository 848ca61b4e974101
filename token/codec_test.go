package token_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlyBadawy/Securial-sub000/session"
	"github.com/AlyBadawy/Securial-sub000/token"
)

func newTestCodec(t *testing.T, alg token.Algorithm, ttl time.Duration) *token.Codec {
	t.Helper()
	codec, err := token.NewCodec(token.Config{
		Secret:    []byte("test-signing-secret-test-signing-secret"),
		Algorithm: alg,
		Issuer:    "securial-test",
		AccessTTL: ttl,
	})
	require.NoError(t, err)
	return codec
}

func newTestSession(t *testing.T) *session.Session {
	t.Helper()
	return session.New("user-1", "203.0.113.7", "test-agent/1.0", "rt", time.Hour)
}

func TestCodecRoundTrip(t *testing.T) {
	for _, alg := range []token.Algorithm{token.AlgHS256, token.AlgHS384, token.AlgHS512} {
		t.Run(string(alg), func(t *testing.T) {
			codec := newTestCodec(t, alg, 15*time.Minute)
			sess := newTestSession(t)
			sess.RefreshCount = 3

			tokenStr, err := codec.Encode(sess)
			require.NoError(t, err)
			require.NotEmpty(t, tokenStr)

			claims, err := codec.Decode(tokenStr)
			require.NoError(t, err)
			assert.Equal(t, sess.ID, claims.SessionID())
			assert.Equal(t, sess.IPAddress, claims.IP)
			assert.Equal(t, sess.UserAgent, claims.Agent)
			assert.Equal(t, uint64(3), claims.RefreshCount)
		})
	}
}

func TestCodecRejectsTamperedSignature(t *testing.T) {
	codec := newTestCodec(t, token.AlgHS256, 15*time.Minute)
	tokenStr, err := codec.Encode(newTestSession(t))
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)

	// Flip every byte of the signature segment, one at a time. Every
	// variant must fail with the same undifferentiated error.
	sig := []byte(parts[2])
	for i := range sig {
		mutated := make([]byte, len(sig))
		copy(mutated, sig)
		if mutated[i] == 'A' {
			mutated[i] = 'B'
		} else {
			mutated[i] = 'A'
		}
		forged := parts[0] + "." + parts[1] + "." + string(mutated)
		if forged == tokenStr {
			continue
		}
		_, err := codec.Decode(forged)
		require.ErrorIs(t, err, token.ErrDecode, "byte %d", i)
	}
}

func TestCodecRejectsTamperedPayload(t *testing.T) {
	codec := newTestCodec(t, token.AlgHS256, 15*time.Minute)
	tokenStr, err := codec.Encode(newTestSession(t))
	require.NoError(t, err)

	parts := strings.Split(tokenStr, ".")
	require.Len(t, parts, 3)

	// A modified payload no longer matches the signature.
	payload := []byte(parts[1])
	payload[0] ^= 0x01
	forged := parts[0] + "." + string(payload) + "." + parts[2]

	_, err = codec.Decode(forged)
	assert.ErrorIs(t, err, token.ErrDecode)
}

func TestCodecExpiryBoundary(t *testing.T) {
	// Claims timestamps have one-second precision, so the TTL must
	// stay above a second for the boundary to be deterministic.
	codec := newTestCodec(t, token.AlgHS256, 1500*time.Millisecond)
	tokenStr, err := codec.Encode(newTestSession(t))
	require.NoError(t, err)

	// Inside the TTL the token decodes.
	_, err = codec.Decode(tokenStr)
	require.NoError(t, err)

	// Past the TTL it fails like any other bad token.
	time.Sleep(2 * time.Second)
	_, err = codec.Decode(tokenStr)
	assert.ErrorIs(t, err, token.ErrDecode)
}

func TestCodecRejectsForeignIssuer(t *testing.T) {
	codec := newTestCodec(t, token.AlgHS256, 15*time.Minute)

	other, err := token.NewCodec(token.Config{
		Secret:    []byte("test-signing-secret-test-signing-secret"),
		Algorithm: token.AlgHS256,
		Issuer:    "someone-else",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	tokenStr, err := other.Encode(newTestSession(t))
	require.NoError(t, err)

	_, err = codec.Decode(tokenStr)
	assert.ErrorIs(t, err, token.ErrDecode)
}

func TestCodecRejectsWrongSecret(t *testing.T) {
	codec := newTestCodec(t, token.AlgHS256, 15*time.Minute)

	other, err := token.NewCodec(token.Config{
		Secret:    []byte("a-completely-different-signing-secret!!"),
		Algorithm: token.AlgHS256,
		Issuer:    "securial-test",
		AccessTTL: 15 * time.Minute,
	})
	require.NoError(t, err)

	tokenStr, err := other.Encode(newTestSession(t))
	require.NoError(t, err)

	_, err = codec.Decode(tokenStr)
	assert.ErrorIs(t, err, token.ErrDecode)
}

func TestCodecRejectsGarbage(t *testing.T) {
	codec := newTestCodec(t, token.AlgHS256, 15*time.Minute)

	for _, input := range []string{"", "not-a-token", "a.b", "a.b.c.d", "a.b.c"} {
		_, err := codec.Decode(input)
		assert.ErrorIs(t, err, token.ErrDecode, "input %q", input)
	}
}

func TestNewCodecValidation(t *testing.T) {
	base := token.Config{
		Secret:    []byte("secret"),
		Algorithm: token.AlgHS256,
		Issuer:    "securial-test",
		AccessTTL: time.Minute,
	}

	cfg := base
	cfg.Secret = nil
	_, err := token.NewCodec(cfg)
	assert.Error(t, err)

	cfg = base
	cfg.Secret = []byte("secret")
	cfg.Algorithm = "rs256"
	_, err = token.NewCodec(cfg)
	assert.Error(t, err)

	cfg = base
	cfg.Secret = []byte("secret")
	cfg.AccessTTL = 0
	_, err = token.NewCodec(cfg)
	assert.Error(t, err)

	cfg = base
	cfg.Secret = []byte("secret")
	cfg.Issuer = ""
	_, err = token.NewCodec(cfg)
	assert.Error(t, err)
}

func TestParseAlgorithm(t *testing.T) {
	for _, name := range []string{"hs256", "hs384", "hs512"} {
		alg, err := token.ParseAlgorithm(name)
		require.NoError(t, err)
		assert.Equal(t, token.Algorithm(name), alg)
	}

	_, err := token.ParseAlgorithm("none")
	assert.Error(t, err)
}
