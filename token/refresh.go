package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"github.com/awnumar/memguard"

	"github.com/AlyBadawy/Securial-sub000/internal/util"
)

// refreshEntropyBytes is the random component of a refresh token. 256 bits
// puts accidental collision beyond the birthday bound for any plausible
// session count, so uniqueness is assumed rather than enforced here.
const refreshEntropyBytes = 32

const resetCodeGroupLen = 6

// Generator produces refresh tokens and password-reset codes. It is
// stateless; the HMAC tag key lives in a memguard enclave.
type Generator struct {
	secret *memguard.Enclave
}

// NewGenerator returns a Generator tagging refresh tokens with the given
// secret. The secret is copied into an enclave and wiped from the slice.
func NewGenerator(secret []byte) (*Generator, error) {
	if len(secret) == 0 {
		return nil, errors.New("token: generator secret is required")
	}
	return &Generator{secret: memguard.NewEnclave(secret)}, nil
}

// RefreshToken returns a new opaque refresh token:
// hex(HMAC-SHA256(secret, random)) || hex(random), 128 hex characters.
// The HMAC half lets the service cheaply discard tokens it never minted
// before touching the store.
func (g *Generator) RefreshToken() (string, error) {
	random, err := util.RandomBytes(refreshEntropyBytes)
	if err != nil {
		return "", fmt.Errorf("generating refresh token: %w", err)
	}

	tag, err := g.tag(random)
	if err != nil {
		return "", err
	}
	return hex.EncodeToString(tag) + hex.EncodeToString(random), nil
}

// VerifyRefreshToken reports whether a refresh token carries a valid HMAC
// tag for its random half. A false result means the token could not have
// been produced by this generator; callers still look the token up in the
// store afterwards, this is only a cheap pre-filter.
func (g *Generator) VerifyRefreshToken(tokenStr string) bool {
	if len(tokenStr) != 4*refreshEntropyBytes {
		return false
	}
	tag, err := hex.DecodeString(tokenStr[:2*refreshEntropyBytes])
	if err != nil {
		return false
	}
	random, err := hex.DecodeString(tokenStr[2*refreshEntropyBytes:])
	if err != nil {
		return false
	}
	want, err := g.tag(random)
	if err != nil {
		return false
	}
	return hmac.Equal(tag, want)
}

func (g *Generator) tag(random []byte) ([]byte, error) {
	key, err := g.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("opening generator secret: %w", err)
	}
	defer key.Destroy()

	mac := hmac.New(sha256.New, key.Bytes())
	mac.Write(random)
	return mac.Sum(nil), nil
}

// ResetCode returns a short, human-copyable code of the form
// XXXXXX-XXXXXX drawn from an unambiguous alphabet. Its entropy budget is
// deliberately lower than a refresh token's: the code is single-use,
// short-lived, and delivered out of band.
func ResetCode() (string, error) {
	left, err := util.RandomChars(resetCodeGroupLen)
	if err != nil {
		return "", err
	}
	right, err := util.RandomChars(resetCodeGroupLen)
	if err != nil {
		return "", err
	}
	return left + "-" + right, nil
}
