package identity

import (
	"crypto/subtle"
	"fmt"

	"golang.org/x/crypto/argon2"

	"github.com/AlyBadawy/Securial-sub000/internal/util"
)

const passwordSaltLen = 16

// Argon2idParams pins the KDF cost so stored hashes remain verifiable
// when defaults change.
type Argon2idParams struct {
	Time        uint32 `json:"time"`
	MemoryKiB   uint32 `json:"memory"`
	Parallelism uint8  `json:"parallelism"`
	KeyLen      uint32 `json:"key_len"`
}

// DefaultArgon2idParams follows the RFC 9106 low-memory profile.
func DefaultArgon2idParams() Argon2idParams {
	return Argon2idParams{
		Time:        3,
		MemoryKiB:   64 * 1024,
		Parallelism: 4,
		KeyLen:      32,
	}
}

// PasswordHash is a salted argon2id digest with its derivation params.
type PasswordHash struct {
	Salt   []byte         `json:"salt"`
	Key    []byte         `json:"key"`
	Params Argon2idParams `json:"params"`
}

// HashPassword derives a PasswordHash from a plaintext password.
func HashPassword(password string) (PasswordHash, error) {
	salt, err := util.RandomBytes(passwordSaltLen)
	if err != nil {
		return PasswordHash{}, fmt.Errorf("generating password salt: %w", err)
	}
	params := DefaultArgon2idParams()
	key := argon2.IDKey([]byte(password), salt, params.Time, params.MemoryKiB, params.Parallelism, params.KeyLen)
	return PasswordHash{Salt: salt, Key: key, Params: params}, nil
}

// Verify re-derives the key with the stored salt and params and compares
// in constant time.
func (h PasswordHash) Verify(password string) bool {
	if len(h.Salt) == 0 || len(h.Key) == 0 {
		return false
	}
	key := argon2.IDKey([]byte(password), h.Salt, h.Params.Time, h.Params.MemoryKiB, h.Params.Parallelism, h.Params.KeyLen)
	return subtle.ConstantTimeCompare(key, h.Key) == 1
}
