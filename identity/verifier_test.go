package identity_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AlyBadawy/Securial-sub000/identity"
)

func seedUser(t *testing.T, store *identity.MemoryStore, email, password string) *identity.User {
	t.Helper()
	hash, err := identity.HashPassword(password)
	require.NoError(t, err)
	u := &identity.User{EmailAddress: email, Password: hash}
	require.NoError(t, store.Create(context.Background(), u))
	return u
}

func TestVerifierAcceptsValidCredentials(t *testing.T) {
	store := identity.NewMemoryStore()
	seeded := seedUser(t, store, "alice@example.com", "swordfish123")

	verifier := identity.NewVerifier(store)
	u, err := verifier.Verify(context.Background(), "alice@example.com", "swordfish123")
	require.NoError(t, err)
	assert.Equal(t, seeded.ID, u.ID)
}

func TestVerifierNormalizesEmail(t *testing.T) {
	store := identity.NewMemoryStore()
	seedUser(t, store, "Alice@Example.COM", "swordfish123")

	verifier := identity.NewVerifier(store)
	_, err := verifier.Verify(context.Background(), "  alice@example.com ", "swordfish123")
	assert.NoError(t, err)
}

func TestVerifierCollapsesFailures(t *testing.T) {
	store := identity.NewMemoryStore()
	seedUser(t, store, "alice@example.com", "swordfish123")
	verifier := identity.NewVerifier(store)

	// Unknown account and wrong password are indistinguishable.
	_, err := verifier.Verify(context.Background(), "bob@example.com", "swordfish123")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)

	_, err = verifier.Verify(context.Background(), "alice@example.com", "wrong")
	assert.ErrorIs(t, err, identity.ErrInvalidCredentials)
}
