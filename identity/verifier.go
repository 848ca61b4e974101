package identity

import (
	"context"
	"errors"

	"github.com/AlyBadawy/Securial-sub000/internal/util"
)

// Verifier checks submitted credentials against the user store. It is
// the "verify credential" capability the session core treats as opaque.
type Verifier struct {
	users Store
}

// NewVerifier creates a Verifier over the given user store.
func NewVerifier(users Store) *Verifier {
	return &Verifier{users: users}
}

// Verify returns the identity owning the email address if the candidate
// password matches. Every failure is ErrInvalidCredentials.
func (v *Verifier) Verify(ctx context.Context, email, password string) (*User, error) {
	user, err := v.users.FindByEmail(ctx, util.NormalizeIdentifier(email))
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	if !user.Password.Verify(password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}
