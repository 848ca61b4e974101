// Package token implements the stateless credential primitives of the
// session service: signed access tokens (compact JWS, HMAC family) and
// high-entropy refresh-token / reset-code generation.
//
// Access tokens are derived data over a live session. They are never
// persisted; decoding one only recovers the session ID and fingerprint
// snapshot, which callers must corroborate against the stored session.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/awnumar/memguard"
	"github.com/golang-jwt/jwt/v5"

	"github.com/AlyBadawy/Securial-sub000/session"
)

// Algorithm selects the HMAC variant used to sign access tokens.
type Algorithm string

const (
	AlgHS256 Algorithm = "hs256"
	AlgHS384 Algorithm = "hs384"
	AlgHS512 Algorithm = "hs512"
)

// subjectMarker is the fixed sub claim stamped on every access token. A
// token whose subject differs was not minted by this service and is
// rejected during decode.
const subjectMarker = "securial-session"

var (
	// ErrEncode indicates the signing configuration or the session
	// reference was unusable. Raised at encode time only.
	ErrEncode = errors.New("token: encode failed")

	// ErrDecode covers every verification failure: bad signature, expired,
	// malformed, wrong issuer or subject. Callers must not distinguish
	// these cases; the undifferentiated error is what prevents an external
	// client from probing which check failed.
	ErrDecode = errors.New("token: invalid token")
)

// Config holds the codec's signing parameters.
type Config struct {
	// Secret is the HMAC signing key. It is copied into a memguard
	// enclave by NewCodec and wiped from this struct.
	Secret []byte
	// Algorithm must be one of AlgHS256, AlgHS384, AlgHS512.
	Algorithm Algorithm
	// Issuer is stamped into the iss claim and verified on decode.
	Issuer string
	// AccessTTL bounds the lifetime of every token this codec signs.
	AccessTTL time.Duration
}

// AccessClaims is the payload carried by an access token.
type AccessClaims struct {
	RefreshCount uint64 `json:"refresh_count"`
	IP           string `json:"ip"`
	Agent        string `json:"agent"`
	jwt.RegisteredClaims
}

// SessionID returns the jti claim, which names the backing session.
func (c *AccessClaims) SessionID() string {
	return c.ID
}

// Codec signs and verifies access tokens. It is stateless and safe for
// concurrent use; the signing secret lives in a memguard enclave and is
// only materialized for the duration of a sign or verify call.
type Codec struct {
	secret *memguard.Enclave
	method jwt.SigningMethod
	issuer string
	ttl    time.Duration
}

// NewCodec validates cfg and returns a Codec. Configuration errors are
// fatal here, at construction time, never surfaced per-request.
func NewCodec(cfg Config) (*Codec, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("token: signing secret is required")
	}
	if cfg.AccessTTL <= 0 {
		return nil, errors.New("token: access TTL must be positive")
	}
	if cfg.Issuer == "" {
		return nil, errors.New("token: issuer is required")
	}
	method, err := signingMethod(cfg.Algorithm)
	if err != nil {
		return nil, err
	}
	return &Codec{
		// NewEnclave wipes cfg.Secret as a side effect.
		secret: memguard.NewEnclave(cfg.Secret),
		method: method,
		issuer: cfg.Issuer,
		ttl:    cfg.AccessTTL,
	}, nil
}

// ParseAlgorithm validates a configured algorithm name against the
// supported set.
func ParseAlgorithm(s string) (Algorithm, error) {
	alg := Algorithm(s)
	if _, err := signingMethod(alg); err != nil {
		return "", err
	}
	return alg, nil
}

func signingMethod(alg Algorithm) (jwt.SigningMethod, error) {
	switch alg {
	case AlgHS256:
		return jwt.SigningMethodHS256, nil
	case AlgHS384:
		return jwt.SigningMethodHS384, nil
	case AlgHS512:
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("token: unsupported signing algorithm %q", alg)
	}
}

// Encode builds and signs an access token over a live session snapshot.
func (c *Codec) Encode(s *session.Session) (string, error) {
	if s == nil || s.ID == "" {
		return "", fmt.Errorf("%w: not a valid session reference", ErrEncode)
	}

	now := time.Now()
	claims := AccessClaims{
		RefreshCount: s.RefreshCount,
		IP:           s.IPAddress,
		Agent:        s.UserAgent,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        s.ID,
			Subject:   subjectMarker,
			Issuer:    c.issuer,
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	key, err := c.secret.Open()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	defer key.Destroy()

	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(key.Bytes())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrEncode, err)
	}
	return signed, nil
}

// Decode verifies a token's signature, issuer, subject, and expiry and
// returns its claims. The signature check inside golang-jwt uses
// hmac.Equal, so verification time does not depend on which byte of the
// signature differs. Every failure comes back as ErrDecode; the wrapped
// cause is for internal logging only and must never reach a client.
func (c *Codec) Decode(tokenStr string) (*AccessClaims, error) {
	key, err := c.secret.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}
	defer key.Destroy()

	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithIssuer(c.issuer),
		jwt.WithSubject(subjectMarker),
		jwt.WithExpirationRequired(),
	)
	parsed, err := parser.ParseWithClaims(tokenStr, &AccessClaims{}, func(t *jwt.Token) (any, error) {
		return key.Bytes(), nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	claims, ok := parsed.Claims.(*AccessClaims)
	if !ok || !parsed.Valid || claims.ID == "" {
		return nil, ErrDecode
	}
	return claims, nil
}
