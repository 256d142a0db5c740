package auth

import (
	"crypto/rand"
	"encoding/base64"
	"net/url"
	"strings"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/internal/keys"
	"github.com/golang-jwt/jwt/v5"
)

const (
	// How long a user has to complete the provider's login screen.
	StateExpiration = 5 * time.Minute

	stateAudience = "gatehouse/oauth-state"
	stateLeeway   = 5 * time.Second
)

// StateCodec signs and verifies the OAuth state parameter. The state is a
// short lived HS256 JWT that carries an optional post-login destination.
type StateCodec struct {
	key []byte
	ttl time.Duration
	now func() time.Time
}

type stateClaims struct {
	jwt.RegisteredClaims
	RedirectURI string `json:"redirect_uri,omitempty"`
}

// StateOption configures a StateCodec.
type StateOption func(*StateCodec)

// WithStateClock overrides the time source, for tests.
func WithStateClock(now func() time.Time) StateOption {
	return func(c *StateCodec) { c.now = now }
}

// WithStateExpiration overrides StateExpiration.
func WithStateExpiration(d time.Duration) StateOption {
	return func(c *StateCodec) { c.ttl = d }
}

// NewStateCodec returns a codec keyed from the session secret.
func NewStateCodec(secret []byte, opts ...StateOption) *StateCodec {
	c := &StateCodec{
		key: keys.Derive(secret, keys.OAuthState, 32),
		ttl: StateExpiration,
		now: time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Encode returns a signed state. redirectURI is dropped unless it is a safe
// relative path.
func (c *StateCodec) Encode(redirectURI string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", errors.Wrap(err, 0)
	}
	now := c.now()
	claims := stateClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        base64.RawURLEncoding.EncodeToString(nonce),
			Audience:  jwt.ClaimStrings{stateAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
	}
	if p, ok := SafeRedirectPath(redirectURI); ok {
		claims.RedirectURI = p
	}
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.key)
	if err != nil {
		return "", errors.Wrap(err, 0)
	}
	return s, nil
}

// Decode verifies a state and returns the destination it carries, which may
// be empty. Any failure is reported as ErrInvalidState.
func (c *StateCodec) Decode(state string) (string, error) {
	if state == "" {
		return "", errors.Mark(ErrInvalidState, 0).Append("missing")
	}
	claims := &stateClaims{}
	_, err := jwt.ParseWithClaims(state, claims,
		func(*jwt.Token) (any, error) { return c.key, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(stateAudience),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(stateLeeway),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return "", errors.Mark(ErrInvalidState, 0).Append(err.Error())
	}
	// Re-check, the claim could only be unsafe if the key leaked.
	p, _ := SafeRedirectPath(claims.RedirectURI)
	return p, nil
}

// SafeRedirectPath accepts only same-origin relative paths such as
// "/settings?tab=1". Anything with a scheme, a host, or a leading "//" or
// backslash is rejected.
func SafeRedirectPath(p string) (string, bool) {
	if p == "" || !strings.HasPrefix(p, "/") {
		return "", false
	}
	if strings.HasPrefix(p, "//") || strings.HasPrefix(p, "/\\") || strings.ContainsAny(p, "\r\n") {
		return "", false
	}
	u, err := url.Parse(p)
	if err != nil || u.Scheme != "" || u.Host != "" || u.User != nil {
		return "", false
	}
	return u.RequestURI(), true
}
