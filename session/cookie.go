package session

import (
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/internal/keys"
	"github.com/gorilla/securecookie"
)

// DefaultCookieName is used when no cookie name is configured.
const DefaultCookieName = "gatehouse.sid"

// CookieCodec authenticates and encrypts the session id carried by the
// cookie. Keys are derived from the session secret, so a cookie minted under
// one secret never decodes under another.
type CookieCodec struct {
	name string
	sc   *securecookie.SecureCookie
}

// NewCookieCodec returns a codec for the named cookie.
func NewCookieCodec(name string, secret []byte) *CookieCodec {
	if name == "" {
		name = DefaultCookieName
	}
	sc := securecookie.New(
		keys.Derive(secret, keys.CookieHash, 32),
		keys.Derive(secret, keys.CookieBlock, 32),
	)
	// Lifetime is enforced by the store.
	sc.MaxAge(0)
	sc.SetSerializer(securecookie.JSONEncoder{})
	return &CookieCodec{name: name, sc: sc}
}

// Name of the cookie.
func (c *CookieCodec) Name() string {
	return c.name
}

// Encode returns the cookie value for a session id.
func (c *CookieCodec) Encode(id string) (string, error) {
	v, err := c.sc.Encode(c.name, id)
	if err != nil {
		return "", errors.Mark(ErrSession, 0).Append("encoding cookie: " + err.Error())
	}
	return v, nil
}

// Decode returns the session id from a cookie value, or ErrInvalidCookie.
func (c *CookieCodec) Decode(value string) (string, error) {
	var id string
	if err := c.sc.Decode(c.name, value, &id); err != nil {
		return "", errors.Mark(ErrInvalidCookie, 0).Append(err.Error())
	}
	if id == "" {
		return "", errors.Mark(ErrInvalidCookie, 0).Append("empty session id")
	}
	return id, nil
}
