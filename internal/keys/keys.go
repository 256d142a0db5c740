// Package keys derives purpose specific keys from the configured session
// secret, so that the cookie codec and the OAuth state signer never share key
// material.
package keys

import (
	"crypto/sha256"
	"io"

	"golang.org/x/crypto/hkdf"
)

// Purposes used as HKDF info.
const (
	CookieHash  = "gatehouse/cookie/hash"
	CookieBlock = "gatehouse/cookie/block"
	OAuthState  = "gatehouse/oauth/state"
)

// Derive returns n bytes of key material for purpose. The same secret and
// purpose always produce the same key.
func Derive(secret []byte, purpose string, n int) []byte {
	out := make([]byte, n)
	r := hkdf.New(sha256.New, secret, nil, []byte(purpose))
	if _, err := io.ReadFull(r, out); err != nil {
		// Only possible when n exceeds 255 * sha256.Size.
		panic("keys: " + err.Error())
	}
	return out
}
