package keys

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDerive(t *testing.T) {
	secret := []byte("0123456789abcdef0123456789abcdef")

	a := Derive(secret, CookieHash, 32)
	assert.Len(t, a, 32)
	assert.Equal(t, a, Derive(secret, CookieHash, 32), "deterministic")
	assert.NotEqual(t, a, Derive(secret, CookieBlock, 32), "purposes are separated")
	assert.NotEqual(t, a, Derive([]byte("another secret of sufficient size"), CookieHash, 32))
	assert.Len(t, Derive(secret, OAuthState, 64), 64)
}
