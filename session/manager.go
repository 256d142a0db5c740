package session

import (
	"context"
	"net/http"
	"time"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
)

// ManagerOption configures cookie attributes.
type ManagerOption func(*Manager)

// WithCrossSite marks the cookie Secure and SameSite=None, for deployments
// where the client application and this service are on different origins.
// When false the cookie is SameSite=Lax and Secure follows WithSecure.
func WithCrossSite(crossSite bool) ManagerOption {
	return func(m *Manager) {
		m.crossSite = crossSite
	}
}

// WithSecure sets the Secure attribute for same-site cookies. Usually true
// when the service is served over https.
func WithSecure(secure bool) ManagerOption {
	return func(m *Manager) {
		m.secure = secure
	}
}

// WithCookieMaxAge gives the cookie a Max-Age. Zero, the default, issues a
// browser session cookie.
func WithCookieMaxAge(d time.Duration) ManagerOption {
	return func(m *Manager) {
		m.maxAge = d
	}
}

// Manager ties a Store to the cookie that references its records.
type Manager struct {
	store     Store
	codec     *CookieCodec
	crossSite bool
	secure    bool
	maxAge    time.Duration
}

// NewManager returns a manager. Cookies are cross-site unless configured
// otherwise.
func NewManager(store Store, codec *CookieCodec, opts ...ManagerOption) *Manager {
	m := &Manager{
		store:     store,
		codec:     codec,
		crossSite: true,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the underlying store.
func (m *Manager) Store() Store {
	return m.store
}

// Load resolves the session referenced by the request cookie and slides its
// inactivity window. Missing cookies and absent or expired records return
// ErrNotFound, tampered cookies ErrInvalidCookie, and store failures
// ErrSession.
func (m *Manager) Load(r *http.Request) (Record, error) {
	id, err := m.cookieID(r)
	if err != nil {
		return Record{}, err
	}
	return m.store.Touch(r.Context(), id)
}

// Establish stores p in a session for this request and returns a request
// whose context carries the session id.
//
// The first call in a request destroys any session the incoming cookie
// referenced and mints a new one, so a session id is never reused across a
// login. Later calls with the returned request replace the principal of the
// session already minted, without a second record or cookie.
func (m *Manager) Establish(w http.ResponseWriter, r *http.Request, p auth.Principal) (*http.Request, Record, error) {
	ctx := r.Context()

	if id, ok := establishedID(ctx); ok {
		rec, err := m.store.Replace(ctx, id, p)
		if err == nil {
			return r, rec, nil
		}
		if !errors.Is(err, ErrNotFound) {
			return r, Record{}, err
		}
		// Swept between calls, fall through and mint a fresh one.
	}

	if old, err := m.cookieID(r); err == nil {
		if err := m.store.Destroy(ctx, old); err != nil {
			logging.Warnw(ctx, "session: failed to destroy previous session", "error", err)
		}
	}

	rec, err := m.store.Create(ctx, p)
	if err != nil {
		return r, Record{}, err
	}
	value, err := m.codec.Encode(rec.ID)
	if err != nil {
		_ = m.store.Destroy(ctx, rec.ID)
		return r, Record{}, err
	}
	http.SetCookie(w, m.cookie(value, m.maxAge))

	ctx = context.WithValue(WithID(ctx, rec.ID), establishedKey{}, rec.ID)
	return r.WithContext(ctx), rec, nil
}

// Destroy removes the session referenced by the request, if any, and expires
// the cookie. It returns the id that was destroyed.
func (m *Manager) Destroy(w http.ResponseWriter, r *http.Request) (string, error) {
	id, ok := IDFromContext(r.Context())
	if !ok {
		id, _ = m.cookieID(r)
	}
	http.SetCookie(w, m.cookie("", -1))
	if id == "" {
		return "", nil
	}
	if err := m.store.Destroy(r.Context(), id); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Manager) cookieID(r *http.Request) (string, error) {
	c, err := r.Cookie(m.codec.Name())
	if err != nil || c.Value == "" {
		return "", errors.Mark(ErrNotFound, 1)
	}
	return m.codec.Decode(c.Value)
}

func (m *Manager) cookie(value string, maxAge time.Duration) *http.Cookie {
	c := &http.Cookie{
		Name:     m.codec.Name(),
		Value:    value,
		Path:     "/",
		HttpOnly: true,
	}
	if m.crossSite {
		c.Secure = true
		c.SameSite = http.SameSiteNoneMode
	} else {
		c.Secure = m.secure
		c.SameSite = http.SameSiteLaxMode
	}
	switch {
	case maxAge < 0:
		c.MaxAge = -1
		c.Expires = time.Unix(0, 0)
	case maxAge > 0:
		c.MaxAge = int(maxAge.Seconds())
	}
	return c
}

type establishedKey struct{}

func establishedID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(establishedKey{}).(string)
	return id, ok && id != ""
}
