// Package session keeps server side session records and the signed cookie
// that references them.
//
// A Store maps opaque, random identifiers to the Principal that logged in.
// Records are written only once a principal exists, there is no such thing as
// an anonymous session. Records expire after a period of inactivity, and
// optionally after an absolute lifetime, and expired records are reported
// exactly like absent ones.
package session

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"time"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"google.golang.org/grpc/codes"
)

const (
	// DefaultIdleTimeout is used when no inactivity window is configured.
	DefaultIdleTimeout = 24 * time.Hour

	idBytes = 32
)

var (
	// ErrNotFound is returned for absent and expired sessions alike.
	ErrNotFound = errors.NewC("session: not found", codes.NotFound)

	// ErrSession is returned when the backing store fails or holds a record
	// that can not be decoded.
	ErrSession = errors.NewC("session: store unavailable", codes.Unavailable)

	// ErrUninitialized is returned when asked to store a session without an
	// authenticated principal.
	ErrUninitialized = errors.NewC("session: refusing to store uninitialized session", codes.InvalidArgument)

	// ErrInvalidCookie is returned when a cookie fails authentication or
	// decryption.
	ErrInvalidCookie = errors.NewC("session: invalid cookie", codes.Unauthenticated)
)

// Record is a server side session.
type Record struct {
	ID             string
	Principal      auth.Principal
	CreatedAt      time.Time
	LastAccessedAt time.Time

	// ExpiresAt is when the record stops resolving if it is not touched again.
	// It is the end of the inactivity window, capped by the maximum age.
	ExpiresAt time.Time
}

// Store holds session records. Implementations are safe for concurrent use.
type Store interface {
	// Create writes a new record for p and returns it. The principal must be
	// initialized, otherwise ErrUninitialized.
	Create(ctx context.Context, p auth.Principal) (Record, error)

	// Get returns the record with id, or ErrNotFound if it is absent or has
	// expired. Get does not extend the record.
	Get(ctx context.Context, id string) (Record, error)

	// Touch resolves the record like Get and moves its inactivity window
	// forward.
	Touch(ctx context.Context, id string) (Record, error)

	// Replace swaps the principal of a live record, keeping its id.
	Replace(ctx context.Context, id string, p auth.Principal) (Record, error)

	// Destroy removes the record. Destroying an unknown id is not an error.
	Destroy(ctx context.Context, id string) error

	// DeleteExpired reclaims expired records and returns how many were
	// removed.
	DeleteExpired(ctx context.Context) (int, error)
}

// Option configures the expiry policy of a store.
type Option func(*policy)

// WithIdleTimeout sets the inactivity window.
func WithIdleTimeout(d time.Duration) Option {
	return func(p *policy) {
		if d > 0 {
			p.idleTimeout = d
		}
	}
}

// WithMaxAge caps the lifetime of a record regardless of activity. Zero, the
// default, means no cap.
func WithMaxAge(d time.Duration) Option {
	return func(p *policy) {
		p.maxAge = d
	}
}

// WithClock replaces time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(p *policy) {
		p.now = now
	}
}

type policy struct {
	idleTimeout time.Duration
	maxAge      time.Duration
	now         func() time.Time
}

func newPolicy(opts []Option) policy {
	p := policy{
		idleTimeout: DefaultIdleTimeout,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

func (p policy) expiry(createdAt, lastSeen time.Time) time.Time {
	exp := lastSeen.Add(p.idleTimeout)
	if p.maxAge > 0 {
		if abs := createdAt.Add(p.maxAge); abs.Before(exp) {
			exp = abs
		}
	}
	return exp
}

func (p policy) expired(r Record, now time.Time) bool {
	return !now.Before(r.ExpiresAt)
}

func (p policy) newRecord(principal auth.Principal) (Record, error) {
	if principal.IsZero() {
		return Record{}, errors.Mark(ErrUninitialized, 1)
	}
	id, err := NewID()
	if err != nil {
		return Record{}, err
	}
	now := p.now().UTC()
	return Record{
		ID:             id,
		Principal:      principal,
		CreatedAt:      now,
		LastAccessedAt: now,
		ExpiresAt:      p.expiry(now, now),
	}, nil
}

// NewID returns 32 bytes from crypto/rand, base64url encoded.
func NewID() (string, error) {
	b := make([]byte, idBytes)
	if _, err := rand.Read(b); err != nil {
		return "", errors.Mark(ErrSession, 0).Append("generating id: " + err.Error())
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

type idKey struct{}

// WithID returns a context carrying the id of the session serving the
// request.
func WithID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, idKey{}, id)
}

// IDFromContext returns the session id placed on the context by the access
// guard or by session attachment.
func IDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(idKey{}).(string)
	return id, ok && id != ""
}
