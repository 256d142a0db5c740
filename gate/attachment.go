package gate

import (
	"context"
	"net/http"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/session"
	"google.golang.org/grpc/codes"
)

// Augmenter enriches a principal before it is stored in the session, for
// example by linking it to a local user record. Augmenters must be safe to
// run twice with the same principal.
type Augmenter interface {
	Augment(ctx context.Context, p auth.Principal) (auth.Principal, error)
}

// AugmenterFunc adapts a function to Augmenter.
type AugmenterFunc func(ctx context.Context, p auth.Principal) (auth.Principal, error)

func (fn AugmenterFunc) Augment(ctx context.Context, p auth.Principal) (auth.Principal, error) {
	return fn(ctx, p)
}

// SessionAttachment writes an authenticated principal into the session.
type SessionAttachment struct {
	sessions   *session.Manager
	augmenters []Augmenter
}

// NewSessionAttachment returns an attachment step that runs augmenters in
// order and then establishes the session.
func NewSessionAttachment(sessions *session.Manager, augmenters ...Augmenter) *SessionAttachment {
	return &SessionAttachment{sessions: sessions, augmenters: augmenters}
}

// Attach augments p, stores it in the request's session and returns a request
// whose context carries the session id and the stored principal.
//
// Calling Attach again with the returned request reuses the session created
// by the first call.
func (a *SessionAttachment) Attach(w http.ResponseWriter, r *http.Request, p auth.Principal) (*http.Request, error) {
	if p.IsZero() {
		return r, errors.Mark(session.ErrUninitialized, 0)
	}
	ctx := r.Context()
	for _, aug := range a.augmenters {
		next, err := aug.Augment(ctx, p)
		if err != nil {
			return r, err
		}
		if next.Key() != p.Key() {
			return r, errors.Codef(codes.Internal, "gate: augmenter changed principal identity")
		}
		p = next
	}

	r, rec, err := a.sessions.Establish(w, r, p)
	if err != nil {
		return r, err
	}
	logging.Track(r.Context(), "auth.subject", rec.Principal.Subject)
	return r.WithContext(auth.WithPrincipal(r.Context(), rec.Principal)), nil
}
