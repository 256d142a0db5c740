package gate

import (
	"net/http"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/session"
)

// RequireSession returns middleware that only lets requests with a live
// session through. The principal and session id are placed on the context,
// see auth.PrincipalFromContext and session.IDFromContext.
//
// Every failure, including a store outage, is answered with the same 401 and
// the next handler is not called.
func RequireSession(sessions *session.Manager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			rec, err := sessions.Load(r)
			if err != nil {
				switch {
				case errors.Is(err, session.ErrNotFound):
					logging.Debugw(ctx, "gate: no session")
				case errors.Is(err, session.ErrInvalidCookie):
					logging.Infow(ctx, "gate: rejected session cookie", "error", err)
				default:
					logging.Warnw(ctx, "gate: session lookup failed", "error", err)
				}
				gatehouse.WriteError(w, r, errors.Mark(auth.ErrUnauthenticated, 0))
				return
			}

			ctx = session.WithID(ctx, rec.ID)
			ctx = auth.WithPrincipal(ctx, rec.Principal)
			logging.Track(ctx, "auth.subject", rec.Principal.Subject)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
