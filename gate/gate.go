// Package gate drives the login flow over HTTP. It redirects to the identity
// provider, verifies the callback, hands the resulting principal to session
// attachment, and guards protected routes with the session cookie.
//
// Provider failures never escape the callback handler, they end in a redirect
// to the failure URL without touching any session. Everything else that goes
// wrong is written through gatehouse.WriteError.
package gate

import (
	"net/http"
	"net/url"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/session"
	"github.com/go-chi/chi/v5"
)

// LogoutPath is the path of the logout handler.
const LogoutPath = "/auth/logout"

// Option configures a Gate.
type Option func(*Gate)

// WithScopes overrides the scopes requested from the provider.
func WithScopes(scopes ...string) Option {
	return func(g *Gate) {
		g.scopes = scopes
	}
}

// WithPrompt sets the prompt policy.
func WithPrompt(p auth.Prompt) Option {
	return func(g *Gate) {
		g.prompt = p
	}
}

// WithSuccessURL sets where the browser lands after logging in.
func WithSuccessURL(u string) Option {
	return func(g *Gate) {
		g.successURL = u
	}
}

// WithFailureURL sets where the browser lands when a login is rejected.
func WithFailureURL(u string) Option {
	return func(g *Gate) {
		g.failureURL = u
	}
}

// WithSecret sets the session secret the OAuth state signing key is derived
// from.
func WithSecret(secret []byte) Option {
	return func(g *Gate) {
		g.secret = secret
	}
}

// WithStateCodec replaces the state codec, for tests.
func WithStateCodec(c *auth.StateCodec) Option {
	return func(g *Gate) {
		g.state = c
	}
}

// WithRequireState rejects callbacks without a valid state parameter.
func WithRequireState(require bool) Option {
	return func(g *Gate) {
		g.requireState = require
	}
}

// WithEventBus publishes login, logout and failure events on bus.
func WithEventBus(bus eventbus.EventBus) Option {
	return func(g *Gate) {
		g.bus = bus
	}
}

// Gate serves the login, callback and logout endpoints for one provider.
type Gate struct {
	provider     auth.Provider
	sessions     *session.Manager
	attachment   *SessionAttachment
	bus          eventbus.EventBus
	state        *auth.StateCodec
	secret       []byte
	scopes       []string
	prompt       auth.Prompt
	successURL   string
	failureURL   string
	requireState bool
}

// New returns a gate configured from auth.* and session.secret, then from
// opts. It fails with gatehouse.ErrConfiguration when either redirect target
// is missing.
func New(provider auth.Provider, attachment *SessionAttachment, opts ...Option) (*Gate, error) {
	prompt, err := auth.ParsePrompt(gatehouse.ConfigString("auth.google.prompt"))
	if err != nil {
		return nil, gatehouse.ConfigurationErrorf("%s", err)
	}
	g := &Gate{
		provider:     provider,
		sessions:     attachment.sessions,
		attachment:   attachment,
		secret:       []byte(gatehouse.ConfigString("session.secret")),
		scopes:       gatehouse.ConfigStrings("auth.google.scopes"),
		prompt:       prompt,
		successURL:   gatehouse.ConfigString("auth.successRedirect"),
		failureURL:   gatehouse.ConfigString("auth.failureRedirect"),
		requireState: gatehouse.ConfigBool("auth.google.requireState"),
	}
	for _, opt := range opts {
		opt(g)
	}
	if len(g.scopes) == 0 {
		g.scopes = []string{"email", "profile"}
	}
	if g.successURL == "" || g.failureURL == "" {
		return nil, gatehouse.ConfigurationErrorf("success and failure redirects are required")
	}
	if g.state == nil {
		g.state = auth.NewStateCodec(g.secret)
	}
	return g, nil
}

// LoginPath is where the flow starts, e.g. /auth/google.
func (g *Gate) LoginPath() string {
	return "/auth/" + g.provider.Name()
}

// CallbackPath is where the provider redirects back to.
func (g *Gate) CallbackPath() string {
	return g.LoginPath() + "/callback"
}

// Mount registers the gate's handlers on r.
func (g *Gate) Mount(r chi.Router) {
	r.Get(g.LoginPath(), g.HandleLogin)
	r.Get(g.CallbackPath(), g.HandleCallback)
	r.Get(LogoutPath, g.HandleLogout)
	r.Post(LogoutPath, g.HandleLogout)
}

// HandleLogin redirects the browser to the provider's consent screen. A
// relative redirect_uri query parameter is carried through the state and
// used as the landing page after login.
func (g *Gate) HandleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := g.state.Encode(r.URL.Query().Get("redirect_uri"))
	if err != nil {
		gatehouse.WriteError(w, r, err)
		return
	}
	logging.Debugw(r.Context(), "gate: redirecting to provider", "auth.provider", g.provider.Name())
	http.Redirect(w, r, g.provider.AuthorizationRedirect(g.scopes, g.prompt, state), http.StatusFound)
}

// HandleCallback completes the flow. Any failure before a principal exists
// ends in a redirect to the failure URL with no session touched.
func (g *Gate) HandleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	if e := q.Get("error"); e != "" {
		g.reject(w, r, auth.Failure{
			Reason: auth.ReasonDenied,
			Err:    errors.Mark(auth.ErrProvider, 0).Append("provider returned error: " + e),
		})
		return
	}

	var destination string
	if s := q.Get("state"); s != "" || g.requireState {
		d, err := g.state.Decode(s)
		if err != nil {
			g.reject(w, r, auth.Failure{Reason: auth.ReasonInvalidState, Err: err})
			return
		}
		destination = d
	}

	code := q.Get("code")
	if code == "" {
		g.reject(w, r, auth.Failure{
			Reason: auth.ReasonMissingCode,
			Err:    errors.Mark(auth.ErrProvider, 0).Append("callback without code"),
		})
		return
	}

	switch out := g.provider.Exchange(ctx, code).(type) {
	case auth.Success:
		g.authenticated(w, r, out.Principal, destination)
	case auth.Failure:
		g.reject(w, r, out)
	default:
		g.reject(w, r, auth.Failure{
			Reason: auth.ReasonExchange,
			Err:    errors.Mark(auth.ErrProvider, 0).Append("provider returned no outcome"),
		})
	}
}

func (g *Gate) authenticated(w http.ResponseWriter, r *http.Request, p auth.Principal, destination string) {
	r, err := g.attachment.Attach(w, r, p)
	if err != nil {
		gatehouse.WriteError(w, r, err)
		return
	}
	ctx := r.Context()
	id, _ := session.IDFromContext(ctx)
	attached, _ := auth.PrincipalFromContext(ctx)

	logging.Infow(ctx, "gate: login succeeded",
		"auth.provider", p.Provider, "auth.subject", p.Subject, "auth.userId", attached.UserID)
	g.publish(auth.LoginEvent, auth.AuthEvent{Principal: attached, SessionID: id})

	http.Redirect(w, r, g.landingURL(destination), http.StatusFound)
}

func (g *Gate) reject(w http.ResponseWriter, r *http.Request, f auth.Failure) {
	logging.Warnw(r.Context(), "gate: login rejected",
		"auth.provider", g.provider.Name(), "auth.reason", string(f.Reason), "error", f.Err)
	g.publish(auth.FailureEvent, auth.FailureEventData{
		Provider:   g.provider.Name(),
		Reason:     f.Reason,
		Err:        f.Err,
		RemoteAddr: r.RemoteAddr,
	})
	http.Redirect(w, r, g.failureURL, http.StatusFound)
}

// HandleLogout destroys the current session and clears the cookie. GET
// requests are redirected to the failure URL, which is usually the login
// page, other methods get a 204.
func (g *Gate) HandleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	p, err := auth.PrincipalFromContext(ctx)
	if err != nil {
		if rec, lerr := g.sessions.Load(r); lerr == nil {
			p = rec.Principal
		}
	}

	id, err := g.sessions.Destroy(w, r)
	if err != nil {
		logging.Warnw(ctx, "gate: failed to destroy session", "error", err)
	}
	if id != "" {
		logging.Infow(ctx, "gate: logged out")
		g.publish(auth.LogoutEvent, auth.AuthEvent{Principal: p, SessionID: id})
	}

	if r.Method == http.MethodGet {
		http.Redirect(w, r, g.failureURL, http.StatusFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// landingURL resolves a relative destination against the success URL.
func (g *Gate) landingURL(destination string) string {
	if destination == "" {
		return g.successURL
	}
	base, err := url.Parse(g.successURL)
	if err != nil {
		return g.successURL
	}
	ref, err := url.Parse(destination)
	if err != nil {
		return g.successURL
	}
	return base.ResolveReference(ref).String()
}

func (g *Gate) publish(topic string, data any) {
	if g.bus != nil {
		g.bus.Publish(topic, data)
	}
}
