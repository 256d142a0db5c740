package users

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/dpup/gatehouse"
	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/session"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc/codes"
)

const maxBodyBytes = 1 << 16

var errBadBody = errors.NewC("users: malformed request body", codes.InvalidArgument)

// SessionInfo describes the caller's session. The id itself is never
// returned.
type SessionInfo struct {
	Provider       string    `json:"provider"`
	AuthTime       time.Time `json:"authTime"`
	CreatedAt      time.Time `json:"createdAt"`
	LastAccessedAt time.Time `json:"lastAccessedAt"`
	ExpiresAt      time.Time `json:"expiresAt"`
}

// UpdateRequest is the body accepted by PATCH /user/me.
type UpdateRequest struct {
	Name *string `json:"name"`
}

// Handler serves /user routes. Every route expects to run behind the access
// guard.
type Handler struct {
	users    *Service
	sessions *session.Manager
	bus      eventbus.EventBus
}

// NewHandler returns the user routes. bus may be nil.
func NewHandler(users *Service, sessions *session.Manager, bus eventbus.EventBus) *Handler {
	return &Handler{users: users, sessions: sessions, bus: bus}
}

// Routes returns a router to be mounted at /user.
func (h *Handler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Method(http.MethodGet, "/me", gatehouse.JSONHandler(h.getMe))
	r.Method(http.MethodPatch, "/me", gatehouse.JSONHandler(h.patchMe))
	r.Method(http.MethodGet, "/session", gatehouse.JSONHandler(h.getSession))
	r.Delete("/session", h.deleteSession)
	return r
}

func (h *Handler) currentUser(r *http.Request) (auth.Principal, error) {
	p, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		return p, err
	}
	if p.UserID == "" {
		return p, errors.NewC("users: session is not linked to a user", codes.NotFound).
			WithPublicMessage("user not found")
	}
	return p, nil
}

func (h *Handler) getMe(r *http.Request) (any, error) {
	p, err := h.currentUser(r)
	if err != nil {
		return nil, err
	}
	return h.users.Get(r.Context(), p.UserID)
}

func (h *Handler) patchMe(r *http.Request) (any, error) {
	p, err := h.currentUser(r)
	if err != nil {
		return nil, err
	}
	var req UpdateRequest
	d := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes))
	d.DisallowUnknownFields()
	if err := d.Decode(&req); err != nil {
		return nil, errors.Mark(errBadBody, 0).Append(err.Error()).WithPublicMessage("malformed request body")
	}
	if req.Name == nil {
		return h.users.Get(r.Context(), p.UserID)
	}
	return h.users.Rename(r.Context(), p.UserID, *req.Name)
}

func (h *Handler) getSession(r *http.Request) (any, error) {
	ctx := r.Context()
	p, err := auth.PrincipalFromContext(ctx)
	if err != nil {
		return nil, err
	}
	id, ok := session.IDFromContext(ctx)
	if !ok {
		return nil, errors.Mark(auth.ErrUnauthenticated, 0)
	}
	rec, err := h.sessions.Store().Get(ctx, id)
	if err != nil {
		return nil, errors.Mark(auth.ErrUnauthenticated, 0)
	}
	return SessionInfo{
		Provider:       p.Provider,
		AuthTime:       p.AuthTime,
		CreatedAt:      rec.CreatedAt,
		LastAccessedAt: rec.LastAccessedAt,
		ExpiresAt:      rec.ExpiresAt,
	}, nil
}

// deleteSession logs out. It needs the response writer to clear the cookie,
// so it is a plain handler.
func (h *Handler) deleteSession(w http.ResponseWriter, r *http.Request) {
	p, _ := auth.PrincipalFromContext(r.Context())
	id, err := h.sessions.Destroy(w, r)
	if err != nil {
		gatehouse.WriteError(w, r, err)
		return
	}
	if h.bus != nil && id != "" {
		h.bus.Publish(auth.LogoutEvent, auth.AuthEvent{Principal: p, SessionID: id})
	}
	w.WriteHeader(http.StatusNoContent)
}
