package users

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/dpup/gatehouse/auth"
	"github.com/dpup/gatehouse/eventbus"
	"github.com/dpup/gatehouse/gate"
	"github.com/dpup/gatehouse/logging"
	"github.com/dpup/gatehouse/session"
	"github.com/dpup/gatehouse/storage/memstore"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type routesHarness struct {
	router  chi.Router
	svc     *Service
	manager *session.Manager
	store   *session.MemoryStore
	bus     *eventbus.Bus
}

func newRoutesHarness(t *testing.T) *routesHarness {
	t.Helper()
	h := &routesHarness{
		svc:   NewService(memstore.New()),
		store: session.NewMemoryStore(),
		bus:   eventbus.NewBus(logging.With(t.Context(), logging.NewNopLogger())),
	}
	h.manager = session.NewManager(h.store, session.NewCookieCodec("", []byte(strings.Repeat("s", 32))))

	r := chi.NewRouter()
	r.With(gate.RequireSession(h.manager)).Mount("/user", NewHandler(h.svc, h.manager, h.bus).Routes())
	h.router = r
	return h
}

// login attaches a session the way the callback does and returns its cookie.
func (h *routesHarness) login(t *testing.T) *http.Cookie {
	t.Helper()
	w := httptest.NewRecorder()
	_, err := gate.NewSessionAttachment(h.manager, h.svc).
		Attach(w, httptest.NewRequest(http.MethodGet, "/auth/google/callback", nil), principal(t))
	require.NoError(t, err)
	for _, c := range w.Result().Cookies() {
		if c.Name == session.DefaultCookieName {
			return c
		}
	}
	t.Fatal("no cookie")
	return nil
}

func (h *routesHarness) do(method, target, body string, c *http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if c != nil {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()
	h.router.ServeHTTP(w, req)
	return w
}

func TestRoutesRequireSession(t *testing.T) {
	h := newRoutesHarness(t)
	for _, rt := range []struct{ method, path string }{
		{http.MethodGet, "/user/me"},
		{http.MethodPatch, "/user/me"},
		{http.MethodGet, "/user/session"},
		{http.MethodDelete, "/user/session"},
	} {
		w := h.do(rt.method, rt.path, `{"name":"x"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.method+" "+rt.path)
	}
}

func TestGetMe(t *testing.T) {
	h := newRoutesHarness(t)
	c := h.login(t)

	w := h.do(http.MethodGet, "/user/me", "", c)
	require.Equal(t, http.StatusOK, w.Code)

	var u User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "a@b.com", u.Email)
	assert.Equal(t, "A B", u.Name)
}

func TestPatchMe(t *testing.T) {
	h := newRoutesHarness(t)
	c := h.login(t)

	w := h.do(http.MethodPatch, "/user/me", `{"name":"Ada"}`, c)
	require.Equal(t, http.StatusOK, w.Code)
	var u User
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &u))
	assert.Equal(t, "Ada", u.Name)

	w = h.do(http.MethodPatch, "/user/me", `{"name":""}`, c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "name is required")

	w = h.do(http.MethodPatch, "/user/me", `{"nickname":"x"}`, c)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = h.do(http.MethodPatch, "/user/me", `not json`, c)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetSession(t *testing.T) {
	h := newRoutesHarness(t)
	c := h.login(t)

	w := h.do(http.MethodGet, "/user/session", "", c)
	require.Equal(t, http.StatusOK, w.Code)

	var info SessionInfo
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &info))
	assert.Equal(t, "google", info.Provider)
	assert.True(t, info.ExpiresAt.After(info.CreatedAt))
	assert.NotContains(t, w.Body.String(), `"id"`)
}

func TestDeleteSession(t *testing.T) {
	h := newRoutesHarness(t)
	c := h.login(t)

	var logouts int
	h.bus.Subscribe(auth.LogoutEvent, func(_ context.Context, msg *eventbus.Message) error {
		ev := msg.Data.(auth.AuthEvent)
		assert.Equal(t, "123", ev.Principal.Subject)
		logouts++
		return nil
	})

	w := h.do(http.MethodDelete, "/user/session", "", c)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, 0, h.store.Len())
	assert.Equal(t, http.StatusUnauthorized, h.do(http.MethodGet, "/user/me", "", c).Code)

	require.NoError(t, h.bus.Wait(t.Context()))
	assert.Equal(t, 1, logouts)
}
