package gatehouse

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dpup/gatehouse/logging"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testServer(t *testing.T, opts ...ServerOption) *Server {
	t.Helper()
	base := []ServerOption{
		WithContext(logging.With(context.Background(), logging.NewNopLogger())),
		WithHost("127.0.0.1"),
		WithPort(0),
		WithCORS(5*time.Minute, "https://app.example.com"),
		WithSecurityHeaders(&SecurityHeaders{XFramesOptions: XFramesOptionsDeny}),
	}
	return New(append(base, opts...)...)
}

func serve(s *Server, req *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w
}

func TestServerHealth(t *testing.T) {
	s := testServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, HealthPath, nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestServerNotFound(t *testing.T) {
	s := testServer(t)
	w := serve(s, httptest.NewRequest(http.MethodGet, "/nope", nil))

	require.Equal(t, http.StatusNotFound, w.Code)
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "NOT_FOUND", resp.CodeName)
	assert.Equal(t, "not found", resp.Message)
}

func TestServerRoutes(t *testing.T) {
	s := testServer(t,
		WithRoutes(func(r chi.Router) {
			r.Get("/hello", func(w http.ResponseWriter, _ *http.Request) {
				_, _ = w.Write([]byte("hi"))
			})
		}),
		WithHTTPHandler("/raw", http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusAccepted)
		})),
	)

	w := serve(s, httptest.NewRequest(http.MethodGet, "/hello", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "hi", w.Body.String())

	w = serve(s, httptest.NewRequest(http.MethodPost, "/raw", nil))
	assert.Equal(t, http.StatusAccepted, w.Code)
}

func TestServerMiddlewareOrder(t *testing.T) {
	var order []string
	mw := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	s := testServer(t, WithMiddleware(mw("a"), mw("b")))
	serve(s, httptest.NewRequest(http.MethodGet, HealthPath, nil))
	assert.Equal(t, []string{"a", "b"}, order)
}

func TestServerRecoversPanics(t *testing.T) {
	s := testServer(t, WithRoutes(func(r chi.Router) {
		r.Get("/boom", func(http.ResponseWriter, *http.Request) {
			panic("secret detail")
		})
	}))

	w := serve(s, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.NotContains(t, w.Body.String(), "secret detail")
	assert.Contains(t, w.Body.String(), "INTERNAL")
}

func TestServerCORS(t *testing.T) {
	s := testServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/user/me", nil)
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPatch)
	w := serve(s, req)
	assert.Equal(t, "https://app.example.com", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
	assert.Equal(t, "300", w.Header().Get("Access-Control-Max-Age"))

	req = httptest.NewRequest(http.MethodGet, HealthPath, nil)
	req.Header.Set("Origin", "https://evil.example.com")
	w = serve(s, req)
	assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
}

func TestServerGzip(t *testing.T) {
	body := strings.Repeat("gatehouse ", 500)
	s := testServer(t, WithRoutes(func(r chi.Router) {
		r.Get("/big", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(body))
		})
	}))

	req := httptest.NewRequest(http.MethodGet, "/big", nil)
	req.Header.Set("Accept-Encoding", "gzip")
	w := serve(s, req)
	assert.Equal(t, "gzip", w.Header().Get("Content-Encoding"))
	assert.Less(t, w.Body.Len(), len(body))
}

func TestServerServeAndShutdown(t *testing.T) {
	var hooks []string
	s := testServer(t,
		WithShutdownHook(func(context.Context) error {
			hooks = append(hooks, "first")
			return nil
		}),
		WithShutdownHook(func(context.Context) error {
			hooks = append(hooks, "second")
			return nil
		}),
	)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + HealthPath)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, ln.Addr().String(), s.Addr())

	require.NoError(t, s.Shutdown())
	require.NoError(t, s.Shutdown(), "second call is a no-op")

	select {
	case err := <-errc:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.Equal(t, []string{"first", "second"}, hooks)
}

func TestServerShutdownHookError(t *testing.T) {
	s := testServer(t, WithShutdownHook(func(context.Context) error {
		return ErrServerStarted
	}))
	err := s.Shutdown()
	assert.ErrorIs(t, err, ErrServerStarted)
}

func TestServerServeTwice(t *testing.T) {
	s := testServer(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	errc := make(chan error, 1)
	go func() { errc <- s.Serve(ln) }()

	require.Eventually(t, func() bool {
		return s.Addr() == ln.Addr().String()
	}, time.Second, 10*time.Millisecond)

	ln2, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	assert.ErrorIs(t, s.Serve(ln2), ErrServerStarted)

	require.NoError(t, s.Shutdown())
	require.NoError(t, <-errc)
}
