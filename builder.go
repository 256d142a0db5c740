package gatehouse

import (
	"context"
	"net/http"
	"time"

	"github.com/NYTimes/gziphandler"
	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"google.golang.org/grpc/codes"
)

// HealthPath answers liveness probes.
const HealthPath = "/healthz"

const defaultShutdownTimeout = 2 * time.Second

var errRouteNotFound = errors.NewC("gatehouse: route not found", codes.NotFound)

// ServerOption customizes the server.
type ServerOption func(*builder)

// ShutdownHook is run once the HTTP server has stopped accepting requests.
type ShutdownHook func(ctx context.Context) error

// New returns a new server.
func New(opts ...ServerOption) *Server {
	b := &builder{
		host:            ConfigString("server.host"),
		port:            ConfigInt("server.port"),
		certFile:        ConfigString("server.tls.certFile"),
		keyFile:         ConfigString("server.tls.keyFile"),
		trustProxy:      ConfigBool("server.trustProxy"),
		corsOrigins:     ConfigStrings("server.security.corsOrigins"),
		corsMaxAge:      ConfigDuration("server.security.corsMaxAge"),
		securityHeaders: SecurityHeadersFromConfig(),
		shutdownTimeout: defaultShutdownTimeout,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b.build()
}

type builder struct {
	baseContext     context.Context
	host            string
	port            int
	certFile        string
	keyFile         string
	trustProxy      bool
	corsOrigins     []string
	corsMaxAge      time.Duration
	securityHeaders *SecurityHeaders
	shutdownTimeout time.Duration

	middleware    []func(http.Handler) http.Handler
	routes        []func(chi.Router)
	shutdownHooks []ShutdownHook
}

func (b *builder) build() *Server {
	if b.baseContext == nil {
		b.baseContext = context.Background()
	}

	// Ensure that a logger is available.
	ctx := logging.EnsureLogger(b.baseContext)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	if b.trustProxy {
		r.Use(middleware.RealIP)
	}
	r.Use(logging.Middleware(logging.FromContext(ctx)))
	r.Use(Recoverer)
	if len(b.corsOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   b.corsOrigins,
			AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-Requested-With"},
			AllowCredentials: true,
			MaxAge:           int(b.corsMaxAge.Seconds()),
		}))
	}
	if b.securityHeaders != nil {
		r.Use(b.securityHeaders.Middleware)
	}
	for _, mw := range b.middleware {
		r.Use(mw)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteError(w, r, errors.Mark(errRouteNotFound, 0).WithPublicMessage("not found"))
	})
	r.Method(http.MethodGet, HealthPath, JSONHandler(func(*http.Request) (any, error) {
		return map[string]string{"status": "ok"}, nil
	}))
	for _, fn := range b.routes {
		fn(r)
	}

	return &Server{
		baseContext:     ctx,
		host:            b.host,
		port:            b.port,
		certFile:        b.certFile,
		keyFile:         b.keyFile,
		router:          r,
		handler:         gziphandler.GzipHandler(r),
		shutdownTimeout: b.shutdownTimeout,
		shutdownHooks:   b.shutdownHooks,
		closed:          make(chan struct{}),
	}
}

// WithContext sets the base context for the server. This context will be used
// for all requests and can be used to inject values, such as the logger.
func WithContext(ctx context.Context) ServerOption {
	return func(b *builder) {
		b.baseContext = ctx
	}
}

// WithHost configures the hostname or IP the server will listen on.
//
// Config key: `server.host`.
func WithHost(host string) ServerOption {
	return func(b *builder) {
		b.host = host
	}
}

// WithPort configures the port the server will listen on.
//
// Config key: `server.port`.
func WithPort(port int) ServerOption {
	return func(b *builder) {
		b.port = port
	}
}

// WithTLS configures the server to serve HTTPS using the provided cert.
//
// Config keys: `server.tls.certFile`, `server.tls.keyFile`.
func WithTLS(certFile, keyFile string) ServerOption {
	return func(b *builder) {
		b.certFile = certFile
		b.keyFile = keyFile
	}
}

// WithTrustProxy derives the client address from X-Forwarded-For and
// X-Real-IP. Only enable it behind a proxy that sets those headers.
//
// Config key: `server.trustProxy`.
func WithTrustProxy(trust bool) ServerOption {
	return func(b *builder) {
		b.trustProxy = trust
	}
}

// WithCORS allows credentialed cross-origin requests from the given origins.
// An empty list disables CORS handling.
//
// Config keys: `server.security.corsOrigins`, `server.security.corsMaxAge`.
func WithCORS(maxAge time.Duration, origins ...string) ServerOption {
	return func(b *builder) {
		b.corsOrigins = origins
		b.corsMaxAge = maxAge
	}
}

// WithSecurityHeaders sets the security headers that should be set on HTTP
// responses. Pass nil to disable them.
//
// Config keys:
// - `server.security.xFramesOptions`
// - `server.security.hstsExpiration`.
func WithSecurityHeaders(headers *SecurityHeaders) ServerOption {
	return func(b *builder) {
		b.securityHeaders = headers
	}
}

// WithMiddleware adds router wide middleware. It runs after the built in
// middleware, in the order added.
func WithMiddleware(mw ...func(http.Handler) http.Handler) ServerOption {
	return func(b *builder) {
		b.middleware = append(b.middleware, mw...)
	}
}

// WithRoutes registers routes on the server's router.
//
// Example:
//
//	gatehouse.WithRoutes(g.Mount)
func WithRoutes(fn func(chi.Router)) ServerOption {
	return func(b *builder) {
		b.routes = append(b.routes, fn)
	}
}

// WithHTTPHandler adds an HTTP handler for all methods under pattern.
func WithHTTPHandler(pattern string, h http.Handler) ServerOption {
	return WithRoutes(func(r chi.Router) {
		r.Handle(pattern, h)
	})
}

// WithShutdownHook registers fn to run during Shutdown, after in-flight
// requests have drained. Hooks run in the order added.
func WithShutdownHook(fn ShutdownHook) ServerOption {
	return func(b *builder) {
		b.shutdownHooks = append(b.shutdownHooks, fn)
	}
}

// WithShutdownTimeout bounds how long Shutdown waits for requests and hooks.
func WithShutdownTimeout(d time.Duration) ServerOption {
	return func(b *builder) {
		if d > 0 {
			b.shutdownTimeout = d
		}
	}
}
