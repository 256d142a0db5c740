package gatehouse

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"github.com/go-chi/chi/v5"
)

// ErrServerStarted is returned when Start is called more than once.
var ErrServerStarted = errors.New("gatehouse: server already started")

// Server wraps a HTTP server and the router holding the gate's routes.
//
// Usage:
//
//	s := gatehouse.New(gatehouse.WithRoutes(g.Mount))
//	if err := s.Start(); err != nil {
//		log.Fatal(err)
//	}
type Server struct {
	// Hostname or IP to bind to.
	host string

	// Port to listen on.
	port int

	// Location of certificate and key files, if TLS is to be used.
	certFile string
	keyFile  string

	// Context that is propagated to handlers.
	baseContext context.Context

	router  chi.Router
	handler http.Handler

	shutdownTimeout time.Duration
	shutdownHooks   []ShutdownHook

	mu           sync.Mutex
	httpServer   *http.Server
	listenAddr   string
	shutdownOnce sync.Once
	shutdownErr  error
	closed       chan struct{}
}

// Router exposes the underlying router so extra routes can be added before
// the server is started.
func (s *Server) Router() chi.Router {
	return s.router
}

// Handler returns the fully wrapped handler, useful for tests.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Addr returns the address the server listens on. Once started this is the
// bound address, which differs from the configured one when port 0 is used.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listenAddr != "" {
		return s.listenAddr
	}
	return net.JoinHostPort(s.host, strconv.Itoa(s.port))
}

// Start serving requests. Blocks until Shutdown is called or the process
// receives SIGINT or SIGTERM.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.Addr())
	if err != nil {
		return errors.WrapPrefix(err, "gatehouse: failed to listen", 0)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln. Blocks until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	defer ln.Close()

	s.mu.Lock()
	if s.httpServer != nil {
		s.mu.Unlock()
		return ErrServerStarted
	}
	s.httpServer = &http.Server{
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext: func(net.Listener) context.Context {
			return s.baseContext
		},
	}
	s.listenAddr = ln.Addr().String()
	srv := s.httpServer
	s.mu.Unlock()

	select {
	case <-s.closed:
		return nil
	default:
	}

	go func() {
		gracefulStop := make(chan os.Signal, 1)
		signal.Notify(gracefulStop, syscall.SIGTERM, syscall.SIGINT)
		defer signal.Stop(gracefulStop)
		select {
		case sig := <-gracefulStop:
			logging.Infow(s.baseContext, "👋 Graceful shutdown triggered...", "signal", sig.String())
			_ = s.Shutdown()
		case <-s.closed:
		}
	}()

	var err error
	if s.certFile != "" {
		srv.TLSConfig = safeTLSConfig()
		logging.Infow(s.baseContext, "🚀  Listening for traffic", "addr", "https://"+ln.Addr().String())
		err = srv.ServeTLS(ln, s.certFile, s.keyFile)
	} else {
		logging.Infow(s.baseContext, "🚀  Listening for traffic", "addr", "http://"+ln.Addr().String())
		err = srv.Serve(ln)
	}

	if !errors.Is(err, http.ErrServerClosed) {
		return err // The server wasn't shutdown gracefully.
	}

	// Wait for the shutdown hooks to finish.
	<-s.closed
	return s.shutdownErr
}

// Shutdown stops accepting requests, waits for in-flight requests to finish
// and then runs the shutdown hooks. Safe to call more than once.
func (s *Server) Shutdown() error {
	s.shutdownOnce.Do(func() {
		s.mu.Lock()
		srv := s.httpServer
		s.mu.Unlock()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(s.baseContext), s.shutdownTimeout)
		defer cancel()

		var errs []error
		if srv != nil {
			if err := srv.Shutdown(ctx); err != nil {
				errs = append(errs, err)
			}
		}
		for _, hook := range s.shutdownHooks {
			if err := hook(ctx); err != nil {
				logging.Errorw(ctx, "shutdown hook failed", "error", err)
				errs = append(errs, err)
			}
		}
		s.shutdownErr = errors.Join(errs...)
		logging.Infow(ctx, "👋 Server stopped")
		close(s.closed)
	})
	return s.shutdownErr
}

// TLS1.2 min.
func safeTLSConfig() *tls.Config {
	return &tls.Config{
		MinVersion: tls.VersionTLS12,
		MaxVersion: tls.VersionTLS13,
	}
}
