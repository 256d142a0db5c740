package gatehouse

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/dpup/gatehouse/errors"
	"google.golang.org/grpc/codes"
)

type XFramesOptions string

const (
	XFramesOptionsNone       XFramesOptions = ""
	XFramesOptionsDeny       XFramesOptions = "DENY"
	XFramesOptionsSameOrigin XFramesOptions = "SAMEORIGIN"
)

var (
	// HSTS requires a minimum expiration of 1 year for preload.
	ErrBadHSTSExpiration = errors.NewC("gatehouse: HSTS preload requires expiration of at least 1 year", codes.FailedPrecondition)
)

// SecurityHeaders contains the security headers that should be set on HTTP
// responses. CORS is handled separately by the router.
type SecurityHeaders struct {
	// X-Frame-Options controls whether the browser should allow the page to be
	// rendered in a frame or iframe.
	XFramesOptions XFramesOptions

	// Strict-Transport-Security (HSTS) tells the browser to always use HTTPS
	// when connecting to the site.
	HSTSExpiration        time.Duration
	HSTSIncludeSubdomains bool
	HSTSPreload           bool

	headers map[string]string
	err     error
	once    sync.Once
}

// SecurityHeadersFromConfig reads server.security.* settings.
func SecurityHeadersFromConfig() *SecurityHeaders {
	return &SecurityHeaders{
		XFramesOptions: XFramesOptions(ConfigString("server.security.xFramesOptions")),
		HSTSExpiration: ConfigDuration("server.security.hstsExpiration"),
	}
}

// Apply the security headers to the given response.
func (s *SecurityHeaders) Apply(w http.ResponseWriter) error {
	s.once.Do(s.compute)
	if s.err != nil {
		return s.err
	}
	for k, v := range s.headers {
		w.Header().Set(k, v)
	}
	return nil
}

// Middleware returns an http middleware that sets the headers on every
// response. A bad configuration fails every request with a 412.
func (s *SecurityHeaders) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := s.Apply(w); err != nil {
			WriteError(w, r, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *SecurityHeaders) compute() {
	s.headers = map[string]string{
		"X-Content-Type-Options": "nosniff",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
	}

	if s.XFramesOptions != XFramesOptionsNone {
		s.headers["X-Frame-Options"] = string(s.XFramesOptions)
	}

	if s.HSTSExpiration > 0 {
		h := fmt.Sprintf("max-age=%.0f", s.HSTSExpiration.Seconds())
		if s.HSTSIncludeSubdomains {
			h += "; includeSubDomains"
		}
		if s.HSTSPreload {
			if s.HSTSExpiration < time.Hour*24*365 {
				s.err = ErrBadHSTSExpiration
				return
			}
			h += "; preload"
		}
		s.headers["Strict-Transport-Security"] = h
	}
}
