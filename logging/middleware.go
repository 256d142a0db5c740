package logging

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

// Middleware returns HTTP middleware that scopes a child of the given logger to
// each request and emits one line per request once the handler returns.
//
// Fields added with Track during the request, for example by the error
// formatter, are included in the final log line. Requests that end in a 5xx
// are logged at error level, 4xx at warn, everything else at info.
func Middleware(root Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			logger := root.Named("http")
			if id := middleware.GetReqID(r.Context()); id != "" {
				logger = logger.With("req.id", id)
			}
			ctx := With(r.Context(), logger)

			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r.WithContext(ctx))

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			l := FromContext(ctx).
				With("req.method", r.Method).
				With("req.path", r.URL.Path).
				With("resp.status", status).
				With("resp.bytes", ww.BytesWritten()).
				With("duration", time.Since(start))

			switch {
			case status >= http.StatusInternalServerError:
				l.Errorw("request finished")
			case status >= http.StatusBadRequest:
				l.Warnw("request finished")
			default:
				l.Infow("request finished")
			}
		})
	}
}
