package gatehouse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/dpup/gatehouse/errors"
	"github.com/dpup/gatehouse/logging"
	"google.golang.org/genproto/googleapis/rpc/code"
	"google.golang.org/grpc/codes"
)

// ErrConfiguration is returned when the service can not start because of
// missing or invalid configuration.
var ErrConfiguration = errors.NewC("gatehouse: invalid configuration", codes.FailedPrecondition)

// ConfigurationErrorf returns an error that satisfies errors.Is(err,
// ErrConfiguration) with extra detail appended.
func ConfigurationErrorf(format string, a ...any) error {
	return errors.Mark(ErrConfiguration, 1).Append(fmt.Sprintf(format, a...))
}

// Message used for server errors that do not carry a public message.
const genericServerError = "an internal error occurred"

// ErrorResponse is the JSON body written for failed requests.
type ErrorResponse struct {
	Code     int32  `json:"code"`
	CodeName string `json:"codeName"`
	Message  string `json:"message"`
}

// NewErrorResponse converts an error to the body that should be sent to the
// client. Messages of server side failures are replaced unless a public
// message was set explicitly, so internal details never leak.
func NewErrorResponse(err error) ErrorResponse {
	c := int32(errors.Code(err))
	resp := ErrorResponse{
		Code:     c,
		CodeName: code.Code_name[c],
		Message:  err.Error(),
	}
	var e *errors.Error
	if errors.As(err, &e) && e.HasPublicMessage() {
		resp.Message = e.PublicMessage()
	} else if errors.HTTPStatusCode(err) >= http.StatusInternalServerError {
		resp.Message = genericServerError
	}
	return resp
}

// WriteError logs err against the request and writes a JSON error response
// with a status derived from the error's code.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	status := errors.HTTPStatusCode(err)
	fields := []any{"error", err, "req.method", r.Method, "req.path", r.URL.Path, "resp.status", status}
	if status >= http.StatusInternalServerError {
		var e *errors.Error
		if errors.As(err, &e) {
			fields = append(fields, "error.stack", e.MinimalStack(0, 5))
		}
		logging.Errorw(r.Context(), "request failed", fields...)
	} else {
		logging.Infow(r.Context(), "request rejected", fields...)
	}

	b, ferr := json.Marshal(NewErrorResponse(err))
	if ferr != nil {
		http.Error(w, "error encoding response", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(b)
}

// Recoverer turns panics in downstream handlers into a 500 JSON error.
// http.ErrAbortHandler is re-panicked so the server can abort the response.
func Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rvr := recover(); rvr != nil {
				if rvr == http.ErrAbortHandler { //nolint:errorlint // sentinel comparison per net/http
					panic(rvr)
				}
				logging.Errorw(r.Context(), "panic serving request",
					"panic", fmt.Sprint(rvr), "stack", string(debug.Stack()))
				WriteError(w, r, errors.NewC(fmt.Sprint(rvr), codes.Internal))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
