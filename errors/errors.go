// Package errors provides errors that carry a gRPC status code, an optional
// client safe message and the stack where they were raised. It started life
// as a fork of github.com/go-errors/errors.
//
// Codes travel with the error so the HTTP error formatter can pick a response
// status without knowing where the error came from, and public messages let a
// handler say something safe to the client while the full error is logged.
//
// For example:
//
//	var ErrExpired = errors.NewC("session has expired", codes.Unauthenticated)
//
//	func load(id string) error {
//	    return errors.Mark(ErrExpired, 0).Append(id)
//	}
//
// Callers can then test with errors.Is(err, ErrExpired) and the formatter will
// respond with a 401.
package errors

import (
	"fmt"
	"net/http"
	"runtime"

	"google.golang.org/grpc/codes"
)

// The maximum number of stackframes on any error.
var MaxStackDepth = 50

// Error is an error with an attached stacktrace. It can be used
// wherever the builtin error interface is expected.
type Error struct {
	Err    error
	stack  []uintptr
	frames []StackFrame
	prefix string

	code          codes.Code
	publicMessage string
}

// build captures the caller's stack. skip 0 is the caller of the exported
// constructor.
func build(err error, code codes.Code, skip int) *Error {
	stack := make([]uintptr, MaxStackDepth)
	length := runtime.Callers(3+skip, stack)
	return &Error{Err: err, stack: stack[:length], code: code}
}

func asError(e interface{}) error {
	if err, ok := e.(error); ok {
		return err
	}
	return fmt.Errorf("%v", e)
}

// New makes an Error from the given value, which may be an error or anything
// that can be formatted with %v. The code is codes.Unknown.
func New(e interface{}) *Error {
	return build(asError(e), codes.Unknown, 0)
}

// NewC makes an Error with a status code, typically a package level sentinel.
func NewC(e interface{}, code codes.Code) *Error {
	return build(asError(e), code, 0)
}

// Codef creates a new error with the given code and a formatted message.
func Codef(code codes.Code, format string, a ...interface{}) *Error {
	return build(fmt.Errorf(format, a...), code, 0)
}

// Errorf is a drop-in replacement for fmt.Errorf that records a stack.
func Errorf(format string, a ...interface{}) *Error {
	err := fmt.Errorf(format, a...)
	return build(err, Code(err), 0)
}

// Wrap makes an Error from the given value. Values that are already an *Error
// are returned as is. The skip parameter indicates how far up the stack to
// start the stacktrace. 0 is from the current call, 1 from its caller, etc.
func Wrap(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		return err
	}
	err := asError(e)
	return build(err, Code(err), skip)
}

// MaybeWrap is like Wrap but returns a nil error interface, rather than a
// typed nil, when e is nil.
func MaybeWrap(e error, skip int) error {
	if e == nil {
		return nil
	}
	return Wrap(e, 1+skip)
}

// WrapPrefix is like Wrap, but Error() will be prefixed by prefix.
func WrapPrefix(e interface{}, prefix string, skip int) *Error {
	if e == nil {
		return nil
	}
	err := Wrap(e, 1+skip)
	if err.prefix != "" {
		prefix = prefix + ": " + err.prefix
	}
	return &Error{
		Err:           err.Err,
		stack:         err.stack,
		code:          err.code,
		publicMessage: err.publicMessage,
		prefix:        prefix,
	}
}

// Mark takes an error and sets the stack trace from the point it was called.
// The skip parameter indicates how far up the stack to start the stacktrace.
//
// Marking a sentinel returns a copy that wraps it, so the sentinel itself is
// never mutated by subsequent calls to Append or WithPublicMessage and
// errors.Is still matches.
func Mark(e interface{}, skip int) *Error {
	if e == nil {
		return nil
	}
	if err, ok := e.(*Error); ok {
		m := build(err, err.code, skip)
		m.publicMessage = err.publicMessage
		return m
	}
	return Wrap(e, 1+skip)
}

// Error returns the underlying error's message.
func (err *Error) Error() string {
	if err.prefix != "" {
		return err.prefix + ": " + err.Err.Error()
	}
	return err.Err.Error()
}

// Append adds extra context to the end of the error message, separated by a
// colon.
func (err *Error) Append(msg string) *Error {
	err.Err = fmt.Errorf("%w: %s", err.Err, msg)
	return err
}

// Unwrap the error (implements api for As function).
func (err *Error) Unwrap() error {
	return err.Err
}

// Code returns the gRPC status code associated with the error.
func (err *Error) Code() codes.Code {
	return err.code
}

// HTTPStatusCode maps the error's code to the status sent to clients.
func (err *Error) HTTPStatusCode() int {
	return httpStatusFromCode(err.code)
}

// PublicMessage returns the error string that should be returned to the client.
func (err *Error) PublicMessage() string {
	if err.publicMessage != "" {
		return err.publicMessage
	}
	return err.Error()
}

// HasPublicMessage returns true if a public message was explicitly set.
func (err *Error) HasPublicMessage() bool {
	return err.publicMessage != ""
}

// WithPublicMessage sets the error string that should be returned to the client.
func (err *Error) WithPublicMessage(publicMessage string) *Error {
	err.publicMessage = publicMessage
	return err
}

// StackFrames returns the frames of the stack where the error was raised.
func (err *Error) StackFrames() []StackFrame {
	if err.frames == nil {
		err.frames = make([]StackFrame, len(err.stack))
		for i, pc := range err.stack {
			err.frames[i] = NewStackFrame(pc)
		}
	}
	return err.frames
}

// MinimalStack returns a compact, single line per frame, representation of
// the stack suitable for structured logging. skip drops frames from the top
// and limit caps the number of frames returned.
func (err *Error) MinimalStack(skip, limit int) []string {
	frames := err.StackFrames()
	if skip >= len(frames) {
		return nil
	}
	frames = frames[skip:]
	if limit > 0 && len(frames) > limit {
		frames = frames[:limit]
	}
	out := make([]string, len(frames))
	for i, f := range frames {
		out[i] = f.String()
	}
	return out
}

// Code returns a gRPC status code for an error. If the error is nil, it returns
// codes.OK. If any error in the chain exposes a `Code()` method, it is
// returned. Otherwise codes.Unknown is returned.
func Code(err error) codes.Code {
	if err == nil {
		return codes.OK
	}
	var ce interface{ Code() codes.Code }
	if As(err, &ce) {
		return ce.Code()
	}
	return codes.Unknown
}

// HTTPStatusCode returns an HTTP status code for an error: 200 for nil, the
// mapping of the first code found in the chain, or 500.
func HTTPStatusCode(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return httpStatusFromCode(Code(err))
}

func httpStatusFromCode(code codes.Code) int {
	switch code {
	case codes.OK:
		return http.StatusOK
	case codes.InvalidArgument, codes.OutOfRange:
		return http.StatusBadRequest
	case codes.DeadlineExceeded:
		return http.StatusGatewayTimeout
	case codes.NotFound:
		return http.StatusNotFound
	case codes.AlreadyExists:
		return http.StatusConflict
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.Unimplemented:
		return http.StatusNotImplemented
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
