// Package auth holds the provider neutral pieces of the login flow: the
// authenticated Principal, the Outcome of a code exchange, the Provider
// contract implemented by identity provider clients, and the signed OAuth
// state parameter.
//
// The HTTP handlers that drive the flow live in the gate package, which joins
// these types with server side sessions.
package auth

import (
	"github.com/dpup/gatehouse/errors"
	"google.golang.org/grpc/codes"
)

var (
	// ErrProvider covers every way an identity provider can fail to produce a
	// principal: transport errors, error responses, malformed or incomplete
	// profiles.
	ErrProvider = errors.NewC("auth: identity provider error", codes.Unauthenticated)

	// ErrUnauthenticated is returned when a request carries no usable session.
	ErrUnauthenticated = errors.NewC("auth: no active session", codes.Unauthenticated).
				WithPublicMessage("authentication required")

	// ErrInvalidState is returned when the OAuth state parameter fails
	// verification.
	ErrInvalidState = errors.NewC("auth: invalid state parameter", codes.InvalidArgument)
)
