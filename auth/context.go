package auth

import (
	"context"

	"github.com/dpup/gatehouse/errors"
)

type principalKey struct{}

// WithPrincipal returns a context carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFromContext returns the principal placed on the context by the
// access guard, or ErrUnauthenticated.
func PrincipalFromContext(ctx context.Context) (Principal, error) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	if !ok || p.IsZero() {
		return Principal{}, errors.Mark(ErrUnauthenticated, 0)
	}
	return p, nil
}
