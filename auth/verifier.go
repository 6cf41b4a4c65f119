package auth

import (
	"context"
)

// Verifier validates a bearer token and returns its decoded claims.
// Implementations must be safe for concurrent use and should honour ctx
// cancellation when they perform I/O.
type Verifier interface {
	Verify(ctx context.Context, token string) (*Claims, error)
}

// VerifierFunc adapts a function to the Verifier interface.
type VerifierFunc func(ctx context.Context, token string) (*Claims, error)

// Verify calls f(ctx, token).
func (f VerifierFunc) Verify(ctx context.Context, token string) (*Claims, error) {
	return f(ctx, token)
}

type claimsKey struct{}

// NewContext returns a copy of ctx carrying cl.
func NewContext(ctx context.Context, cl *Claims) context.Context {
	return context.WithValue(ctx, claimsKey{}, cl)
}

// FromContext returns the claims stored by NewContext, or nil.
func FromContext(ctx context.Context) *Claims {
	cl, _ := ctx.Value(claimsKey{}).(*Claims)
	return cl
}
