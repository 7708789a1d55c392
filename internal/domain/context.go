package domain

import "context"

type callerKey struct{}

// Caller carries the upstream-authenticated identity through request
// context. Authentication itself happens outside this service; the API
// layer trusts the identity header set by the fronting proxy.
type Caller struct {
	UserID string
}

// WithCaller stores a Caller in the context.
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext extracts the Caller from the context.
func CallerFromContext(ctx context.Context) (Caller, bool) {
	c, ok := ctx.Value(callerKey{}).(Caller)
	return c, ok
}
