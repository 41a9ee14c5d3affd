package domain

import "context"

type callerKey struct{}

// Caller identifies who issued a request, for usage attribution.
type Caller struct {
	UserID string
	Hidden bool
}

// ContextWithCaller attaches c to ctx.
func ContextWithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFromContext returns the caller, or the zero Caller when none was attached.
func CallerFromContext(ctx context.Context) Caller {
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
