// Package ctxutil provides context utilities that can be safely imported anywhere.
// This package has no internal dependencies to avoid import cycles.
package ctxutil

import "context"

// DefaultActor is recorded as changed_by when no actor is set.
const DefaultActor = "user"

// ActorKey is the context key for the actor.
// Exported so it can be used consistently across packages.
type ActorKey struct{}

// WithActor returns a context whose writes are attributed to actor.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, ActorKey{}, actor)
}

// ActorFromContext returns the actor from context, or DefaultActor if not set.
func ActorFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(ActorKey{}).(string); ok && v != "" {
		return v
	}
	return DefaultActor
}

// ResolveActor returns explicit when set, otherwise the actor carried by ctx.
func ResolveActor(ctx context.Context, explicit string) string {
	if explicit != "" {
		return explicit
	}
	return ActorFromContext(ctx)
}
