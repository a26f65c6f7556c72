package audit

import (
	"context"
	"strings"
)

// AnonymousUsername is the principal name unauthenticated requests carry.
const AnonymousUsername = "anonymousUser"

// Actor is the authenticated user a change is attributed to.
type Actor struct {
	ID       int64
	Username string
	TenantID *int64
}

// Anonymous reports whether a is not a real authenticated user.
func (a Actor) Anonymous() bool {
	return a.ID <= 0 || strings.EqualFold(a.Username, AnonymousUsername)
}

// ActorResolver yields the actor behind ctx.
type ActorResolver interface {
	ResolveActor(ctx context.Context) (Actor, bool)
}

// ActorResolverFunc adapts a function to ActorResolver.
type ActorResolverFunc func(ctx context.Context) (Actor, bool)

// ResolveActor implements ActorResolver.
func (f ActorResolverFunc) ResolveActor(ctx context.Context) (Actor, bool) {
	return f(ctx)
}

type actorKey struct{}

// WithActor returns a copy of ctx carrying a.
func WithActor(ctx context.Context, a Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, a)
}

// ActorFromContext returns the actor stored by WithActor.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	a, ok := ctx.Value(actorKey{}).(Actor)
	return a, ok
}

// ContextActors resolves actors stored with WithActor.
var ContextActors ActorResolver = ActorResolverFunc(ActorFromContext)
