package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/angelmondragon/uporders-backend/pkg/enums"
)

type actorKey struct{}

// Actor is the authenticated caller resolved from the bearer token.
type Actor struct {
	CustomerID uuid.UUID
	Role       enums.CustomerRole
}

// WithActor stores the authenticated caller on ctx.
func WithActor(ctx context.Context, actor Actor) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext reports the caller set by Auth, if any.
func ActorFromContext(ctx context.Context) (Actor, bool) {
	if ctx == nil {
		return Actor{}, false
	}
	actor, ok := ctx.Value(actorKey{}).(Actor)
	return actor, ok
}

// CustomerIDFromContext returns the authenticated customer, or uuid.Nil.
func CustomerIDFromContext(ctx context.Context) uuid.UUID {
	actor, _ := ActorFromContext(ctx)
	return actor.CustomerID
}
