package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user ID in context.
func ContextWithActor(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, actorContextKey{}, userID)
}

// ActorFromContext extracts the acting user ID from context.
func ActorFromContext(ctx context.Context) string {
	id, _ := ctx.Value(actorContextKey{}).(string)
	return id
}
