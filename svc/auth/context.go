package auth

import (
	"context"

	"github.com/google/uuid"
)

type userIDContextKey struct{}
type sessionIDContextKey struct{}

// SetUserIDToContext stores the authenticated user for the middleware chain.
func SetUserIDToContext(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, userIDContextKey{}, userID)
}

// GetUserIDFromContext returns the authenticated user, or uuid.Nil when the
// request is anonymous.
func GetUserIDFromContext(ctx context.Context) uuid.UUID {
	id, _ := ctx.Value(userIDContextKey{}).(uuid.UUID)
	return id
}

func SetSessionIDToContext(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, sessionIDContextKey{}, sessionID)
}

func GetSessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDContextKey{}).(string)
	return id
}
