package auth

import (
	"context"

	"github.com/google/uuid"
)

type contextKey string

const (
	userKey   contextKey = "user_id"
	claimsKey contextKey = "claims"
)

func WithUserID(ctx context.Context, id uuid.UUID) context.Context {
	return context.WithValue(ctx, userKey, id)
}

// UserIDFromContext returns the authenticated user, or nil for anonymous
// requests.
func UserIDFromContext(ctx context.Context) *uuid.UUID {
	id, ok := ctx.Value(userKey).(uuid.UUID)
	if !ok {
		return nil
	}
	return &id
}

func ClaimsFromContext(ctx context.Context) *Claims {
	c, _ := ctx.Value(claimsKey).(*Claims)
	return c
}
