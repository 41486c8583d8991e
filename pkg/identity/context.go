package identity

import (
	"context"

	apperrors "slotbook/pkg/errors"
)

type contextKey struct{}

func WithUser(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

func UserFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}

// RequireUser resolves the authenticated user or fails with Unauthorized.
func RequireUser(ctx context.Context) (string, error) {
	if userID, ok := UserFromContext(ctx); ok {
		return userID, nil
	}
	return "", apperrors.Unauthorized("authentication required")
}
