package auth

import "context"

type subjectKey struct{}

// WithUserID stores the authenticated subject on ctx.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, subjectKey{}, userID)
}

// GetUserID returns the subject set by WithUserID.
func GetUserID(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(subjectKey{}).(string)
	return userID, ok
}
