// Package auth supplies the requesting user identity to handlers. It
// accepts a signed bearer token or an API key; everything beyond
// extracting a user id is out of scope here.
package auth

import "context"

// contextKey is a private type for context keys.
type contextKey int

const userContextKey contextKey = iota

// UserContext holds the authenticated user identity.
type UserContext struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name,omitempty"`
	AuthType string `json:"auth_type"` // "jwt", "apikey", "anonymous"
}

// WithUserContext adds user context to the context.
func WithUserContext(ctx context.Context, uc *UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, uc)
}

// GetUserContext retrieves user context from the context, or nil.
func GetUserContext(ctx context.Context) *UserContext {
	if uc, ok := ctx.Value(userContextKey).(*UserContext); ok {
		return uc
	}
	return nil
}

// UserID returns the requesting user id, or empty when unauthenticated.
func UserID(ctx context.Context) string {
	if uc := GetUserContext(ctx); uc != nil {
		return uc.UserID
	}
	return ""
}
