package auth

import (
	"context"
)

type contextKey int

const (
	claimsKey contextKey = iota
)

// ClaimsFrom returns the verified claims from context, or nil if the
// request is not authenticated.
func ClaimsFrom(ctx context.Context) *Claims {
	claims, _ := ctx.Value(claimsKey).(*Claims)
	return claims
}

// UserID returns the token subject from context, or empty string if not
// authenticated.
func UserID(ctx context.Context) string {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return ""
	}
	return claims.Subject
}

// Email returns the user's email from context, or empty string if not
// available.
func Email(ctx context.Context) string {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return ""
	}
	return claims.Email
}

// IsAuthenticated returns true if the request has valid authentication.
func IsAuthenticated(ctx context.Context) bool {
	return ClaimsFrom(ctx) != nil
}

// HasScope checks if the token carries a specific scope.
func HasScope(ctx context.Context, scope string) bool {
	claims := ClaimsFrom(ctx)
	if claims == nil {
		return false
	}
	for _, s := range claims.Scopes {
		if s == scope {
			return true
		}
	}
	return false
}
