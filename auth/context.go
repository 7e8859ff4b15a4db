// Package auth provides request context helpers for verified token claims.
package auth

import (
	"context"
	"slices"
	"time"
)

type ctxKey int

const claimsKey ctxKey = iota

// Claims contains the verified token details we care about.
type Claims struct {
	Subject   string
	Username  string
	Email     string
	Issuer    string
	ClientID  string
	ExpiresAt time.Time
	Scope     string
	Groups    []string
	Raw       map[string]any
}

// InGroup reports whether the token carries group.
func (c *Claims) InGroup(group string) bool {
	return c != nil && slices.Contains(c.Groups, group)
}

// WithClaims stores auth claims in a context.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	return context.WithValue(ctx, claimsKey, claims)
}

// ClaimsFromContext returns claims from a context.
func ClaimsFromContext(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsKey).(*Claims)
	return claims, ok
}

// UserID returns the authenticated user id, "" when the request is anonymous.
func UserID(ctx context.Context) string {
	if claims, ok := ClaimsFromContext(ctx); ok {
		return claims.Subject
	}
	return ""
}
