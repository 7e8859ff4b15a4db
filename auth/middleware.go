// Package auth provides Gin middleware for enforcing bearer token auth.
package auth

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
)

const invalidTokenMessage = "Token không hợp lệ hoặc đã hết hạn"

var warnDisabled sync.Once

// MiddlewareConfig controls auth enforcement behavior.
type MiddlewareConfig struct {
	// PublicPaths are route patterns (gin FullPath) served without a token.
	PublicPaths map[string]bool
	DisableAuth bool
	// OnAuthenticated runs after a token is accepted, before the handler.
	OnAuthenticated func(ctx context.Context, claims *Claims)
}

// Middleware enforces bearer token auth and injects claims into the request context.
// Verifiers are tried in order; the first to accept the token wins.
func Middleware(cfg MiddlewareConfig, verifiers ...TokenVerifier) gin.HandlerFunc {
	disabled := cfg.DisableAuth || AuthDisabled()
	if disabled {
		warnDisabled.Do(func() {
			slog.Warn("auth disabled for local development, requests run as local-dev")
		})
	}
	return func(c *gin.Context) {
		if disabled {
			claims := &Claims{
				Subject: "local-dev",
				Issuer:  "local",
				Groups:  []string{"admin"},
				Raw:     map[string]any{"sub": "local-dev"},
			}
			ctx := WithClaims(c.Request.Context(), claims)
			c.Request = c.Request.WithContext(ctx)
			if cfg.OnAuthenticated != nil {
				cfg.OnAuthenticated(ctx, claims)
			}
			c.Next()
			return
		}

		if cfg.PublicPaths != nil && cfg.PublicPaths[c.FullPath()] {
			c.Next()
			return
		}

		if len(verifiers) == 0 {
			respondUnauthorized(c, "auth verifier not configured")
			return
		}

		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			slog.WarnContext(c.Request.Context(), "auth failure: missing Authorization header", "path", c.Request.URL.Path)
			respondUnauthorized(c, "Missing Authorization header")
			return
		}

		token, ok := extractBearerToken(authHeader)
		if !ok {
			slog.WarnContext(c.Request.Context(), "auth failure: malformed Authorization header", "path", c.Request.URL.Path)
			respondUnauthorized(c, "Missing Authorization header")
			return
		}

		claims, err := verify(token, verifiers)
		if err != nil {
			slog.WarnContext(c.Request.Context(), "auth failure: token invalid", "path", c.Request.URL.Path, "error", err)
			respondUnauthorized(c, invalidTokenMessage)
			return
		}

		ctx := WithClaims(c.Request.Context(), claims)
		c.Request = c.Request.WithContext(ctx)
		if cfg.OnAuthenticated != nil {
			cfg.OnAuthenticated(ctx, claims)
		}
		c.Next()
	}
}

// RequireGroups rejects requests whose claims lack any of groups with 403.
func RequireGroups(groups ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := ClaimsFromContext(c.Request.Context())
		if !ok {
			respondUnauthorized(c, "missing auth context")
			return
		}
		for _, g := range groups {
			if claims.InGroup(g) {
				c.Next()
				return
			}
		}
		slog.WarnContext(c.Request.Context(), "auth failure: missing group", "path", c.Request.URL.Path, "sub", claims.Subject)
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	}
}

func verify(token string, verifiers []TokenVerifier) (*Claims, error) {
	var lastErr error
	for _, v := range verifiers {
		claims, err := v.Verify(token)
		if err == nil {
			return claims, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func extractBearerToken(header string) (string, bool) {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 {
		return "", false
	}
	if !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", false
	}
	return token, true
}

func respondUnauthorized(c *gin.Context, message string) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error": message,
	})
}
