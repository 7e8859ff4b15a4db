// Package app wires shared HTTP routes for both local and Lambda execution.
package app

import (
	"context"
	"strings"
	"time"

	"agreeme/auth"
	"agreeme/ratelimit"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// RouterOptions are the edge settings that are not services.
type RouterOptions struct {
	PathPrefixes   []string
	MaxUploadBytes int64
	AdminGroup     string
	DisableAuth    bool
}

// Handlers serves the API routes.
type Handlers struct {
	svc            *Services
	maxUploadBytes int64
}

// NewRouter builds the shared HTTP router. The API tree is mounted once per path prefix.
func NewRouter(svc *Services, opts RouterOptions) *gin.Engine {
	router := gin.Default()
	router.Use(RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))

	router.GET("/", Root)
	router.GET("/health", Health)

	h := &Handlers{svc: svc, maxUploadBytes: opts.MaxUploadBytes}
	if opts.AdminGroup == "" {
		opts.AdminGroup = "admin"
	}
	prefixes := opts.PathPrefixes
	if len(prefixes) == 0 {
		prefixes = []string{"/api"}
	}
	for _, prefix := range prefixes {
		h.mount(router.Group(prefix), opts)
	}
	return router
}

func (h *Handlers) mount(api *gin.RouterGroup, opts RouterOptions) {
	base := strings.TrimRight(api.BasePath(), "/")
	public := map[string]bool{
		base + "/auth/register": true,
		base + "/auth/login":    true,
		base + "/news":          true,
	}
	if h.svc.Billing != nil {
		public[base+"/stripe/webhook"] = true
	}
	api.Use(auth.Middleware(auth.MiddlewareConfig{
		PublicPaths:     public,
		DisableAuth:     opts.DisableAuth,
		OnAuthenticated: h.ensureUser,
	}, h.svc.Verifiers...))

	chatLimit := ratelimit.Middleware(h.svc.ChatLimiter, userKey)
	uploadLimit := ratelimit.Middleware(h.svc.UploadLimiter, userKey)

	api.POST("/auth/register", h.Register)
	api.POST("/auth/login", h.Login)
	api.GET("/news", h.News)

	api.GET("/auth/profile", h.Profile)
	api.PUT("/auth/profile", h.UpdateProfile)
	api.POST("/auth/avatar", h.UploadAvatar)
	api.GET("/auth/usage", h.Usage)

	api.POST("/contracts/upload", uploadLimit, h.UploadContract)
	api.POST("/contracts/chat", chatLimit, h.ChatContract)
	api.POST("/contracts/generate", uploadLimit, h.GenerateContract)
	api.GET("/contracts/dashboard", h.Dashboard)
	api.POST("/contracts/drafts", h.SaveDrafts)
	api.DELETE("/contracts/:id", h.DeleteContract)
	api.POST("/contracts/assist", chatLimit, h.Assist)

	api.POST("/admin/upload-law", auth.RequireGroups(opts.AdminGroup), h.UploadLaw)

	if h.svc.Billing != nil {
		api.POST("/stripe/webhook", h.StripeWebhook)
		api.POST("/billing/checkout", h.CreateCheckoutSession)
		api.POST("/billing/portal", h.CreatePortalSession)
	}
}

// ensureUser provisions an account the first time a verified identity is seen.
func (h *Handlers) ensureUser(ctx context.Context, claims *auth.Claims) {
	if h.svc.Accounts == nil {
		return
	}
	if err := h.svc.Accounts.EnsureUser(ctx, claims.Subject, claims.Email, claims.Username); err != nil {
		Logger(ctx).Warn("user provisioning failed", "sub", claims.Subject, "error", err)
	}
}

func userKey(c *gin.Context) string {
	if id := auth.UserID(c.Request.Context()); id != "" {
		return "user:" + id
	}
	return ""
}
