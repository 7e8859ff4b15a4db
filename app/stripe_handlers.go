package app

import (
	"errors"
	"io"
	"net/http"

	"agreeme/auth"
	"agreeme/billing"

	"github.com/gin-gonic/gin"
)

// CreateCheckoutSession starts a Stripe Checkout Session for the authenticated user.
func (h *Handlers) CreateCheckoutSession(c *gin.Context) {
	ctx := c.Request.Context()
	url, err := h.svc.Billing.Checkout(ctx, auth.UserID(ctx))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": url})
	case errors.Is(err, billing.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
	default:
		Logger(ctx).Error("stripe checkout failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create checkout session"})
	}
}

// CreatePortalSession creates a Stripe Customer Portal session for the authenticated user.
func (h *Handlers) CreatePortalSession(c *gin.Context) {
	ctx := c.Request.Context()
	url, err := h.svc.Billing.Portal(ctx, auth.UserID(ctx))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"url": url})
	case errors.Is(err, billing.ErrNoCustomer):
		c.JSON(http.StatusBadRequest, gin.H{"error": "stripe customer missing for user"})
	case errors.Is(err, billing.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "billing not configured"})
	default:
		Logger(ctx).Error("stripe portal failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create portal session"})
	}
}

// StripeWebhook handles Stripe subscription events and updates user plans.
func (h *Handlers) StripeWebhook(c *gin.Context) {
	const maxBodyBytes = int64(65536)
	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxBodyBytes))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid payload"})
		return
	}

	err = h.svc.Billing.HandleWebhook(c.Request.Context(), body, c.GetHeader("Stripe-Signature"))
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	case errors.Is(err, billing.ErrSignature):
		c.JSON(http.StatusBadRequest, gin.H{"error": "signature verification failed"})
	case errors.Is(err, billing.ErrInvalidPayload), errors.Is(err, billing.ErrUnresolvedOwner):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, billing.ErrNotConfigured):
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook not configured"})
	default:
		Logger(c.Request.Context()).Error("stripe webhook failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to update user"})
	}
}
