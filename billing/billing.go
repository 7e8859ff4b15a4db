// Package billing moves users between plans through Stripe subscriptions.
package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agreeme/app/models"
	"agreeme/store"

	"github.com/stripe/stripe-go/v79"
	portal "github.com/stripe/stripe-go/v79/billingportal/session"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/customer"
	"github.com/stripe/stripe-go/v79/webhook"
)

const metadataUserID = "user_id"

var (
	ErrNotConfigured   = errors.New("billing not configured")
	ErrNoCustomer      = errors.New("stripe customer missing for user")
	ErrInvalidPayload  = errors.New("invalid webhook payload")
	ErrSignature       = errors.New("signature verification failed")
	ErrUnresolvedOwner = errors.New("webhook event has no user")
)

// StripeAPI is the part of Stripe used here.
type StripeAPI interface {
	NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error)
	NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
	NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error)
}

// StripeClient calls the Stripe API with the package-level key.
type StripeClient struct{}

// NewStripeClient sets the Stripe secret key and returns a client.
func NewStripeClient(secretKey string) StripeClient {
	stripe.Key = secretKey
	return StripeClient{}
}

func (StripeClient) NewCustomer(params *stripe.CustomerParams) (*stripe.Customer, error) {
	return customer.New(params)
}

func (StripeClient) NewCheckoutSession(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
	return session.New(params)
}

func (StripeClient) NewPortalSession(params *stripe.BillingPortalSessionParams) (*stripe.BillingPortalSession, error) {
	return portal.New(params)
}

type Options struct {
	PriceIDProMonthly string
	FrontendURL       string
	WebhookSecret     string
}

type Service struct {
	users store.UserStore
	api   StripeAPI
	opts  Options
}

func NewService(users store.UserStore, api StripeAPI, opts Options) *Service {
	opts.FrontendURL = strings.TrimRight(opts.FrontendURL, "/")
	return &Service{users: users, api: api, opts: opts}
}

// Checkout starts a subscription checkout for userID and returns its URL.
func (s *Service) Checkout(ctx context.Context, userID string) (string, error) {
	if s.opts.PriceIDProMonthly == "" || s.opts.FrontendURL == "" {
		slog.Error("missing stripe config", "price_id", s.opts.PriceIDProMonthly != "", "frontend_url", s.opts.FrontendURL != "")
		return "", ErrNotConfigured
	}
	customerID, err := s.ensureCustomer(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("prepare billing: %w", err)
	}

	params := &stripe.CheckoutSessionParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		Customer:          stripe.String(customerID),
		ClientReferenceID: stripe.String(userID),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(s.opts.PriceIDProMonthly),
				Quantity: stripe.Int64(1),
			},
		},
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			Metadata: map[string]string{metadataUserID: userID},
		},
		SuccessURL: stripe.String(s.opts.FrontendURL + "/billing/success"),
		CancelURL:  stripe.String(s.opts.FrontendURL + "/billing/cancel"),
	}
	sess, err := s.api.NewCheckoutSession(params)
	if err != nil {
		return "", fmt.Errorf("create checkout session: %w", err)
	}
	return sess.URL, nil
}

// Portal opens the Stripe customer portal for userID.
func (s *Service) Portal(ctx context.Context, userID string) (string, error) {
	if s.opts.FrontendURL == "" {
		return "", ErrNotConfigured
	}
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("load customer: %w", err)
	}
	if user.StripeCustomerID == "" {
		return "", ErrNoCustomer
	}
	sess, err := s.api.NewPortalSession(&stripe.BillingPortalSessionParams{
		Customer:  stripe.String(user.StripeCustomerID),
		ReturnURL: stripe.String(s.opts.FrontendURL + "/settings/billing"),
	})
	if err != nil {
		return "", fmt.Errorf("create portal session: %w", err)
	}
	return sess.URL, nil
}

// HandleWebhook verifies a Stripe event and applies plan changes.
// Unhandled event types are accepted and ignored.
func (s *Service) HandleWebhook(ctx context.Context, payload []byte, signature string) error {
	if s.opts.WebhookSecret == "" {
		slog.Error("stripe webhook secret missing")
		return ErrNotConfigured
	}
	event, err := webhook.ConstructEventWithOptions(payload, signature, s.opts.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true})
	if err != nil {
		slog.Warn("stripe webhook signature failed", "err", err)
		return ErrSignature
	}

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted:
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		userID := sess.ClientReferenceID
		if userID == "" {
			userID = sess.Metadata[metadataUserID]
		}
		if userID == "" {
			return ErrUnresolvedOwner
		}
		if sess.Customer != nil && sess.Customer.ID != "" {
			if err := s.users.SetStripeCustomerID(ctx, userID, sess.Customer.ID); err != nil {
				return fmt.Errorf("record customer: %w", err)
			}
		}
		if err := s.users.SetPlan(ctx, userID, models.PlanPro); err != nil {
			return fmt.Errorf("upgrade %s: %w", userID, err)
		}
		slog.Info("plan upgraded", "user_id", userID)
	case stripe.EventTypeCustomerSubscriptionDeleted:
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidPayload, err)
		}
		userID := sub.Metadata[metadataUserID]
		if userID == "" {
			return ErrUnresolvedOwner
		}
		if err := s.users.SetPlan(ctx, userID, models.PlanFree); err != nil {
			return fmt.Errorf("downgrade %s: %w", userID, err)
		}
		slog.Info("plan downgraded", "user_id", userID)
	}
	return nil
}

// ensureCustomer returns the user's Stripe customer, creating and recording one when absent.
func (s *Service) ensureCustomer(ctx context.Context, userID string) (string, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	if user.StripeCustomerID != "" {
		return user.StripeCustomerID, nil
	}
	params := &stripe.CustomerParams{
		Metadata: map[string]string{metadataUserID: userID},
	}
	if user.Email != "" {
		params.Email = stripe.String(user.Email)
	}
	cust, err := s.api.NewCustomer(params)
	if err != nil {
		return "", err
	}
	if err := s.users.SetStripeCustomerID(ctx, userID, cust.ID); err != nil {
		return "", err
	}
	return cust.ID, nil
}
