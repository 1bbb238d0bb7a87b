// Package billing bridges the payment provider: checkout session creation
// and signature-verified webhook dispatch. No business logic lives here
// beyond event routing; verified events are fanned out to the billing
// queue for downstream consumers.
package billing

import (
	"context"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"
	"github.com/stripe/stripe-go/v79/webhook"

	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/pkg/helpers"
)

// CheckoutInput are the client-supplied checkout parameters. SuccessURL and
// CancelURL fall back to origin-derived defaults when empty.
type CheckoutInput struct {
	PriceID    string `json:"priceId"`
	SuccessURL string `json:"successUrl" binding:"omitempty,url"`
	CancelURL  string `json:"cancelUrl" binding:"omitempty,url"`
}

// CheckoutSession is the redirect handed back to the frontend.
type CheckoutSession struct {
	URL string `json:"url"`
	ID  string `json:"id"`
}

// sessionCreator matches stripe's session.New; swapped in tests.
type sessionCreator func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)

type Bridge struct {
	logger        *logrus.Logger
	webhookSecret string
	publisher     *helpers.RabbitPublisher
	createSession sessionCreator
}

// New wires the bridge. The stripe package key must already be set by the
// caller. publisher may be nil; events are then only logged.
func New(logger *logrus.Logger, webhookSecret string, publisher *helpers.RabbitPublisher) *Bridge {
	return &Bridge{
		logger:        logger,
		webhookSecret: webhookSecret,
		publisher:     publisher,
		createSession: session.New,
	}
}

// CreateCheckoutSession builds a subscription checkout for the resolved
// identity and returns the provider's redirect URL and session id verbatim.
func (b *Bridge) CreateCheckoutSession(ctx context.Context, email, origin string, in CheckoutInput) (*CheckoutSession, error) {
	if in.PriceID == "" {
		return nil, &domain.ValidationError{Field: "priceId", Message: "is required"}
	}
	successURL := in.SuccessURL
	if successURL == "" {
		successURL = origin + "/success?session_id={CHECKOUT_SESSION_ID}"
	}
	cancelURL := in.CancelURL
	if cancelURL == "" {
		cancelURL = origin + "/cancel"
	}

	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{Price: stripe.String(in.PriceID), Quantity: stripe.Int64(1)},
		},
		SuccessURL: stripe.String(successURL),
		CancelURL:  stripe.String(cancelURL),
	}
	if email != "" {
		params.CustomerEmail = stripe.String(email)
	}
	params.Context = ctx

	s, err := b.createSession(params)
	if err != nil {
		return nil, err
	}
	return &CheckoutSession{URL: s.URL, ID: s.ID}, nil
}

// HandleWebhook verifies the raw payload against the signature header and
// routes the event by type. Unknown types are logged and acknowledged:
// this is an append-only event log, not a state machine.
func (b *Bridge) HandleWebhook(ctx context.Context, payload []byte, sigHeader string) error {
	if b.webhookSecret == "" {
		b.logger.Warn("stripe_webhook_secret_not_configured")
		return &domain.ConfigError{Feature: "stripe webhook secret"}
	}

	event, err := webhook.ConstructEvent(payload, sigHeader, b.webhookSecret)
	if err != nil {
		b.logger.WithField("err", err.Error()).Error("stripe_webhook_signature_invalid")
		return &domain.AuthError{Code: "invalid_signature"}
	}

	switch event.Type {
	case "checkout.session.completed":
		b.logger.WithFields(logrus.Fields{
			"event_id": event.ID,
			"session":  objectID(event),
		}).Info("checkout_session_completed")
	case "invoice.payment_succeeded":
		b.logger.WithField("invoice", objectID(event)).Info("invoice_payment_succeeded")
	case "customer.subscription.deleted":
		b.logger.WithField("subscription", objectID(event)).Info("subscription_deleted")
	default:
		b.logger.WithField("type", string(event.Type)).Debug("stripe_event_unhandled")
	}

	b.publish(ctx, event)
	return nil
}

// publish forwards the acknowledged event to the billing queue. Publish
// failures are logged, never surfaced: the webhook has been accepted.
func (b *Bridge) publish(ctx context.Context, event stripe.Event) {
	if b.publisher == nil {
		return
	}
	msg := map[string]any{
		"id":     event.ID,
		"type":   string(event.Type),
		"object": objectID(event),
	}
	if err := b.publisher.PublishJSON(ctx, msg); err != nil {
		b.logger.WithField("err", err.Error()).Warn("billing_event_publish_failed")
	}
}

func objectID(event stripe.Event) string {
	if event.Data == nil {
		return ""
	}
	id, _ := event.Data.Object["id"].(string)
	return id
}
