package billing

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v79"

	"github.com/financeai/bff/internal/domain"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(nopWriter{})
	return l
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestCreateCheckoutSession(t *testing.T) {
	b := New(quietLogger(), "", nil)

	var captured *stripe.CheckoutSessionParams
	b.createSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		captured = params
		return &stripe.CheckoutSession{ID: "cs_123", URL: "https://pay.example/cs_123"}, nil
	}

	got, err := b.CreateCheckoutSession(context.Background(), "alice@example.com", "https://app.example",
		CheckoutInput{PriceID: "price_1"})
	if err != nil {
		t.Fatalf("CreateCheckoutSession failed: %v", err)
	}
	if got.ID != "cs_123" || got.URL != "https://pay.example/cs_123" {
		t.Errorf("session = %+v", got)
	}

	if captured == nil {
		t.Fatal("session creator never called")
	}
	if *captured.Mode != string(stripe.CheckoutSessionModeSubscription) {
		t.Errorf("mode = %q", *captured.Mode)
	}
	if len(captured.LineItems) != 1 || *captured.LineItems[0].Price != "price_1" || *captured.LineItems[0].Quantity != 1 {
		t.Errorf("line items = %+v", captured.LineItems)
	}
	if *captured.CustomerEmail != "alice@example.com" {
		t.Errorf("customer email = %q", *captured.CustomerEmail)
	}
	if *captured.SuccessURL != "https://app.example/success?session_id={CHECKOUT_SESSION_ID}" {
		t.Errorf("success url = %q", *captured.SuccessURL)
	}
	if *captured.CancelURL != "https://app.example/cancel" {
		t.Errorf("cancel url = %q", *captured.CancelURL)
	}
}

func TestCreateCheckoutSessionExplicitURLs(t *testing.T) {
	b := New(quietLogger(), "", nil)
	b.createSession = func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		if *params.SuccessURL != "https://other/done" || *params.CancelURL != "https://other/back" {
			t.Errorf("urls = %q %q", *params.SuccessURL, *params.CancelURL)
		}
		return &stripe.CheckoutSession{ID: "cs_1", URL: "u"}, nil
	}

	_, err := b.CreateCheckoutSession(context.Background(), "", "https://app.example", CheckoutInput{
		PriceID:    "price_1",
		SuccessURL: "https://other/done",
		CancelURL:  "https://other/back",
	})
	if err != nil {
		t.Fatalf("CreateCheckoutSession failed: %v", err)
	}
}

func TestCreateCheckoutSessionRequiresPrice(t *testing.T) {
	b := New(quietLogger(), "", nil)
	b.createSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		t.Error("session creator called for an invalid input")
		return nil, nil
	}

	_, err := b.CreateCheckoutSession(context.Background(), "", "https://app.example", CheckoutInput{})
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if ve.Field != "priceId" {
		t.Errorf("field = %q, want priceId", ve.Field)
	}
}

func TestCreateCheckoutSessionProviderError(t *testing.T) {
	b := New(quietLogger(), "", nil)
	b.createSession = func(*stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
		return nil, errors.New("provider down")
	}
	if _, err := b.CreateCheckoutSession(context.Background(), "", "o", CheckoutInput{PriceID: "p"}); err == nil {
		t.Error("expected provider error to propagate")
	}
}

// eventJSON builds a minimal provider event carrying the API version the
// SDK's constructor insists on.
func eventJSON(id, eventType, objectID string) []byte {
	return []byte(fmt.Sprintf(
		`{"id":%q,"api_version":%q,"type":%q,"data":{"object":{"id":%q}}}`,
		id, stripe.APIVersion, eventType, objectID,
	))
}

// signPayload produces a provider-format signature header for payload.
func signPayload(secret string, payload []byte, at time.Time) string {
	ts := fmt.Sprintf("%d", at.Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestHandleWebhook(t *testing.T) {
	const secret = "whsec_test"
	payload := eventJSON("evt_1", "checkout.session.completed", "cs_1")

	t.Run("valid signature", func(t *testing.T) {
		b := New(quietLogger(), secret, nil)
		sig := signPayload(secret, payload, time.Now())
		if err := b.HandleWebhook(context.Background(), payload, sig); err != nil {
			t.Errorf("HandleWebhook failed: %v", err)
		}
	})

	t.Run("unknown event type is acknowledged", func(t *testing.T) {
		b := New(quietLogger(), secret, nil)
		p := eventJSON("evt_2", "charge.refunded", "ch_1")
		sig := signPayload(secret, p, time.Now())
		if err := b.HandleWebhook(context.Background(), p, sig); err != nil {
			t.Errorf("unknown event rejected: %v", err)
		}
	})

	t.Run("wrong secret", func(t *testing.T) {
		b := New(quietLogger(), secret, nil)
		sig := signPayload("whsec_other", payload, time.Now())
		err := b.HandleWebhook(context.Background(), payload, sig)
		var ae *domain.AuthError
		if !errors.As(err, &ae) {
			t.Fatalf("error = %v, want AuthError", err)
		}
		if ae.Code != "invalid_signature" {
			t.Errorf("code = %q", ae.Code)
		}
	})

	t.Run("tampered payload", func(t *testing.T) {
		b := New(quietLogger(), secret, nil)
		sig := signPayload(secret, payload, time.Now())
		tampered := eventJSON("evt_1", "checkout.session.completed", "cs_EVIL")
		if err := b.HandleWebhook(context.Background(), tampered, sig); err == nil {
			t.Error("tampered payload accepted")
		}
	})

	t.Run("stale timestamp", func(t *testing.T) {
		b := New(quietLogger(), secret, nil)
		sig := signPayload(secret, payload, time.Now().Add(-time.Hour))
		if err := b.HandleWebhook(context.Background(), payload, sig); err == nil {
			t.Error("replayed signature accepted")
		}
	})

	t.Run("secret unset", func(t *testing.T) {
		b := New(quietLogger(), "", nil)
		sig := signPayload(secret, payload, time.Now())
		err := b.HandleWebhook(context.Background(), payload, sig)
		var ce *domain.ConfigError
		if !errors.As(err, &ce) {
			t.Fatalf("error = %v, want ConfigError", err)
		}
	})
}
