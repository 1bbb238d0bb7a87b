package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stripe/stripe-go/v79"

	"github.com/financeai/bff/internal/billing"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/interface/middleware"
)

func webhookRouter(secret string) *gin.Engine {
	h := NewBillingHandler(billing.New(quietLogger(), secret, nil), quietLogger())
	r := gin.New()
	r.POST("/bff/stripe-webhook", h.Webhook)
	return r
}

func stripeSig(secret string, payload []byte) string {
	ts := fmt.Sprintf("%d", time.Now().Unix())
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts + "."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestWebhookEndpoint(t *testing.T) {
	const secret = "whsec_test"
	payload := fmt.Sprintf(
		`{"id":"evt_1","api_version":%q,"type":"checkout.session.completed","data":{"object":{"id":"cs_1"}}}`,
		stripe.APIVersion,
	)

	t.Run("valid", func(t *testing.T) {
		r := webhookRouter(secret)
		req := httptest.NewRequest(http.MethodPost, "/bff/stripe-webhook", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", stripeSig(secret, []byte(payload)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusOK {
			t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
		}
		if !strings.Contains(w.Body.String(), `"received":true`) {
			t.Errorf("body = %s", w.Body.String())
		}
	})

	t.Run("bad signature", func(t *testing.T) {
		r := webhookRouter(secret)
		req := httptest.NewRequest(http.MethodPost, "/bff/stripe-webhook", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", stripeSig("whsec_other", []byte(payload)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusBadRequest {
			t.Errorf("status = %d, want 400", w.Code)
		}
	})

	t.Run("secret not configured", func(t *testing.T) {
		r := webhookRouter("")
		req := httptest.NewRequest(http.MethodPost, "/bff/stripe-webhook", strings.NewReader(payload))
		req.Header.Set("Stripe-Signature", stripeSig(secret, []byte(payload)))
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		if w.Code != http.StatusInternalServerError {
			t.Errorf("status = %d, want 500", w.Code)
		}
	})
}

func TestCreateCheckoutSessionRequiresIdentity(t *testing.T) {
	h := NewBillingHandler(billing.New(quietLogger(), "", nil), quietLogger())
	r := gin.New()
	r.POST("/bff/create-checkout-session", h.CreateCheckoutSession)

	req := httptest.NewRequest(http.MethodPost, "/bff/create-checkout-session",
		strings.NewReader(`{"priceId":"price_1"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", w.Code)
	}
}

func TestCreateCheckoutSessionRejectsBadRedirectURL(t *testing.T) {
	h := NewBillingHandler(billing.New(quietLogger(), "", nil), quietLogger())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserKey, &identity.User{ID: "alice", Email: "alice@local"})
	})
	r.POST("/bff/create-checkout-session", h.CreateCheckoutSession)

	req := httptest.NewRequest(http.MethodPost, "/bff/create-checkout-session",
		strings.NewReader(`{"priceId":"price_1","successUrl":"not a url"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var out struct {
		Error   string            `json:"error"`
		Details map[string]string `json:"details"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != "invalid_payload" {
		t.Errorf("error = %q", out.Error)
	}
	// field keyed by its wire name, not the Go field name
	if _, ok := out.Details["successUrl"]; !ok {
		t.Errorf("details = %v, want successUrl entry", out.Details)
	}
}

func TestCreateCheckoutSessionRejectsMissingPrice(t *testing.T) {
	h := NewBillingHandler(billing.New(quietLogger(), "", nil), quietLogger())
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(middleware.CtxUserKey, &identity.User{ID: "alice", Email: "alice@local"})
	})
	r.POST("/bff/create-checkout-session", h.CreateCheckoutSession)

	req := httptest.NewRequest(http.MethodPost, "/bff/create-checkout-session", strings.NewReader(`{}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if !strings.Contains(w.Body.String(), "priceId required") {
		t.Errorf("body = %s", w.Body.String())
	}
}
