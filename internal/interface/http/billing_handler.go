package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/billing"
	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/interface/middleware"
	"github.com/financeai/bff/pkg/validation"
)

type BillingHandler struct {
	Bridge *billing.Bridge
	Logger *logrus.Logger
}

func NewBillingHandler(bridge *billing.Bridge, logger *logrus.Logger) *BillingHandler {
	return &BillingHandler{Bridge: bridge, Logger: logger}
}

// CreateCheckoutSession builds a subscription checkout for the resolved
// identity and returns the provider's redirect verbatim.
func (h *BillingHandler) CreateCheckoutSession(c *gin.Context) {
	user := middleware.UserFrom(c)
	if user == nil || user.ID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing_token"})
		return
	}

	var in billing.CheckoutInput
	if err := c.ShouldBindJSON(&in); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "details": validation.ToDetails(err)})
		return
	}

	sess, err := h.Bridge.CreateCheckoutSession(c.Request.Context(), user.Email, c.GetHeader("Origin"), in)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "priceId required"})
			return
		}
		h.Logger.WithField("err", err.Error()).Error("stripe_session_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "stripe_session_failed"})
		return
	}
	c.JSON(http.StatusOK, sess)
}

// Webhook verifies the raw payload signature before routing. Verification
// failure is terminal with no side effects.
func (h *BillingHandler) Webhook(c *gin.Context) {
	payload, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.String(http.StatusBadRequest, "Webhook Error: unreadable body")
		return
	}

	err = h.Bridge.HandleWebhook(c.Request.Context(), payload, c.GetHeader("Stripe-Signature"))
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			c.String(http.StatusInternalServerError, "stripe webhook secret not configured")
			return
		}
		c.String(http.StatusBadRequest, "Webhook Error: signature verification failed")
		return
	}
	c.JSON(http.StatusOK, gin.H{"received": true})
}
