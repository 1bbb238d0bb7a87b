package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/financeai/bff/internal/container"
	handlers "github.com/financeai/bff/internal/interface/http"
	"github.com/financeai/bff/internal/interface/middleware"
)

// BillingModule wires checkout creation (identity required) and the
// signature-verified webhook (raw body, no auth middleware).
type BillingModule struct {
	Handler *handlers.BillingHandler
}

func NewBilling(h *handlers.BillingHandler) *BillingModule {
	return &BillingModule{Handler: h}
}

func (m *BillingModule) Register(rg *gin.RouterGroup) {
	rg.POST("/stripe-webhook", m.Handler.Webhook)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetResolver(), container.GetLogger()))
	auth.Use(userRateLimit())
	auth.POST("/create-checkout-session", m.Handler.CreateCheckoutSession)
}
