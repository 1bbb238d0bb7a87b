package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/financeai/bff/internal/container"
	handlers "github.com/financeai/bff/internal/interface/http"
	"github.com/financeai/bff/internal/interface/middleware"
)

// BFFModule wires the aggregation and transaction-proxy routes.
// Public: GET /bff/health, GET /bff/metrics
// Protected: aggregate, transactions CRUD, combined-kpi, function-event,
// whoami.
type BFFModule struct {
	Handler *handlers.BFFHandler
}

func NewBFF(h *handlers.BFFHandler) *BFFModule {
	return &BFFModule{Handler: h}
}

func (m *BFFModule) Register(rg *gin.RouterGroup) {
	rg.GET("/health", m.Handler.Health)
	rg.GET("/metrics", m.Handler.Metrics)

	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetResolver(), container.GetLogger()))
	auth.Use(userRateLimit())
	{
		auth.GET("/whoami", m.Handler.Whoami)
		auth.GET("/aggregate", m.Handler.Aggregate)
		auth.GET("/transactions", m.Handler.ListTransactions)
		auth.POST("/transactions", m.Handler.CreateTransaction)
		auth.PUT("/transactions/:id", m.Handler.UpdateTransaction)
		auth.DELETE("/transactions/:id", m.Handler.DeleteTransaction)
		auth.GET("/combined-kpi", m.Handler.CombinedKPI)
		auth.POST("/function-event", m.Handler.FunctionEvent)
	}
}
