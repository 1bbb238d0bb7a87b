package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/financeai/bff/internal/container"
	handlers "github.com/financeai/bff/internal/interface/http"
	"github.com/financeai/bff/internal/interface/middleware"
)

// ReportModule wires report generation.
type ReportModule struct {
	Handler *handlers.ReportHandler
}

func NewReport(h *handlers.ReportHandler) *ReportModule {
	return &ReportModule{Handler: h}
}

func (m *ReportModule) Register(rg *gin.RouterGroup) {
	auth := rg.Group("/")
	auth.Use(middleware.Auth(container.GetResolver(), container.GetLogger()))
	auth.Use(userRateLimit())
	auth.POST("/report", m.Handler.Generate)
}
