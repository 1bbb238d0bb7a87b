package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/interface/middleware"
	"github.com/financeai/bff/internal/report"
)

type ReportHandler struct {
	Bridge *report.Bridge
	Logger *logrus.Logger
	Mode   identity.Mode
}

func NewReportHandler(bridge *report.Bridge, logger *logrus.Logger, mode identity.Mode) *ReportHandler {
	return &ReportHandler{Bridge: bridge, Logger: logger, Mode: mode}
}

type reportRequest struct {
	UserID string `json:"userId"`
}

// Generate produces the financial analysis report from a bounded sample of
// the user's transactions.
func (h *ReportHandler) Generate(c *gin.Context) {
	var req reportRequest
	_ = c.ShouldBindJSON(&req) // body is optional

	userID := identity.EffectiveUserID(h.Mode, c.GetString(middleware.CtxUserIDKey), req.UserID)

	text, err := h.Bridge.Generate(c.Request.Context(), userID)
	if err != nil {
		var cfgErr *domain.ConfigError
		if errors.As(err, &cfgErr) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "report_not_configured"})
			return
		}
		h.Logger.WithField("err", err.Error()).Error("report_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "report_failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"report": text})
}
