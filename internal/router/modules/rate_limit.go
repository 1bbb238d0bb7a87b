package modules

import (
	"github.com/gin-gonic/gin"

	"github.com/financeai/bff/internal/container"
	"github.com/financeai/bff/internal/interface/middleware"
)

// userRateLimit limits authenticated traffic per resolved identity, on top
// of the registry's per-IP limit. A no-op when Redis is absent.
func userRateLimit() gin.HandlerFunc {
	cfg := container.GetConfig()
	rdb := container.GetRedis()
	if cfg == nil || rdb == nil {
		return func(c *gin.Context) { c.Next() }
	}
	return middleware.RateLimit(rdb, cfg.RateLimitMax, cfg.RateLimitWindow, middleware.KeyByUser())
}
