package handlers

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/gateway"
)

// InternalHandler serves operator endpoints guarded by the shared internal
// secret rather than user identity.
type InternalHandler struct {
	GW            *gateway.Gateway
	Store         cache.Store
	Logger        *logrus.Logger
	Secret        string
	TxBase        string
	AnalyticsBase string
}

func NewInternalHandler(gw *gateway.Gateway, store cache.Store, logger *logrus.Logger, secret, txBase, analyticsBase string) *InternalHandler {
	return &InternalHandler{GW: gw, Store: store, Logger: logger, Secret: secret, TxBase: txBase, AnalyticsBase: analyticsBase}
}

// Seed triggers both services' seed endpoints, collecting each outcome
// independently, then bulk-clears every aggregate cache entry.
func (h *InternalHandler) Seed(c *gin.Context) {
	secret := c.GetHeader("x-internal-secret")
	if secret == "" || subtle.ConstantTimeCompare([]byte(secret), []byte(h.Secret)) != 1 {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	targets := []string{h.TxBase + "/internal/seed", h.AnalyticsBase + "/internal/seed"}
	results := make([]any, len(targets))

	var wg sync.WaitGroup
	for i, target := range targets {
		wg.Add(1)
		go func(i int, target string) {
			defer wg.Done()
			results[i] = h.seedOne(c.Request.Context(), target)
		}(i, target)
	}
	wg.Wait()

	cleared, err := h.Store.InvalidatePrefix(c.Request.Context(), cache.AggregatePrefix)
	if err != nil {
		h.Logger.WithField("err", err.Error()).Warn("seed_cache_clear_failed")
	}

	c.JSON(http.StatusOK, gin.H{"results": results, "cacheCleared": cleared})
}

func (h *InternalHandler) seedOne(ctx context.Context, target string) any {
	resp, err := h.GW.PostJSON(ctx, target, nil, nil)
	if err != nil {
		h.Logger.WithField("target", target).WithField("err", err.Error()).Warn("seed_target_failed")
		return map[string]any{"target": target, "error": err.Error()}
	}
	var body any = json.RawMessage(resp.Body)
	if len(resp.Body) == 0 {
		body = nil
	}
	return map[string]any{"target": target, "status": resp.Status, "body": body}
}
