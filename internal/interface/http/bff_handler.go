package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/financeai/bff/internal/aggregate"
	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/dispatch"
	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/internal/identity"
	"github.com/financeai/bff/internal/interface/middleware"
	"github.com/financeai/bff/pkg/validation"
)

var processStart = time.Now()

// BFFHandler serves the aggregation and transaction-proxy surface.
type BFFHandler struct {
	Agg           *aggregate.Aggregator
	Disp          *dispatch.Dispatcher
	GW            *gateway.Gateway
	Store         cache.Store
	Logger        *logrus.Logger
	Mode          identity.Mode
	TxBase        string
	AnalyticsBase string
	FnBase        string
}

func NewBFFHandler(agg *aggregate.Aggregator, disp *dispatch.Dispatcher, gw *gateway.Gateway, store cache.Store, logger *logrus.Logger, mode identity.Mode, txBase, analyticsBase, fnBase string) *BFFHandler {
	return &BFFHandler{
		Agg:           agg,
		Disp:          disp,
		GW:            gw,
		Store:         store,
		Logger:        logger,
		Mode:          mode,
		TxBase:        txBase,
		AnalyticsBase: analyticsBase,
		FnBase:        fnBase,
	}
}

type aggregateResponse struct {
	FromCache bool `json:"fromCache"`
	*domain.AggregateView
}

// Aggregate combines the transactions service and the forecast function
// into one view, cache-first.
func (h *BFFHandler) Aggregate(c *gin.Context) {
	userID := identity.EffectiveUserID(h.Mode, c.GetString(middleware.CtxUserIDKey), c.Query("userId"))

	view, fromCache, err := h.Agg.Aggregate(c.Request.Context(), userID)
	if err != nil {
		h.Logger.WithField("err", err.Error()).Error("aggregate_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "aggregate_failed"})
		return
	}
	c.JSON(http.StatusOK, aggregateResponse{FromCache: fromCache, AggregateView: view})
}

// ListTransactions proxies the user's transaction list. Primary data: a
// failure here propagates instead of degrading.
func (h *BFFHandler) ListTransactions(c *gin.Context) {
	userID := identity.EffectiveUserID(h.Mode, c.GetString(middleware.CtxUserIDKey), c.Query("userId"))

	q := url.Values{"userId": {userID}}
	if limit := c.Query("limit"); limit != "" {
		q.Set("limit", limit)
	}
	var list json.RawMessage
	if err := h.GW.GetJSON(c.Request.Context(), h.TxBase+"/transactions", q, &list); err != nil {
		h.Logger.WithField("err", err.Error()).Error("list_transactions_failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "list_transactions_failed"})
		return
	}
	c.Data(http.StatusOK, "application/json", list)
}

// CreateTransaction dispatches a create, sync or async per the mode query.
func (h *BFFHandler) CreateTransaction(c *gin.Context) {
	var p dispatch.WritePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "details": validation.ToDetails(err)})
		return
	}
	p.UserID = identity.EffectiveUserID(h.Mode, c.GetString(middleware.CtxUserIDKey), p.UserID)

	res, err := h.Disp.Create(c.Request.Context(), c.Query("mode"), p)
	if err != nil {
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			c.JSON(http.StatusBadRequest, validationBody(ve))
			return
		}
		h.Logger.WithField("err", err.Error()).Error("create_transaction_failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "create_transaction_failed"})
		return
	}
	c.JSON(res.Status, res.Body)
}

// UpdateTransaction forwards a patch to the owning collaborator. Upstream
// errors such as 404 not_found_or_not_owned reach the caller unchanged.
func (h *BFFHandler) UpdateTransaction(c *gin.Context) {
	var p dispatch.UpdatePayload
	if err := c.ShouldBindJSON(&p); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload", "details": validation.ToDetails(err)})
		return
	}
	userID := c.GetString(middleware.CtxUserIDKey)

	res, err := h.Disp.Update(c.Request.Context(), c.Param("id"), userID, p)
	if err != nil {
		h.writeWriteError(c, "update_transaction_failed", err)
		return
	}
	c.JSON(res.Status, res.Body)
}

// DeleteTransaction forwards a deletion to the owning collaborator.
func (h *BFFHandler) DeleteTransaction(c *gin.Context) {
	userID := c.GetString(middleware.CtxUserIDKey)

	res, err := h.Disp.Delete(c.Request.Context(), c.Param("id"), userID)
	if err != nil {
		h.writeWriteError(c, "delete_transaction_failed", err)
		return
	}
	c.JSON(res.Status, res.Body)
}

// CombinedKPI pairs the transactions summary with the analytics KPIs; each
// side degrades independently.
func (h *BFFHandler) CombinedKPI(c *gin.Context) {
	userID := identity.EffectiveUserID(h.Mode, c.GetString(middleware.CtxUserIDKey), c.Query("userId"))

	var txSummary, analytics json.RawMessage
	fetchSummary := aggregate.BestEffort(h.Logger, "combined_kpi_tx", userID, h.TxBase,
		json.RawMessage(`{"error":"tx_error"}`), h.fetchRaw(h.TxBase+"/summary", userID))
	fetchKPIs := aggregate.BestEffort(h.Logger, "combined_kpi_analytics", userID, h.AnalyticsBase,
		json.RawMessage(`{"error":"analytics_error"}`), h.fetchRaw(h.AnalyticsBase+"/kpis", userID))

	g, gctx := errgroup.WithContext(c.Request.Context())
	g.Go(func() error {
		var err error
		txSummary, err = fetchSummary(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		analytics, err = fetchKPIs(gctx)
		return err
	})
	_ = g.Wait()

	c.JSON(http.StatusOK, gin.H{"userId": userID, "txSummary": txSummary, "analytics": analytics})
}

// FunctionEvent forwards a generic event to the function collaborator,
// passing its status and body through.
func (h *BFFHandler) FunctionEvent(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_payload"})
		return
	}
	hdr := http.Header{}
	hdr.Set("x-origin-bff", "financeai-bff")
	resp, err := h.GW.PostJSON(c.Request.Context(), h.FnBase+"/event", json.RawMessage(raw), hdr)
	if err != nil {
		h.Logger.WithField("err", err.Error()).Error("function_event_error")
		c.JSON(http.StatusBadGateway, gin.H{"error": "function_event_failed"})
		return
	}
	c.Data(resp.Status, "application/json", resp.Body)
}

// Whoami exposes the identity decoded from the token.
func (h *BFFHandler) Whoami(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"user": middleware.UserFrom(c)})
}

// Health is public.
func (h *BFFHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"ok":       true,
		"ts":       time.Now().UTC().Format(time.RFC3339),
		"mockAuth": h.Mode == identity.Permissive,
	})
}

// Metrics is a lightweight public snapshot.
func (h *BFFHandler) Metrics(c *gin.Context) {
	keys, err := h.Store.Len(c.Request.Context())
	if err != nil {
		keys = -1
	}
	c.JSON(http.StatusOK, gin.H{
		"uptime":    time.Since(processStart).Seconds(),
		"ts":        time.Now().UTC().Format(time.RFC3339),
		"cacheKeys": keys,
	})
}

func (h *BFFHandler) fetchRaw(rawURL, userID string) aggregate.FetchFunc[json.RawMessage] {
	return func(ctx context.Context) (json.RawMessage, error) {
		var out json.RawMessage
		q := url.Values{"userId": {userID}}
		if err := h.GW.GetJSON(ctx, rawURL, q, &out); err != nil {
			return nil, err
		}
		return out, nil
	}
}

// writeWriteError maps dispatcher errors for update/delete: validation to
// 400, upstream replies verbatim, everything else to the generic code.
func (h *BFFHandler) writeWriteError(c *gin.Context, code string, err error) {
	var ve *domain.ValidationError
	if errors.As(err, &ve) {
		c.JSON(http.StatusBadRequest, validationBody(ve))
		return
	}
	var ue *domain.UpstreamError
	if errors.As(err, &ue) && ue.Status > 0 && len(ue.Body) > 0 {
		c.Data(ue.Status, "application/json", ue.Body)
		return
	}
	h.Logger.WithField("err", err.Error()).Error(code)
	c.JSON(http.StatusInternalServerError, gin.H{"error": code})
}

func validationBody(ve *domain.ValidationError) gin.H {
	body := gin.H{"error": "validation_failed", "field": ve.Field, "message": ve.Message}
	if len(ve.Allowed) > 0 {
		body["allowed"] = ve.Allowed
	}
	return body
}
