// Package aggregate orchestrates the concurrent reads behind /bff/aggregate
// and reduces them into the balance/series/recent-activity view.
package aggregate

import (
	"context"
	"encoding/json"
	"net/url"
	"sort"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/financeai/bff/internal/cache"
	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/gateway"
	"github.com/financeai/bff/pkg/helpers"
)

// recentLimit bounds the recent-activity slice of the view.
const recentLimit = 10

type Aggregator struct {
	gw          *gateway.Gateway
	store       cache.Store
	logger      *logrus.Logger
	txBase      string
	forecastURL string
}

func New(gw *gateway.Gateway, store cache.Store, logger *logrus.Logger, txBase, forecastURL string) *Aggregator {
	return &Aggregator{gw: gw, store: store, logger: logger, txBase: txBase, forecastURL: forecastURL}
}

// Aggregate returns the user's aggregate view, served from cache when a
// fresh entry exists. On a miss the transactions and forecast sources are
// read concurrently, each degrading independently to a safe default, and
// the reduced view is cached unconditionally to bound upstream load.
func (a *Aggregator) Aggregate(ctx context.Context, userID string) (*domain.AggregateView, bool, error) {
	key := cache.AggregateKey(userID)

	var cached domain.AggregateView
	hit, err := a.store.Get(ctx, key, &cached)
	if err != nil {
		a.logger.WithFields(helpers.OpFields("aggregate", userID, "")).
			WithField("err", err.Error()).Warn("cache_read_failed")
	}
	if hit {
		return &cached, true, nil
	}

	var (
		txs      []domain.Transaction
		forecast json.RawMessage
	)

	fetchTxs := BestEffort(a.logger, "aggregate_transactions", userID, a.txBase, nil, a.fetchTransactions(userID))
	fetchForecast := BestEffort[json.RawMessage](a.logger, "aggregate_forecast", userID, a.forecastURL, nil, a.fetchForecast(userID))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		txs, err = fetchTxs(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		forecast, err = fetchForecast(gctx)
		return err
	})
	// best-effort fetches never fail
	_ = g.Wait()

	view := a.reduce(userID, txs, forecast)

	if err := a.store.Set(ctx, key, view); err != nil {
		a.logger.WithFields(helpers.OpFields("aggregate", userID, "")).
			WithField("err", err.Error()).Warn("cache_write_failed")
	}
	return view, false, nil
}

func (a *Aggregator) fetchTransactions(userID string) FetchFunc[[]domain.Transaction] {
	return func(ctx context.Context) ([]domain.Transaction, error) {
		var txs []domain.Transaction
		q := url.Values{"userId": {userID}}
		if err := a.gw.GetJSON(ctx, a.txBase+"/transactions", q, &txs); err != nil {
			return nil, err
		}
		return txs, nil
	}
}

func (a *Aggregator) fetchForecast(userID string) FetchFunc[json.RawMessage] {
	return func(ctx context.Context) (json.RawMessage, error) {
		var payload json.RawMessage
		q := url.Values{"userId": {userID}}
		if err := a.gw.GetJSON(ctx, a.forecastURL, q, &payload); err != nil {
			return nil, err
		}
		return payload, nil
	}
}

// reduce computes balance, month series, and recent activity. The list is
// assumed pre-sorted descending by date by the transactions service.
func (a *Aggregator) reduce(userID string, txs []domain.Transaction, forecast json.RawMessage) *domain.AggregateView {
	balance := 0.0
	buckets := map[string]float64{}
	for _, t := range txs {
		sign := domain.Sign(t.Type)
		if sign == 0 {
			a.logger.WithFields(logrus.Fields{
				"op":      "aggregate",
				"user_id": userID,
				"type":    t.Type,
				"tx_id":   t.ID,
			}).Warn("unknown_transaction_type")
		}
		signed := float64(sign) * t.Amount
		balance += signed
		if t.Date.IsZero() {
			continue
		}
		buckets[t.Date.Format("2006-01")] += signed
	}

	series := make([]domain.SeriesPoint, 0, len(buckets))
	for month, value := range buckets {
		series = append(series, domain.SeriesPoint{Month: month, Value: value})
	}
	sort.Slice(series, func(i, j int) bool { return series[i].Month < series[j].Month })

	recent := txs
	if len(recent) > recentLimit {
		recent = recent[:recentLimit]
	}
	if recent == nil {
		recent = []domain.Transaction{}
	}

	return &domain.AggregateView{
		UserID:       userID,
		Balance:      balance,
		Series:       series,
		Recent:       recent,
		FunctionData: forecast,
	}
}
