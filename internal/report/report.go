// Package report builds the financial analysis report: a bounded sample of
// the user's transactions forwarded to the text-generation collaborator.
package report

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/internal/aggregate"
	"github.com/financeai/bff/internal/domain"
	"github.com/financeai/bff/internal/gateway"
)

const (
	// fetchCap bounds the upstream list; sampleCap trims what is actually
	// forwarded so the generation request stays small.
	fetchCap  = 200
	sampleCap = 80

	// NoResult is returned when the collaborator produces no text.
	NoResult = "No result"

	systemPrompt = "You are an expert financial analyst."
	userPrompt   = "You are a senior financial analyst. Produce a clear concise report " +
		"(summary + 3 actionable recommendations) from the following transactions data:\n\n"
)

// TextGenerator is the opaque text-generation collaborator: prompt in,
// text out, no structured contract beyond "returns a string or is empty".
type TextGenerator interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
}

type Bridge struct {
	gw     *gateway.Gateway
	gen    TextGenerator
	logger *logrus.Logger
	txBase string
}

func New(gw *gateway.Gateway, gen TextGenerator, logger *logrus.Logger, txBase string) *Bridge {
	return &Bridge{gw: gw, gen: gen, logger: logger, txBase: txBase}
}

// Generate fetches the user's most recent transactions (degrading to an
// empty sample on failure), trims them, and returns the collaborator's
// text verbatim.
func (b *Bridge) Generate(ctx context.Context, userID string) (string, error) {
	if b.gen == nil {
		return "", &domain.ConfigError{Feature: "report generation"}
	}

	fetch := aggregate.BestEffort[[]domain.Transaction](b.logger, "report_transactions", userID, b.txBase, nil,
		func(ctx context.Context) ([]domain.Transaction, error) {
			var txs []domain.Transaction
			q := url.Values{"userId": {userID}, "limit": {strconv.Itoa(fetchCap)}}
			if err := b.gw.GetJSON(ctx, b.txBase+"/transactions", q, &txs); err != nil {
				return nil, err
			}
			return txs, nil
		})
	txs, _ := fetch(ctx)

	sample := txs
	if len(sample) > sampleCap {
		sample = sample[len(sample)-sampleCap:]
	}
	if sample == nil {
		sample = []domain.Transaction{}
	}

	data, err := json.MarshalIndent(sample, "", "  ")
	if err != nil {
		return "", err
	}

	text, err := b.gen.Generate(ctx, systemPrompt, userPrompt+string(data))
	if err != nil {
		return "", err
	}
	if text == "" {
		return NoResult, nil
	}
	return text, nil
}
