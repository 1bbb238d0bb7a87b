package domain

import "encoding/json"

// SeriesPoint is one month bucket of signed transaction volume.
type SeriesPoint struct {
	Month string  `json:"month"` // YYYY-MM
	Value float64 `json:"value"`
}

// AggregateView is the combined balance/series/recent/forecast payload for
// one user. Ephemeral: computed on cache miss and stored under a fixed TTL.
type AggregateView struct {
	UserID       string          `json:"userId"`
	Balance      float64         `json:"balance"`
	Series       []SeriesPoint   `json:"series"`
	Recent       []Transaction   `json:"recent"`
	FunctionData json.RawMessage `json:"functionData"`
}
