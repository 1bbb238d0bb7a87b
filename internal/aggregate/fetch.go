package aggregate

import (
	"context"

	"github.com/sirupsen/logrus"

	"github.com/financeai/bff/pkg/helpers"
)

// FetchFunc is one upstream read producing a value of type T.
type FetchFunc[T any] func(ctx context.Context) (T, error)

// BestEffort wraps a fetch so it always produces a value: on failure the
// error is logged and the fallback substituted. Used for optional
// enrichment data where a single upstream outage must not fail the caller.
func BestEffort[T any](logger *logrus.Logger, op, userID, target string, fallback T, fetch FetchFunc[T]) FetchFunc[T] {
	return func(ctx context.Context) (T, error) {
		v, err := fetch(ctx)
		if err != nil {
			if logger != nil {
				logger.WithFields(helpers.OpFields(op, userID, target)).
					WithField("err", err.Error()).Warn("upstream_degraded")
			}
			return fallback, nil
		}
		return v, nil
	}
}
