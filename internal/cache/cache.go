// Package cache is the time-bounded result cache keyed by derived identity.
// It is a read-mostly optimization, not a system of record: last-write-wins
// and eventually correct within the TTL.
package cache

import "context"

// AggregatePrefix is the key namespace for aggregate views.
const AggregatePrefix = "aggregate:"

// AggregateKey returns the cache key for one user's aggregate view.
func AggregateKey(userID string) string {
	if userID == "" {
		userID = "anon"
	}
	return AggregatePrefix + userID
}

// Store is the cache contract: point get/set with the configured TTL,
// point invalidation, and textual-prefix invalidation for bulk clears.
type Store interface {
	// Get decodes the entry into dest, reporting whether a fresh entry
	// existed. Expired entries read as absent.
	Get(ctx context.Context, key string, dest any) (bool, error)
	// Set stores value under key with the configured TTL.
	Set(ctx context.Context, key string, value any) error
	// Invalidate removes one key.
	Invalidate(ctx context.Context, key string) error
	// InvalidatePrefix removes every key textually beginning with prefix,
	// returning how many were removed.
	InvalidatePrefix(ctx context.Context, prefix string) (int, error)
	// Len reports the number of live entries, for the metrics endpoint.
	Len(ctx context.Context) (int, error)
}
