// Package cache provides a Redis-backed page cache for SODA responses.
//
// Socrata resource endpoints do not serve usable ETag or Expires headers
// for SoQL queries, so entries carry a fixed TTL instead of conditional
// request machinery. Repeated runs over the same date range within the TTL
// are served without touching the network.
package cache

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"
)

var (
	// ErrCacheMiss indicates the requested key was not found in cache.
	ErrCacheMiss = errors.New("cache miss")

	// ErrInvalidEntry indicates the cache entry is invalid or corrupted.
	ErrInvalidEntry = errors.New("invalid cache entry")
)

// Key identifies one cached page: a dataset plus the full SoQL query that
// produced it.
type Key struct {
	// Dataset is the Socrata resource identifier, e.g. "usep-8jbt".
	Dataset string

	// Query holds the page's query parameters ($limit, $offset, $where, $order).
	Query url.Values
}

// String generates a deterministic cache key string.
// Format: soda:dataset:param1=val1:param2=val2 with params sorted.
//
// Example:
//
//	soda:usep-8jbt:$limit=50000:$offset=0:$order=sale_date DESC:$where=...
func (k Key) String() string {
	parts := []string{"soda", k.Dataset}

	if len(k.Query) > 0 {
		queryKeys := make([]string, 0, len(k.Query))
		for key := range k.Query {
			queryKeys = append(queryKeys, key)
		}
		sort.Strings(queryKeys)

		for _, key := range queryKeys {
			parts = append(parts, fmt.Sprintf("%s=%s", key, k.Query.Get(key)))
		}
	}

	return strings.Join(parts, ":")
}

// Entry represents one cached page of records.
type Entry struct {
	// Records is the raw JSON array body as returned by the server.
	Records json.RawMessage `json:"records"`

	// FetchedAt is when the page was retrieved from the server.
	FetchedAt time.Time `json:"fetched_at"`
}
