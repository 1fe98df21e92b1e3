// Package cache stores rendered diagrams so repeated renders of an
// unchanged graph skip Graphviz.
//
// Keys are derived from the DOT source and the output format with
// [ArtifactKey]; any change to the wiring, labels or values of the graph
// produces a different key. [FileCache] persists entries under a directory
// (the CLI uses the XDG cache directory) and [NullCache] disables caching.
package cache

import (
	"context"
	"time"
)

// DefaultTTL is how long rendered artifacts stay valid.
const DefaultTTL = 7 * 24 * time.Hour

// Cache is a byte store with per-entry expiry.
type Cache interface {
	// Get returns the data stored under key. A miss is not an error.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero never expires.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// ArtifactKey returns the key of a diagram rendered from dot in format.
func ArtifactKey(format, dot string) string {
	return hashKey("artifact", format, dot)
}
