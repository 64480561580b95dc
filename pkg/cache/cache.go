// Package cache stores built pyramid levels so unchanged inputs are not
// merged twice.
//
// A [Cache] is a byte-oriented key/value store with per-entry TTL. Three
// backends are provided:
//
//   - [FileCache] for single-machine CLI usage
//   - [RedisCache] for a cache shared between machines
//   - [NullCache] when caching is disabled
//
// Keys are produced by a [Keyer]. A level key hashes the content hash of the
// level's input together with every policy value that influences the output,
// so a change in tolerance or gap distance never returns a stale layer.
//
//	c, _ := cache.NewFileCache(dir)
//	key := cache.NewDefaultKeyer().LevelKey(cache.Hash(input), cache.LevelKeyOpts{
//	    Level:     "kabupaten",
//	    Tolerance: 0.005,
//	})
//	data, hit, err := c.Get(ctx, key)
package cache

import (
	"context"
	"time"
)

// Cache is a byte store with per-entry expiration.
type Cache interface {
	// Get returns the value for key and whether it was present.
	// Expired entries are reported as misses.
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Set stores data under key. A ttl of zero means no expiration.
	Set(ctx context.Context, key string, data []byte, ttl time.Duration) error

	// Delete removes key. Deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error

	// Close releases resources held by the cache.
	Close() error
}

// TTLLevel is how long a built level stays cached by default.
const TTLLevel = 7 * 24 * time.Hour
