// Package cache wraps any embedder with a ristretto in-memory cache keyed
// on exact text, so repeated Process/Remember calls on identical content
// (common with chat "ok"/retry loops upstream of the classifier's own
// filtering) skip the embedding round-trip entirely.
package cache

import (
	"context"

	"github.com/dgraph-io/ristretto"
)

// Embedder is the minimal shape this package wraps; engram.Embedder and
// every provider in embedder/local and embedder/remote satisfy it.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachingEmbedder decorates an Embedder with a bounded ristretto cache.
type CachingEmbedder struct {
	inner Embedder
	cache *ristretto.Cache
}

// New wraps inner with a cache sized for roughly maxEntries cached
// vectors (cost is counted per-entry, so MaxCost == maxEntries).
func New(inner Embedder, maxEntries int64) (*CachingEmbedder, error) {
	c, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: maxEntries * 10,
		MaxCost:     maxEntries,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &CachingEmbedder{inner: inner, cache: c}, nil
}

// Embed returns the cached vector for text if present, else embeds via
// inner and caches the result.
func (c *CachingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return v.([]float32), nil
	}
	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Set(text, vec, 1)
	return vec, nil
}

// Close releases the cache's background goroutines.
func (c *CachingEmbedder) Close() {
	c.cache.Close()
}
