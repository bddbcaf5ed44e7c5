package embeddings

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// Cached memoizes another Embedder in an expiring LRU. Rebuilding the index
// for a re-uploaded contract and repeated queries hit the cache.
type Cached struct {
	next  Embedder
	cache *expirable.LRU[string, []float32]
}

// WithCache wraps e in an LRU of size entries that expire after ttl.
// A non-positive size or ttl returns e unchanged.
func WithCache(e Embedder, size int, ttl time.Duration) Embedder {
	if e == nil || size <= 0 || ttl <= 0 {
		return e
	}
	return &Cached{
		next:  e,
		cache: expirable.NewLRU[string, []float32](size, nil, ttl),
	}
}

func (c *Cached) Model() string {
	return c.next.Model()
}

func (c *Cached) Embed(ctx context.Context, text string) ([]float32, error) {
	key := cacheKey(c.next.Model(), text)
	if cached, ok := c.cache.Get(key); ok {
		slog.Debug("embedding cache hit", "model", c.next.Model())
		return clone(cached), nil
	}

	vec, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(key, clone(vec))
	return vec, nil
}

func cacheKey(model, text string) string {
	sum := sha256.Sum256([]byte(text))
	return model + ":" + hex.EncodeToString(sum[:])
}

func clone(values []float32) []float32 {
	if len(values) == 0 {
		return nil
	}
	out := make([]float32, len(values))
	copy(out, values)
	return out
}
