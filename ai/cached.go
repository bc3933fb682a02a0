package ai

import (
	"context"
	"slices"

	lru "github.com/hashicorp/golang-lru/v2"
)

// CachedEmbedder memoises embeddings by exact text.
type CachedEmbedder struct {
	next  Embedder
	cache *lru.Cache[string, []float32]
}

// NewCachedEmbedder wraps next with an LRU of the given size.
func NewCachedEmbedder(next Embedder, size int) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 1024
	}
	c, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	return &CachedEmbedder{next: next, cache: c}, nil
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if v, ok := c.cache.Get(text); ok {
		return slices.Clone(v), nil
	}
	v, err := c.next.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	c.cache.Add(text, slices.Clone(v))
	return v, nil
}

// Len returns the number of cached vectors.
func (c *CachedEmbedder) Len() int { return c.cache.Len() }
