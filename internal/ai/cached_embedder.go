package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	lru "github.com/hashicorp/golang-lru/v2"
)

// DefaultEmbeddingCacheSize is the number of question embeddings kept in memory.
const DefaultEmbeddingCacheSize = 1000

type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// CachedEmbedder keeps recent embeddings in an LRU so repeated questions skip
// the provider. Empty vectors are never cached.
type CachedEmbedder struct {
	inner Embedder
	model string
	cache *lru.Cache[string, []float32]
}

func NewCachedEmbedder(inner Embedder, model string, cacheSize int) *CachedEmbedder {
	if cacheSize <= 0 {
		cacheSize = DefaultEmbeddingCacheSize
	}
	cache, _ := lru.New[string, []float32](cacheSize)
	return &CachedEmbedder{
		inner: inner,
		model: model,
		cache: cache,
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(text + "\x00" + c.model))
	return hex.EncodeToString(hash[:])
}

func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	key := c.cacheKey(text)
	if vec, ok := c.cache.Get(key); ok {
		return vec, nil
	}

	vec, err := c.inner.Embed(ctx, text)
	if err != nil {
		return nil, err
	}
	if len(vec) > 0 {
		c.cache.Add(key, vec)
	}
	return vec, nil
}

// Len reports how many embeddings are cached.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}
