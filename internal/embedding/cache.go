package embedding

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.uber.org/zap"
)

const (
	DefaultCacheSize = 1024
	DefaultCacheTTL  = time.Hour
)

// Cache memoizes vectors of an underlying provider in a bounded LRU with expiry.
// Keys include the model so switching providers never returns stale vectors.
type Cache struct {
	next   Provider
	lru    *expirable.LRU[string, []float32]
	logger *zap.Logger
}

func NewCache(next Provider, size int, ttl time.Duration, logger *zap.Logger) *Cache {
	if size <= 0 {
		size = DefaultCacheSize
	}
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Cache{
		next:   next,
		lru:    expirable.NewLRU[string, []float32](size, nil, ttl),
		logger: logger,
	}
}

func (c *Cache) Model() string {
	return c.next.Model()
}

func (c *Cache) Len() int {
	return c.lru.Len()
}

func (c *Cache) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	keys := make([]string, len(texts))

	var (
		missing    []string
		missingIdx []int
	)
	for i, text := range texts {
		keys[i] = c.key(text)
		if v, ok := c.lru.Get(keys[i]); ok {
			vectors[i] = v
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		c.logger.Debug("embedding cache hit", zap.Int("texts", len(texts)))
		return vectors, nil
	}

	fresh, err := c.next.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	if len(fresh) != len(missing) {
		return nil, fmt.Errorf("provider returned %d vectors for %d texts", len(fresh), len(missing))
	}

	for j, idx := range missingIdx {
		vectors[idx] = fresh[j]
		c.lru.Add(keys[idx], fresh[j])
	}

	c.logger.Debug("embedding cache miss",
		zap.Int("texts", len(texts)),
		zap.Int("missed", len(missing)),
	)

	return vectors, nil
}

func (c *Cache) key(text string) string {
	sum := sha256.Sum256([]byte(text))
	return c.next.Model() + ":" + hex.EncodeToString(sum[:])
}
