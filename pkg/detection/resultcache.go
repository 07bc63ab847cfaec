package detection

import (
	"context"

	"github.com/dmitrymomot/devicedetect/pkg/cache"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

// CachedResult is the dataset-independent part of a matcher result. The
// signature is stored by index together with its key and profile ids; a
// hit is only used when the signature at that index still carries both.
type CachedResult struct {
	Method       matcher.Method `json:"method"`
	Signature    int            `json:"signature"`
	SignatureKey string         `json:"key,omitempty"`
	ProfileIDs   []int32        `json:"profiles,omitempty"`
	Difference   int            `json:"difference"`
	NodesMatched int            `json:"nodes"`
}

// NoSignature is the Signature index stored for unmatched results.
const NoSignature = -1

func cachedFrom(res matcher.Result) CachedResult {
	c := CachedResult{
		Method:       res.Method,
		Signature:    NoSignature,
		Difference:   res.Difference,
		NodesMatched: res.NodesMatched,
	}
	if res.Signature != nil {
		c.Signature = int(res.Signature.Index)
		c.SignatureKey = res.Signature.Key
		c.ProfileIDs = res.Signature.ProfileIDs
	}
	return c
}

// ResultCache stores matcher results keyed by normalized User-Agent.
type ResultCache interface {
	Get(ctx context.Context, ua string) (CachedResult, bool, error)
	Set(ctx context.Context, ua string, r CachedResult) error
}

// LRUResultCache keeps results in process.
type LRUResultCache struct {
	lru *cache.LRUCache[string, CachedResult]
}

// NewLRUResultCache returns an in-process cache holding up to size results.
func NewLRUResultCache(size int, opts ...cache.Option) *LRUResultCache {
	return &LRUResultCache{lru: cache.NewLRUCache[string, CachedResult](size, opts...)}
}

func (c *LRUResultCache) Get(_ context.Context, ua string) (CachedResult, bool, error) {
	r, ok := c.lru.Get(ua)
	return r, ok, nil
}

func (c *LRUResultCache) Set(_ context.Context, ua string, r CachedResult) error {
	c.lru.Put(ua, r)
	return nil
}

// Stats returns the hit, miss and eviction counters.
func (c *LRUResultCache) Stats() cache.Snapshot { return c.lru.Stats() }

func (c *LRUResultCache) Len() int { return c.lru.Len() }
