package detection

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/fingerprint"
)

// RedisClient is the subset of the go-redis client used by RedisResultCache.
type RedisClient interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisResultCache shares results between processes. Keys are namespaced
// by dataset so a dataset update never serves stale signature indexes.
type RedisResultCache struct {
	client    RedisClient
	namespace string
	ttl       time.Duration
}

// NewRedisResultCache stores results under namespace with the given TTL.
// A zero TTL keeps entries until Redis evicts them.
func NewRedisResultCache(client RedisClient, namespace string, ttl time.Duration) *RedisResultCache {
	return &RedisResultCache{client: client, namespace: namespace, ttl: ttl}
}

// DatasetNamespace returns the key namespace for results produced with ds.
// It covers the dataset name, version, publication time and record counts,
// so different builds of one release do not share entries.
func DatasetNamespace(ds *dataset.Dataset) string {
	info := ds.Info()
	return "devicedetect:" + fingerprint.Generate(
		"name="+info.Name,
		"version="+info.Version,
		"published="+strconv.FormatInt(info.Published.Unix(), 10),
		"components="+strconv.Itoa(info.Components),
		"properties="+strconv.Itoa(info.Properties),
		"values="+strconv.Itoa(info.Values),
		"profiles="+strconv.Itoa(info.Profiles),
		"signatures="+strconv.Itoa(info.Signatures),
		"nodes="+strconv.Itoa(info.Nodes),
	)
}

// Key returns the Redis key for a normalized User-Agent.
func (c *RedisResultCache) Key(ua string) string {
	return c.namespace + ":" + fingerprint.Full(ua)
}

func (c *RedisResultCache) Get(ctx context.Context, ua string) (CachedResult, bool, error) {
	b, err := c.client.Get(ctx, c.Key(ua)).Bytes()
	if errors.Is(err, redis.Nil) {
		return CachedResult{}, false, nil
	}
	if err != nil {
		return CachedResult{}, false, errors.Join(ErrResultCache, err)
	}

	var r CachedResult
	if err := json.Unmarshal(b, &r); err != nil {
		return CachedResult{}, false, fmt.Errorf("%w: decode cached result: %w", ErrResultCache, err)
	}
	return r, true, nil
}

func (c *RedisResultCache) Set(ctx context.Context, ua string, r CachedResult) error {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("%w: encode result: %w", ErrResultCache, err)
	}
	if err := c.client.Set(ctx, c.Key(ua), b, c.ttl).Err(); err != nil {
		return errors.Join(ErrResultCache, err)
	}
	return nil
}
