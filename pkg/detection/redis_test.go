package detection_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/dataset/datasettest"
	"github.com/dmitrymomot/devicedetect/pkg/detection"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

// MockRedisClient is a mock implementation of the RedisClient interface
type MockRedisClient struct {
	mock.Mock
}

func (m *MockRedisClient) Get(ctx context.Context, key string) *redis.StringCmd {
	args := m.Called(ctx, key)
	return args.Get(0).(*redis.StringCmd)
}

func (m *MockRedisClient) Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd {
	args := m.Called(ctx, key, value, expiration)
	return args.Get(0).(*redis.StatusCmd)
}

func TestRedisResultCache(t *testing.T) {
	ctx := context.Background()
	c := detection.NewRedisResultCache(&MockRedisClient{}, "devicedetect:1704067200", time.Hour)

	t.Run("key", func(t *testing.T) {
		key := c.Key("curl")
		assert.True(t, strings.HasPrefix(key, "devicedetect:1704067200:"))
		assert.Len(t, strings.TrimPrefix(key, "devicedetect:1704067200:"), 64)
		assert.NotEqual(t, key, c.Key("wget"))
	})

	t.Run("miss", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Get", mock.Anything, mock.Anything).Return(redis.NewStringResult("", redis.Nil))
		c := detection.NewRedisResultCache(client, "ns", time.Hour)

		_, ok, err := c.Get(ctx, "curl")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("hit", func(t *testing.T) {
		want := detection.CachedResult{Method: matcher.MethodClosest, Signature: 2, Difference: 4, NodesMatched: 7}
		b, err := json.Marshal(want)
		require.NoError(t, err)
		assert.Contains(t, string(b), `"method":"closest"`)

		client := &MockRedisClient{}
		client.On("Get", mock.Anything, detection.NewRedisResultCache(nil, "ns", 0).Key("ua")).
			Return(redis.NewStringResult(string(b), nil))
		c := detection.NewRedisResultCache(client, "ns", time.Hour)

		got, ok, err := c.Get(ctx, "ua")
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, want, got)
	})

	t.Run("corrupt entry", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Get", mock.Anything, mock.Anything).Return(redis.NewStringResult("{not json", nil))
		c := detection.NewRedisResultCache(client, "ns", time.Hour)

		_, _, err := c.Get(ctx, "ua")
		assert.ErrorIs(t, err, detection.ErrResultCache)
	})

	t.Run("set", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Set", mock.Anything, mock.Anything, mock.MatchedBy(func(v any) bool {
			b, ok := v.([]byte)
			return ok && strings.Contains(string(b), `"signature":-1`)
		}), time.Hour).Return(redis.NewStatusResult("OK", nil))
		c := detection.NewRedisResultCache(client, "ns", time.Hour)

		require.NoError(t, c.Set(ctx, "ua", detection.CachedResult{Signature: detection.NoSignature}))
		client.AssertExpectations(t)
	})

	t.Run("set failure", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(redis.NewStatusResult("", errors.New("connection reset")))
		c := detection.NewRedisResultCache(client, "ns", time.Hour)

		assert.ErrorIs(t, c.Set(ctx, "ua", detection.CachedResult{}), detection.ErrResultCache)
	})
}

func TestProviderWithRedis(t *testing.T) {
	ctx := context.Background()

	t.Run("miss then store", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Get", mock.Anything, mock.Anything).Return(redis.NewStringResult("", redis.Nil)).Once()
		client.On("Set", mock.Anything, mock.Anything, mock.Anything, 30*time.Minute).Return(redis.NewStatusResult("OK", nil)).Once()

		p := newProvider(t, dataset.ModeMemory, nil)
		results := detection.NewRedisResultCache(client, detection.DatasetNamespace(p.DataSet()), 30*time.Minute)
		p, err := detection.NewProvider(p.DataSet(), detection.WithResultCache(results))
		require.NoError(t, err)

		m, err := p.Match(ctx, datasettest.AndroidUA)
		require.NoError(t, err)
		assert.Equal(t, "10-21", m.DeviceID())
		client.AssertExpectations(t)
	})

	t.Run("hit skips matcher", func(t *testing.T) {
		p := newProvider(t, dataset.ModeStream, nil)
		// Signature 1 is the desktop signature; the cache wins over the UA.
		desktop, err := p.Match(ctx, datasettest.DesktopUA)
		require.NoError(t, err)
		cached, err := json.Marshal(detection.CachedResult{
			Method:       matcher.MethodExact,
			Signature:    int(desktop.Signature().Index),
			SignatureKey: desktop.Signature().Key,
			ProfileIDs:   desktop.Signature().ProfileIDs,
			NodesMatched: desktop.NodesMatched(),
		})
		require.NoError(t, err)

		client := &MockRedisClient{}
		client.On("Get", mock.Anything, mock.Anything).Return(redis.NewStringResult(string(cached), nil))
		results := detection.NewRedisResultCache(client, "ns", time.Hour)
		p, err = detection.NewProvider(p.DataSet(), detection.WithResultCache(results))
		require.NoError(t, err)

		m, err := p.Match(ctx, "anything at all")
		require.NoError(t, err)
		assert.Equal(t, "11-20", m.DeviceID())
		client.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("redis failure falls back to matcher", func(t *testing.T) {
		client := &MockRedisClient{}
		client.On("Get", mock.Anything, mock.Anything).Return(redis.NewStringResult("", errors.New("connection refused")))
		client.On("Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
			Return(redis.NewStatusResult("", errors.New("connection refused")))

		p := newProvider(t, dataset.ModeMemory, nil)
		p, err := detection.NewProvider(p.DataSet(), detection.WithResultCache(detection.NewRedisResultCache(client, "ns", 0)))
		require.NoError(t, err)

		m, err := p.Match(ctx, datasettest.IPhoneUA)
		require.NoError(t, err)
		assert.Equal(t, "10-22", m.DeviceID())
	})
}

// premiumSample has the same signature keys, name and publication time as
// datasettest.Sample but resolves the Android and iPhone signatures to
// different browser profiles.
func premiumSample() *datasettest.Builder {
	b := datasettest.New().Name("sample")
	hw := b.Component("HardwarePlatform")
	br := b.Component("BrowserUA")
	b.Property(hw, "HardwareVendor", true).
		Property(br, "BrowserName", true)

	b.Profile(hw, 10, map[string][]string{"HardwareVendor": {"Google"}})
	b.Profile(hw, 11, map[string][]string{"HardwareVendor": {"Unknown"}})
	b.Profile(br, 20, map[string][]string{"BrowserName": {"Chrome"}})
	b.Profile(br, 21, map[string][]string{"BrowserName": {"Chrome Mobile"}})
	b.Profile(br, 22, map[string][]string{"BrowserName": {"Mobile Safari"}})

	b.Signature(datasettest.AndroidUA, 1, 10, 22)
	b.Signature(datasettest.DesktopUA, 2, 11, 20)
	b.Signature(datasettest.IPhoneUA, 3, 10, 21)
	return b
}

func TestDatasetNamespace(t *testing.T) {
	load := func(b *datasettest.Builder) *dataset.Dataset {
		ds, err := dataset.FromBytes(b.MustBuild())
		require.NoError(t, err)
		t.Cleanup(func() { _ = ds.Close() })
		return ds
	}

	sample := load(datasettest.Sample())
	require.Equal(t, sample.Info().Published, load(premiumSample()).Info().Published)

	ns := detection.DatasetNamespace(sample)
	assert.True(t, strings.HasPrefix(ns, "devicedetect:"))
	assert.Equal(t, ns, detection.DatasetNamespace(load(datasettest.Sample())))
	assert.NotEqual(t, ns, detection.DatasetNamespace(load(premiumSample())))
	assert.NotEqual(t, ns, detection.DatasetNamespace(load(datasettest.Sample().Name("sample-lite"))))
}

func TestSharedCacheAcrossDatasets(t *testing.T) {
	ctx := context.Background()
	shared := detection.NewLRUResultCache(16)

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			a := newProvider(t, mode, nil, detection.WithResultCache(shared))

			ds, err := dataset.FromBytes(premiumSample().MustBuild(), dataset.WithMode(mode))
			require.NoError(t, err)
			b, err := detection.NewProvider(ds, detection.WithCloser(ds), detection.WithResultCache(shared))
			require.NoError(t, err)
			t.Cleanup(func() { _ = b.Close() })

			m, err := a.Match(ctx, datasettest.AndroidUA)
			require.NoError(t, err)
			assert.Equal(t, "10-21", m.DeviceID())

			// Same key, same index, different profiles: the entry from a is
			// discarded and b stores its own.
			m, err = b.Match(ctx, datasettest.AndroidUA)
			require.NoError(t, err)
			assert.Equal(t, matcher.MethodExact, m.Method())
			assert.Equal(t, "10-22", m.DeviceID())

			m, err = a.Match(ctx, datasettest.AndroidUA)
			require.NoError(t, err)
			assert.Equal(t, "10-21", m.DeviceID())
		})
	}
}
