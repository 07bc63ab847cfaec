package detection_test

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/dataset/datasettest"
	"github.com/dmitrymomot/devicedetect/pkg/detection"
	"github.com/dmitrymomot/devicedetect/pkg/deviceid"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

var modes = []dataset.Mode{dataset.ModeMemory, dataset.ModeStream}

// closestUA differs from the Android signature only in the model number.
const closestUA = "Mozilla/5.0 (Linux; Android 10; Pixel 5) AppleWebKit/537.36 Chrome/90.0 Mobile Safari/537.36"

func newProvider(t *testing.T, mode dataset.Mode, dsOpts []dataset.Option, opts ...detection.Option) *detection.Provider {
	t.Helper()
	ds, err := dataset.FromBytes(datasettest.Sample().MustBuild(), append([]dataset.Option{dataset.WithMode(mode)}, dsOpts...)...)
	require.NoError(t, err)

	p, err := detection.NewProvider(ds, append([]detection.Option{detection.WithCloser(ds)}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func TestEndToEnd(t *testing.T) {
	ctx := context.Background()
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			p := newProvider(t, mode, nil)

			m, err := p.Match(ctx, datasettest.AndroidUA)
			require.NoError(t, err)
			assert.Equal(t, matcher.MethodExact, m.Method())
			assert.Zero(t, m.Difference())
			assert.Equal(t, "10-21", m.DeviceID())
			assert.Equal(t, []byte{0, 0, 0, 10, 0, 0, 0, 21}, m.DeviceIDAsByteArray())
			assert.Same(t, p.DataSet(), m.DataSet())

			byString, err := p.MatchDeviceIDString("10-21")
			require.NoError(t, err)
			byIDs, err := p.MatchDeviceID([]int32{10, 21})
			require.NoError(t, err)
			byBytes, err := p.MatchDeviceIDBytes([]byte{0, 0, 0, 10, 0, 0, 0, 21})
			require.NoError(t, err)

			for _, other := range []*detection.Match{byString, byIDs, byBytes} {
				assert.Equal(t, matcher.MethodDeviceID, other.Method())
				assert.Equal(t, m.ProfileIDs(), other.ProfileIDs())
				assert.Equal(t, m.DeviceID(), other.DeviceID())
				assert.Equal(t, m.DeviceIDAsByteArray(), other.DeviceIDAsByteArray())

				for _, prop := range p.DataSet().Properties() {
					want, err := m.PropertyValues(prop)
					require.NoError(t, err)
					got, err := other.PropertyValues(prop)
					require.NoError(t, err)
					assert.Equal(t, want.Strings(), got.Strings(), prop.Name)
				}
			}
		})
	}
}

func TestMatchValues(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, dataset.ModeStream, nil)

	m, err := p.Match(ctx, datasettest.AndroidUA)
	require.NoError(t, err)

	name, err := m.Values("BrowserName")
	require.NoError(t, err)
	assert.Equal(t, "Chrome Mobile", name.String())

	mobile, err := m.Values("IsMobile")
	require.NoError(t, err)
	isMobile, err := mobile.Bool()
	require.NoError(t, err)
	assert.True(t, isMobile)

	width, err := m.Values("ScreenPixelsWidth")
	require.NoError(t, err)
	w, err := width.Int()
	require.NoError(t, err)
	assert.Equal(t, int64(1080), w)

	t.Run("unknown property is empty", func(t *testing.T) {
		vs, err := m.Values("NoSuchProperty")
		require.NoError(t, err)
		assert.NotNil(t, vs)
		assert.Empty(t, vs)
	})

	t.Run("repeated reads are identical", func(t *testing.T) {
		first, err := m.Values("HardwareModel")
		require.NoError(t, err)
		second, err := m.Values("HardwareModel")
		require.NoError(t, err)
		assert.Equal(t, first.Strings(), second.Strings())
		assert.Equal(t, []string{"Pixel 4"}, first.Strings())
	})

	t.Run("list values keep dataset order", func(t *testing.T) {
		desktop, err := p.Match(ctx, datasettest.DesktopUA)
		require.NoError(t, err)
		vs, err := desktop.Values("HtmlVersion")
		require.NoError(t, err)
		assert.Equal(t, []string{"4.0", "5.0"}, vs.Strings())
		for _, v := range vs {
			assert.Equal(t, p.DataSet().Property("HtmlVersion").Index, v.PropertyIndex)
		}
	})

	t.Run("profiles and signature", func(t *testing.T) {
		require.NotNil(t, m.Signature())
		assert.Equal(t, int32(1), m.Signature().Rank)
		require.Len(t, m.Profiles(), 2)
		assert.Equal(t, int32(10), m.Profile(0).ID)
		assert.Equal(t, int32(21), m.Profile(1).ID)
		assert.Nil(t, m.Profile(2))
		assert.Nil(t, m.Profile(-1))
		assert.Equal(t, datasettest.AndroidUA, m.UserAgent())
		assert.True(t, m.IsMatched())
	})
}

func TestClosestMatch(t *testing.T) {
	p := newProvider(t, dataset.ModeMemory, nil)

	m, err := p.Match(context.Background(), closestUA)
	require.NoError(t, err)
	assert.Equal(t, matcher.MethodClosest, m.Method())
	assert.Equal(t, 2, m.Difference())
	assert.Equal(t, "10-21", m.DeviceID())
}

func TestEmptySignals(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, dataset.ModeStream, nil)

	check := func(t *testing.T, m *detection.Match, err error) {
		t.Helper()
		require.NoError(t, err)
		require.NotNil(t, m)
		assert.False(t, m.IsMatched())
		assert.Equal(t, matcher.MethodNone, m.Method())
		assert.Nil(t, m.Signature())
		assert.Equal(t, "0-0", m.DeviceID())
		assert.Equal(t, make([]byte, 8), m.DeviceIDAsByteArray())

		vs, err := m.Values("BrowserName")
		require.NoError(t, err)
		assert.Empty(t, vs)
	}

	t.Run("empty user agent", func(t *testing.T) {
		m, err := p.Match(ctx, "")
		check(t, m, err)
	})
	t.Run("nil headers", func(t *testing.T) {
		m, err := p.MatchHeaders(ctx, nil)
		check(t, m, err)
	})
	t.Run("no detection headers", func(t *testing.T) {
		m, err := p.MatchHeaders(ctx, http.Header{"Accept": {"text/html"}})
		check(t, m, err)
	})
	t.Run("nil map", func(t *testing.T) {
		m, err := p.MatchHeaderMap(ctx, nil)
		check(t, m, err)
	})
	t.Run("all values empty", func(t *testing.T) {
		m, err := p.MatchHeaderMap(ctx, map[string]string{
			"User-Agent":           "",
			"Device-Stock-UA":      "",
			"X-OperaMini-Phone-UA": "",
		})
		check(t, m, err)
	})
	t.Run("unknown user agent", func(t *testing.T) {
		m, err := p.Match(ctx, "curl")
		check(t, m, err)
	})
}

func TestLongUserAgent(t *testing.T) {
	ctx := context.Background()
	uas := []string{datasettest.AndroidUA, datasettest.DesktopUA, datasettest.IPhoneUA, closestUA, "curl/8.0"}
	var sb strings.Builder
	for i := range 10 {
		sb.WriteString(uas[i%len(uas)])
	}

	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			p := newProvider(t, mode, nil)

			m, err := p.Match(ctx, sb.String())
			require.NoError(t, err)
			require.NotNil(t, m)

			for _, prop := range p.DataSet().Properties() {
				vs, err := m.PropertyValues(prop)
				require.NoError(t, err, prop.Name)
				for _, v := range vs {
					assert.Equal(t, prop.Index, v.PropertyIndex, prop.Name)
				}
			}

			again, err := p.MatchDeviceIDString(m.DeviceID())
			require.NoError(t, err)
			assert.Equal(t, m.ProfileIDs(), again.ProfileIDs())
		})
	}
}

func TestMatchHeaders(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, dataset.ModeMemory, nil)

	tests := []struct {
		name   string
		header http.Header
		want   string
	}{
		{
			name:   "user agent",
			header: http.Header{"User-Agent": {datasettest.DesktopUA}},
			want:   "11-20",
		},
		{
			name: "user agent has priority",
			header: http.Header{
				"User-Agent":      {datasettest.DesktopUA},
				"Device-Stock-Ua": {datasettest.IPhoneUA},
			},
			want: "11-20",
		},
		{
			name: "secondary header when user agent is empty",
			header: http.Header{
				"User-Agent":      {""},
				"Device-Stock-Ua": {datasettest.IPhoneUA},
			},
			want: "10-22",
		},
		{
			name:   "non-canonical key",
			header: http.Header{"user-agent": {datasettest.AndroidUA}},
			want:   "10-21",
		},
		{
			name:   "last non-empty value",
			header: http.Header{"User-Agent": {datasettest.DesktopUA, datasettest.AndroidUA, ""}},
			want:   "10-21",
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			m, err := p.MatchHeaders(ctx, tc.header)
			require.NoError(t, err)
			assert.Equal(t, tc.want, m.DeviceID())
		})
	}

	t.Run("map with case variants", func(t *testing.T) {
		m, err := p.MatchHeaderMap(ctx, map[string]string{
			"User-Agent": datasettest.AndroidUA,
			"user-agent": "",
		})
		require.NoError(t, err)
		assert.Equal(t, "10-21", m.DeviceID())
		assert.Equal(t, datasettest.AndroidUA, m.UserAgent())
	})
}

func TestMatchHeadersCaseVariants(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, dataset.ModeMemory, nil)

	raw := http.Header{
		"USER-AGENT": {datasettest.AndroidUA},
		"user-agent": {datasettest.DesktopUA},
		"uSeR-aGeNt": {""},
	}
	for range 50 {
		m, err := p.MatchHeaders(ctx, raw)
		require.NoError(t, err)
		require.Equal(t, "11-20", m.DeviceID())
	}

	m, err := p.MatchHeaderMap(ctx, map[string]string{
		"USER-AGENT": datasettest.AndroidUA,
		"user-agent": datasettest.DesktopUA,
	})
	require.NoError(t, err)
	assert.Equal(t, "11-20", m.DeviceID())
}

func TestMatchDeviceID(t *testing.T) {
	p := newProvider(t, dataset.ModeStream, nil)

	t.Run("unknown profile leaves slot absent", func(t *testing.T) {
		m, err := p.MatchDeviceID([]int32{10, 99})
		require.NoError(t, err)
		assert.Equal(t, "10-0", m.DeviceID())
		assert.Nil(t, m.Profile(1))
		assert.True(t, m.IsMatched())

		vs, err := m.Values("BrowserName")
		require.NoError(t, err)
		assert.Empty(t, vs)
		vendor, err := m.Values("HardwareVendor")
		require.NoError(t, err)
		assert.Equal(t, "Google", vendor.String())
	})

	t.Run("absent placeholder", func(t *testing.T) {
		m, err := p.MatchDeviceIDString("0-22")
		require.NoError(t, err)
		assert.Equal(t, "0-22", m.DeviceID())
		assert.Nil(t, m.Profile(0))
	})

	invalid := []struct {
		name string
		call func() (*detection.Match, error)
	}{
		{"byte length not a multiple of 4", func() (*detection.Match, error) {
			return p.MatchDeviceIDBytes([]byte{0, 0, 0, 10, 0, 0, 21})
		}},
		{"empty bytes", func() (*detection.Match, error) { return p.MatchDeviceIDBytes(nil) }},
		{"malformed string", func() (*detection.Match, error) { return p.MatchDeviceIDString("10-x") }},
		{"negative string", func() (*detection.Match, error) { return p.MatchDeviceIDString("-10-21") }},
		{"too few ids", func() (*detection.Match, error) { return p.MatchDeviceID([]int32{10}) }},
		{"too many ids", func() (*detection.Match, error) { return p.MatchDeviceID([]int32{10, 21, 30}) }},
		{"negative id", func() (*detection.Match, error) { return p.MatchDeviceID([]int32{10, -21}) }},
		{"profile of another component", func() (*detection.Match, error) { return p.MatchDeviceID([]int32{21, 10}) }},
	}
	for _, tc := range invalid {
		t.Run(tc.name, func(t *testing.T) {
			m, err := tc.call()
			assert.Nil(t, m)
			assert.ErrorIs(t, err, detection.ErrInvalidDeviceID)
		})
	}
}

func TestDeviceIDRoundTrip(t *testing.T) {
	ctx := context.Background()
	p := newProvider(t, dataset.ModeMemory, nil)

	for _, ua := range []string{datasettest.AndroidUA, datasettest.DesktopUA, datasettest.IPhoneUA, closestUA, "curl"} {
		m, err := p.Match(ctx, ua)
		require.NoError(t, err)

		fromString, err := deviceid.Parse(m.DeviceID())
		require.NoError(t, err)
		assert.Equal(t, m.ProfileIDs(), fromString, ua)

		fromBytes, err := deviceid.FromBytes(m.DeviceIDAsByteArray())
		require.NoError(t, err)
		assert.Equal(t, m.ProfileIDs(), fromBytes, ua)

		again, err := p.MatchDeviceIDBytes(m.DeviceIDAsByteArray())
		require.NoError(t, err)
		assert.Equal(t, m.DeviceID(), again.DeviceID())
	}
}

func TestConcurrentStreamMatches(t *testing.T) {
	ctx := context.Background()
	uas := []string{
		datasettest.AndroidUA,
		datasettest.DesktopUA,
		datasettest.IPhoneUA,
		closestUA,
		"Mozilla/5.0 (iPhone; CPU iPhone OS 15_0 like Mac OS X) AppleWebKit/605.1.15 Version/15.0 Mobile Safari/604.1",
		"curl/8.0",
		"",
	}

	type outcome struct {
		deviceID string
		method   matcher.Method
		diff     int
		browser  string
	}
	run := func(p *detection.Provider, ua string) (outcome, error) {
		m, err := p.Match(ctx, ua)
		if err != nil {
			return outcome{}, err
		}
		vs, err := m.Values("BrowserName")
		if err != nil {
			return outcome{}, err
		}
		return outcome{m.DeviceID(), m.Method(), m.Difference(), vs.String()}, nil
	}

	reference := newProvider(t, dataset.ModeMemory, nil)
	want := make([]outcome, len(uas))
	for i, ua := range uas {
		o, err := run(reference, ua)
		require.NoError(t, err)
		want[i] = o
	}

	tiny := dataset.CacheSizes{Strings: 2, Values: 2, Profiles: 1, Signatures: 1, Nodes: 3}
	p := newProvider(t, dataset.ModeStream, []dataset.Option{dataset.WithCacheSizes(tiny)})

	const workers = 64
	const rounds = 20
	var wg sync.WaitGroup
	errs := make(chan error, workers*rounds*len(uas))
	for w := range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for r := range rounds {
				i := (w + r) % len(uas)
				got, err := run(p, uas[i])
				if err != nil {
					errs <- err
					continue
				}
				assert.Equal(t, want[i], got, "ua %q", uas[i])
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Error(err)
	}

	stats := p.DataSet().CacheStats()
	assert.Positive(t, stats["signatures"].Evictions)
}

func TestUseAfterClose(t *testing.T) {
	ctx := context.Background()
	for _, mode := range modes {
		t.Run(mode.String(), func(t *testing.T) {
			p := newProvider(t, mode, nil)
			m, err := p.Match(ctx, datasettest.AndroidUA)
			require.NoError(t, err)

			require.NoError(t, p.Close())
			assert.True(t, p.DataSet().IsClosed())

			_, err = m.Values("BrowserName")
			assert.ErrorIs(t, err, detection.ErrClosed)

			_, err = p.Match(ctx, datasettest.DesktopUA)
			assert.ErrorIs(t, err, detection.ErrClosed)

			_, err = p.MatchDeviceIDString("10-21")
			assert.ErrorIs(t, err, detection.ErrClosed)

			// Inputs that never reach a record read still fail.
			_, err = p.Match(ctx, "")
			assert.ErrorIs(t, err, detection.ErrClosed)
			_, err = p.MatchHeaders(ctx, http.Header{})
			assert.ErrorIs(t, err, detection.ErrClosed)
			_, err = p.MatchDeviceIDString("0-0")
			assert.ErrorIs(t, err, detection.ErrClosed)
			_, err = p.MatchDeviceIDBytes([]byte{0, 0, 0, 0, 0, 0, 0, 0})
			assert.ErrorIs(t, err, detection.ErrClosed)

			assert.NoError(t, p.Close())
		})
	}
}

func TestNewProviderRequiresDataset(t *testing.T) {
	_, err := detection.NewProvider(nil)
	assert.ErrorIs(t, err, detection.ErrNoDataset)
}

func TestLRUResultCache(t *testing.T) {
	ctx := context.Background()
	results := detection.NewLRUResultCache(16)
	p := newProvider(t, dataset.ModeStream, nil, detection.WithResultCache(results))

	first, err := p.Match(ctx, closestUA)
	require.NoError(t, err)
	second, err := p.Match(ctx, "  MOZILLA/5.0 (Linux; Android 10; Pixel 5) AppleWebKit/537.36 Chrome/90.0 Mobile Safari/537.36")
	require.NoError(t, err)

	assert.Equal(t, first.DeviceID(), second.DeviceID())
	assert.Equal(t, first.Method(), second.Method())
	assert.Equal(t, first.Difference(), second.Difference())
	assert.Equal(t, first.NodesMatched(), second.NodesMatched())

	stats := results.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, 1, results.Len())

	t.Run("empty user agent bypasses cache", func(t *testing.T) {
		_, err := p.Match(ctx, "")
		require.NoError(t, err)
		assert.Equal(t, 1, results.Len())
	})

	t.Run("stale entry is replaced", func(t *testing.T) {
		bad := detection.CachedResult{Method: matcher.MethodExact, Signature: 999}
		require.NoError(t, results.Set(ctx, "curl", bad))

		m, err := p.Match(ctx, "curl")
		require.NoError(t, err)
		assert.Equal(t, matcher.MethodNone, m.Method())

		got, ok, err := results.Get(ctx, "curl")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, detection.NoSignature, got.Signature)
	})
}

func TestProviderMetrics(t *testing.T) {
	ctx := context.Background()
	reg := prometheus.NewRegistry()
	p := newProvider(t, dataset.ModeMemory, nil,
		detection.WithMetrics(reg),
		detection.WithResultCache(detection.NewLRUResultCache(8)),
	)

	for _, ua := range []string{datasettest.AndroidUA, datasettest.AndroidUA, "curl"} {
		_, err := p.Match(ctx, ua)
		require.NoError(t, err)
	}

	count, err := testutil.GatherAndCount(reg, "devicedetect_detections_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "exact and none")

	count, err = testutil.GatherAndCount(reg, "devicedetect_result_cache_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count, "hit and miss")

	// A second provider on the same registry reuses the collectors.
	_, err = detection.NewProvider(p.DataSet(), detection.WithMetrics(reg))
	assert.NoError(t, err)
}
