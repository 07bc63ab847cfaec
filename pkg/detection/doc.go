// Package detection resolves HTTP request data to device profiles.
//
// A Provider wraps a loaded dataset.Dataset. It accepts a User-Agent, a set
// of HTTP headers or an explicit device-id and returns a Match: one profile
// per dataset component, the match method and difference, and lazy access
// to property values.
//
//	ds, err := dataset.Open("devices.dat", dataset.WithMode(dataset.ModeStream))
//	if err != nil {
//	    return err
//	}
//	provider, err := detection.NewProvider(ds, detection.WithCloser(ds))
//	if err != nil {
//	    return err
//	}
//	defer provider.Close()
//
//	m, err := provider.MatchHeaders(ctx, r.Header)
//	if err != nil {
//	    return err
//	}
//	vendor, err := m.Values("HardwareVendor")
//
// Header selection follows the dataset's header list: the first header in
// priority order with a non-empty value drives matching. Empty or missing
// signals are expected traffic and produce an unmatched Match, not an error.
//
// # Device-ids
//
// A device-id names one profile per component, in component order. It has
// three equivalent forms: a []int32, a dash-joined string such as "10-21"
// and a byte array of big-endian 32-bit integers. Unresolved slots are
// written as deviceid.Absent.
//
// # Result caching
//
// Matching a User-Agent that was seen before can skip the matcher. A
// ResultCache stores results by normalized User-Agent: LRUResultCache keeps
// them in process, RedisResultCache shares them through Redis under a
// namespace derived from the dataset's publication time.
//
// # Configuration
//
// New builds a complete Provider from a Config, usually loaded from
// DEVICEDETECT_* environment variables with LoadConfig. The dataset is read
// from a local file or from S3, and the result cache is backed by Redis
// when DEVICEDETECT_REDIS_URL is set.
package detection
