package detection

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/devicedetect/pkg/dataset"
	"github.com/dmitrymomot/devicedetect/pkg/deviceid"
	"github.com/dmitrymomot/devicedetect/pkg/logger"
	"github.com/dmitrymomot/devicedetect/pkg/matcher"
	"github.com/dmitrymomot/devicedetect/pkg/useragent"
)

// Option configures a Provider.
type Option func(*options)

type options struct {
	logger     *slog.Logger
	results    ResultCache
	registerer prometheus.Registerer
	closers    []io.Closer

	// used by New only
	s3    []dataset.S3Option
	redis RedisClient
}

// WithLogger sets the logger for match diagnostics. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithResultCache caches matcher results by normalized User-Agent.
func WithResultCache(c ResultCache) Option {
	return func(o *options) {
		o.results = c
	}
}

// WithMetrics registers detection metrics with reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithCloser hands c to the provider; it is closed by Provider.Close.
func WithCloser(c io.Closer) Option {
	return func(o *options) {
		if c != nil {
			o.closers = append(o.closers, c)
		}
	}
}

// Provider resolves request data to Matches against one dataset. It is safe
// for concurrent use.
type Provider struct {
	ds      *dataset.Dataset
	matcher *matcher.Matcher
	logger  *slog.Logger
	results ResultCache
	metrics *Metrics
	closers []io.Closer
}

// NewProvider returns a Provider reading from ds. The dataset stays owned by
// the caller unless it is passed to WithCloser.
func NewProvider(ds *dataset.Dataset, opts ...Option) (*Provider, error) {
	if ds == nil {
		return nil, ErrNoDataset
	}
	o := options{logger: slog.Default()}
	for _, opt := range opts {
		opt(&o)
	}

	p := &Provider{
		ds:      ds,
		matcher: matcher.New(ds),
		logger:  o.logger,
		results: o.results,
		closers: o.closers,
	}
	if o.registerer != nil {
		m, err := NewMetrics(o.registerer)
		if err != nil {
			return nil, fmt.Errorf("register detection metrics: %w", err)
		}
		p.metrics = m
	}
	return p, nil
}

// DataSet returns the dataset matches are resolved against.
func (p *Provider) DataSet() *dataset.Dataset { return p.ds }

// Match resolves a User-Agent. An empty User-Agent yields an unmatched
// Match and no error.
func (p *Provider) Match(ctx context.Context, ua string) (*Match, error) {
	if p.ds.IsClosed() {
		return nil, ErrClosed
	}
	start := time.Now()
	target := useragent.Normalize(ua)

	res, err := p.resolve(ctx, target)
	if err != nil {
		return nil, err
	}

	var profiles []*dataset.Profile
	if res.Signature != nil {
		if profiles, err = p.ds.SignatureProfiles(res.Signature); err != nil {
			return nil, err
		}
	}

	m := newMatch(p.ds, ua, res, profiles, time.Since(start))
	p.finish(ctx, m)
	return m, nil
}

// MatchHeaders picks the highest priority detection header present in h
// and matches its value. Header names are case-insensitive. Missing headers
// produce an unmatched Match.
func (p *Provider) MatchHeaders(ctx context.Context, h http.Header) (*Match, error) {
	_, value, _ := SelectHeader(p.ds.HTTPHeaders(), headerLookup(h))
	return p.Match(ctx, value)
}

// MatchHeaderMap is MatchHeaders for a plain map. Keys that differ only in
// case collapse to one header.
func (p *Provider) MatchHeaderMap(ctx context.Context, headers map[string]string) (*Match, error) {
	return p.MatchHeaders(ctx, headerFromMap(headers))
}

// MatchDeviceID resolves one profile id per component. Ids that are not in
// the dataset leave their slot absent. A sequence of the wrong length, a
// negative id or an id that names a profile of another component fails with
// ErrInvalidDeviceID.
func (p *Provider) MatchDeviceID(ids []int32) (*Match, error) {
	if p.ds.IsClosed() {
		return nil, ErrClosed
	}
	start := time.Now()
	if err := deviceid.Validate(ids); err != nil {
		return nil, err
	}
	components := p.ds.Components()
	if len(ids) != len(components) {
		return nil, fmt.Errorf("%w: %d profile ids for %d components", ErrInvalidDeviceID, len(ids), len(components))
	}

	profiles := make([]*dataset.Profile, len(components))
	for i, id := range ids {
		if id == deviceid.Absent {
			continue
		}
		prof, err := p.ds.FindProfile(id)
		if err != nil {
			return nil, err
		}
		if prof == nil {
			continue
		}
		if prof.ComponentIndex != i {
			return nil, fmt.Errorf("%w: profile %d belongs to component %q, not %q",
				ErrInvalidDeviceID, id, components[prof.ComponentIndex].Name, components[i].Name)
		}
		profiles[i] = prof
	}

	m := newMatch(p.ds, "", matcher.Result{Method: matcher.MethodDeviceID}, profiles, time.Since(start))
	p.finish(context.Background(), m)
	return m, nil
}

// MatchDeviceIDString resolves a dash-joined device-id such as "10-21".
func (p *Provider) MatchDeviceIDString(s string) (*Match, error) {
	ids, err := deviceid.Parse(s)
	if err != nil {
		return nil, err
	}
	return p.MatchDeviceID(ids)
}

// MatchDeviceIDBytes resolves a device-id of big-endian 32-bit integers.
func (p *Provider) MatchDeviceIDBytes(b []byte) (*Match, error) {
	ids, err := deviceid.FromBytes(b)
	if err != nil {
		return nil, err
	}
	return p.MatchDeviceID(ids)
}

// Close closes everything handed over with WithCloser, in reverse order.
func (p *Provider) Close() error {
	var errs []error
	for i := len(p.closers) - 1; i >= 0; i-- {
		if err := p.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	p.closers = nil
	return errors.Join(errs...)
}

// resolve runs the matcher, consulting the result cache first. Cache
// failures are logged and otherwise ignored.
func (p *Provider) resolve(ctx context.Context, target string) (matcher.Result, error) {
	if target == "" || p.results == nil {
		return p.matcher.MatchNormalized(target)
	}

	cached, ok, err := p.results.Get(ctx, target)
	switch {
	case err != nil:
		p.metrics.cacheResult("error")
		p.logger.WarnContext(ctx, "result cache lookup failed", logger.UserAgent(target), logger.Error(err))
	case ok:
		res, err := p.fromCache(cached)
		if err == nil {
			p.metrics.cacheResult("hit")
			return res, nil
		}
		if errors.Is(err, ErrClosed) {
			return matcher.Result{}, err
		}
		p.metrics.cacheResult("error")
		p.logger.WarnContext(ctx, "discarding cached result", logger.UserAgent(target), logger.Error(err))
	default:
		p.metrics.cacheResult("miss")
	}

	res, err := p.matcher.MatchNormalized(target)
	if err != nil {
		return matcher.Result{}, err
	}
	if err := p.results.Set(ctx, target, cachedFrom(res)); err != nil {
		p.logger.WarnContext(ctx, "result cache store failed", logger.UserAgent(target), logger.Error(err))
	}
	return res, nil
}

func (p *Provider) fromCache(c CachedResult) (matcher.Result, error) {
	res := matcher.Result{
		Method:       c.Method,
		Difference:   c.Difference,
		NodesMatched: c.NodesMatched,
	}
	if c.Signature == NoSignature {
		return res, nil
	}
	if c.Signature < 0 || c.Signature >= p.ds.SignatureCount() {
		return matcher.Result{}, fmt.Errorf("%w: signature index %d out of range", ErrResultCache, c.Signature)
	}
	sig, err := p.ds.Signature(c.Signature)
	if err != nil {
		return matcher.Result{}, err
	}
	if sig.Key != c.SignatureKey || !slices.Equal(sig.ProfileIDs, c.ProfileIDs) {
		return matcher.Result{}, fmt.Errorf("%w: signature %d does not match the cached entry", ErrResultCache, c.Signature)
	}
	res.Signature = sig
	return res, nil
}

func (p *Provider) finish(ctx context.Context, m *Match) {
	p.metrics.observe(m.Method(), m.elapsed)
	if !p.logger.Enabled(ctx, slog.LevelDebug) {
		return
	}
	p.logger.LogAttrs(ctx, slog.LevelDebug, "device detected",
		logger.UserAgent(m.userAgent),
		logger.Method(m.Method()),
		logger.Difference(m.Difference()),
		logger.DeviceID(m.DeviceID()),
		logger.Duration(m.elapsed),
	)
}
