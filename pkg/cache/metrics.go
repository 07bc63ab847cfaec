package cache

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

// Option configures an LRUCache.
type Option func(*options)

type options struct {
	metrics *cacheMetrics
}

// WithMetrics exports the cache counters through m.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		if m != nil {
			o.metrics = m.m
		}
	}
}

// Metrics is a registered set of Prometheus collectors for one cache.
type Metrics struct {
	m *cacheMetrics
}

type cacheMetrics struct {
	hits      prometheus.Counter
	misses    prometheus.Counter
	loads     prometheus.Counter
	evictions prometheus.Counter
	size      prometheus.Gauge
	capacity  prometheus.Gauge
}

// NewMetrics creates cache collectors labelled with name and registers them
// with reg. Collectors that are already registered under the same labels are
// reused, so several datasets opened in one process can share them.
func NewMetrics(reg prometheus.Registerer, namespace, name string) (*Metrics, error) {
	labels := prometheus.Labels{"cache": name}
	m := &cacheMetrics{
		hits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "hits_total",
			ConstLabels: labels,
			Help:        "Total number of cache hits",
		}),
		misses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "misses_total",
			ConstLabels: labels,
			Help:        "Total number of cache misses",
		}),
		loads: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "loads_total",
			ConstLabels: labels,
			Help:        "Total number of values loaded on a miss",
		}),
		evictions: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "evictions_total",
			ConstLabels: labels,
			Help:        "Total number of cache evictions",
		}),
		size: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "size",
			ConstLabels: labels,
			Help:        "Current number of entries in cache",
		}),
		capacity: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "cache",
			Name:        "capacity",
			ConstLabels: labels,
			Help:        "Maximum number of entries in cache",
		}),
	}

	var err error
	if m.hits, err = register(reg, m.hits); err != nil {
		return nil, err
	}
	if m.misses, err = register(reg, m.misses); err != nil {
		return nil, err
	}
	if m.loads, err = register(reg, m.loads); err != nil {
		return nil, err
	}
	if m.evictions, err = register(reg, m.evictions); err != nil {
		return nil, err
	}
	if m.size, err = register(reg, m.size); err != nil {
		return nil, err
	}
	if m.capacity, err = register(reg, m.capacity); err != nil {
		return nil, err
	}

	return &Metrics{m: m}, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
