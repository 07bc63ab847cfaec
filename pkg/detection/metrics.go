package detection

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/dmitrymomot/devicedetect/pkg/matcher"
)

const metricsNamespace = "devicedetect"

// Metrics holds the Prometheus collectors of a Provider.
type Metrics struct {
	detections  *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	resultCache *prometheus.CounterVec
}

// NewMetrics creates the detection collectors and registers them with reg.
// Collectors already registered by another provider are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		detections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "detections_total",
			Help:      "Total number of detections by match method",
		}, []string{"method"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "detection_duration_seconds",
			Help:      "Time spent resolving a match",
			Buckets:   prometheus.ExponentialBuckets(0.000005, 4, 10),
		}, []string{"method"}),
		resultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: "result_cache",
			Name:      "requests_total",
			Help:      "Result cache lookups by outcome",
		}, []string{"result"}),
	}

	var err error
	if m.detections, err = register(reg, m.detections); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}
	if m.resultCache, err = register(reg, m.resultCache); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Metrics) observe(method matcher.Method, d time.Duration) {
	if m == nil {
		return
	}
	m.detections.WithLabelValues(method.String()).Inc()
	m.duration.WithLabelValues(method.String()).Observe(d.Seconds())
}

// cacheResult records a result cache outcome: "hit", "miss" or "error".
func (m *Metrics) cacheResult(outcome string) {
	if m == nil {
		return
	}
	m.resultCache.WithLabelValues(outcome).Inc()
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
