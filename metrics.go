package wirekit

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus collectors of a container. A nil *Metrics
// records nothing.
type Metrics struct {
	resolutions  *prometheus.CounterVec
	builds       *prometheus.CounterVec
	cacheHits    *prometheus.CounterVec
	compilations prometheus.Counter
	duration     *prometheus.HistogramVec
}

// NewMetrics creates the collectors and registers them with reg. Collectors
// already registered by another container are reused.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirekit",
			Name:      "resolutions_total",
			Help:      "Top-level resolutions by plugin type and result.",
		}, []string{"plugin_type", "result"}),
		builds: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirekit",
			Name:      "builds_total",
			Help:      "Objects constructed by plugin type and lifecycle.",
		}, []string{"plugin_type", "lifecycle"}),
		cacheHits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "wirekit",
			Name:      "cache_hits_total",
			Help:      "Objects served from a lifecycle cache.",
		}, []string{"lifecycle"}),
		compilations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "wirekit",
			Name:      "plan_compilations_total",
			Help:      "Build plans compiled.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "wirekit",
			Name:      "resolution_duration_seconds",
			Help:      "Duration of top-level resolutions.",
			Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
		}, []string{"plugin_type"}),
	}

	var err error
	if m.resolutions, err = register(reg, m.resolutions); err != nil {
		return nil, err
	}
	if m.builds, err = register(reg, m.builds); err != nil {
		return nil, err
	}
	if m.cacheHits, err = register(reg, m.cacheHits); err != nil {
		return nil, err
	}
	if m.compilations, err = register(reg, m.compilations); err != nil {
		return nil, err
	}
	if m.duration, err = register(reg, m.duration); err != nil {
		return nil, err
	}

	return m, nil
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

func (m *Metrics) resolved(pluginType string, err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "success"
	if err != nil {
		result = "error"
	}
	m.resolutions.WithLabelValues(pluginType, result).Inc()
	m.duration.WithLabelValues(pluginType).Observe(d.Seconds())
}

func (m *Metrics) built(pluginType, lifecycle string) {
	if m == nil {
		return
	}
	m.builds.WithLabelValues(pluginType, lifecycle).Inc()
}

func (m *Metrics) hit(lifecycle string) {
	if m == nil {
		return
	}
	m.cacheHits.WithLabelValues(lifecycle).Inc()
}

func (m *Metrics) compiled() {
	if m == nil {
		return
	}
	m.compilations.Inc()
}
