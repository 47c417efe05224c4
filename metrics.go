package statis

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics of the site generator.
// They are exposed by the reload server on /__statis/metrics.
type Metrics struct {
	registry *prometheus.Registry

	siteBuilds        *prometheus.CounterVec
	siteBuildDuration prometheus.Histogram
	reloads           prometheus.Counter
}

func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		siteBuilds: prometheus.NewCounterVec(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "statis",
			Name:      "site_builds_total",
			Help:      "Number of statis generator runs, by result.",
		}, []string{"result"}),
		siteBuildDuration: prometheus.NewHistogram(prometheus.HistogramOpts{ //nolint:exhaustruct
			Namespace: "statis",
			Name:      "site_build_duration_seconds",
			Help:      "Duration of statis generator runs.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10), //nolint:mnd
		}),
		reloads: prometheus.NewCounter(prometheus.CounterOpts{ //nolint:exhaustruct
			Namespace: "statis",
			Name:      "browser_reloads_total",
			Help:      "Number of reloads sent to the connected browsers.",
		}),
	}

	m.registry.MustRegister(
		m.siteBuilds,
		m.siteBuildDuration,
		m.reloads,
		collectors.NewGoCollector(),
	)

	return m
}

func (m *Metrics) Gatherer() prometheus.Gatherer { //nolint:ireturn // prometheus api
	return m.registry
}

func (m *Metrics) observeSiteBuild(d time.Duration, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}

	m.siteBuilds.WithLabelValues(result).Inc()
	m.siteBuildDuration.Observe(d.Seconds())
}

func (m *Metrics) observeReload() {
	m.reloads.Inc()
}
