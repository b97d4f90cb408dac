// Package metrics defines the Prometheus collectors of the batch commands and
// the read API.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/client_golang/prometheus/push"
)

// Metrics holds the collectors on a private registry.
type Metrics struct {
	reg *prometheus.Registry

	DocsImportedTotal prometheus.Counter
	DocsEnrichedTotal prometheus.Counter
	DocsFailedTotal   prometheus.Counter
	RunDuration       *prometheus.HistogramVec
	HTTPRequestsTotal *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		DocsImportedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headlines_imported_total",
			Help: "Total headlines written by import.",
		}),
		DocsEnrichedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headlines_enriched_total",
			Help: "Total headlines annotated by enrich.",
		}),
		DocsFailedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "headlines_enrich_failed_total",
			Help: "Total headlines that could not be annotated.",
		}),
		RunDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "headlines_command_duration_seconds",
				Help:    "Wall time of a command run.",
				Buckets: []float64{0.1, 1, 10, 60, 300, 900, 3600},
			},
			[]string{"command", "status"},
		),
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "headlines_http_requests_total",
				Help: "Total API requests by route and status.",
			},
			[]string{"route", "status"},
		),
	}

	m.reg.MustRegister(
		m.DocsImportedTotal,
		m.DocsEnrichedTotal,
		m.DocsFailedTotal,
		m.RunDuration,
		m.HTTPRequestsTotal,
	)
	return m
}

// ObserveRun records the duration of a finished command.
func (m *Metrics) ObserveRun(command string, elapsed time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.RunDuration.WithLabelValues(command, status).Observe(elapsed.Seconds())
}

// Push sends the current values to a Pushgateway under job.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	return push.New(url, job).Gatherer(m.reg).PushContext(ctx)
}

// Handler returns the scrape handler for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}
