package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics records nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Lifecycle metrics
	ContentTransitionsTotal *prometheus.CounterVec
	SideEffectErrorsTotal   *prometheus.CounterVec
	ContentItems            *prometheus.GaugeVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aula_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "aula_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		ContentTransitionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aula_content_transitions_total",
				Help: "Lifecycle operations attempted on content items",
			},
			[]string{"kind", "action", "outcome"},
		),
		SideEffectErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "aula_side_effect_errors_total",
				Help: "Failures of best-effort work after a committed change",
			},
			[]string{"component"},
		),
		ContentItems: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "aula_content_items",
				Help: "Content items per status as of the last stats query for an organization",
			},
			[]string{"organization", "status"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.ContentTransitionsTotal,
		m.SideEffectErrorsTotal,
		m.ContentItems,
	)
	return m
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveTransition counts one lifecycle operation. outcome is "ok" or
// the error code returned to the caller.
func (m *Metrics) ObserveTransition(kind, action, outcome string) {
	if m == nil {
		return
	}
	m.ContentTransitionsTotal.WithLabelValues(kind, action, outcome).Inc()
}

func (m *Metrics) ObserveSideEffectError(component string) {
	if m == nil {
		return
	}
	m.SideEffectErrorsTotal.WithLabelValues(component).Inc()
}

// SetItemCount records the item count of one status within organization.
func (m *Metrics) SetItemCount(organization, status string, count int) {
	if m == nil {
		return
	}
	m.ContentItems.WithLabelValues(organization, status).Set(float64(count))
}

// Handler exposes registry in the Prometheus text format.
func Handler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
