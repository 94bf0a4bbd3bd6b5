// Package metrics exposes prometheus collectors for the HTTP API and the
// remote file share.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "cabinet"

type Metrics struct {
	registry *prometheus.Registry

	remoteOperations *prometheus.CounterVec
	remoteDuration   *prometheus.HistogramVec
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	quotaRejections  *prometheus.CounterVec
}

// New registers every collector on a fresh registry, together with the
// process and go runtime collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	return &Metrics{
		registry: reg,
		remoteOperations: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_operations_total",
				Help:      "Remote file share calls by operation and status",
			},
			[]string{"operation", "status"},
		),
		remoteDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "remote_operation_duration_seconds",
				Help:      "Duration of remote file share calls",
				Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"operation"},
		),
		httpRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
		httpDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "Duration of HTTP requests by route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
		quotaRejections: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "quota_rejections_total",
				Help:      "Uploads rejected by quota tier",
			},
			[]string{"tier"},
		),
	}
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func (m *Metrics) ObserveRemoteOperation(operation string, duration time.Duration, err error) {
	m.remoteOperations.WithLabelValues(operation, status(err)).Inc()
	m.remoteDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

func (m *Metrics) ObserveRequest(route string, code int, duration time.Duration) {
	m.httpRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	m.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

func (m *Metrics) QuotaRejected(tier string) {
	m.quotaRejections.WithLabelValues(tier).Inc()
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
