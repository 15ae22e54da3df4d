// Package metrics exposes Prometheus collectors for thread synchronization.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "appcompat"

type Metrics struct {
	registry *prometheus.Registry

	syncRequests *prometheus.CounterVec
	syncDuration *prometheus.HistogramVec
	provisioned  prometheus.Counter
	orphaned     prometheus.Counter
	unarchived   prometheus.Counter
	backfilled   *prometheus.CounterVec
}

// New builds collectors on a private registry, together with the Go runtime
// and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		syncRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sync_requests_total",
			Help:      "Thread synchronization requests by endpoint and result code.",
		}, []string{"endpoint", "code"}),
		syncDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "sync_duration_seconds",
			Help:      "Wall time of thread synchronization requests.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 3, 5, 8, 13},
		}, []string{"endpoint"}),
		provisioned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_provisioned_total",
			Help:      "Threads created and bound to a post.",
		}),
		orphaned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_orphaned_total",
			Help:      "Threads created but not bound because another binding won.",
		}),
		unarchived: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "threads_unarchived_total",
			Help:      "Archived threads reopened before listing messages.",
		}),
		backfilled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "backfill_posts_total",
			Help:      "Posts visited by the backfill sweep by result.",
		}, []string{"result"}),
	}
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.syncRequests,
		m.syncDuration,
		m.provisioned,
		m.orphaned,
		m.unarchived,
		m.backfilled,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSync records one endpoint call. code is "OK" or a domain error code.
func (m *Metrics) ObserveSync(endpoint, code string, elapsed time.Duration) {
	m.syncRequests.WithLabelValues(endpoint, code).Inc()
	m.syncDuration.WithLabelValues(endpoint).Observe(elapsed.Seconds())
}

func (m *Metrics) ThreadProvisioned() { m.provisioned.Inc() }
func (m *Metrics) ThreadOrphaned()    { m.orphaned.Inc() }
func (m *Metrics) ThreadUnarchived()  { m.unarchived.Inc() }

// BackfillResult counts one post handled by the sweep ("bound" or "failed").
func (m *Metrics) BackfillResult(result string) {
	m.backfilled.WithLabelValues(result).Inc()
}
