package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry owns the client's collectors. All methods are safe on a nil
// receiver so that metrics stay optional for callers and tests.
type Registry struct {
	reg *prometheus.Registry

	requests      *prometheus.CounterVec
	duration      *prometheus.HistogramVec
	cachedEvents  prometheus.Gauge
	staleFetches  prometheus.Counter
	notifications *prometheus.CounterVec
}

func New() *Registry {
	r := &Registry{reg: prometheus.NewRegistry()}

	r.requests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventhub",
		Name:      "api_requests_total",
		Help:      "Remote API calls by operation and outcome",
	}, []string{"op", "outcome"})
	r.duration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eventhub",
		Name:      "api_request_duration_seconds",
		Help:      "Remote API call latency",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
	r.cachedEvents = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eventhub",
		Name:      "cached_events",
		Help:      "Events held by the collection store after the last applied fetch",
	})
	r.staleFetches = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "eventhub",
		Name:      "stale_fetches_discarded_total",
		Help:      "List responses dropped because a newer fetch was already applied",
	})
	r.notifications = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eventhub",
		Name:      "notifications_total",
		Help:      "Notifications emitted by level",
	}, []string{"level"})

	r.reg.MustRegister(
		r.requests, r.duration, r.cachedEvents, r.staleFetches, r.notifications,
		collectors.NewGoCollector(),
	)
	return r
}

// ObserveRequest records one remote call. outcome is "ok" or an error kind.
func (r *Registry) ObserveRequest(op, outcome string, d time.Duration) {
	if r == nil {
		return
	}
	r.requests.WithLabelValues(op, outcome).Inc()
	r.duration.WithLabelValues(op).Observe(d.Seconds())
}

func (r *Registry) SetCachedEvents(n int) {
	if r == nil {
		return
	}
	r.cachedEvents.Set(float64(n))
}

func (r *Registry) StaleFetchDiscarded() {
	if r == nil {
		return
	}
	r.staleFetches.Inc()
}

func (r *Registry) Notified(level string) {
	if r == nil {
		return
	}
	r.notifications.WithLabelValues(level).Inc()
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{})
}
