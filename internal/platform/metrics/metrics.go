package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the Prometheus collectors for the service.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
	SubscribersCreated  prometheus.Counter
	CodeCollisions      prometheus.Counter
	SoftDeletes         *prometheus.CounterVec
	Purges              *prometheus.CounterVec
	PurgesRejected      prometheus.Counter
	DigestsPublished    prometheus.Counter
}

// New creates the collectors on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"}),
		SubscribersCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscribers_created_total",
			Help: "Total number of subscribers created",
		}),
		CodeCollisions: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "subscriber_code_collisions_total",
			Help: "Generated subscriber codes that were already taken",
		}),
		SoftDeletes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "soft_deletes_total",
			Help: "Soft-deleted records by entity",
		}, []string{"entity"}),
		Purges: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "purges_total",
			Help: "Permanently removed records by entity",
		}, []string{"entity"}),
		PurgesRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "purges_rejected_total",
			Help: "Purge attempts rejected by the admin pin guard",
		}),
		DigestsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "daily_digests_published_total",
			Help: "Daily renewal digests published to the broker",
		}),
	}

	reg.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.SubscribersCreated,
		m.CodeCollisions,
		m.SoftDeletes,
		m.Purges,
		m.PurgesRejected,
		m.DigestsPublished,
		prometheus.NewGoCollector(),
		prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}),
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() gin.HandlerFunc {
	h := promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
	return gin.WrapH(h)
}

// Middleware records request counts and latency per route template.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		m.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		m.HTTPRequestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}
