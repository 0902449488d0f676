package observ

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	namespace       = "echoforum"
	httpSubsystem   = "http"
	uploadSubsystem = "upload"
	sweepSubsystem  = "sweeper"
)

// Metrics owns a private registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
	uploads  *prometheus.CounterVec
	swept    prometheus.Counter
}

func NewMetrics() *Metrics {
	labels := []string{"method", "route", "action", "status"}
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: httpSubsystem,
			Name:      "requests_total",
			Help:      "Number of HTTP requests served",
		}, labels),
		latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: httpSubsystem,
			Name:      "request_duration_seconds",
			Help:      "Histogram of HTTP request latency",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "action"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: uploadSubsystem,
			Name:      "files_total",
			Help:      "Number of uploaded files by outcome",
		}, []string{"result"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: sweepSubsystem,
			Name:      "removed_total",
			Help:      "Number of orphaned uploads removed",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.latency,
		m.uploads,
		m.swept,
	)
	return m
}

// Middleware records one observation per request. Unmatched routes are
// collapsed into a single label value to keep cardinality bounded.
func (m *Metrics) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		action := c.Query("action")
		if len(action) > 32 {
			action = "invalid"
		}
		m.requests.WithLabelValues(c.Request.Method, route, action, strconv.Itoa(c.Writer.Status())).Inc()
		m.latency.WithLabelValues(c.Request.Method, route, action).Observe(time.Since(start).Seconds())
	}
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) UploadAccepted() { m.uploads.WithLabelValues("accepted").Inc() }

func (m *Metrics) UploadRejected() { m.uploads.WithLabelValues("rejected").Inc() }

func (m *Metrics) Swept(n int) { m.swept.Add(float64(n)) }
