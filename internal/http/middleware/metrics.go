package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Labels use the registered route, never the raw URL, to keep cardinality
// bounded. Unmatched requests are labelled "unmatched".
var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "punkhunt_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punkhunt_http_request_duration_seconds",
			Help:    "Duration of non-streaming HTTP requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punkhunt_http_requests_inflight",
			Help: "Requests currently being served.",
		},
	)

	httpStreams = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "punkhunt_http_streams_open",
			Help: "Open event stream connections.",
		},
	)

	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "punkhunt_http_response_size_bytes",
			Help:    "Size of HTTP responses in bytes.",
			Buckets: prometheus.ExponentialBuckets(128, 4, 8),
		},
		[]string{"method", "path"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpStreams, httpRespSize)
}

// Metrics instruments requests. Routes listed in streams are long-lived
// (server-sent events); they count toward the open-streams gauge instead of
// the latency histogram.
func Metrics(streams ...string) gin.HandlerFunc {
	isStream := make(map[string]struct{}, len(streams))
	for _, s := range streams {
		isStream[s] = struct{}{}
	}
	return func(c *gin.Context) {
		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		method := c.Request.Method

		if _, ok := isStream[path]; ok {
			httpStreams.Inc()
			defer httpStreams.Dec()
			c.Next()
			httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
			return
		}

		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}
