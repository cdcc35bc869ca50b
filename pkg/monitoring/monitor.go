package monitoring

import (
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	RequestCounter = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: []float64{0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "endpoint"},
	)

	// 练习业务指标
	AnswersSubmitted = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sia_answers_submitted_total",
			Help: "Answers recorded, by resulting item status",
		},
		[]string{"item_status"},
	)

	ActivitiesCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sia_activities_created_total",
			Help: "Activities generated and stored",
		},
	)

	ActivitiesCompleted = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sia_activities_completed_total",
			Help: "Activities that reached COMPLETED",
		},
	)

	UpstreamFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sia_upstream_failures_total",
			Help: "Failed calls to content generator, grader or hint generator",
		},
		[]string{"collaborator"},
	)
)

var registerOnce sync.Once

// Init registers every collector with the default registry. Safe to call more
// than once.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			RequestCounter,
			RequestDuration,
			AnswersSubmitted,
			ActivitiesCreated,
			ActivitiesCompleted,
			UpstreamFailures,
		)
	})
}

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// 用路由模板做 label，避免 activity_id 进入指标维度
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}

		RequestCounter.WithLabelValues(
			c.Request.Method,
			endpoint,
			strconv.Itoa(c.Writer.Status()),
		).Inc()

		RequestDuration.WithLabelValues(
			c.Request.Method,
			endpoint,
		).Observe(time.Since(start).Seconds())
	}
}

func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
