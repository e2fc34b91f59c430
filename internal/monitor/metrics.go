package monitor

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"marketplace/pkg/queue"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_http_requests_total",
		Help: "HTTP requests by method, path and status",
	}, []string{"method", "path", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	ordersCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_orders_created_total",
		Help: "Orders created by tenant",
	}, []string{"tenant"})

	ordersCancelledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_orders_cancelled_total",
		Help: "Orders cancelled by tenant",
	}, []string{"tenant"})

	cacheRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_cache_requests_total",
		Help: "Cache lookups by outcome",
	}, []string{"outcome"})

	tasksProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marketplace_tasks_processed_total",
		Help: "Queue tasks processed by name and outcome",
	}, []string{"task", "queue", "outcome"})

	taskDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marketplace_task_duration_seconds",
		Help:    "Queue task processing time",
		Buckets: []float64{.01, .05, .1, .5, 1, 5, 30, 60, 300},
	}, []string{"task", "queue"})

	queueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "marketplace_queue_depth",
		Help: "Ready plus delayed jobs per queue",
	}, []string{"queue"})
)

// Handler exposes the metrics endpoint.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}

// Middleware records request counts and latency. The matched route
// template is used as the path label to keep cardinality bounded.
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}

		httpRequestsTotal.WithLabelValues(
			c.Request.Method, path, strconv.Itoa(c.Writer.Status()),
		).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, path).
			Observe(time.Since(start).Seconds())
	}
}

// ObserveOrderCreated counts a created order.
func ObserveOrderCreated(tenantID uint) {
	ordersCreatedTotal.WithLabelValues(strconv.FormatUint(uint64(tenantID), 10)).Inc()
}

// ObserveOrderCancelled counts a cancelled order.
func ObserveOrderCancelled(tenantID uint) {
	ordersCancelledTotal.WithLabelValues(strconv.FormatUint(uint64(tenantID), 10)).Inc()
}

// ObserveCacheLookup counts a cache hit or miss.
func ObserveCacheLookup(hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	cacheRequestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveTask is wired as the worker pool result hook.
func ObserveTask(job *queue.Job, err error, elapsed time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	tasksProcessedTotal.WithLabelValues(job.Name, job.Queue, outcome).Inc()
	taskDuration.WithLabelValues(job.Name, job.Queue).Observe(elapsed.Seconds())
}

// SetQueueDepth records the current backlog of a queue.
func SetQueueDepth(queueName string, depth int64) {
	queueDepth.WithLabelValues(queueName).Set(float64(depth))
}
