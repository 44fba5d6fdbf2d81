package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "donation"

// 操作类型
const (
	KindRead  = "read"
	KindWrite = "write"
)

var (
	operationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "operations_total",
			Help:      "Total number of contract operations by function, kind and outcome",
		},
		[]string{"function", "kind", "status"},
	)

	operationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "operation_duration_seconds",
			Help:      "Contract operation latency in seconds, writes include confirmation",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"function", "kind"},
	)

	writesInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "contract",
			Name:      "writes_in_flight",
			Help:      "Number of submitted writes waiting for confirmation",
		},
	)

	invalidationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "invalidations_total",
			Help:      "Number of snapshot invalidations by trigger",
		},
		[]string{"trigger"},
	)

	latestBlock = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "watch",
			Name:      "latest_block",
			Help:      "Latest observed block number",
		},
	)

	requestCounter = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "requests_total",
			Help:      "Total number of API requests",
		},
		[]string{"method", "path", "status"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "api",
			Name:      "request_duration_seconds",
			Help:      "API request duration in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2, 5},
		},
		[]string{"method", "path"},
	)
)

// ObserveOperation 记录一次合约操作
func ObserveOperation(function, kind string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	operationsTotal.WithLabelValues(function, kind, status).Inc()
	operationDuration.WithLabelValues(function, kind).Observe(time.Since(start).Seconds())
}

// WriteStarted 写操作开始
func WriteStarted() {
	writesInFlight.Inc()
}

// WriteFinished 写操作结束
func WriteFinished() {
	writesInFlight.Dec()
}

// ObserveInvalidation 记录一次快照失效
func ObserveInvalidation(trigger string, block uint64) {
	invalidationsTotal.WithLabelValues(trigger).Inc()
	latestBlock.Set(float64(block))
}

// Middleware 收集API请求指标
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		requestCounter.WithLabelValues(c.Request.Method, path, strconv.Itoa(c.Writer.Status())).Inc()
		requestDuration.WithLabelValues(c.Request.Method, path).Observe(time.Since(start).Seconds())
	}
}

// Handler 暴露 Prometheus 指标
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.Handler())
}
