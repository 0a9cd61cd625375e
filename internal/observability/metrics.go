package observability

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_http_requests_total",
			Help: "Total number of HTTP requests processed by the sync service.",
		},
		[]string{"method", "route", "status"},
	)
	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "chat_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route"},
	)
	wsActiveConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active realtime connections.",
		},
		[]string{"transport"},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of realtime connection lifecycle events.",
		},
		[]string{"transport", "event"},
	)
	fanoutEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_events_total",
			Help: "Events dispatched through the router, by type.",
		},
		[]string{"type"},
	)
	fanoutDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_fanout_dropped_total",
			Help: "Per-recipient deliveries dropped or failed during fan-out.",
		},
		[]string{"reason"},
	)
	amqpPublishErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_amqp_publish_errors_total",
			Help: "Total number of AMQP publish errors.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		httpRequestsTotal,
		httpRequestDuration,
		wsActiveConnections,
		wsEventsTotal,
		fanoutEventsTotal,
		fanoutDroppedTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive(transport string) {
	wsActiveConnections.WithLabelValues(transport).Inc()
}

func DecWSActive(transport string) {
	wsActiveConnections.WithLabelValues(transport).Dec()
}

func IncWSEvent(transport, event string) {
	wsEventsTotal.WithLabelValues(transport, event).Inc()
}

func IncFanout(eventType string) {
	fanoutEventsTotal.WithLabelValues(eventType).Inc()
}

func IncFanoutDropped(reason string) {
	fanoutDroppedTotal.WithLabelValues(reason).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
