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
			Help: "Total number of HTTP requests processed by the chat service.",
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
	wsActiveConnections = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "chat_ws_active_connections",
			Help: "Number of active websocket connections.",
		},
	)
	wsEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_ws_events_total",
			Help: "Total number of websocket events.",
		},
		[]string{"event"},
	)
	realtimeEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_realtime_events_total",
			Help: "Realtime events published to room channels.",
		},
		[]string{"event", "result"},
	)
	storeErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_store_errors_total",
			Help: "Keyed store command failures.",
		},
		[]string{"op"},
	)
	roomsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_rooms_total",
			Help: "Room lifecycle transitions.",
		},
		[]string{"transition"},
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
		realtimeEventsTotal,
		storeErrorsTotal,
		roomsTotal,
		amqpPublishErrorsTotal,
	)
}

func HTTPMetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()

		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	}
}

func IncWSActive() {
	wsActiveConnections.Inc()
}

func DecWSActive() {
	wsActiveConnections.Dec()
}

func IncWSEvent(event string) {
	wsEventsTotal.WithLabelValues(event).Inc()
}

func IncRealtimeEvent(event string, ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	realtimeEventsTotal.WithLabelValues(event, result).Inc()
}

func IncStoreError(op string) {
	storeErrorsTotal.WithLabelValues(op).Inc()
}

func IncRoom(transition string) {
	roomsTotal.WithLabelValues(transition).Inc()
}

func IncAMQPPublishError() {
	amqpPublishErrorsTotal.Inc()
}
