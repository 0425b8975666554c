package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal tracks total HTTP requests
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"service", "method", "endpoint", "status"},
	)

	// RequestDuration tracks HTTP request duration
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"service", "method", "endpoint"},
	)

	// CircuitBreakerState tracks circuit breaker state (0=closed, 1=open, 2=half-open)
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=open, 2=half-open)",
		},
		[]string{"service", "circuit_name"},
	)

	// CircuitBreakerFailures tracks circuit breaker failures
	CircuitBreakerFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "circuit_breaker_failures_total",
			Help: "Total number of circuit breaker failures",
		},
		[]string{"service", "circuit_name"},
	)

	// BulkheadActiveRequests tracks active requests in bulkhead
	BulkheadActiveRequests = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "bulkhead_active_requests",
			Help: "Number of active requests in bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// BulkheadRejectedRequests tracks rejected requests by bulkhead
	BulkheadRejectedRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bulkhead_rejected_requests_total",
			Help: "Total number of rejected requests by bulkhead",
		},
		[]string{"service", "bulkhead_name"},
	)

	// KitchenOrdersCreated counts orders sent to the kitchen by order type
	KitchenOrdersCreated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_orders_created_total",
			Help: "Total number of orders sent to the kitchen",
		},
		[]string{"order_type"},
	)

	// OrderTransitions counts order status changes
	OrderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_order_transitions_total",
			Help: "Total number of order status transitions",
		},
		[]string{"from", "to"},
	)

	// ItemTransitions counts item status changes per station
	ItemTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kitchen_item_transitions_total",
			Help: "Total number of item status transitions",
		},
		[]string{"station", "status"},
	)

	// ItemPrepMinutes observes the actual preparation time of items
	ItemPrepMinutes = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "kitchen_item_prep_minutes",
			Help:    "Actual item preparation time in minutes",
			Buckets: []float64{1, 3, 5, 10, 15, 20, 30, 45},
		},
		[]string{"station"},
	)

	// ActiveOrders tracks orders held in the store by status
	ActiveOrders = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "kitchen_orders",
			Help: "Number of kitchen orders by status",
		},
		[]string{"status"},
	)

	// OverdueOrders tracks orders past their estimated time
	OverdueOrders = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "kitchen_orders_overdue",
			Help: "Number of unserved orders whose elapsed time exceeds the estimate",
		},
	)

	// PaymentsTotal tracks settlement attempts by method and outcome
	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payments_total",
			Help: "Total number of payment settlements",
		},
		[]string{"method", "outcome"},
	)

	// PaymentAmount tracks settled totals
	PaymentAmount = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "payment_amount_dollars",
			Help:    "Settled payment totals in dollars",
			Buckets: []float64{10, 25, 50, 100, 250, 500},
		},
	)

	// BackendSyncFailures counts failed writes to the back-office API
	BackendSyncFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "backend_sync_failures_total",
			Help: "Total number of failed back-office sync calls",
		},
		[]string{"operation"},
	)

	// EventPublishFailures counts events that could not be published
	EventPublishFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "event_publish_failures_total",
			Help: "Total number of events that failed to publish",
		},
		[]string{"event_type"},
	)

	// ChaosFailureRate tracks chaos engineering failure simulations
	ChaosFailureRate = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_failure_enabled",
			Help: "Whether chaos failure mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)

	// ChaosSlowMode tracks slow response simulation
	ChaosSlowMode = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "chaos_slow_mode_enabled",
			Help: "Whether chaos slow mode is enabled (1=enabled, 0=disabled)",
		},
		[]string{"service"},
	)
)

// PrometheusMiddleware creates a Gin middleware for automatic metrics collection
func PrometheusMiddleware(serviceName string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(c.Writer.Status())

		RequestsTotal.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
			status,
		).Inc()

		RequestDuration.WithLabelValues(
			serviceName,
			c.Request.Method,
			c.FullPath(),
		).Observe(duration)
	}
}
