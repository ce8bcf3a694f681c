package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order creations",
	}, []string{"reason"})

	OrderStatusUpdatesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "order_status_updates_total",
		Help: "Total number of order status transitions",
	}, []string{"status"})

	StockUpdatesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "stock_updates_failed_total",
		Help: "Total number of failed stock updates",
	}, []string{"reason"})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment order creations",
	})

	PaymentSuccessTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_success_total",
		Help: "Total number of verified payments",
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_failed_total",
		Help: "Total number of failed payment verifications",
	})

	PaymentProcessingLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_processing_latency_seconds",
		Help:    "Latency of payment order creation and verification",
		Buckets: prometheus.DefBuckets,
	})

	ImportSessionsStartedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "import_sessions_started_total",
		Help: "Total number of import sessions started",
	})

	BooksImportedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "books_imported_total",
		Help: "Total number of books imported successfully",
	})

	ImportItemsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "import_items_failed_total",
		Help: "Total number of import items that failed",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
