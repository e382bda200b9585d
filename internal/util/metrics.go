package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of items added to carts",
	})

	CartMutationsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_mutations_failed_total",
		Help: "Total number of rejected cart mutations",
	}, []string{"reason"})

	OrdersPlacedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_placed_total",
		Help: "Total number of orders placed",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order placements",
	}, []string{"reason"})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of cancelled orders",
	})

	PaymentAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_attempts_total",
		Help: "Total number of payment attempts",
	})

	PaymentsSettledTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_settled_total",
		Help: "Total number of settled payments",
	}, []string{"mode"})

	PaymentsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed payments",
	}, []string{"reason"})

	PaymentSettleLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "payment_settle_latency_seconds",
		Help:    "Latency of the payment settlement transaction",
		Buckets: prometheus.DefBuckets,
	})

	WalletTopUpsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_topups_total",
		Help: "Total number of wallet top-ups",
	})

	NotificationsPublishedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_published_total",
		Help: "Total number of notification events published",
	})

	NotificationsFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "notifications_failed_total",
		Help: "Total number of notification events that failed to publish",
	})

	EmailsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_sent_total",
		Help: "Total number of emails sent by the notification worker",
	}, []string{"kind"})

	EmailsFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "emails_failed_total",
		Help: "Total number of emails that failed to send",
	}, []string{"kind"})

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
