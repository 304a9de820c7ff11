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

	OrdersCompletedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_completed_total",
		Help: "Total number of orders fulfilled with voucher codes",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed orders",
	}, []string{"reason"})

	OrdersStockoutTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_stockout_total",
		Help: "Total number of paid orders parked for restock",
	})

	OrdersRefundedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_refunded_total",
		Help: "Total number of orders refunded by an admin",
	})

	CodesDeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "voucher_codes_delivered_total",
		Help: "Total number of voucher codes delivered to orders",
	})

	CodeClaimLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "voucher_code_claim_latency_seconds",
		Help:    "Latency of the assign-and-decrement claim operation",
		Buckets: prometheus.DefBuckets,
	})

	WebhookDeliveriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhook_deliveries_total",
		Help: "Total number of gateway webhook deliveries by outcome",
	}, []string{"outcome"})

	WebhookReplaysTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhook_replays_total",
		Help: "Total number of duplicate webhook deliveries ignored",
	})

	GatewaySessionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "gateway_sessions_total",
		Help: "Total number of hosted checkout sessions by outcome",
	}, []string{"outcome"})

	GatewaySessionLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "gateway_session_latency_seconds",
		Help:    "Latency of checkout session creation calls",
		Buckets: prometheus.DefBuckets,
	})

	PaymentFailedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payments_failed_total",
		Help: "Total number of failed or cancelled payments",
	})

	WalletCreditsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_credits_total",
		Help: "Total number of wallet credits applied",
	})

	WalletDebitsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_debits_total",
		Help: "Total number of wallet debits applied",
	})

	WalletDebitsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "wallet_debits_rejected_total",
		Help: "Total number of wallet debits rejected for insufficient balance",
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
