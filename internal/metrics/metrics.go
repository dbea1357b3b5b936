package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leisuretimez_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "leisuretimez_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leisuretimez_bookings_total",
			Help: "Total number of bookings by status",
		},
		[]string{"status"},
	)

	BookingCancellationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leisuretimez_booking_cancellations_total",
			Help: "Total number of booking cancellations",
		},
	)

	PaymentsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leisuretimez_payments_total",
			Help: "Total number of payment initiations",
		},
		[]string{"mode", "result"},
	)

	WalletTransactionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leisuretimez_wallet_transactions_total",
			Help: "Total number of wallet ledger operations",
		},
		[]string{"type", "result"},
	)

	WebhookEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "leisuretimez_webhook_events_total",
			Help: "Total number of gateway webhook events processed",
		},
		[]string{"type", "result"},
	)

	RefundsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leisuretimez_refunds_total",
			Help: "Total number of wallet refund credits",
		},
	)

	InvoicesIssuedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "leisuretimez_invoices_issued_total",
			Help: "Total number of invoices issued",
		},
	)
)

func RecordHTTPRequest(method, path, status string, duration float64) {
	HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration)
}

func RecordBooking(status string) {
	BookingsTotal.WithLabelValues(status).Inc()
}

func RecordBookingCancellation() {
	BookingCancellationsTotal.Inc()
}

func RecordPayment(mode, result string) {
	PaymentsTotal.WithLabelValues(mode, result).Inc()
}

func RecordWalletTransaction(txType, result string) {
	WalletTransactionsTotal.WithLabelValues(txType, result).Inc()
}

func RecordWebhookEvent(eventType, result string) {
	WebhookEventsTotal.WithLabelValues(eventType, result).Inc()
}

func RecordRefund() {
	RefundsTotal.Inc()
}

func RecordInvoice() {
	InvoicesIssuedTotal.Inc()
}
