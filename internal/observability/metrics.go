package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"route", "code", "method"},
	)

	DBTxDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courtbook_db_tx_seconds",
			Help:    "Duration of DB transactions",
			Buckets: prometheus.DefBuckets,
		},
	)

	BookingsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_bookings_total",
			Help: "Booking attempts by result",
		},
		[]string{"result"},
	)

	CourtLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "courtbook_court_lock_wait_seconds",
			Help:    "Time spent waiting for a court lease",
			Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2.5, 5},
		},
	)

	PaymentOutcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "courtbook_payment_outcomes_total",
			Help: "Payment outcomes by outcome and result",
		},
		[]string{"outcome", "result"},
	)

	OutboxLag = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "courtbook_outbox_lag_seconds",
			Help: "Age of the oldest event in the last relayed batch",
		},
	)

	RabbitPublishRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courtbook_rabbit_publish_retries_total",
			Help: "Total rabbit publish retries",
		},
	)

	RateLimitExceeded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "courtbook_rate_limit_exceeded_total",
			Help: "Total rate limit exceeded",
		},
	)
)
