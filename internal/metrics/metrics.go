package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotaf_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "shotaf_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	MessagesProcessedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotaf_messages_processed_total",
			Help: "Total number of inbound chat messages processed, by resolved intent.",
		},
		[]string{"intent"},
	)

	ClassifierFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shotaf_classifier_failures_total",
			Help: "Total number of classifier calls that fell back to an empty intent.",
		},
	)

	RemindersDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "shotaf_reminders_delivered_total",
			Help: "Total number of reminders delivered, by recurrence frequency.",
		},
		[]string{"frequency"},
	)

	ReminderDeliveryFailures = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shotaf_reminder_delivery_failures_total",
			Help: "Total number of reminder deliveries that failed and will be retried.",
		},
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "shotaf_scheduler_sweep_duration_seconds",
			Help:    "Duration of one reminder sweep over all users.",
			Buckets: prometheus.DefBuckets,
		},
	)

	SweepsSkippedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "shotaf_scheduler_sweeps_skipped_total",
			Help: "Sweeps skipped because the previous sweep was still running.",
		},
	)
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		MessagesProcessedTotal,
		ClassifierFailuresTotal,
		RemindersDeliveredTotal,
		ReminderDeliveryFailures,
		SweepDuration,
		SweepsSkippedTotal,
	)
}
