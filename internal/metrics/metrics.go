// Package metrics holds the Prometheus collectors for the HTTP layer and the
// lending ledger.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lendmark"

var (
	Registry = prometheus.NewRegistry()

	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "inflight_requests",
		Help:      "Current number of in-flight HTTP requests.",
	})

	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "Total number of HTTP requests handled.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "Duration of HTTP requests.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
	}, []string{"method", "route"})

	offersCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offers",
		Name:      "created_total",
		Help:      "Offers posted, by kind.",
	}, []string{"kind"})

	offerTransitions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "offers",
		Name:      "transitions_total",
		Help:      "Offer status transitions, by target status.",
	}, []string{"status"})

	payments = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "total",
		Help:      "Payments recorded.",
	})

	paymentVolume = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "payments",
		Name:      "volume_cents_total",
		Help:      "Sum of recorded payment amounts in cents.",
	})

	notificationsSent = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "created_total",
		Help:      "Notifications persisted, by kind.",
	}, []string{"kind"})

	notificationsPushed = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "notifications",
		Name:      "pushed_total",
		Help:      "Notification frames delivered to websocket clients.",
	})

	wsClients = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "ws",
		Name:      "clients",
		Help:      "Connected websocket clients.",
	})

	cacheLookups = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "cache",
		Name:      "lookups_total",
		Help:      "Recommendation cache lookups, by result.",
	}, []string{"result"})
)

func init() {
	Registry.MustRegister(
		httpInFlight,
		httpRequests,
		httpDuration,
		offersCreated,
		offerTransitions,
		payments,
		paymentVolume,
		notificationsSent,
		notificationsPushed,
		wsClients,
		cacheLookups,
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		collectors.NewGoCollector(),
	)
}

func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{})
}

func OfferCreated(kind string)        { offersCreated.WithLabelValues(kind).Inc() }
func OfferTransitioned(status string) { offerTransitions.WithLabelValues(status).Inc() }
func NotificationCreated(kind string) { notificationsSent.WithLabelValues(kind).Inc() }
func NotificationPushed()             { notificationsPushed.Inc() }
func SetWSClients(n int)              { wsClients.Set(float64(n)) }
func CacheLookup(hit bool)            { cacheLookups.WithLabelValues(hitLabel(hit)).Inc() }

func PaymentRecorded(amountCents int64) {
	payments.Inc()
	if amountCents > 0 {
		paymentVolume.Add(float64(amountCents))
	}
}

func hitLabel(hit bool) string {
	if hit {
		return "hit"
	}
	return "miss"
}
