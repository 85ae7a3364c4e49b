package observability

import (
	"time"

	"github.com/opadata/checkout-api/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds the Prometheus metrics for the checkout funnel.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	sessionsStarted prometheus.Counter
	stepTransitions *prometheus.CounterVec
	cepLookups      *prometheus.CounterVec
	ordersCreated   prometheus.Counter
	paymentSessions *prometheus.CounterVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	accountsCreated prometheus.Counter
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. Using a private registry avoids "duplicate
// collector" panics when NewMetrics is called more than once (e.g. in tests).
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "checkout_request_duration_seconds",
				Help:    "Duration of requests by operation.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		sessionsStarted: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_sessions_started_total",
				Help: "Total checkout sessions created.",
			},
		),
		stepTransitions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_step_transitions_total",
				Help: "Wizard step transitions by origin and destination.",
			},
			[]string{"from", "to"},
		),
		cepLookups: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_cep_lookups_total",
				Help: "Postal code lookups by result.",
			},
			[]string{"result"},
		),
		ordersCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_orders_created_total",
				Help: "Total orders persisted.",
			},
		),
		paymentSessions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_payment_sessions_total",
				Help: "Payment sessions created at the gateway, by result.",
			},
			[]string{"result"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "checkout_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		accountsCreated: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "checkout_accounts_created_total",
				Help: "Total customer accounts created through checkout.",
			},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrSessionStarted counts a new checkout session.
func (m *Metrics) IncrSessionStarted() {
	m.sessionsStarted.Inc()
}

// IncrStepTransition counts a wizard transition.
func (m *Metrics) IncrStepTransition(from, to string) {
	m.stepTransitions.WithLabelValues(from, to).Inc()
}

// IncrCEPLookup counts a postal code lookup by result
// (hit, not_found, failed, superseded).
func (m *Metrics) IncrCEPLookup(result string) {
	m.cepLookups.WithLabelValues(result).Inc()
}

// IncrOrderCreated counts a persisted order.
func (m *Metrics) IncrOrderCreated() {
	m.ordersCreated.Inc()
}

// IncrPaymentSession counts a gateway payment-session attempt by result.
func (m *Metrics) IncrPaymentSession(result string) {
	m.paymentSessions.WithLabelValues(result).Inc()
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrAccountCreated counts a customer account created through checkout.
func (m *Metrics) IncrAccountCreated() {
	m.accountsCreated.Inc()
}

// GetFunnelSnapshot returns a snapshot of the checkout funnel suitable
// for the GET /v1/metrics/funnel endpoint.
func (m *Metrics) GetFunnelSnapshot() *domain.FunnelMetrics {
	sessions := counterValue(m.sessionsStarted)
	orders := counterValue(m.ordersCreated)
	accounts := counterValue(m.accountsCreated)
	payments := vecValue(m.paymentSessions, "success")
	lookupHits := vecValue(m.cepLookups, "hit")
	lookupMisses := vecValue(m.cepLookups, "not_found") + vecValue(m.cepLookups, "failed")

	conversion := float64(0)
	if sessions > 0 {
		conversion = payments / sessions
	}

	return &domain.FunnelMetrics{
		SessionsStarted: int64(sessions),
		AccountsCreated: int64(accounts),
		OrdersCreated:   int64(orders),
		PaymentSessions: int64(payments),
		ConversionRate:  conversion,
		CEPLookupsOK:    int64(lookupHits),
		CEPLookupsBad:   int64(lookupMisses),
	}
}

func counterValue(c prometheus.Counter) float64 {
	m := &dto.Metric{}
	if err := c.Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}

// vecValue extracts the current value from a CounterVec for a label.
func vecValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
