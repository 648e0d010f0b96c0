// Package metrics holds the Prometheus collectors of the route ledger.
package metrics

import (
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

// Config labels every series with the plant and environment it came from.
type Config struct {
	ServiceName string
	Environment string
	PlantID     string
}

// Metrics captures settlement throughput, debt exposure and HTTP health.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	checkouts       prometheus.Counter
	checkins        *prometheus.CounterVec
	debtAmount      *prometheus.HistogramVec
	debtResolutions *prometheus.CounterVec
	lockContention  prometheus.Counter
	publishFailures prometheus.Counter
	httpRequests    *prometheus.CounterVec
	httpDuration    *prometheus.HistogramVec
}

// New builds the collectors and registers them on registerer.  A nil
// registerer means prometheus.DefaultRegisterer.
func New(registerer prometheus.Registerer, cfg Config) *Metrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "routeledger"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
		"plant":   strings.TrimSpace(cfg.PlantID),
	}

	m := &Metrics{
		checkouts: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "routeledger_route_checkouts_total",
			Help:        "Trucks dispatched on a route.",
			ConstLabels: constLabels,
		}),
		checkins: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "routeledger_route_checkins_total",
			Help:        "Settled check-ins by reconciliation strategy and outcome.",
			ConstLabels: constLabels,
		}, []string{"strategy", "status"}),
		debtAmount: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "routeledger_route_debt_amount",
			Help:        "Debt figure computed at settlement, in currency units.",
			Buckets:     []float64{0, 60, 120, 300, 600, 1200, 3000, 6000, 12000},
			ConstLabels: constLabels,
		}, []string{"strategy"}),
		debtResolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "routeledger_debt_resolutions_total",
			Help:        "Debt record transitions by target status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		lockContention: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "routeledger_checkin_lock_contention_total",
			Help:        "Check-ins rejected because another request held the route lock.",
			ConstLabels: constLabels,
		}),
		publishFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "routeledger_event_publish_failures_total",
			Help:        "Settlement events that could not be published.",
			ConstLabels: constLabels,
		}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "routeledger_http_requests_total",
			Help:        "HTTP requests by method, route and status.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "routeledger_http_request_duration_seconds",
			Help:        "HTTP request latency by route.",
			Buckets:     []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
			ConstLabels: constLabels,
		}, []string{"method", "route"}),
	}

	registerer.MustRegister(
		m.checkouts,
		m.checkins,
		m.debtAmount,
		m.debtResolutions,
		m.lockContention,
		m.publishFailures,
		m.httpRequests,
		m.httpDuration,
	)
	return m
}

func (m *Metrics) RecordCheckout() {
	if m == nil {
		return
	}
	m.checkouts.Inc()
}

// RecordCheckIn counts a settled check-in and observes its debt figure.
func (m *Metrics) RecordCheckIn(strategy, status string, debt decimal.Decimal) {
	if m == nil {
		return
	}
	m.checkins.WithLabelValues(strategy, status).Inc()
	amount, _ := debt.Float64()
	m.debtAmount.WithLabelValues(strategy).Observe(amount)
}

func (m *Metrics) RecordDebtResolution(status string) {
	if m == nil {
		return
	}
	m.debtResolutions.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordLockContention() {
	if m == nil {
		return
	}
	m.lockContention.Inc()
}

func (m *Metrics) RecordPublishFailure() {
	if m == nil {
		return
	}
	m.publishFailures.Inc()
}

// ObserveRequest records one served HTTP request.  route is the registered
// path pattern, never the raw URL, to keep cardinality bounded.
func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unknown"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}
