package observability

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// LedgerMetrics records ledger service activity.
type LedgerMetrics interface {
	RecordOperationAttempt(ctx context.Context, operation, service string)
	RecordOperationSuccess(ctx context.Context, operation, service string)
	RecordOperationFailure(ctx context.Context, operation, service string)
	RecordOperationDuration(ctx context.Context, operation, service string, duration time.Duration)
	RecordSubmission(ctx context.Context, outcome string)
	SetPlayerCount(n uint64)
	SetPaused(paused bool)
}

type prometheusLedgerMetrics struct {
	attempts    *prometheus.CounterVec
	successes   *prometheus.CounterVec
	failures    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	submissions *prometheus.CounterVec
	players     prometheus.Gauge
	paused      prometheus.Gauge
}

// NewLedgerMetrics registers the ledger collectors on reg.
func NewLedgerMetrics(reg prometheus.Registerer) LedgerMetrics {
	m := &prometheusLedgerMetrics{
		attempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operation_attempts_total",
			Help:      "Service operations started.",
		}, []string{"operation", "service"}),
		successes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operation_success_total",
			Help:      "Service operations that completed without a system error.",
		}, []string{"operation", "service"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "operation_failure_total",
			Help:      "Service operations that failed with a system error.",
		}, []string{"operation", "service"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ledger",
			Name:      "operation_duration_seconds",
			Help:      "Service operation latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"operation", "service"}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ledger",
			Name:      "submissions_total",
			Help:      "Score submissions by outcome.",
		}, []string{"outcome"}),
		players: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "players",
			Help:      "Distinct participants with an entry.",
		}),
		paused: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "ledger",
			Name:      "paused",
			Help:      "1 while submissions are paused.",
		}),
	}
	reg.MustRegister(m.attempts, m.successes, m.failures, m.duration, m.submissions, m.players, m.paused)
	return m
}

func (m *prometheusLedgerMetrics) RecordOperationAttempt(_ context.Context, operation, service string) {
	m.attempts.WithLabelValues(operation, service).Inc()
}

func (m *prometheusLedgerMetrics) RecordOperationSuccess(_ context.Context, operation, service string) {
	m.successes.WithLabelValues(operation, service).Inc()
}

func (m *prometheusLedgerMetrics) RecordOperationFailure(_ context.Context, operation, service string) {
	m.failures.WithLabelValues(operation, service).Inc()
}

func (m *prometheusLedgerMetrics) RecordOperationDuration(_ context.Context, operation, service string, d time.Duration) {
	m.duration.WithLabelValues(operation, service).Observe(d.Seconds())
}

func (m *prometheusLedgerMetrics) RecordSubmission(_ context.Context, outcome string) {
	m.submissions.WithLabelValues(outcome).Inc()
}

func (m *prometheusLedgerMetrics) SetPlayerCount(n uint64) { m.players.Set(float64(n)) }

func (m *prometheusLedgerMetrics) SetPaused(paused bool) {
	if paused {
		m.paused.Set(1)
		return
	}
	m.paused.Set(0)
}

type noopLedgerMetrics struct{}

// NewNoopLedgerMetrics discards everything.
func NewNoopLedgerMetrics() LedgerMetrics { return noopLedgerMetrics{} }

func (noopLedgerMetrics) RecordOperationAttempt(context.Context, string, string)                 {}
func (noopLedgerMetrics) RecordOperationSuccess(context.Context, string, string)                 {}
func (noopLedgerMetrics) RecordOperationFailure(context.Context, string, string)                 {}
func (noopLedgerMetrics) RecordOperationDuration(context.Context, string, string, time.Duration) {}
func (noopLedgerMetrics) RecordSubmission(context.Context, string)                               {}
func (noopLedgerMetrics) SetPlayerCount(uint64)                                                  {}
func (noopLedgerMetrics) SetPaused(bool)                                                         {}
