package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"

	"github.com/Fantasim/nanas/internal/config"
)

// Evaluation and cash-out result labels.
const (
	ResultSuccess  = "success"
	ResultRejected = "rejected"
	ResultFailed   = "failed"
)

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	evaluations  *prometheus.CounterVec
	evalDuration prometheus.Histogram
	credited     prometheus.Counter
	cashOuts     *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "evaluations_total",
			Help:      "Content evaluations by result.",
		}, []string{"result"}),
		evalDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: config.MetricsNamespace,
			Name:      "evaluation_duration_seconds",
			Help:      "Duration of the analyze pipeline in seconds.",
			Buckets:   prometheus.DefBuckets,
		}),
		credited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "credited_total",
			Help:      "Nanas credited to accounts.",
		}),
		cashOuts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: config.MetricsNamespace,
			Name:      "cashout_requests_total",
			Help:      "Cash-out requests by result.",
		}, []string{"result"}),
	}
	m.registry.MustRegister(m.evaluations, m.evalDuration, m.credited, m.cashOuts)
	return m
}

// ObserveEvaluation records one pipeline run.
func (m *Metrics) ObserveEvaluation(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(result).Inc()
	m.evalDuration.Observe(d.Seconds())
}

// AddCredited adds a credited amount.
func (m *Metrics) AddCredited(amount decimal.Decimal) {
	if m == nil {
		return
	}
	m.credited.Add(amount.InexactFloat64())
}

// ObserveCashOut records the outcome of one cash-out request.
func (m *Metrics) ObserveCashOut(result string) {
	if m == nil {
		return
	}
	m.cashOuts.WithLabelValues(result).Inc()
}

// Registry exposes the registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
