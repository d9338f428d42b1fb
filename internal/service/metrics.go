package service

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "dataquality"

// Metrics holds the Prometheus collectors updated by Service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	operations *prometheus.CounterVec
	rows       *prometheus.CounterVec
	duplicates prometheus.Counter
	duration   *prometheus.HistogramVec
	inFlight   prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		operations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "operations_total",
			Help:      "Validation service operations by operation and outcome.",
		}, []string{"operation", "outcome"}),
		rows: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "rows_total",
			Help:      "Validated rows by result.",
		}, []string{"result"}),
		duplicates: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "duplicate_rows_total",
			Help:      "Rows flagged as duplicates of an earlier row.",
		}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "operation_duration_seconds",
			Help:      "Time spent per operation, including waiting for a slot.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"operation"}),
		inFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "validations_in_flight",
			Help:      "Batches currently holding a validation slot.",
		}),
	}

	reg.MustRegister(m.operations, m.rows, m.duplicates, m.duration, m.inFlight)
	return m
}

func (m *Metrics) observe(operation string, started time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = MapError(err).Code
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
}

func (m *Metrics) recordRows(valid, invalid, duplicates int) {
	if m == nil {
		return
	}
	m.rows.WithLabelValues("valid").Add(float64(valid))
	m.rows.WithLabelValues("invalid").Add(float64(invalid))
	m.duplicates.Add(float64(duplicates))
}

func (m *Metrics) slotTaken() {
	if m != nil {
		m.inFlight.Inc()
	}
}

func (m *Metrics) slotReleased() {
	if m != nil {
		m.inFlight.Dec()
	}
}
