package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// EngineMetrics holds the Prometheus instruments exported by the local engine.
// All methods are safe on a nil receiver.
type EngineMetrics struct {
	Operations     *prometheus.CounterVec
	Duration       *prometheus.HistogramVec
	Rows           *prometheus.CounterVec
	ActiveSessions prometheus.Gauge
	BytesInUse     prometheus.Gauge
}

// NewEngineMetrics registers the engine instruments with reg. A nil reg
// creates unregistered instruments.
func NewEngineMetrics(reg prometheus.Registerer) *EngineMetrics {
	f := promauto.With(reg)
	return &EngineMetrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teide",
			Name:      "operations_total",
			Help:      "Total engine operations by kind and outcome.",
		}, []string{"op", "status"}),
		Duration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "teide",
			Name:      "operation_duration_seconds",
			Help:      "Time spent executing engine operations.",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 4, 8),
		}, []string{"op"}),
		Rows: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "teide",
			Name:      "rows_total",
			Help:      "Rows produced by engine operations.",
		}, []string{"op"}),
		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "teide",
			Name:      "active_sessions",
			Help:      "Engine sessions that have not been released.",
		}),
		BytesInUse: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "teide",
			Name:      "arrow_bytes_in_use",
			Help:      "Arrow memory held by engine tables.",
		}),
	}
}

// Observe records one completed operation.
func (m *EngineMetrics) Observe(op string, d time.Duration, rows int64, err error) {
	if m == nil {
		return
	}
	status := "ok"
	if err != nil {
		status = "error"
	}
	m.Operations.WithLabelValues(op, status).Inc()
	m.Duration.WithLabelValues(op).Observe(d.Seconds())
	if rows > 0 {
		m.Rows.WithLabelValues(op).Add(float64(rows))
	}
}

// SessionOpened increments the active session gauge.
func (m *EngineMetrics) SessionOpened() {
	if m != nil {
		m.ActiveSessions.Inc()
	}
}

// SessionClosed decrements the active session gauge.
func (m *EngineMetrics) SessionClosed() {
	if m != nil {
		m.ActiveSessions.Dec()
	}
}

// SetBytesInUse records the Arrow memory currently held.
func (m *EngineMetrics) SetBytesInUse(n int64) {
	if m != nil {
		m.BytesInUse.Set(float64(n))
	}
}
