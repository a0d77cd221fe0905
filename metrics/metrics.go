// Package metrics holds the Prometheus instruments for the encode and verify
// pipelines. A nil *Metrics is valid and records nothing.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Encoded        *prometheus.CounterVec
	PayloadBytes   prometheus.Histogram
	EncodeFailures *prometheus.CounterVec
	Verifications  *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
	StatusChecks   *prometheus.CounterVec
}

// New registers the instruments on reg. Passing prometheus.NewRegistry() keeps
// tests isolated from the default registry.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Encoded: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcb_payloads_encoded_total",
			Help: "Barcode payloads encoded, by compression algorithm",
		}, []string{"compression"}),
		PayloadBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcb_payload_bytes",
			Help:    "Size of encoded barcode payloads",
			Buckets: []float64{64, 128, 256, 384, 512, 640, 800, 1200, 2000, 2953},
		}),
		EncodeFailures: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcb_encode_failures_total",
			Help: "Encode failures, by error kind",
		}, []string{"kind"}),
		Verifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcb_verifications_total",
			Help: "Verification outcomes, by outcome and rejection kind",
		}, []string{"outcome", "kind"}),
		VerifyDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vcb_verify_duration_seconds",
			Help:    "Duration of Verify calls including trust lookups",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
		StatusChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vcb_status_checks_total",
			Help: "Status list checks, by result",
		}, []string{"status"}),
	}
}

func (m *Metrics) ObserveEncoded(compression string, size int) {
	if m == nil {
		return
	}
	m.Encoded.WithLabelValues(compression).Inc()
	m.PayloadBytes.Observe(float64(size))
}

func (m *Metrics) IncrementEncodeFailure(kind string) {
	if m == nil {
		return
	}
	m.EncodeFailures.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveVerification(outcome, kind string, start time.Time) {
	if m == nil {
		return
	}
	m.Verifications.WithLabelValues(outcome, kind).Inc()
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementStatusCheck(status string) {
	if m == nil {
		return
	}
	m.StatusChecks.WithLabelValues(status).Inc()
}
