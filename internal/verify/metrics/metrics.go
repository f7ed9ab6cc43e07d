package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Verifications  *prometheus.CounterVec
	CheckFailures  *prometheus.CounterVec
	VerifyDuration prometheus.Histogram
}

func New() *Metrics {
	return &Metrics{
		Verifications: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofdeck_verifications_total",
			Help: "Total proof verifications by result",
		}, []string{"result"}),
		CheckFailures: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofdeck_verification_check_failures_total",
			Help: "Failed verification checks by check name",
		}, []string{"check"}),
		VerifyDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "proofdeck_verification_duration_seconds",
			Help:    "Duration of full verification pipeline runs",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) ObserveVerification(start time.Time, ok bool) {
	result := "rejected"
	if ok {
		result = "verified"
	}
	m.Verifications.WithLabelValues(result).Inc()
	m.VerifyDuration.Observe(time.Since(start).Seconds())
}

func (m *Metrics) IncrementCheckFailure(check string) {
	m.CheckFailures.WithLabelValues(check).Inc()
}
