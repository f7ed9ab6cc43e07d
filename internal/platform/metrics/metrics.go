package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the process-wide Prometheus metrics. Pipeline-specific
// metrics live next to the verification pipeline.
type Metrics struct {
	CredentialsIssued prometheus.Counter
	RequestsMinted    prometheus.Counter
	Consents          *prometheus.CounterVec
	ProofsGenerated   prometheus.Counter
	Anchors           *prometheus.CounterVec
	EndpointLatency   *prometheus.HistogramVec
}

// New creates and registers all process-wide Prometheus metrics.
func New() *Metrics {
	return &Metrics{
		CredentialsIssued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofdeck_credentials_issued_total",
			Help: "Total number of credentials issued",
		}),
		RequestsMinted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofdeck_proof_requests_minted_total",
			Help: "Total number of proof requests minted",
		}),
		Consents: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofdeck_consents_total",
			Help: "Consent decisions by outcome",
		}, []string{"decision"}),
		ProofsGenerated: promauto.NewCounter(prometheus.CounterOpts{
			Name: "proofdeck_proofs_generated_total",
			Help: "Total number of proof responses built",
		}),
		Anchors: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "proofdeck_anchors_total",
			Help: "Credential anchoring attempts by result",
		}, []string{"result"}),
		EndpointLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "proofdeck_endpoint_latency_seconds",
			Help:    "Latency of endpoints in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
	}
}

// ObserveEndpoint records the latency of one handler invocation.
func (m *Metrics) ObserveEndpoint(endpoint string, start time.Time) {
	m.EndpointLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
}

// IncrementConsent records a consent decision ("granted" or "denied").
func (m *Metrics) IncrementConsent(decision string) {
	m.Consents.WithLabelValues(decision).Inc()
}

// IncrementAnchor records an anchoring attempt ("anchored" or "failed").
func (m *Metrics) IncrementAnchor(result string) {
	m.Anchors.WithLabelValues(result).Inc()
}
