package prover

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome labels for the request counter.
const (
	outcomeOK       = "ok"
	outcomeUpstream = "upstream_error"
	outcomeTimeout  = "timeout"
	outcomeError    = "error"
)

// Metrics records prover call counts and latencies.
type Metrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec

	registerOnce sync.Once
}

// Register registers the prover metrics with registry. A nil registry is a
// no-op, and calls after the first are ignored.
func (m *Metrics) Register(registry prometheus.Registerer) {
	if registry == nil {
		return
	}

	m.registerOnce.Do(func() {
		factory := promauto.With(registry)

		m.requests = factory.NewCounterVec(prometheus.CounterOpts{
			Name: "webproofs_prover_requests_total",
			Help: "Total number of calls to the web prover, by operation and outcome",
		}, []string{"op", "outcome"})

		m.duration = factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "webproofs_prover_request_duration_seconds",
			Help:    "Latency of calls to the web prover",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 30, 45, 60, 90},
		}, []string{"op"})
	})
}

func (m *Metrics) observe(op, outcome string, elapsed time.Duration) {
	if m == nil || m.requests == nil {
		return
	}
	m.requests.WithLabelValues(op, outcome).Inc()
	m.duration.WithLabelValues(op).Observe(elapsed.Seconds())
}
