package blockinput

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this package.
	MetricsSubsystem = "blockinput"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of pending assemblies held by the gossip cache.
	PendingInputs metrics.Gauge
	// Number of pending assemblies evicted before completion.
	EvictedInputs metrics.Counter
	// Number of block inputs completed, labeled by type.
	CompletedInputs metrics.Counter
	// Number of gossip messages rejected.
	IngestErrors metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	return &Metrics{
		PendingInputs: prometheus.NewGaugeFrom(stdprometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "pending_inputs",
			Help:      "Number of blocks and blob sidecars waiting for their counterpart.",
		}, labels).With(labelsAndValues...),
		EvictedInputs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "evicted_inputs",
			Help:      "Number of pending block inputs evicted before completion.",
		}, labels).With(labelsAndValues...),
		CompletedInputs: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "completed_inputs",
			Help:      "Number of block inputs assembled from gossip.",
		}, append(append([]string{}, labels...), "type")).With(labelsAndValues...),
		IngestErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "ingest_errors",
			Help:      "Number of gossiped blocks and blob sidecars rejected.",
		}, labels).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		PendingInputs:   discard.NewGauge(),
		EvictedInputs:   discard.NewCounter(),
		CompletedInputs: discard.NewCounter(),
		IngestErrors:    discard.NewCounter(),
	}
}
