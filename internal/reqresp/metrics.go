package reqresp

import (
	"github.com/go-kit/kit/metrics"
	"github.com/go-kit/kit/metrics/discard"
	"github.com/go-kit/kit/metrics/prometheus"
	stdprometheus "github.com/prometheus/client_golang/prometheus"
)

const (
	// MetricsSubsystem is a subsystem shared by all metrics exposed by this package.
	MetricsSubsystem = "reqresp"
)

// Metrics contains metrics exposed by this package.
type Metrics struct {
	// Number of requests sent, labeled by protocol.
	Requests metrics.Counter
	// Number of requests that failed, labeled by protocol.
	RequestErrors metrics.Counter
	// Number of response chunks received, labeled by protocol.
	ResponseChunks metrics.Counter
}

// PrometheusMetrics returns Metrics build using Prometheus client library.
// Optionally, labels can be provided along with their values ("foo",
// "fooValue").
func PrometheusMetrics(namespace string, labelsAndValues ...string) *Metrics {
	labels := []string{}
	for i := 0; i < len(labelsAndValues); i += 2 {
		labels = append(labels, labelsAndValues[i])
	}
	withProtocol := append(append([]string{}, labels...), "protocol")
	return &Metrics{
		Requests: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "requests",
			Help:      "Number of requests sent to peers.",
		}, withProtocol).With(labelsAndValues...),
		RequestErrors: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "request_errors",
			Help:      "Number of requests that failed or were cancelled.",
		}, withProtocol).With(labelsAndValues...),
		ResponseChunks: prometheus.NewCounterFrom(stdprometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: MetricsSubsystem,
			Name:      "response_chunks",
			Help:      "Number of blocks and blob sidecars received in responses.",
		}, withProtocol).With(labelsAndValues...),
	}
}

// NopMetrics returns no-op Metrics.
func NopMetrics() *Metrics {
	return &Metrics{
		Requests:       discard.NewCounter(),
		RequestErrors:  discard.NewCounter(),
		ResponseChunks: discard.NewCounter(),
	}
}
