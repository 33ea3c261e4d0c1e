package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// promMetric pairs a declared label order with its collector. Prometheus
// requires a fixed label set per vector, so every metric is registered up
// front with the labels the pipeline is known to emit.
type promCounter struct {
	labels []string
	vec    *prometheus.CounterVec
}

type promHistogram struct {
	labels []string
	vec    *prometheus.HistogramVec
}

// PromSink implements Sink on a prometheus registry.
type PromSink struct {
	counters   map[string]promCounter
	histograms map[string]promHistogram
}

var _ Sink = (*PromSink)(nil)

// NewPromSink registers all pipeline metrics on the given registerer and
// returns a sink bound to them. Pass prometheus.DefaultRegisterer in
// production; tests use a fresh prometheus.NewRegistry.
func NewPromSink(reg prometheus.Registerer) *PromSink {
	s := &PromSink{
		counters:   make(map[string]promCounter),
		histograms: make(map[string]promHistogram),
	}

	counter := func(name, help string, labels ...string) {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: name, Help: help}, labels)
		reg.MustRegister(vec)
		s.counters[name] = promCounter{labels: labels, vec: vec}
	}
	histogram := func(name, help string, buckets []float64, labels ...string) {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{Name: name, Help: help, Buckets: buckets}, labels)
		reg.MustRegister(vec)
		s.histograms[name] = promHistogram{labels: labels, vec: vec}
	}

	counter(MetricClassification, "Email classifications by source and kind", "tenant", "source", "kind")
	counter(MetricParserSuccess, "Successful parse attempts by parser", "tenant", "parser")
	counter(MetricParserFailure, "Failed parse attempts by reason", "tenant", "reason")
	counter(MetricLeadCreated, "Leads created by tenant and source", "tenant", "source")
	counter(MetricLeadDuplicate, "Duplicate leads collapsed by tenant", "tenant", "strategy")
	counter(MetricStatusTransition, "Lead status transitions", "tenant", "from", "to")
	counter(MetricSettingsLoad, "Settings resolutions by cache outcome", "tenant", "cache")
	counter(MetricSettingsUpdate, "Settings updates by result", "tenant", "result")
	counter(MetricIngestionOutcome, "Ingestion outcomes by tenant and reason", "tenant", "outcome", "reason")
	counter(MetricPortalFetchFailure, "Portal fetch failures by tenant", "tenant")

	histogram(MetricIngestionLatency, "Lead ingestion processing time",
		[]float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}, "tenant", "outcome")
	histogram(MetricSLADuration, "Time from lead creation to first contact",
		prometheus.ExponentialBuckets(60, 2, 12), "tenant")

	return s
}

// Increment bumps the named counter. Unknown names are logged and dropped
// rather than panicking; a misspelled metric must never take down ingestion.
func (s *PromSink) Increment(name string, labels Labels) {
	c, ok := s.counters[name]
	if !ok {
		zap.L().Warn("metrics: unregistered counter", zap.String("name", name))
		return
	}
	c.vec.WithLabelValues(labelValues(c.labels, labels)...).Inc()
}

// Histogram records an observation on the named histogram.
func (s *PromSink) Histogram(name string, value float64, labels Labels) {
	h, ok := s.histograms[name]
	if !ok {
		zap.L().Warn("metrics: unregistered histogram", zap.String("name", name))
		return
	}
	h.vec.WithLabelValues(labelValues(h.labels, labels)...).Observe(value)
}

func labelValues(declared []string, labels Labels) []string {
	values := make([]string, len(declared))
	for i, key := range declared {
		values[i] = labels[key]
	}
	return values
}
