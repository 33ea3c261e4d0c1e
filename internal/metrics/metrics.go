// Package metrics defines the observability sink the pipeline emits to.
// The pipeline only ever talks to the Sink interface; the Prometheus
// implementation lives in prom.go and a no-op in nop.go.
package metrics

// Labels tags a single observation. Unknown label keys are dropped by the
// sink; missing declared keys are recorded as empty strings.
type Labels map[string]string

// Sink receives counters and histograms from the pipeline. Implementations
// must be safe for concurrent use.
type Sink interface {
	Increment(name string, labels Labels)
	Histogram(name string, value float64, labels Labels)
}

// Metric names emitted by the pipeline. Declared here so emitters and sinks
// agree on spelling.
const (
	MetricClassification     = "email_source_classification_total"
	MetricParserSuccess      = "parser_success_total"
	MetricParserFailure      = "parser_failure_total"
	MetricLeadCreated        = "lead_created_total"
	MetricLeadDuplicate      = "lead_duplicate_detected_total"
	MetricStatusTransition   = "lead_status_transition_total"
	MetricIngestionLatency   = "ingestion_latency_seconds"
	MetricSLADuration        = "sla_processing_duration_seconds"
	MetricSettingsLoad       = "settings_load_total"
	MetricSettingsUpdate     = "settings_update_total"
	MetricIngestionOutcome   = "ingestion_outcome_total"
	MetricPortalFetchFailure = "portal_fetch_failure_total"
)
