// Package ingest wires the pipeline: classify, parse, resolve settings,
// deduplicate, persist. Every branch, accepted or not, is observable
// through the metrics sink.
package ingest

import (
	"context"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/classify"
	"github.com/sells-group/leadflow/internal/dedup"
	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/parser"
	"github.com/sells-group/leadflow/internal/settings"
	"github.com/sells-group/leadflow/internal/store"
)

// Rejection reasons surfaced in Result.Reason and the outcome metric.
const (
	ReasonNotLead  = "not_lead"
	ReasonNoParser = "no_parser_match"
)

// Outcome labels for the ingestion metrics.
const (
	outcomeCreated   = "created"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
	outcomeError     = "error"
)

// PortalFetcher fetches the full lead text behind a broker portal link.
type PortalFetcher interface {
	FetchText(ctx context.Context, url string) (string, error)
}

// Result is the outcome of one ingestion attempt. Accepted is false for
// mail that classified or parsed as something other than a lead; that is
// a normal outcome, not an error.
type Result struct {
	Accepted       bool                 `json:"accepted"`
	Created        bool                 `json:"created"`
	Reason         string               `json:"reason,omitempty"`
	Parser         string               `json:"parser,omitempty"`
	Classification model.Classification `json:"classification"`
	Lead           *model.Lead          `json:"lead,omitempty"`
}

// Orchestrator runs the full ingestion pipeline for one tenant at a time.
type Orchestrator struct {
	classifier *classify.Classifier
	registry   *parser.Registry
	resolver   *settings.Resolver
	engine     *dedup.Engine
	store      store.Store
	portal     PortalFetcher
	sink       metrics.Sink
	now        func() time.Time
}

// Options bundles the orchestrator's collaborators. Portal may be nil;
// portal enrichment is then skipped even when a tenant enables it.
type Options struct {
	Classifier *classify.Classifier
	Registry   *parser.Registry
	Resolver   *settings.Resolver
	Engine     *dedup.Engine
	Store      store.Store
	Portal     PortalFetcher
	Sink       metrics.Sink
}

// New builds an orchestrator.
func New(opts Options) *Orchestrator {
	sink := opts.Sink
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Orchestrator{
		classifier: opts.Classifier,
		registry:   opts.Registry,
		resolver:   opts.Resolver,
		engine:     opts.Engine,
		store:      opts.Store,
		portal:     opts.Portal,
		sink:       sink,
		now:        time.Now,
	}
}

// IngestEmail runs one raw email through the pipeline. A non-lead or
// unparseable mail returns a rejected Result with a nil error; errors are
// reserved for infrastructure failures.
func (o *Orchestrator) IngestEmail(ctx context.Context, tenantID string, raw model.RawEmail) (*Result, error) {
	start := o.now()

	classification := o.classifier.Classify(raw)
	sourceHint := o.classifier.SourceHint(raw.From)
	o.sink.Increment(metrics.MetricClassification, metrics.Labels{
		"tenant": tenantID,
		"source": sourceHint,
		"kind":   string(classification.Kind),
	})

	if !classification.IsLead() {
		o.finish(tenantID, outcomeRejected, ReasonNotLead, start)
		return &Result{Accepted: false, Reason: ReasonNotLead, Classification: classification}, nil
	}

	parsed, parserName, ok := o.registry.Run(raw)
	if !ok {
		o.sink.Increment(metrics.MetricParserFailure, metrics.Labels{"tenant": tenantID, "reason": ReasonNoParser})
		o.finish(tenantID, outcomeRejected, ReasonNoParser, start)
		zap.L().Warn("lead mail matched no parser",
			zap.String("tenant_id", tenantID),
			zap.String("mailbox", raw.Mailbox),
			zap.String("from", raw.From))
		return &Result{Accepted: false, Reason: ReasonNoParser, Classification: classification}, nil
	}
	o.sink.Increment(metrics.MetricParserSuccess, metrics.Labels{"tenant": tenantID, "parser": parserName})

	resolved, err := o.resolver.GetResolved(ctx, tenantID)
	if err != nil {
		o.finish(tenantID, outcomeError, "", start)
		return nil, eris.Wrap(err, "ingest: resolve settings")
	}

	payload := parsed.Payload
	payload = o.maybeEnrichFromPortal(ctx, tenantID, payload, resolved)

	windowMinutes, _ := resolved.Int(settings.KeyDuplicateWindowMinutes)
	window := time.Duration(windowMinutes) * time.Minute

	res, err := o.engine.FindOrCreate(ctx, tenantID, payload, window)
	if err != nil {
		o.finish(tenantID, outcomeError, "", start)
		return nil, eris.Wrap(err, "ingest: find or create")
	}

	outcome := outcomeDuplicate
	if res.Created {
		outcome = outcomeCreated
	}
	o.finish(tenantID, outcome, "", start)

	zap.L().Info("lead ingested",
		zap.String("tenant_id", tenantID),
		zap.String("lead_id", res.Lead.ID),
		zap.String("parser", parserName),
		zap.String("source", payload.Source),
		zap.Bool("created", res.Created),
		zap.Float64("confidence", parsed.Confidence))

	return &Result{
		Accepted:       true,
		Created:        res.Created,
		Parser:         parserName,
		Classification: classification,
		Lead:           res.Lead,
	}, nil
}

// maybeEnrichFromPortal fetches and merges portal details when the tenant
// has opted in. A failed fetch keeps the partial payload; the lead still
// lands and the gap shows up in the failure counter.
func (o *Orchestrator) maybeEnrichFromPortal(ctx context.Context, tenantID string, payload model.LeadPayload, resolved model.SettingsMap) model.LeadPayload {
	if !payload.NeedsPortalFetch || payload.PortalURL == "" || o.portal == nil {
		return payload
	}
	if enabled, _ := resolved.Bool(settings.KeyEnableAdvancedParser); !enabled {
		return payload
	}

	text, err := o.portal.FetchText(ctx, payload.PortalURL)
	if err != nil {
		o.sink.Increment(metrics.MetricPortalFetchFailure, metrics.Labels{"tenant": tenantID})
		zap.L().Warn("portal fetch failed, keeping partial payload",
			zap.String("tenant_id", tenantID),
			zap.String("url", payload.PortalURL),
			zap.Error(err))
		return payload
	}
	return parser.EnrichFromPortal(payload, text)
}

// MarkContacted transitions a lead NEW -> CONTACTED and records how long
// first contact took against the tenant's SLA histogram. Repeating the
// call is a no-op.
func (o *Orchestrator) MarkContacted(ctx context.Context, tenantID, leadID, actor string) (*model.Lead, bool, error) {
	lead, changed, err := o.store.ChangeStatus(ctx, tenantID, leadID, model.LeadStatusContacted, actor)
	if err != nil {
		return nil, false, eris.Wrap(err, "ingest: mark contacted")
	}
	if changed {
		o.sink.Increment(metrics.MetricStatusTransition, metrics.Labels{
			"tenant": tenantID,
			"from":   string(model.LeadStatusNew),
			"to":     string(model.LeadStatusContacted),
		})
		o.sink.Histogram(metrics.MetricSLADuration, o.now().Sub(lead.CreatedAt).Seconds(),
			metrics.Labels{"tenant": tenantID})
	}
	return lead, changed, nil
}

func (o *Orchestrator) finish(tenantID, outcome, reason string, start time.Time) {
	o.sink.Increment(metrics.MetricIngestionOutcome, metrics.Labels{
		"tenant":  tenantID,
		"outcome": outcome,
		"reason":  reason,
	})
	o.sink.Histogram(metrics.MetricIngestionLatency, o.now().Sub(start).Seconds(),
		metrics.Labels{"tenant": tenantID, "outcome": outcome})
}
