// Package dedup collapses repeated lead submissions onto one stored lead.
// Brokers retry notification mails and customers submit forms twice; within
// a tenant-configurable window, a matching email (case-insensitive) or
// phone (exact) means the lead already exists.
package dedup

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
	"github.com/sells-group/leadflow/internal/store"
)

// Result is the outcome of a find-or-create.
type Result struct {
	Lead    *model.Lead
	Created bool
}

// Engine performs windowed find-or-create. The check-then-act gap is
// closed two ways: a per-identity mutex serializes callers inside this
// process, and an optional Locker extends that to multiple processes.
type Engine struct {
	store  store.Store
	sink   metrics.Sink
	locker Locker

	mu    sync.Mutex
	locks map[string]*identityLock
}

type identityLock struct {
	mu   sync.Mutex
	refs int
}

// New builds an engine. locker may be nil for single-process deployments.
func New(st store.Store, sink metrics.Sink, locker Locker) *Engine {
	if sink == nil {
		sink = metrics.NopSink{}
	}
	return &Engine{
		store:  st,
		sink:   sink,
		locker: locker,
		locks:  make(map[string]*identityLock),
	}
}

// FindOrCreate returns the existing lead matching the payload's identity
// within the window, or creates a new one. Payloads without an identity
// key (partial portal stubs) always create: there is nothing to match on.
func (e *Engine) FindOrCreate(ctx context.Context, tenantID string, payload model.LeadPayload, window time.Duration) (*Result, error) {
	if !payload.HasIdentity() {
		lead, err := e.store.CreateLead(ctx, tenantID, payload)
		if err != nil {
			return nil, eris.Wrap(err, "dedup: create identity-less lead")
		}
		e.sink.Increment(metrics.MetricLeadCreated, metrics.Labels{"tenant": tenantID, "source": payload.Source})
		return &Result{Lead: lead, Created: true}, nil
	}

	key := identityKey(tenantID, payload)

	unlock := e.lockKey(key)
	defer unlock()

	if e.locker != nil {
		release, err := e.locker.Acquire(ctx, key, window)
		if err != nil {
			// A broken lock backend must not drop leads; fall back to the
			// in-process mutex and the store lookup.
			zap.L().Warn("dedup: lock backend unavailable", zap.Error(err))
		} else {
			defer release()
		}
	}

	existing, err := e.store.FindRecentByIdentity(ctx, tenantID, payload.Email, payload.Phone, window)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: identity lookup")
	}
	if existing != nil {
		e.sink.Increment(metrics.MetricLeadDuplicate, metrics.Labels{"tenant": tenantID, "strategy": matchStrategy(existing, payload)})
		zap.L().Info("duplicate lead collapsed",
			zap.String("tenant_id", tenantID),
			zap.String("lead_id", existing.ID),
			zap.String("source", payload.Source))
		return &Result{Lead: existing, Created: false}, nil
	}

	lead, err := e.store.CreateLead(ctx, tenantID, payload)
	if err != nil {
		return nil, eris.Wrap(err, "dedup: create lead")
	}
	e.sink.Increment(metrics.MetricLeadCreated, metrics.Labels{"tenant": tenantID, "source": payload.Source})
	return &Result{Lead: lead, Created: true}, nil
}

// lockKey serializes callers on one identity key. Locks are refcounted so
// the map does not grow with every identity ever seen.
func (e *Engine) lockKey(key string) func() {
	e.mu.Lock()
	l, ok := e.locks[key]
	if !ok {
		l = &identityLock{}
		e.locks[key] = l
	}
	l.refs++
	e.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		e.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(e.locks, key)
		}
		e.mu.Unlock()
	}
}

func identityKey(tenantID string, p model.LeadPayload) string {
	return tenantID + "|" + strings.ToLower(p.Email) + "|" + p.Phone
}

func matchStrategy(existing *model.Lead, p model.LeadPayload) string {
	if p.Email != "" && strings.EqualFold(existing.Payload.Email, p.Email) {
		return "email"
	}
	return "phone"
}
