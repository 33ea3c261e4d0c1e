package settings

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/leadflow/internal/metrics"
	"github.com/sells-group/leadflow/internal/model"
)

// DefaultCacheTTL bounds how stale a resolved settings view may be. Writes
// through this resolver invalidate immediately; writes from other processes
// become visible within the TTL.
const DefaultCacheTTL = 30 * time.Second

// Store is the persistence surface the resolver needs. The update is
// transactional on the store side: every key change and its audit event
// commit together or not at all.
type Store interface {
	TenantSettings(ctx context.Context, tenantID string) ([]model.TenantSetting, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, changes map[string]any, actor string) error
}

type cacheEntry struct {
	resolved model.SettingsMap
	expires  time.Time
}

// Resolver merges schema defaults with tenant overrides and caches the
// result per tenant.
type Resolver struct {
	store Store
	sink  metrics.Sink
	ttl   time.Duration
	now   func() time.Time

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithTTL overrides the cache TTL. A zero or negative TTL disables caching.
func WithTTL(ttl time.Duration) Option {
	return func(r *Resolver) { r.ttl = ttl }
}

// WithClock injects a clock for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) { r.now = now }
}

// NewResolver builds a resolver over the given store.
func NewResolver(store Store, sink metrics.Sink, opts ...Option) *Resolver {
	r := &Resolver{
		store: store,
		sink:  sink,
		ttl:   DefaultCacheTTL,
		now:   time.Now,
		cache: make(map[string]cacheEntry),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.sink == nil {
		r.sink = metrics.NopSink{}
	}
	return r
}

// GetResolved returns the effective settings for a tenant: schema defaults
// overlaid with persisted overrides. The returned map is a copy; callers
// may mutate it freely.
func (r *Resolver) GetResolved(ctx context.Context, tenantID string) (model.SettingsMap, error) {
	if r.ttl > 0 {
		r.mu.RLock()
		entry, ok := r.cache[tenantID]
		r.mu.RUnlock()
		if ok && r.now().Before(entry.expires) {
			r.sink.Increment(metrics.MetricSettingsLoad, metrics.Labels{"tenant": tenantID, "cache": "hit"})
			return copySettings(entry.resolved), nil
		}
	}

	overrides, err := r.store.TenantSettings(ctx, tenantID)
	if err != nil {
		return nil, eris.Wrap(err, "settings: load tenant overrides")
	}

	resolved := Defaults()
	for _, s := range overrides {
		if !KnownKey(s.Key) {
			// Rows written before a key was retired. Harmless, but worth a
			// trace when debugging a tenant.
			zap.L().Debug("ignoring unknown settings row",
				zap.String("tenant_id", tenantID),
				zap.String("key", s.Key))
			continue
		}
		resolved[s.Key] = normalizeStored(s.Value)
	}

	if r.ttl > 0 {
		r.mu.Lock()
		r.cache[tenantID] = cacheEntry{resolved: copySettings(resolved), expires: r.now().Add(r.ttl)}
		r.mu.Unlock()
	}

	r.sink.Increment(metrics.MetricSettingsLoad, metrics.Labels{"tenant": tenantID, "cache": "miss"})
	return resolved, nil
}

// Update validates the proposed changes against the schema and, if every
// submitted known key passes, persists them atomically with audit events.
// The tenant's cache entry is dropped on success so the next read observes
// the new values.
func (r *Resolver) Update(ctx context.Context, tenantID string, changes map[string]any, actor string) (model.SettingsMap, error) {
	valid, err := ValidateChanges(changes)
	if err != nil {
		r.sink.Increment(metrics.MetricSettingsUpdate, metrics.Labels{"tenant": tenantID, "result": "rejected"})
		return nil, err
	}

	if err := r.store.UpdateTenantSettings(ctx, tenantID, valid, actor); err != nil {
		r.sink.Increment(metrics.MetricSettingsUpdate, metrics.Labels{"tenant": tenantID, "result": "error"})
		return nil, eris.Wrap(err, "settings: persist update")
	}

	r.Invalidate(tenantID)
	r.sink.Increment(metrics.MetricSettingsUpdate, metrics.Labels{"tenant": tenantID, "result": "ok"})

	zap.L().Info("tenant settings updated",
		zap.String("tenant_id", tenantID),
		zap.Int("keys", len(valid)),
		zap.String("actor", actor))

	return r.GetResolved(ctx, tenantID)
}

// Invalidate drops the cached entry for one tenant.
func (r *Resolver) Invalidate(tenantID string) {
	r.mu.Lock()
	delete(r.cache, tenantID)
	r.mu.Unlock()
}

// normalizeStored canonicalizes values read back from storage, where JSON
// decoding turns every number into float64.
func normalizeStored(v any) any {
	if f, ok := v.(float64); ok && f == float64(int(f)) {
		return int(f)
	}
	return v
}

func copySettings(m model.SettingsMap) model.SettingsMap {
	out := make(model.SettingsMap, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
