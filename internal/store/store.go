package store

import (
	"context"
	"time"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// ErrNotFound is returned when a lead does not exist for the tenant.
var ErrNotFound = eris.New("store: lead not found")

// LeadFilter specifies criteria for listing leads.
type LeadFilter struct {
	Status model.LeadStatus `json:"status,omitempty"`
	Source string           `json:"source,omitempty"`
	Since  time.Time        `json:"since,omitempty"`
	Limit  int              `json:"limit,omitempty"`
	Offset int              `json:"offset,omitempty"`
}

// Store defines the persistence interface for the lead pipeline. Every
// operation is tenant-scoped: a lead is only ever visible through its own
// tenant ID.
type Store interface {
	// Leads. CreateLead writes the lead and its creation event in one
	// transaction. ChangeStatus validates the transition, applies it and
	// appends the audit event atomically; changed is false when the lead
	// was already in the target status.
	CreateLead(ctx context.Context, tenantID string, payload model.LeadPayload) (*model.Lead, error)
	GetLead(ctx context.Context, tenantID, leadID string) (*model.Lead, error)
	ListLeads(ctx context.Context, tenantID string, filter LeadFilter) ([]model.Lead, error)
	FindRecentByIdentity(ctx context.Context, tenantID, email, phone string, window time.Duration) (*model.Lead, error)
	ChangeStatus(ctx context.Context, tenantID, leadID string, to model.LeadStatus, actor string) (lead *model.Lead, changed bool, err error)
	LeadEvents(ctx context.Context, tenantID, leadID string) ([]model.LeadEvent, error)

	// Tenant settings. UpdateTenantSettings upserts every key and writes
	// one audit event per key in a single transaction.
	TenantSettings(ctx context.Context, tenantID string) ([]model.TenantSetting, error)
	UpdateTenantSettings(ctx context.Context, tenantID string, changes map[string]any, actor string) error
	SettingsEvents(ctx context.Context, tenantID string) ([]model.SettingsEvent, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}

// checkTransition enforces the status machine shared by both backends.
// Same-status changes are the caller's idempotent no-op and never reach
// this check.
func checkTransition(from, to model.LeadStatus) error {
	if !model.KnownStatus(to) {
		return eris.Errorf("store: unknown status %q", to)
	}
	if !model.CanTransition(from, to) {
		return eris.Errorf("store: invalid transition %s -> %s", from, to)
	}
	return nil
}
