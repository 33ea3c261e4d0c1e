package model

import (
	"time"
)

// LeadStatus represents the lifecycle state of a lead.
type LeadStatus string

const (
	LeadStatusNew       LeadStatus = "NEW"
	LeadStatusContacted LeadStatus = "CONTACTED"
)

// validTransitions is the closed transition matrix. CONTACTED is terminal
// within this subsystem; downstream statuses live in other services.
var validTransitions = map[LeadStatus][]LeadStatus{
	LeadStatusNew: {LeadStatusContacted},
}

// KnownStatus reports whether s is a status this subsystem recognizes.
func KnownStatus(s LeadStatus) bool {
	if s == LeadStatusNew || s == LeadStatusContacted {
		return true
	}
	return false
}

// CanTransition reports whether from -> to is an allowed forward transition.
// A same-status "transition" is handled by the store as an idempotent no-op
// and never reaches this check.
func CanTransition(from, to LeadStatus) bool {
	for _, allowed := range validTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// LeadType distinguishes how the lead reached us.
type LeadType string

const (
	LeadTypeEmail     LeadType = "email"
	LeadTypePhoneCall LeadType = "phone_call"
	LeadTypeWebForm   LeadType = "web_form"
)

// ReplyStrategy tells downstream responders how a lead may be answered.
// Broker sources differ: some relay addresses must never receive replies.
type ReplyStrategy string

const (
	ReplyStrategyNewEmail         ReplyStrategy = "new_email"          // compose fresh mail to the customer
	ReplyStrategyDirectToCustomer ReplyStrategy = "direct_to_customer" // reply, but to the customer address
	ReplyStrategyReplyDirect      ReplyStrategy = "reply_direct"       // reply in-thread is fine
)

// LeadPayload is the structured extraction result for one inbound lead.
// Only Brand, Source and LeadType are guaranteed; everything else is
// best-effort and may be empty.
type LeadPayload struct {
	Brand       string   `json:"brand"`
	Source      string   `json:"source"`
	Name        string   `json:"name,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Email       string   `json:"email,omitempty"`
	Address     string   `json:"address,omitempty"`
	PostalCode  string   `json:"postal_code,omitempty"`
	City        string   `json:"city,omitempty"`
	Country     string   `json:"country,omitempty"`
	AreaSqm     int      `json:"area_sqm,omitempty"`
	Rooms       int      `json:"rooms,omitempty"`
	ServiceType string   `json:"service_type,omitempty"`
	Notes       string   `json:"notes,omitempty"`
	LeadType    LeadType `json:"lead_type"`

	ReplyStrategy ReplyStrategy `json:"reply_strategy,omitempty"`

	// Some brokers send a notification mail with the real lead behind a
	// portal link. Partial marks payloads extracted from such stubs.
	NeedsPortalFetch bool   `json:"needs_portal_fetch,omitempty"`
	PortalURL        string `json:"portal_url,omitempty"`
	Partial          bool   `json:"partial,omitempty"`
}

// HasIdentity reports whether the payload carries at least one identity
// key usable for deduplication.
func (p LeadPayload) HasIdentity() bool {
	return p.Email != "" || p.Phone != ""
}

// Lead is the durable aggregate. It is owned by the store and mutated only
// through status transitions.
type Lead struct {
	ID        string      `json:"id"`
	TenantID  string      `json:"tenant_id"`
	Source    string      `json:"source"`
	Status    LeadStatus  `json:"status"`
	Payload   LeadPayload `json:"payload"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// LeadEvent is one append-only entry in a lead's audit trail. Replaying a
// lead's events ordered by CreatedAt reconstructs its current status.
type LeadEvent struct {
	ID         string     `json:"id"`
	LeadID     string     `json:"lead_id"`
	FromStatus LeadStatus `json:"from_status"`
	ToStatus   LeadStatus `json:"to_status"`
	Actor      string     `json:"actor,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}
