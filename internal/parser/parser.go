// Package parser turns raw inbound mail into structured lead payloads.
//
// Each lead source (broker, missed-call service, website form) has its own
// parser keyed on sender/body signatures. Parsers are registered with an
// explicit priority and tried in ascending priority order; the first parser
// that produces a result wins. Ordering is part of the contract: the
// generic web-form parser overlaps with every broker signature and must run
// last.
package parser

import (
	"sort"

	"github.com/rotisserie/eris"

	"github.com/sells-group/leadflow/internal/model"
)

// Parser attempts to extract a lead from one raw email. TryParse returns
// nil when the source signature does not match; it never errors on
// malformed but on-topic content — it degrades confidence instead.
type Parser interface {
	Name() string
	TryParse(in model.RawEmail) *model.ParseResult
}

type entry struct {
	priority int
	parser   Parser
}

// Registry holds the ordered parser list.
type Registry struct {
	entries []entry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a parser at the given priority. Lower runs earlier.
// Duplicate priorities are rejected: two parsers with overlapping
// signatures and no explicit order would make first-match-wins depend on
// registration order, which is exactly the hidden coupling this guards
// against.
func (r *Registry) Register(priority int, p Parser) error {
	for _, e := range r.entries {
		if e.priority == priority {
			return eris.Errorf("parser: priority %d already taken by %s", priority, e.parser.Name())
		}
	}
	r.entries = append(r.entries, entry{priority: priority, parser: p})
	sort.Slice(r.entries, func(i, j int) bool { return r.entries[i].priority < r.entries[j].priority })
	return nil
}

// Run tries each parser in priority order and returns the first result
// along with the winning parser's name. ok is false when no parser matched.
func (r *Registry) Run(in model.RawEmail) (result *model.ParseResult, parserName string, ok bool) {
	for _, e := range r.entries {
		if res := e.parser.TryParse(in); res != nil {
			return res, e.parser.Name(), true
		}
	}
	return nil, "", false
}

// Parsers returns the registered parser names in priority order.
func (r *Registry) Parsers() []string {
	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.parser.Name()
	}
	return names
}

// Default priorities. Specific broker signatures run before the generic
// fallbacks; the web-form parser is the catch-all and must stay last.
const (
	PriorityLeadpoint  = 10
	PriorityLeadmail   = 20
	PriorityAdHelp     = 30
	PriorityThreeMatch = 40
	PriorityPhoneCall  = 50
	PriorityWebForm    = 90
)

// NewDefaultRegistry assembles the production parser set.
func NewDefaultRegistry() (*Registry, error) {
	r := NewRegistry()
	for _, reg := range []struct {
		priority int
		parser   Parser
	}{
		{PriorityLeadpoint, LeadpointParser{}},
		{PriorityLeadmail, LeadmailParser{}},
		{PriorityAdHelp, AdHelpParser{}},
		{PriorityThreeMatch, ThreeMatchParser{}},
		{PriorityPhoneCall, PhoneCallParser{}},
		{PriorityWebForm, WebFormParser{}},
	} {
		if err := r.Register(reg.priority, reg.parser); err != nil {
			return nil, err
		}
	}
	return r, nil
}
