// Package classify labels raw inbound mail as lead / drift / service /
// non_lead using a declarative rule set. Classification is a pure function
// of sender and text: identical input always yields identical output, and
// unmatched input degrades to a low-confidence non_lead rather than erring.
package classify

import (
	_ "embed"
	"strings"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/leadflow/internal/model"
)

//go:embed rules.yaml
var defaultRulesYAML []byte

// SenderRule maps a broker domain to its canonical source slug.
type SenderRule struct {
	Domain string `yaml:"domain"`
	Source string `yaml:"source"`
}

// RuleSet is the declarative classifier configuration.
type RuleSet struct {
	LeadSenders           []SenderRule `yaml:"lead_senders"`
	LeadSubjectKeywords   []string     `yaml:"lead_subject_keywords"`
	DriftSubjectMarkers   []string     `yaml:"drift_subject_markers"`
	ServiceSubjectMarkers []string     `yaml:"service_subject_markers"`
}

// Confidence levels assigned per rule tier. Broker sender domains are a
// near-certain signal; subject keywords are weaker.
const (
	confidenceSender  = 0.95
	confidenceKeyword = 0.70
	confidenceDrift   = 0.60
	confidenceService = 0.60
	confidenceNone    = 0.20
)

// Classifier evaluates the rule set against raw mail.
type Classifier struct {
	rules RuleSet
}

// New builds a classifier from the embedded default rule set.
func New() (*Classifier, error) {
	var rules RuleSet
	if err := yaml.Unmarshal(defaultRulesYAML, &rules); err != nil {
		return nil, eris.Wrap(err, "classify: parse embedded rules")
	}
	return NewWithRules(rules), nil
}

// NewWithRules builds a classifier from an explicit rule set.
func NewWithRules(rules RuleSet) *Classifier {
	return &Classifier{rules: rules}
}

// Classify labels one raw email. It never fails: input matching no rule is
// a low-confidence non_lead.
func (c *Classifier) Classify(in model.RawEmail) model.Classification {
	from := strings.ToLower(in.From)
	subject := strings.ToLower(in.Subject)

	for _, s := range c.rules.LeadSenders {
		if strings.Contains(from, s.Domain) {
			return model.Classification{Kind: model.KindLead, Confidence: confidenceSender}
		}
	}

	for _, kw := range c.rules.LeadSubjectKeywords {
		if strings.Contains(subject, kw) {
			return model.Classification{Kind: model.KindLead, Confidence: confidenceKeyword}
		}
	}

	for _, m := range c.rules.DriftSubjectMarkers {
		if strings.HasPrefix(subject, m) || strings.Contains(subject, m) {
			return model.Classification{Kind: model.KindDrift, Confidence: confidenceDrift}
		}
	}

	for _, m := range c.rules.ServiceSubjectMarkers {
		if strings.Contains(subject, m) {
			return model.Classification{Kind: model.KindService, Confidence: confidenceService}
		}
	}

	return model.Classification{Kind: model.KindNonLead, Confidence: confidenceNone}
}

// SourceHint returns the canonical source slug for a sender address, or
// "direct" when the sender is not a known broker. Used for metric labels
// before any parser has attributed the lead.
func (c *Classifier) SourceHint(from string) string {
	lower := strings.ToLower(from)
	for _, s := range c.rules.LeadSenders {
		if strings.Contains(lower, s.Domain) {
			return s.Source
		}
	}
	return "direct"
}
