package model

// RawEmail is the immutable inbound message handed to the pipeline by the
// mail-transport collaborator. The pipeline never fetches mail itself.
type RawEmail struct {
	Mailbox string `json:"mailbox"`
	Subject string `json:"subject"`
	From    string `json:"from"`
	RawText string `json:"raw_text"`
}

// ClassificationKind labels what a raw inbound message appears to be.
type ClassificationKind string

const (
	KindLead    ClassificationKind = "lead"     // new customer inquiry
	KindDrift   ClassificationKind = "drift"    // ongoing conversation on an existing job
	KindService ClassificationKind = "service"  // automated notification, invoice, receipt
	KindNonLead ClassificationKind = "non_lead" // everything else
)

// Classification is the ephemeral output of the email classifier. It is
// never persisted.
type Classification struct {
	Kind       ClassificationKind `json:"kind"`
	Confidence float64            `json:"confidence"`
}

// IsLead reports whether the message should continue into parsing.
func (c Classification) IsLead() bool {
	return c.Kind == KindLead
}

// ParseResult is the output of a single parser attempt.
type ParseResult struct {
	Payload    LeadPayload `json:"payload"`
	Confidence float64     `json:"confidence"`
}
