package parser

import (
	"regexp"

	"github.com/sells-group/leadflow/internal/model"
)

// LeadmailParser handles Rengøring.nu leads relayed through leadmail.no.
// These arrive as full `label: value` dumps, so the whole field set is
// expected. The relay address must never be replied to; responses go out
// as fresh mail to the customer.
type LeadmailParser struct{}

var leadmailSignature = regexp.MustCompile(`(?i)(leadmail\.no|rengøring\.nu)`)

const leadmailExpectedFields = 7

func (LeadmailParser) Name() string { return "leadmail" }

func (LeadmailParser) TryParse(in model.RawEmail) *model.ParseResult {
	if !leadmailSignature.MatchString(in.From) && !leadmailSignature.MatchString(in.Subject) {
		return nil
	}

	street, postal, city := extractAddress(in.RawText)
	payload := model.LeadPayload{
		Source:        "leadmail",
		Name:          extractName(in.Subject, in.RawText),
		Email:         extractEmail(in.RawText, in.From),
		Phone:         extractPhone(in.RawText),
		Address:       street,
		PostalCode:    postal,
		City:          city,
		AreaSqm:       extractAreaSqm(in.RawText),
		Rooms:         extractRooms(in.RawText),
		ServiceType:   extractServiceType(in.RawText),
		LeadType:      model.LeadTypeEmail,
		ReplyStrategy: model.ReplyStrategyNewEmail,
	}

	payload, ok := Finalize(payload)
	if !ok {
		return nil
	}

	populated := countPopulated(payload.Name, payload.Email, payload.Phone, payload.Address, payload.ServiceType)
	if payload.AreaSqm > 0 {
		populated++
	}
	if payload.Rooms > 0 {
		populated++
	}

	return &model.ParseResult{
		Payload:    payload,
		Confidence: fieldConfidence(populated, leadmailExpectedFields),
	}
}
