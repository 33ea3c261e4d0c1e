package parser

import (
	"regexp"

	"github.com/sells-group/leadflow/internal/model"
)

// AdHelpParser handles leads relayed by adhelp.dk. Contact details are
// inline and the customer expects to be contacted directly.
type AdHelpParser struct{}

var adhelpSignature = regexp.MustCompile(`(?i)adhelp\.dk`)

const adhelpExpectedFields = 6

func (AdHelpParser) Name() string { return "adhelp" }

func (AdHelpParser) TryParse(in model.RawEmail) *model.ParseResult {
	if !adhelpSignature.MatchString(in.From) && !adhelpSignature.MatchString(in.RawText) {
		return nil
	}

	street, postal, city := extractAddress(in.RawText)
	payload := model.LeadPayload{
		Source:        "adhelp",
		Name:          extractName(in.Subject, in.RawText),
		Email:         extractEmail(in.RawText, in.From),
		Phone:         extractPhone(in.RawText),
		Address:       street,
		PostalCode:    postal,
		City:          city,
		AreaSqm:       extractAreaSqm(in.RawText),
		ServiceType:   extractServiceType(in.RawText),
		LeadType:      model.LeadTypeEmail,
		ReplyStrategy: model.ReplyStrategyDirectToCustomer,
	}

	payload, ok := Finalize(payload)
	if !ok {
		return nil
	}

	populated := countPopulated(payload.Name, payload.Email, payload.Phone, payload.Address, payload.ServiceType)
	if payload.AreaSqm > 0 {
		populated++
	}

	return &model.ParseResult{
		Payload:    payload,
		Confidence: fieldConfidence(populated, adhelpExpectedFields),
	}
}
