package parser

import (
	"github.com/sells-group/leadflow/internal/model"
)

// WebFormParser is the catch-all for website contact-form submissions and
// any other mail the classifier flagged as a lead without a broker
// signature. It relies purely on labeled-field extraction, so confidence
// tracks how much of the form actually came through.
type WebFormParser struct{}

const webFormExpectedFields = 7

func (WebFormParser) Name() string { return "webform" }

func (WebFormParser) TryParse(in model.RawEmail) *model.ParseResult {
	street, postal, city := extractAddress(in.RawText)
	payload := model.LeadPayload{
		Source:        "webform",
		Name:          extractName(in.Subject, in.RawText),
		Email:         extractEmail(in.RawText, in.From),
		Phone:         extractPhone(in.RawText),
		Address:       street,
		PostalCode:    postal,
		City:          city,
		AreaSqm:       extractAreaSqm(in.RawText),
		Rooms:         extractRooms(in.RawText),
		ServiceType:   extractServiceType(in.RawText),
		LeadType:      model.LeadTypeWebForm,
		ReplyStrategy: model.ReplyStrategyReplyDirect,
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
		Confidence: fieldConfidence(populated, webFormExpectedFields),
	}
}
