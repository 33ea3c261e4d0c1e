package parser

import (
	"regexp"

	"github.com/sells-group/leadflow/internal/model"
)

// ThreeMatchParser handles 3match.dk matchmaking leads. Same inline layout
// as adhelp but the broker wants quotes sent to the customer as new mail.
type ThreeMatchParser struct{}

var threeMatchSignature = regexp.MustCompile(`(?i)3match\.dk`)

const threeMatchExpectedFields = 6

func (ThreeMatchParser) Name() string { return "3match" }

func (ThreeMatchParser) TryParse(in model.RawEmail) *model.ParseResult {
	if !threeMatchSignature.MatchString(in.From) && !threeMatchSignature.MatchString(in.RawText) {
		return nil
	}

	street, postal, city := extractAddress(in.RawText)
	payload := model.LeadPayload{
		Source:        "3match",
		Name:          extractName(in.Subject, in.RawText),
		Email:         extractEmail(in.RawText, in.From),
		Phone:         extractPhone(in.RawText),
		Address:       street,
		PostalCode:    postal,
		City:          city,
		AreaSqm:       extractAreaSqm(in.RawText),
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

	return &model.ParseResult{
		Payload:    payload,
		Confidence: fieldConfidence(populated, threeMatchExpectedFields),
	}
}
