package parser

import (
	"regexp"

	"github.com/sells-group/leadflow/internal/model"
)

// PhoneCallParser handles missed-call notifications from the telephony
// provider. A phone number is the whole lead: the caller already tried to
// reach us, so a sparse payload is a strong signal, not a weak one.
type PhoneCallParser struct{}

var missedCallRe = regexp.MustCompile(`(?i)(ubesvaret opkald|mistet opkald|missed call|du har et ubesvaret)`)

const phoneCallMinConfidence = 0.8

func (PhoneCallParser) Name() string { return "phonecall" }

func (PhoneCallParser) TryParse(in model.RawEmail) *model.ParseResult {
	if !missedCallRe.MatchString(in.Subject) && !missedCallRe.MatchString(in.RawText) {
		return nil
	}

	phone := extractPhone(in.RawText)
	if phone == "" {
		phone = extractPhone(in.Subject)
	}
	if phone == "" {
		return nil
	}

	payload := model.LeadPayload{
		Source:        "phonecall",
		Name:          extractName(in.Subject, in.RawText),
		Phone:         phone,
		LeadType:      model.LeadTypePhoneCall,
		ReplyStrategy: model.ReplyStrategyDirectToCustomer,
	}

	payload, ok := Finalize(payload)
	if !ok {
		return nil
	}

	conf := fieldConfidence(countPopulated(payload.Name, payload.Phone), 2)
	if conf < phoneCallMinConfidence {
		conf = phoneCallMinConfidence
	}

	return &model.ParseResult{Payload: payload, Confidence: conf}
}
