package parser

import (
	"regexp"
	"strings"

	"github.com/sells-group/leadflow/internal/model"
)

// LeadpointParser handles Rengøring Aarhus leads from leadpoint.dk. The
// notification mail is a stub carrying little beyond a portal link; the
// full contact details live behind that link, so the payload is marked
// partial and flagged for a portal fetch.
type LeadpointParser struct{}

var (
	leadpointSignature = regexp.MustCompile(`(?i)(leadpoint\.dk|rengøring\s*aarhus)`)
	portalLinkRe       = regexp.MustCompile(`https?://[^\s<>"]*leadpoint\.dk[^\s<>"]*`)
)

const leadpointExpectedFields = 4

func (LeadpointParser) Name() string { return "leadpoint" }

func (LeadpointParser) TryParse(in model.RawEmail) *model.ParseResult {
	if !leadpointSignature.MatchString(in.From) && !leadpointSignature.MatchString(in.RawText) {
		return nil
	}

	payload := model.LeadPayload{
		Source:        "leadpoint",
		Name:          extractName(in.Subject, in.RawText),
		Email:         extractEmail(in.RawText, in.From),
		Phone:         extractPhone(in.RawText),
		ServiceType:   extractServiceType(in.RawText),
		LeadType:      model.LeadTypeEmail,
		ReplyStrategy: model.ReplyStrategyReplyDirect,
	}

	if link := portalLinkRe.FindString(in.RawText); link != "" {
		payload.PortalURL = strings.TrimRight(link, ".,);")
		payload.NeedsPortalFetch = true
		payload.Partial = true
	}

	payload, ok := Finalize(payload)
	if !ok {
		return nil
	}

	populated := countPopulated(payload.Name, payload.Email, payload.Phone, payload.ServiceType)
	conf := fieldConfidence(populated, leadpointExpectedFields)
	if payload.Partial && conf < 0.5 {
		// A stub with a valid portal link is still a solid lead; the
		// missing fields arrive with the fetch.
		conf = 0.5
	}

	return &model.ParseResult{Payload: payload, Confidence: conf}
}
