package parser

import (
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/sells-group/leadflow/internal/model"
)

// Defaults applied by the normalizer when a parser leaves them blank.
const (
	DefaultBrand   = "rendetalje"
	DefaultCountry = "DK"
)

// Finalize is the shared normalization step every parser runs before
// returning a payload: fill brand/country defaults, trim and NFC-normalize
// text, canonicalize the identity keys, and enforce the required-field
// policy. ok is false when the payload fails that policy (no identity key
// on a non-partial payload), which the calling parser treats as
// insufficient signal.
func Finalize(p model.LeadPayload) (model.LeadPayload, bool) {
	if p.Brand == "" {
		p.Brand = DefaultBrand
	}
	if p.Country == "" {
		p.Country = DefaultCountry
	}
	if p.LeadType == "" {
		p.LeadType = model.LeadTypeEmail
	}

	p.Name = cleanText(p.Name)
	p.Address = cleanText(p.Address)
	p.City = cleanText(p.City)
	p.ServiceType = cleanText(p.ServiceType)
	p.Notes = cleanText(p.Notes)

	p.Email = strings.ToLower(strings.TrimSpace(p.Email))
	p.Phone = digitsAndPlus(p.Phone)

	if !p.Partial && !p.HasIdentity() {
		return p, false
	}
	return p, true
}

// cleanText trims whitespace and normalizes to NFC so that composed and
// decomposed Danish characters compare equal downstream.
func cleanText(s string) string {
	return norm.NFC.String(strings.TrimSpace(s))
}
