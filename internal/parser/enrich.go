package parser

import (
	"github.com/sells-group/leadflow/internal/model"
)

// EnrichFromPortal fills the blank fields of a partial payload from the
// fetched portal page text. Fields the stub already carried win; the
// portal only supplements. A payload that gains an identity key is no
// longer partial.
func EnrichFromPortal(p model.LeadPayload, text string) model.LeadPayload {
	if p.Name == "" {
		p.Name = extractName("", text)
	}
	if p.Email == "" {
		p.Email = extractEmail(text, "")
	}
	if p.Phone == "" {
		p.Phone = extractPhone(text)
	}
	if p.Address == "" {
		street, postal, city := extractAddress(text)
		p.Address = street
		if p.PostalCode == "" {
			p.PostalCode = postal
		}
		if p.City == "" {
			p.City = city
		}
	}
	if p.AreaSqm == 0 {
		p.AreaSqm = extractAreaSqm(text)
	}
	if p.Rooms == 0 {
		p.Rooms = extractRooms(text)
	}
	if p.ServiceType == "" {
		p.ServiceType = extractServiceType(text)
	}

	p.NeedsPortalFetch = false
	if p.HasIdentity() {
		p.Partial = false
	}

	finalized, _ := Finalize(p)
	return finalized
}
