package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

const leadmailBody = `Navn: Rene Fly Jensen
E-mail: rene@gmail.com
Telefon: 12 34 56 78
Adresse: Åboulevarden 12, 8000 Aarhus C
Hvor stort er området: 85
Boligen har 3 rum
Fast rengøring hver 14. dag
`

func TestLeadmailParser_FullPayload(t *testing.T) {
	res := LeadmailParser{}.TryParse(model.RawEmail{
		From:    "system@leadmail.no",
		Subject: "Rene Fly Jensen fra Rengøring.nu",
		RawText: leadmailBody,
	})
	require.NotNil(t, res)

	p := res.Payload
	assert.Equal(t, "leadmail", p.Source)
	assert.Equal(t, "Rene Fly Jensen", p.Name)
	assert.Equal(t, "rene@gmail.com", p.Email)
	assert.Equal(t, "12345678", p.Phone)
	assert.Equal(t, "Åboulevarden 12", p.Address)
	assert.Equal(t, "8000", p.PostalCode)
	assert.Equal(t, "Aarhus C", p.City)
	assert.Equal(t, 85, p.AreaSqm)
	assert.Equal(t, 3, p.Rooms)
	assert.Equal(t, "Fast Rengøring", p.ServiceType)
	assert.Equal(t, model.ReplyStrategyNewEmail, p.ReplyStrategy)
	assert.Equal(t, "rendetalje", p.Brand)
	assert.Equal(t, "DK", p.Country)
	assert.InDelta(t, 1.0, res.Confidence, 0.001)
}

func TestLeadmailParser_PartialFields(t *testing.T) {
	res := LeadmailParser{}.TryParse(model.RawEmail{
		From:    "system@leadmail.no",
		Subject: "Mette Hansen fra Rengøring.nu",
		RawText: "Navn: Mette Hansen\nE-mail: mette@gmail.com\nTelefon: 22 33 44 55\nAdresse: Vestergade 4, 8000 Aarhus C\nFast rengøring ugentlig\n",
	})
	require.NotNil(t, res)
	// 5 of the 7 expected fields are populated.
	assert.InDelta(t, 5.0/7.0, res.Confidence, 0.001)
}

func TestLeadmailParser_WrongSender(t *testing.T) {
	res := LeadmailParser{}.TryParse(model.RawEmail{
		From:    "kunde@gmail.com",
		Subject: "rengøring",
		RawText: leadmailBody,
	})
	assert.Nil(t, res)
}

func TestLeadpointParser_PortalStub(t *testing.T) {
	res := LeadpointParser{}.TryParse(model.RawEmail{
		From:    "leads@leadpoint.dk",
		Subject: "Nyt lead til Rengøring Aarhus",
		RawText: "Du har modtaget et nyt lead.\nSe detaljer: https://app.leadpoint.dk/leads/8841\n",
	})
	require.NotNil(t, res)

	p := res.Payload
	assert.Equal(t, "leadpoint", p.Source)
	assert.True(t, p.NeedsPortalFetch)
	assert.True(t, p.Partial)
	assert.Equal(t, "https://app.leadpoint.dk/leads/8841", p.PortalURL)
	assert.Equal(t, model.ReplyStrategyReplyDirect, p.ReplyStrategy)
	assert.GreaterOrEqual(t, res.Confidence, 0.5)
}

func TestLeadpointParser_InlineContact(t *testing.T) {
	res := LeadpointParser{}.TryParse(model.RawEmail{
		From:    "leads@leadpoint.dk",
		Subject: "Nyt lead",
		RawText: "Navn: Lars Madsen\nTelefon: 55 66 77 88\nHovedrengøring ønskes\n",
	})
	require.NotNil(t, res)
	assert.False(t, res.Payload.Partial)
	assert.Equal(t, "55667788", res.Payload.Phone)
}

func TestAdHelpParser(t *testing.T) {
	res := AdHelpParser{}.TryParse(model.RawEmail{
		From:    "kontakt@adhelp.dk",
		Subject: "Ny henvendelse",
		RawText: "Navn: Søren Kjær\nE-mail: soren@outlook.dk\nTelefon: 87 65 43 21\nAdresse: Ny Munkegade 8, 8000 Aarhus C\nFlytterengøring\n",
	})
	require.NotNil(t, res)
	assert.Equal(t, "adhelp", res.Payload.Source)
	assert.Equal(t, model.ReplyStrategyDirectToCustomer, res.Payload.ReplyStrategy)
	assert.Equal(t, "Flytterengøring", res.Payload.ServiceType)
}

func TestThreeMatchParser(t *testing.T) {
	res := ThreeMatchParser{}.TryParse(model.RawEmail{
		From:    "match@3match.dk",
		Subject: "Nyt match",
		RawText: "Navn: Anne Lind\nE-mail: anne@live.dk\nHovedrengøring af 120 m2 bolig\n",
	})
	require.NotNil(t, res)
	assert.Equal(t, "3match", res.Payload.Source)
	assert.Equal(t, model.ReplyStrategyNewEmail, res.Payload.ReplyStrategy)
	assert.Equal(t, 120, res.Payload.AreaSqm)
}

func TestPhoneCallParser_MissedCall(t *testing.T) {
	res := PhoneCallParser{}.TryParse(model.RawEmail{
		From:    "voicemail@telenor.dk",
		Subject: "Ubesvaret opkald",
		RawText: "Du har et ubesvaret opkald fra 12 34 56 78 kl. 14:02\n",
	})
	require.NotNil(t, res)
	assert.Equal(t, "phonecall", res.Payload.Source)
	assert.Equal(t, model.LeadTypePhoneCall, res.Payload.LeadType)
	assert.Equal(t, "12345678", res.Payload.Phone)
	// A caller who already dialed is a hot lead regardless of sparse fields.
	assert.GreaterOrEqual(t, res.Confidence, 0.8)
}

func TestPhoneCallParser_NoNumberIsNoLead(t *testing.T) {
	res := PhoneCallParser{}.TryParse(model.RawEmail{
		Subject: "Ubesvaret opkald",
		RawText: "opkald fra skjult nummer",
	})
	assert.Nil(t, res)
}

func TestWebFormParser_CatchAll(t *testing.T) {
	res := WebFormParser{}.TryParse(model.RawEmail{
		From:    "mia@gmail.com",
		Subject: "Kontaktformular",
		RawText: "Navn: Mia Holm\nE-mail: mia@gmail.com\nTelefon: 11 22 33 44\nHvor stort er området: 95\nFast rengøring hver uge\n",
	})
	require.NotNil(t, res)
	assert.Equal(t, "webform", res.Payload.Source)
	assert.Equal(t, model.LeadTypeWebForm, res.Payload.LeadType)
	assert.Equal(t, "Fast Rengøring", res.Payload.ServiceType)
}

func TestWebFormParser_NoIdentityRejected(t *testing.T) {
	res := WebFormParser{}.TryParse(model.RawEmail{
		Subject: "Tilbud",
		RawText: "Jeg vil gerne have et tilbud på rengøring.\n",
	})
	assert.Nil(t, res)
}

func TestFinalize_NormalizesIdentity(t *testing.T) {
	p, ok := Finalize(model.LeadPayload{
		Name:  "  Mette Hansen ",
		Email: " Mette@GMAIL.com ",
		Phone: "+45 12 34 56 78",
	})
	require.True(t, ok)
	assert.Equal(t, "Mette Hansen", p.Name)
	assert.Equal(t, "mette@gmail.com", p.Email)
	assert.Equal(t, "+4512345678", p.Phone)
	assert.Equal(t, DefaultBrand, p.Brand)
	assert.Equal(t, DefaultCountry, p.Country)
	assert.Equal(t, model.LeadTypeEmail, p.LeadType)
}

func TestFinalize_RequiresIdentityUnlessPartial(t *testing.T) {
	_, ok := Finalize(model.LeadPayload{Name: "Ingen Kontakt"})
	assert.False(t, ok)

	_, ok = Finalize(model.LeadPayload{Name: "Stub", Partial: true})
	assert.True(t, ok)
}

func TestEnrichFromPortal(t *testing.T) {
	stub := model.LeadPayload{
		Source:           "leadpoint",
		Partial:          true,
		NeedsPortalFetch: true,
		PortalURL:        "https://app.leadpoint.dk/leads/1",
	}

	got := EnrichFromPortal(stub, "Navn: Jonas Beck\nTelefon: 98 76 54 32\nHvor stort er området: 140\nFlytterengøring\n")
	assert.Equal(t, "Jonas Beck", got.Name)
	assert.Equal(t, "98765432", got.Phone)
	assert.Equal(t, 140, got.AreaSqm)
	assert.Equal(t, "Flytterengøring", got.ServiceType)
	assert.False(t, got.Partial)
	assert.False(t, got.NeedsPortalFetch)
}
