package classify

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

func newTestClassifier(t *testing.T) *Classifier {
	t.Helper()
	c, err := New()
	require.NoError(t, err)
	return c
}

func TestClassify_BrokerSenderIsLead(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(model.RawEmail{
		From:    "noreply@leadpoint.dk",
		Subject: "whatever",
	})
	assert.Equal(t, model.KindLead, got.Kind)
	assert.InDelta(t, 0.95, got.Confidence, 0.001)
}

func TestClassify_SubjectKeywordIsLead(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(model.RawEmail{
		From:    "kunde@gmail.com",
		Subject: "Ny forespørgsel om rengøring",
	})
	assert.Equal(t, model.KindLead, got.Kind)
	assert.InDelta(t, 0.70, got.Confidence, 0.001)
}

func TestClassify_ReplyIsDrift(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(model.RawEmail{
		From:    "kunde@gmail.com",
		Subject: "Re: aftale på torsdag",
	})
	assert.Equal(t, model.KindDrift, got.Kind)
}

func TestClassify_InvoiceIsService(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(model.RawEmail{
		From:    "billing@saas.io",
		Subject: "Faktura #2231",
	})
	assert.Equal(t, model.KindService, got.Kind)
}

func TestClassify_UnmatchedIsNonLead(t *testing.T) {
	c := newTestClassifier(t)

	got := c.Classify(model.RawEmail{
		From:    "someone@example.com",
		Subject: "hello there",
	})
	assert.Equal(t, model.KindNonLead, got.Kind)
	assert.InDelta(t, 0.20, got.Confidence, 0.001)
	assert.False(t, got.IsLead())
}

func TestClassify_Deterministic(t *testing.T) {
	c := newTestClassifier(t)
	in := model.RawEmail{From: "x@leadmail.no", Subject: "Nyt lead"}

	first := c.Classify(in)
	for range 10 {
		assert.Equal(t, first, c.Classify(in))
	}
}

func TestSourceHint(t *testing.T) {
	c := newTestClassifier(t)

	assert.Equal(t, "leadpoint", c.SourceHint("system@leadpoint.dk"))
	assert.Equal(t, "leadmail", c.SourceHint("no-reply@leadmail.no"))
	assert.Equal(t, "3match", c.SourceHint("match@3match.dk"))
	assert.Equal(t, "direct", c.SourceHint("person@gmail.com"))
}

func TestClassify_SenderBeatsDriftMarker(t *testing.T) {
	c := newTestClassifier(t)

	// Broker resends arrive with a reply prefix; the sender domain wins.
	got := c.Classify(model.RawEmail{
		From:    "noreply@leadmail.no",
		Subject: "Re: Nyt lead",
	})
	assert.Equal(t, model.KindLead, got.Kind)
}
