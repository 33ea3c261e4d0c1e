package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/leadflow/internal/model"
)

type stubParser struct {
	name   string
	result *model.ParseResult
}

func (s stubParser) Name() string                               { return s.name }
func (s stubParser) TryParse(model.RawEmail) *model.ParseResult { return s.result }

func TestRegistry_DuplicatePriorityRejected(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(10, stubParser{name: "a"}))

	err := r.Register(10, stubParser{name: "b"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "priority 10")
}

func TestRegistry_FirstMatchWinsInPriorityOrder(t *testing.T) {
	r := NewRegistry()
	hit := &model.ParseResult{Payload: model.LeadPayload{Source: "low"}, Confidence: 1}
	// Registered out of order on purpose.
	require.NoError(t, r.Register(50, stubParser{name: "high", result: &model.ParseResult{}}))
	require.NoError(t, r.Register(10, stubParser{name: "low", result: hit}))
	require.NoError(t, r.Register(30, stubParser{name: "mid", result: nil}))

	res, name, ok := r.Run(model.RawEmail{})
	require.True(t, ok)
	assert.Equal(t, "low", name)
	assert.Same(t, hit, res)
	assert.Equal(t, []string{"low", "mid", "high"}, r.Parsers())
}

func TestRegistry_NoMatch(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(10, stubParser{name: "never"}))

	_, _, ok := r.Run(model.RawEmail{Subject: "anything"})
	assert.False(t, ok)
}

func TestNewDefaultRegistry_Order(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	assert.Equal(t, []string{"leadpoint", "leadmail", "adhelp", "3match", "phonecall", "webform"}, r.Parsers())
}

func TestDefaultRegistry_BrokerBeatsWebForm(t *testing.T) {
	r, err := NewDefaultRegistry()
	require.NoError(t, err)

	// A leadmail relay body would also satisfy the web-form fallback; the
	// broker parser must claim it first.
	res, name, ok := r.Run(model.RawEmail{
		From:    "system@leadmail.no",
		Subject: "Mette Hansen fra Rengøring.nu",
		RawText: "Navn: Mette Hansen\nE-mail: mette@gmail.com\nTelefon: 12 34 56 78\n",
	})
	require.True(t, ok)
	assert.Equal(t, "leadmail", name)
	assert.Equal(t, "leadmail", res.Payload.Source)
}
