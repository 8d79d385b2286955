package document

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `<html><head><title>Ch. 1</title></head><body><p>Hello <b>world</b></p></body></html>`

func TestParseExtractBody(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	body, err := doc.ExtractBody()
	require.NoError(t, err)
	assert.Equal(t, `<p>Hello <b>world</b></p>`, body)
}

func TestReplaceBodyAndRender(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	require.NoError(t, doc.ReplaceBody(`<p>Bonjour <b>monde</b></p>`))

	out, err := doc.Render()
	require.NoError(t, err)
	assert.Contains(t, out, `<p>Bonjour <b>monde</b></p>`)
	assert.Contains(t, out, `<title>Ch. 1</title>`)
	assert.NotContains(t, out, "Hello")
}

func TestReplaceBodyIsRepeatable(t *testing.T) {
	doc, err := Parse(sample)
	require.NoError(t, err)

	require.NoError(t, doc.ReplaceBody(`<p>one</p>`))
	require.NoError(t, doc.ReplaceBody(`<p>two</p>`))

	body, err := doc.ExtractBody()
	require.NoError(t, err)
	assert.Equal(t, `<p>two</p>`, body)
}

func TestCheckFragment(t *testing.T) {
	assert.NoError(t, CheckFragment(`<p>fine</p>`))
	assert.NoError(t, CheckFragment(`plain text`))
	// The parser is forgiving, so even sloppy markup passes; the
	// conservation check upstream catches structural damage.
	assert.NoError(t, CheckFragment(`<p>unclosed`))
}
