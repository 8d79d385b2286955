package translator

import (
	"context"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epub-translator/internal/config"
	"epub-translator/internal/contextwin"
	"epub-translator/internal/model"
	"epub-translator/internal/types"
)

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.TargetLang = "fr"
	return cfg
}

func TestTranslateBodySingleChunk(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Bonjour [[1]]monde[[2]][[3]]"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	var events []Event
	e.OnEvent = func(ev Event) { events = append(events, ev) }

	res, err := e.TranslateBody(context.Background(), `<p>Hello <b>world</b></p>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>Bonjour <b>monde</b></p>`, res.TranslatedBody)
	assert.Equal(t, `<p>Hello <b>world</b></p>`, res.OriginalBody)

	m := res.Metrics
	assert.Equal(t, 1, m.TotalChunks)
	assert.Equal(t, 1, m.FirstTryChunks)
	assert.Equal(t, 1, m.RetryHistogram[1])
	assert.Equal(t, 1, mock.Calls())

	require.Len(t, events, 3)
	assert.Equal(t, EventChunkStarted, events[0].Kind)
	assert.Equal(t, EventChunkDone, events[1].Kind)
	assert.Equal(t, EventDocumentDone, events[2].Kind)
	_, err = uuid.Parse(events[0].RunID)
	assert.NoError(t, err)
	assert.Equal(t, events[0].RunID, events[2].RunID)
	assert.Equal(t, m.RunID, events[0].RunID)
}

func TestTranslateBodyRetriesOnPlaceholderMismatch(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Bonjour monde[[2]][[3]]"}, // dropped [[1]]
		{Text: "[[0]]Bonjour [[1]]monde[[2]][[3]]"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	res, err := e.TranslateBody(context.Background(), `<p>Hello <b>world</b></p>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>Bonjour <b>monde</b></p>`, res.TranslatedBody)
	assert.Equal(t, 1, res.Metrics.RetriedChunks)
	assert.Equal(t, 1, res.Metrics.RetryHistogram[2])

	// The attempt log records the failed first try and the retry.
	require.Len(t, res.AttemptLog, 2)
	first, second := res.AttemptLog[0], res.AttemptLog[1]
	assert.Equal(t, 0, first.Chunk)
	assert.Equal(t, 1, first.Number)
	assert.Equal(t, types.OutcomePlaceholderMismatch, first.Outcome)
	assert.Equal(t, types.PhaseNormal, first.Phase)
	assert.Contains(t, first.Detail, "missing placeholders: 1")
	assert.Equal(t, 2, second.Number)
	assert.Equal(t, types.OutcomeSuccess, second.Outcome)
	assert.Equal(t, types.PhaseNormal, second.Phase)

	// The retry prompt carries the validator's diagnosis.
	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].UserPrompt, "mishandled")
	assert.Contains(t, reqs[1].UserPrompt, "mishandled placeholders")
	assert.Contains(t, reqs[1].UserPrompt, "missing placeholders: 1")
}

func TestTranslateBodyAlignmentFallback(t *testing.T) {
	invalid := model.MockReply{Text: "Bonjour"} // placeholders lost
	mock := &model.MockProvider{Script: []model.MockReply{
		invalid, invalid, invalid,
		{Text: "Bonjour le monde"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	res, err := e.TranslateBody(context.Background(), `<p>Hello world</p>`)
	require.NoError(t, err)
	assert.Equal(t, `<p>Bonjour le monde</p>`, res.TranslatedBody)
	assert.Equal(t, 1, res.Metrics.AlignedChunks)
	assert.Zero(t, res.Metrics.UntranslatedChunks)

	// Three mismatches, then the alignment attempt succeeds.
	require.Len(t, res.AttemptLog, 4)
	for _, a := range res.AttemptLog[:3] {
		assert.Equal(t, types.OutcomePlaceholderMismatch, a.Outcome)
		assert.Equal(t, types.PhaseNormal, a.Phase)
	}
	last := res.AttemptLog[3]
	assert.Equal(t, 4, last.Number)
	assert.Equal(t, types.OutcomeSuccess, last.Outcome)
	assert.Equal(t, types.PhaseTokenAlignment, last.Phase)

	// The fallback call sends stripped text.
	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	assert.Contains(t, reqs[0].UserPrompt, "[[0]]")
	assert.NotContains(t, reqs[3].UserPrompt, "[[")
}

func TestTranslateBodyUntranslatedFallbackPreservesContent(t *testing.T) {
	overflow := model.MockReply{Err: &model.Error{Kind: model.KindContextOverflow}}
	mock := &model.MockProvider{Script: []model.MockReply{
		overflow, overflow, overflow, overflow,
	}}
	e := NewEngine(mock, testConfig(), nil)

	body := `<p>Hello <b>world</b></p>`
	res, err := e.TranslateBody(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, body, res.TranslatedBody)
	assert.Equal(t, 1, res.Metrics.UntranslatedChunks)

	// Every call failed: three normal attempts plus the alignment one.
	require.Len(t, res.AttemptLog, 4)
	for _, a := range res.AttemptLog {
		assert.Equal(t, types.OutcomeProviderError, a.Outcome)
	}
	assert.Equal(t, types.PhaseTokenAlignment, res.AttemptLog[3].Phase)

	// Every overflow grows the window for the next call.
	reqs := mock.Requests()
	require.Len(t, reqs, 4)
	assert.Equal(t, 4096, reqs[0].ContextWindow)
	assert.Equal(t, 8192, reqs[1].ContextWindow)
	assert.Equal(t, 16384, reqs[2].ContextWindow)
	assert.Equal(t, 32768, reqs[3].ContextWindow)
}

func TestTranslateBodyReconstructionKeepsOriginalOnCorruption(t *testing.T) {
	// Placeholders are intact, but the model invented a literal tag;
	// the conservation check must reject the whole body.
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Bonjour <i>le monde[[1]]"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	body := `<p>Hello world</p>`
	res, err := e.TranslateBody(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, body, res.TranslatedBody)
}

func TestTranslateBodySkipsBlankChunks(t *testing.T) {
	mock := &model.MockProvider{}
	e := NewEngine(mock, testConfig(), nil)

	body := "  \n\n  "
	res, err := e.TranslateBody(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, body, res.TranslatedBody)
	assert.Equal(t, 0, mock.Calls())
	assert.Equal(t, res.Metrics.TotalChunks, res.Metrics.SkippedChunks)
}

func TestTranslateBodyCancelledBeforeStart(t *testing.T) {
	mock := &model.MockProvider{}
	e := NewEngine(mock, testConfig(), nil)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	body := `<p>Hello world</p>`
	res, err := e.TranslateBody(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, body, res.TranslatedBody)
	assert.Equal(t, 1, res.Metrics.UntranslatedChunks)
	assert.Equal(t, 0, mock.Calls())
}

func TestTranslateBodyCancelledBetweenChunks(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Premier[[1]]"},
	}}
	cfg := testConfig()
	cfg.MaxChunkTokens = 30

	e := NewEngine(mock, cfg, nil)

	ctx, cancel := context.WithCancel(context.Background())
	e.OnEvent = func(ev Event) {
		if ev.Kind == EventChunkDone && ev.ChunkIndex == 0 {
			cancel()
		}
	}

	body := "<p>one two three four five six seven eight nine ten eleven twelve</p>\n\n" +
		"<p>alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu</p>"
	res, err := e.TranslateBody(ctx, body)
	require.NoError(t, err)
	assert.Equal(t, 1, mock.Calls())

	// First chunk translated, second passed through in the source
	// language with its markup intact.
	assert.Contains(t, res.TranslatedBody, "<p>Premier</p>")
	assert.Contains(t, res.TranslatedBody, "<p>alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu</p>")
	assert.Equal(t, 1, res.Metrics.UntranslatedChunks)
}

func TestTranslateBodyUsesThinkingWindow(t *testing.T) {
	mock := &model.MockProvider{Thinking: true, Script: []model.MockReply{
		{Text: "[[0]]Bonjour[[1]]"},
	}}
	caps := contextwin.NewCapabilityCache("")
	e := NewEngine(mock, testConfig(), caps)

	_, err := e.TranslateBody(context.Background(), `<p>Hello</p>`)
	require.NoError(t, err)

	reqs := mock.Requests()
	require.Len(t, reqs, 1)
	assert.Equal(t, contextwin.DefaultThinkingInitialWindow, reqs[0].ContextWindow)
}

func TestTranslateBodyCarriesTrailingContext(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Premier morceau traduit[[1]]"},
		{Text: "[[0]]Deuxième morceau[[1]]"},
	}}
	cfg := testConfig()
	cfg.MaxChunkTokens = 30
	e := NewEngine(mock, cfg, nil)

	body := "<p>one two three four five six seven eight nine ten eleven twelve</p>\n\n" +
		"<p>alpha beta gamma delta epsilon zeta eta theta iota kappa lambda mu</p>"
	res, err := e.TranslateBody(context.Background(), body)
	require.NoError(t, err)
	assert.Equal(t, "<p>Premier morceau traduit</p><p>Deuxième morceau</p>", res.TranslatedBody)

	reqs := mock.Requests()
	require.Len(t, reqs, 2)
	assert.NotContains(t, reqs[0].UserPrompt, "Preceding translation")
	assert.Contains(t, reqs[1].UserPrompt, "Preceding translation")
	assert.Contains(t, reqs[1].UserPrompt, "Premier morceau traduit")
	// Context is carried without its placeholders.
	prefix := strings.SplitN(reqs[1].UserPrompt, "Translate:", 2)[0]
	assert.NotContains(t, prefix, "[[")
}

func TestTranslateDocument(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Bonjour [[1]]monde[[2]][[3]]"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	markup := `<html><head><title>Ch. 1</title></head><body><p>Hello <b>world</b></p></body></html>`
	out, res, err := e.TranslateDocument(context.Background(), markup)
	require.NoError(t, err)
	assert.Contains(t, out, `<p>Bonjour <b>monde</b></p>`)
	assert.Contains(t, out, `<title>Ch. 1</title>`)
	assert.Equal(t, 1, res.Metrics.TotalChunks)
}

func TestTailRunes(t *testing.T) {
	assert.Equal(t, "", tailRunes("anything", 0))
	assert.Equal(t, "cdé", tailRunes("abcdé", 3))
	assert.Equal(t, "ab", tailRunes("ab", 10))
}
