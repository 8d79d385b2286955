package translator

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"epub-translator/internal/model"
)

func TestEventChannelReceivesRunEvents(t *testing.T) {
	mock := &model.MockProvider{Script: []model.MockReply{
		{Text: "[[0]]Bonjour[[1]]"},
	}}
	e := NewEngine(mock, testConfig(), nil)

	handler, ch := EventChannel(16)
	e.OnEvent = handler

	_, err := e.TranslateBody(context.Background(), `<p>Hello</p>`)
	require.NoError(t, err)

	var events []Event
	for len(ch) > 0 {
		events = append(events, <-ch)
	}
	require.GreaterOrEqual(t, len(events), 3)
	assert.Equal(t, EventChunkStarted, events[0].Kind)
	assert.Equal(t, EventDocumentDone, events[len(events)-1].Kind)
}

func TestEventChannelDropsWhenFull(t *testing.T) {
	handler, ch := EventChannel(1)
	handler(Event{Kind: EventChunkStarted})
	handler(Event{Kind: EventChunkDone})
	handler(Event{Kind: EventDocumentDone})

	assert.Len(t, ch, 1)
	assert.Equal(t, EventChunkStarted, (<-ch).Kind)
}
