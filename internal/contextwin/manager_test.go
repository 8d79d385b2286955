package contextwin

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"epub-translator/internal/model"
)

func TestNewManagerDefaults(t *testing.T) {
	assert.Equal(t, DefaultInitialWindow, NewManager(0, 0, false).WindowSize())
	assert.Equal(t, DefaultThinkingInitialWindow, NewManager(0, 0, true).WindowSize())
}

func TestNewManagerSnapsToPowersOfTwo(t *testing.T) {
	assert.Equal(t, 8192, NewManager(5000, 0, false).WindowSize())
	assert.Equal(t, 4096, NewManager(4096, 0, false).WindowSize())

	// Initial is clamped to max.
	m := NewManager(100000, 8192, false)
	assert.Equal(t, 8192, m.WindowSize())
}

func TestGrowOnTruncation(t *testing.T) {
	m := NewManager(4096, 0, false)
	m.RecordOutcome(100, 200, 0, true)
	assert.Equal(t, 8192, m.WindowSize())
}

func TestGrowWhenUsageNearsLimit(t *testing.T) {
	m := NewManager(4096, 0, false)

	m.RecordOutcome(2000, 1000, 4096, false)
	assert.Equal(t, 4096, m.WindowSize(), "73%% usage must not grow")

	m.RecordOutcome(2000, 1800, 4096, false)
	assert.Equal(t, 8192, m.WindowSize(), "93%% usage must grow")
}

func TestRepetitionLoopJumpsTwoSteps(t *testing.T) {
	m := NewManager(4096, 0, false)
	m.RecordFailure(model.KindRepetitionLoop)
	assert.Equal(t, 16384, m.WindowSize())
}

func TestOverflowGrowsOneStep(t *testing.T) {
	m := NewManager(4096, 0, false)
	m.RecordFailure(model.KindContextOverflow)
	assert.Equal(t, 8192, m.WindowSize())

	m.RecordFailure(model.KindProvider)
	assert.Equal(t, 8192, m.WindowSize(), "plain provider errors must not grow the window")
}

func TestGrowthIsCapped(t *testing.T) {
	m := NewManager(4096, 8192, false)
	m.RecordFailure(model.KindRepetitionLoop)
	assert.Equal(t, 8192, m.WindowSize())
	m.RecordFailure(model.KindRepetitionLoop)
	assert.Equal(t, 8192, m.WindowSize())
}

func TestWindowNeverShrinks(t *testing.T) {
	m := NewManager(4096, 0, false)
	m.RecordOutcome(100, 200, 0, true)
	m.RecordOutcome(10, 10, 131072, false)
	assert.Equal(t, 8192, m.WindowSize())
}
