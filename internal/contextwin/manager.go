// Package contextwin holds the adaptive context-window controller and
// the cross-document provider capability cache.
package contextwin

import (
	"epub-translator/internal/logger"
	"epub-translator/internal/model"
)

// Defaults for the window controller, in tokens. Values are powers of
// two because providers perform best at canonical sizes.
const (
	DefaultInitialWindow         = 4096
	DefaultThinkingInitialWindow = 16384
	DefaultMaxWindow             = 131072
)

// Manager is a grow-only feedback controller for the context-window
// parameter passed to the model boundary. It is scoped to one document
// translation run and is not safe for concurrent use; the pipeline is
// strictly sequential per document.
type Manager struct {
	current int
	max     int
	grown   int // steps taken, for logging
}

// NewManager creates a controller starting at initial tokens, capped
// at max. Both are snapped up to the nearest power of two. thinking
// selects the larger initial window used for models that burn hidden
// reasoning tokens.
func NewManager(initial, max int, thinking bool) *Manager {
	if initial <= 0 {
		initial = DefaultInitialWindow
		if thinking {
			initial = DefaultThinkingInitialWindow
		}
	}
	if max <= 0 {
		max = DefaultMaxWindow
	}
	initial = snapPowerOfTwo(initial)
	max = snapPowerOfTwo(max)
	if initial > max {
		initial = max
	}
	return &Manager{current: initial, max: max}
}

// WindowSize returns the window to use for the next model call.
func (m *Manager) WindowSize() int { return m.current }

// RecordOutcome feeds back a completed call. Truncation, or usage
// crowding the reported limit, grows the window by one step. The
// controller never shrinks mid-document.
func (m *Manager) RecordOutcome(promptTokens, completionTokens, limit int, truncated bool) {
	if truncated {
		m.grow(1, "output truncated")
		return
	}
	used := promptTokens + completionTokens
	if limit > 0 && used*10 >= limit*9 {
		m.grow(1, "usage near context limit")
	}
}

// RecordFailure feeds back a failed call. Repetition loops jump two
// steps because they signal the model thrashing well before the hard
// limit; plain overflow grows one step.
func (m *Manager) RecordFailure(kind model.ErrKind) {
	switch kind {
	case model.KindRepetitionLoop:
		m.grow(2, "repetition loop")
	case model.KindContextOverflow:
		m.grow(1, "context overflow")
	}
}

func (m *Manager) grow(steps int, reason string) {
	next := m.current
	for i := 0; i < steps; i++ {
		next *= 2
	}
	if next > m.max {
		next = m.max
	}
	if next == m.current {
		return
	}
	m.current = next
	m.grown += steps
	logger.Info("context window grown",
		logger.String("reason", reason),
		logger.Int("window", m.current))
}

// snapPowerOfTwo rounds n up to the nearest power of two.
func snapPowerOfTwo(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
