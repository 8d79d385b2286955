// Package model defines the language-model boundary the translation
// core talks to. The core depends only on this abstraction; concrete
// providers adapt it to their wire protocols.
package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Request is one generation call.
type Request struct {
	// UserPrompt is the text the model must act on.
	UserPrompt string
	// SystemPrompt is optional role instruction.
	SystemPrompt string
	// ContextWindow is the total token budget (prompt + completion)
	// the call may consume.
	ContextWindow int
}

// Response is a successful generation result.
type Response struct {
	Text             string
	PromptTokens     int
	CompletionTokens int
	// ContextLimit is the provider-reported hard context limit, zero
	// when unknown.
	ContextLimit int
	// Truncated is set when the provider stopped on a length limit.
	Truncated bool
}

// ErrKind classifies provider failures for the orchestrator's
// degrade-or-retry decisions.
type ErrKind int

const (
	KindProvider ErrKind = iota
	KindContextOverflow
	KindRepetitionLoop
	KindTimeout
)

func (k ErrKind) String() string {
	switch k {
	case KindContextOverflow:
		return "context_overflow"
	case KindRepetitionLoop:
		return "repetition_loop"
	case KindTimeout:
		return "timeout"
	default:
		return "provider_error"
	}
}

// Error is a typed provider failure.
type Error struct {
	Kind    ErrKind
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return e.Kind.String()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error { return e.Cause }

// KindOf extracts the error kind; plain errors map to KindProvider,
// context deadline errors to KindTimeout.
func KindOf(err error) ErrKind {
	var me *Error
	if errors.As(err, &me) {
		return me.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindProvider
}

// Provider is the only contract the translation core requires of a
// language model.
type Provider interface {
	// Name identifies the provider/model pair for logging and the
	// capability cache key.
	Name() string
	// Generate performs one call within the given context window.
	Generate(ctx context.Context, req Request) (*Response, error)
	// DetectThinking reports whether the underlying model spends
	// hidden reasoning tokens. Called once per provider session; the
	// result is cached by the capability layer.
	DetectThinking(ctx context.Context) (bool, error)
}

// DetectRepetition reports whether the tail of text is stuck in a
// repetition loop, the failure mode of a model that ran out of useful
// context. It looks for a short phrase repeated back-to-back many
// times at the end of the output.
func DetectRepetition(text string) bool {
	const tailLen = 2048
	const minRepeats = 8

	tail := text
	if len(tail) > tailLen {
		tail = tail[len(tail)-tailLen:]
	}
	tail = strings.TrimRight(tail, " \t\n")
	if tail == "" {
		return false
	}

	for period := 4; period <= 64; period *= 2 {
		if len(tail) < period*minRepeats {
			continue
		}
		unit := tail[len(tail)-period:]
		if strings.TrimSpace(unit) == "" {
			continue
		}
		repeats := 1
		pos := len(tail) - period
		for pos >= period && tail[pos-period:pos] == unit {
			repeats++
			pos -= period
		}
		if repeats >= minRepeats {
			return true
		}
	}
	return false
}
