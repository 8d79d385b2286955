package model

import (
	"context"
	"sync"
)

// MockReply is one scripted response for the MockProvider.
type MockReply struct {
	Text      string
	Truncated bool
	Err       error
}

// MockProvider is a scripted Provider for tests. Replies are consumed
// in order; when the script runs out, Transform (if set) answers, and
// otherwise the request text is echoed back.
type MockProvider struct {
	mu        sync.Mutex
	Script    []MockReply
	Transform func(req Request) *Response
	Thinking  bool

	calls    int
	requests []Request
}

// Name implements Provider.
func (m *MockProvider) Name() string { return "mock" }

// Generate implements Provider.
func (m *MockProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.requests = append(m.requests, req)
	idx := m.calls
	m.calls++

	if idx < len(m.Script) {
		reply := m.Script[idx]
		if reply.Err != nil {
			return nil, reply.Err
		}
		return &Response{
			Text:             reply.Text,
			PromptTokens:     len(req.UserPrompt) / 4,
			CompletionTokens: len(reply.Text) / 4,
			Truncated:        reply.Truncated,
		}, nil
	}
	if m.Transform != nil {
		return m.Transform(req), nil
	}
	return &Response{Text: req.UserPrompt}, nil
}

// DetectThinking implements Provider.
func (m *MockProvider) DetectThinking(ctx context.Context) (bool, error) {
	return m.Thinking, nil
}

// Calls returns how many Generate calls were made.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

// Requests returns a copy of all requests seen so far.
func (m *MockProvider) Requests() []Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Request, len(m.requests))
	copy(out, m.requests)
	return out
}
