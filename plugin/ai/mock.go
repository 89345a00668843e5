package ai

import (
	"context"
	"sync"
)

// MockEngine is a mock implementation of Engine for testing.
// By default it echoes the prompt followed by Reply, like a local decoder.
type MockEngine struct {
	mu sync.Mutex

	Reply string
	Err   error
	// GenerateFunc overrides Reply and Err when set.
	GenerateFunc func(ctx context.Context, req *GenerateRequest) (string, error)

	requests []GenerateRequest
	closed   bool
}

// NewMockEngine creates a MockEngine that answers with reply.
func NewMockEngine(reply string) *MockEngine {
	return &MockEngine{Reply: reply}
}

func (m *MockEngine) Generate(ctx context.Context, req *GenerateRequest) (string, error) {
	m.mu.Lock()
	m.requests = append(m.requests, *req)
	fn, reply, err := m.GenerateFunc, m.Reply, m.Err
	m.mu.Unlock()

	if fn != nil {
		return fn(ctx, req)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if err != nil {
		return "", err
	}
	return req.Prompt + " " + reply, nil
}

func (m *MockEngine) Name() string {
	return "mock"
}

func (m *MockEngine) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Requests returns a copy of the requests seen so far.
func (m *MockEngine) Requests() []GenerateRequest {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]GenerateRequest, len(m.requests))
	copy(out, m.requests)
	return out
}

// Closed reports whether Close was called.
func (m *MockEngine) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

var _ Engine = (*MockEngine)(nil)
