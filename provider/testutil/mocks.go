package testutil

import (
	"context"
	"fmt"
	"sync"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/model"
)

// Call records one ChatWithTools invocation.
type Call struct {
	System   string
	Messages []model.Message
	Tools    []mcptypes.Tool
}

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	ChatWithToolsFunc func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error
	PingFunc          func(ctx context.Context) error

	mu           sync.Mutex
	calls        []Call
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{currentModel: modelName}
	mock.ChatWithToolsFunc = mock.defaultChatWithTools
	mock.PingFunc = func(ctx context.Context) error { return nil }
	return mock
}

// NewScriptedProvider returns a mock that streams rounds[i] on its i-th
// call. Calls beyond the script fail.
func NewScriptedProvider(modelName string, rounds ...[]model.Delta) *MockProvider {
	mock := NewMockProvider(modelName)
	mock.ChatWithToolsFunc = func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
		n := len(mock.Calls()) - 1
		if n >= len(rounds) {
			return fmt.Errorf("unexpected generation call %d", n+1)
		}
		for _, d := range rounds[n] {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := callback(d); err != nil {
				return err
			}
		}
		return nil
	}
	return mock
}

func (m *MockProvider) defaultChatWithTools(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	if err := callback(model.Delta{Text: "Mock response"}); err != nil {
		return err
	}
	return callback(model.Delta{Metadata: &model.Metadata{FinishReason: "STOP"}})
}

func (m *MockProvider) ChatWithTools(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
	m.mu.Lock()
	m.calls = append(m.calls, Call{
		System:   system,
		Messages: append([]model.Message(nil), messages...),
		Tools:    tools,
	})
	m.mu.Unlock()
	return m.ChatWithToolsFunc(ctx, system, messages, tools, callback)
}

// Calls returns a copy of the recorded invocations.
func (m *MockProvider) Calls() []Call {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Call(nil), m.calls...)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}
