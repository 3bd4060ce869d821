package testutil

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolInvocation records one CallTool request.
type ToolInvocation struct {
	Name string
	Args map[string]any
}

// MockSession implements mcp.Session for testing.
type MockSession struct {
	ToolList []mcptypes.Tool

	// Results maps tool names to canned results. Missing tools fail.
	Results  map[string]string
	CallFunc func(ctx context.Context, name string, args map[string]any) (string, error)

	mu     sync.Mutex
	called []ToolInvocation
	closed atomic.Int32
}

// NewMockSession returns a session offering the dataset tools.
func NewMockSession(results map[string]string) *MockSession {
	return &MockSession{ToolList: TestMCPTools(), Results: results}
}

func (s *MockSession) Tools() []mcptypes.Tool {
	return s.ToolList
}

func (s *MockSession) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	s.mu.Lock()
	s.called = append(s.called, ToolInvocation{Name: name, Args: args})
	s.mu.Unlock()

	if s.CallFunc != nil {
		return s.CallFunc(ctx, name, args)
	}
	if result, ok := s.Results[name]; ok {
		return result, nil
	}
	return "", fmt.Errorf("unknown tool: %s", name)
}

func (s *MockSession) Close() error {
	s.closed.Add(1)
	return nil
}

// Invocations returns the recorded tool calls.
func (s *MockSession) Invocations() []ToolInvocation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]ToolInvocation(nil), s.called...)
}

// CloseCount reports how many times Close was called.
func (s *MockSession) CloseCount() int {
	return int(s.closed.Load())
}
