package provider

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"askthecity/model"
	"askthecity/provider/testutil"
)

func newOllamaServer(t *testing.T, lines []string, gotBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			_ = json.Unmarshal(raw, gotBody)
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		for _, l := range lines {
			_, _ = io.WriteString(w, l+"\n")
		}
	}))
}

func TestOllamaProviderStreams(t *testing.T) {
	lines := []string{
		`{"model":"llama3.1","message":{"role":"assistant","content":"Checking "},"done":false}`,
		`{"model":"llama3.1","message":{"role":"assistant","content":"","tool_calls":[{"function":{"name":"find_relevant_datasets","arguments":{"query":"libraries"}}}]},"done":false}`,
		`{"model":"llama3.1","message":{"role":"assistant","content":""},"done":true,"done_reason":"stop","prompt_eval_count":20,"eval_count":6}`,
	}
	var body map[string]any
	srv := newOllamaServer(t, lines, &body)
	defer srv.Close()

	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "llama3.1"})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}

	var text strings.Builder
	var final model.Delta
	err = p.ChatWithTools(context.Background(), "Be brief.", testutil.SingleUserMessage("libraries?"), testutil.TestMCPTools(), func(d model.Delta) error {
		text.WriteString(d.Text)
		if d.Metadata != nil {
			final = d
		}
		return nil
	})
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}

	if text.String() != "Checking " {
		t.Errorf("text: %q", text.String())
	}
	if len(final.ToolCalls) != 1 || final.ToolCalls[0].Name != "find_relevant_datasets" {
		t.Fatalf("tool calls: %+v", final.ToolCalls)
	}
	if !strings.HasPrefix(final.ToolCalls[0].ID, "call_") {
		t.Errorf("expected synthetic call ID, got %q", final.ToolCalls[0].ID)
	}
	if final.Metadata.FinishReason != "stop" || final.Metadata.UsageMetadata.TotalTokenCount != 26 {
		t.Errorf("metadata: %+v %+v", final.Metadata, final.Metadata.UsageMetadata)
	}

	if tools, _ := body["tools"].([]any); len(tools) != 2 {
		t.Errorf("expected tools offered to llama3.1, got %v", body["tools"])
	}
}

func TestOllamaProviderWithholdsToolsFromUnsupportedModels(t *testing.T) {
	lines := []string{
		`{"model":"gemma2","message":{"role":"assistant","content":"Hi"},"done":true,"done_reason":"stop"}`,
	}
	var body map[string]any
	srv := newOllamaServer(t, lines, &body)
	defer srv.Close()

	p, _ := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "gemma2:9b"})
	err := p.ChatWithTools(context.Background(), "", testutil.SingleUserMessage("hi"), testutil.TestMCPTools(), func(model.Delta) error { return nil })
	if err != nil {
		t.Fatalf("ChatWithTools: %v", err)
	}
	if _, ok := body["tools"]; ok {
		t.Errorf("tools should be withheld, got %v", body["tools"])
	}
}
