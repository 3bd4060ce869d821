package relay

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/model"
	"askthecity/provider/testutil"
)

type recorder struct {
	events []model.StreamEvent
}

func (r *recorder) emit(ev model.StreamEvent) error {
	r.events = append(r.events, ev)
	return nil
}

func (r *recorder) text() string {
	var b strings.Builder
	for _, ev := range r.events {
		b.WriteString(ev.Chunk)
	}
	return b.String()
}

func (r *recorder) count(match func(model.StreamEvent) bool) int {
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func isToolCall(ev model.StreamEvent) bool { return ev.ToolCall != nil }
func isChunk(ev model.StreamEvent) bool    { return ev.Chunk != "" }

func populationTurn() Turn {
	return Turn{
		Prompt:             "What is the population of Toronto?",
		SystemInstructions: "You answer questions about Toronto open data.",
		History:            testutil.TestHistory(),
	}
}

func TestRunTextOnly(t *testing.T) {
	p := testutil.NewScriptedProvider("m", append(
		testutil.TextDeltas("Toronto ", "has about ", "2.8 million people."),
		model.Delta{Metadata: &model.Metadata{FinishReason: "stop"}},
	))
	o := &Orchestrator{Provider: p}

	var rec recorder
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := rec.text(); got != "Toronto has about 2.8 million people." {
		t.Errorf("text: %q", got)
	}
	for i, ev := range rec.events[:3] {
		if !isChunk(ev) {
			t.Errorf("event %d should be a chunk: %+v", i, ev)
		}
	}
	if rec.count(func(ev model.StreamEvent) bool { return ev.IsMcp }) != 0 {
		t.Error("isMcp announced without a session")
	}

	calls := p.Calls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 generation call, got %d", len(calls))
	}
	if calls[0].Tools != nil {
		t.Error("tools offered without a session")
	}
	msgs := calls[0].Messages
	if len(msgs) != 4 {
		t.Fatalf("expected history plus prompt, got %d messages", len(msgs))
	}
	if msgs[0].Role != model.GenRoleModel || msgs[1].Role != model.GenRoleUser {
		t.Errorf("history roles not translated: %q %q", msgs[0].Role, msgs[1].Role)
	}
	if msgs[3].Content != "What is the population of Toronto?" {
		t.Errorf("prompt not last: %+v", msgs[3])
	}
	if calls[0].System != "You answer questions about Toronto open data." {
		t.Errorf("system instruction: %q", calls[0].System)
	}
}

func TestRunToolCallScenario(t *testing.T) {
	p := testutil.NewScriptedProvider("m",
		[]model.Delta{testutil.ToolCallDelta("c1", "find_relevant_datasets", map[string]any{"query": "population"})},
		testutil.TextDeltas("The Neighbourhood Profiles ", "dataset has population counts."),
	)
	session := testutil.NewMockSession(map[string]string{
		"find_relevant_datasets": `[{"name":"Neighbourhood Profiles"}]`,
	})
	o := &Orchestrator{Provider: p, Session: session}

	var rec recorder
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if !rec.events[0].IsMcp {
		t.Errorf("first event should announce tools: %+v", rec.events[0])
	}

	toolIdx, firstChunk := -1, -1
	for i, ev := range rec.events {
		if ev.IsError() {
			t.Fatalf("unexpected error event: %+v", ev)
		}
		if isToolCall(ev) && toolIdx < 0 {
			toolIdx = i
		}
		if isChunk(ev) && firstChunk < 0 {
			firstChunk = i
		}
	}
	if toolIdx < 0 || firstChunk < 0 || toolIdx > firstChunk {
		t.Fatalf("expected tool_call before chunks, got tool=%d chunk=%d", toolIdx, firstChunk)
	}
	tc := rec.events[toolIdx].ToolCall
	if tc.Name != "find_relevant_datasets" || tc.Args["query"] != "population" {
		t.Errorf("tool_call event: %+v", tc)
	}
	if rec.count(isToolCall) != 1 {
		t.Errorf("expected exactly one tool_call event")
	}

	// function call and response both land in metadata
	merged := &model.Metadata{}
	for _, ev := range rec.events {
		merged.Merge(ev.Metadata)
	}
	if len(merged.FunctionCalls) != 2 || !merged.FunctionCalls[1].IsResponse() {
		t.Errorf("function call metadata: %+v", merged.FunctionCalls)
	}

	inv := session.Invocations()
	if len(inv) != 1 || inv[0].Args["query"] != "population" {
		t.Errorf("tool invocations: %+v", inv)
	}

	calls := p.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 generation calls, got %d", len(calls))
	}
	if len(calls[0].Tools) != 2 {
		t.Errorf("tools not attached to first round")
	}
	second := calls[1].Messages
	n := len(second)
	if second[n-2].Role != model.GenRoleModel || len(second[n-2].ToolCalls) != 1 {
		t.Errorf("model tool-call turn missing: %+v", second[n-2])
	}
	if second[n-1].Role != model.GenRoleTool || second[n-1].ToolCallID != "c1" || !strings.Contains(second[n-1].Content, "Neighbourhood Profiles") {
		t.Errorf("function-response turn missing: %+v", second[n-1])
	}

	if got := rec.text(); got != "The Neighbourhood Profiles dataset has population counts." {
		t.Errorf("text: %q", got)
	}
}

func TestRunHonorsOnlyFirstToolCall(t *testing.T) {
	batch := model.Delta{ToolCalls: []model.ToolCall{
		{Name: "find_relevant_datasets", Arguments: map[string]any{"query": "parks"}},
		{Name: "get_dataset_info", Arguments: map[string]any{"dataset_id": "parks"}},
	}}
	p := testutil.NewScriptedProvider("m", []model.Delta{batch}, testutil.TextDeltas("Done."))
	session := testutil.NewMockSession(map[string]string{
		"find_relevant_datasets": "parks",
		"get_dataset_info":       "info",
	})

	var rec recorder
	o := &Orchestrator{Provider: p, Session: session}
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	inv := session.Invocations()
	if len(inv) != 1 || inv[0].Name != "find_relevant_datasets" {
		t.Errorf("expected only the first call to run, got %+v", inv)
	}

	// a missing vendor ID is filled in so the response turn can reference it
	msgs := p.Calls()[1].Messages
	if id := msgs[len(msgs)-1].ToolCallID; !strings.HasPrefix(id, "call_") {
		t.Errorf("synthetic call ID: %q", id)
	}
}

func TestRunToolFailure(t *testing.T) {
	p := testutil.NewScriptedProvider("m",
		[]model.Delta{testutil.ToolCallDelta("c1", "find_relevant_datasets", map[string]any{"query": "x"})},
	)
	session := testutil.NewMockSession(nil)

	var rec recorder
	o := &Orchestrator{Provider: p, Session: session}
	err := o.Run(context.Background(), populationTurn(), rec.emit)
	if err == nil || !strings.Contains(err.Error(), "find_relevant_datasets") {
		t.Fatalf("expected tool error, got %v", err)
	}
	if len(p.Calls()) != 1 {
		t.Errorf("generation should stop after a tool failure")
	}
}

func TestRunWithholdsToolsOnLastRound(t *testing.T) {
	call := testutil.ToolCallDelta("c1", "find_relevant_datasets", map[string]any{"query": "x"})
	p := testutil.NewScriptedProvider("m", []model.Delta{call}, []model.Delta{call, {Text: "Giving up on tools."}})
	session := testutil.NewMockSession(map[string]string{"find_relevant_datasets": "[]"})

	var rec recorder
	o := &Orchestrator{Provider: p, Session: session, MaxToolRounds: 2}
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}

	calls := p.Calls()
	if len(calls) != 2 {
		t.Fatalf("expected 2 rounds, got %d", len(calls))
	}
	if calls[1].Tools != nil {
		t.Error("tools offered on the last round")
	}
	if len(session.Invocations()) != 1 {
		t.Errorf("tool call on the last round should be ignored")
	}
	if rec.text() != "Giving up on tools." {
		t.Errorf("text: %q", rec.text())
	}
}

func TestRunGenerationTimeout(t *testing.T) {
	p := testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	}

	var rec recorder
	o := &Orchestrator{Provider: p, GenerationTimeout: 50 * time.Millisecond}

	start := time.Now()
	err := o.Run(context.Background(), populationTurn(), rec.emit)
	if !errors.Is(err, ErrGenerationTimeout) {
		t.Fatalf("expected ErrGenerationTimeout, got %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout not honoured: %s", elapsed)
	}
	if len(rec.events) != 0 {
		t.Errorf("no events expected, got %+v", rec.events)
	}
}

func TestRunSlowStreamAfterFirstDelta(t *testing.T) {
	p := testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
		if err := callback(model.Delta{Text: "first "}); err != nil {
			return err
		}
		select {
		case <-time.After(120 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return callback(model.Delta{Text: "second"})
	}

	var rec recorder
	o := &Orchestrator{Provider: p, GenerationTimeout: 30 * time.Millisecond}
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("only the first delta is bounded, got %v", err)
	}
	if rec.text() != "first second" {
		t.Errorf("text: %q", rec.text())
	}
}

func TestRunToolCallRoundNotBoundedAfterStart(t *testing.T) {
	rounds := 0
	p := testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
		rounds++
		if rounds > 1 {
			return callback(model.Delta{Text: "Found it."})
		}
		// stream started, tool call only known at the end
		if err := callback(model.Delta{}); err != nil {
			return err
		}
		select {
		case <-time.After(120 * time.Millisecond):
		case <-ctx.Done():
			return ctx.Err()
		}
		return callback(testutil.ToolCallDelta("c1", "find_relevant_datasets", map[string]any{"query": "parks"}))
	}
	session := testutil.NewMockSession(map[string]string{"find_relevant_datasets": "[]"})

	var rec recorder
	o := &Orchestrator{Provider: p, Session: session, GenerationTimeout: 30 * time.Millisecond}
	if err := o.Run(context.Background(), populationTurn(), rec.emit); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if rec.count(isToolCall) != 1 || rec.text() != "Found it." {
		t.Errorf("events: %+v", rec.events)
	}
}

func TestRunMidStreamError(t *testing.T) {
	boom := errors.New("upstream reset")
	p := testutil.NewMockProvider("m")
	p.ChatWithToolsFunc = func(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, callback model.StreamCallback) error {
		if err := callback(model.Delta{Text: "partial"}); err != nil {
			return err
		}
		return boom
	}

	var rec recorder
	o := &Orchestrator{Provider: p}
	if err := o.Run(context.Background(), populationTurn(), rec.emit); !errors.Is(err, boom) {
		t.Fatalf("expected upstream error, got %v", err)
	}
	if rec.text() != "partial" {
		t.Errorf("text: %q", rec.text())
	}
}

func TestRunEmitFailureAborts(t *testing.T) {
	p := testutil.NewScriptedProvider("m", testutil.TextDeltas("a", "b", "c"))
	gone := errors.New("client disconnected")

	sent := 0
	o := &Orchestrator{Provider: p}
	err := o.Run(context.Background(), populationTurn(), func(ev model.StreamEvent) error {
		sent++
		return gone
	})
	if !errors.Is(err, gone) {
		t.Fatalf("expected emit error, got %v", err)
	}
	if sent != 1 {
		t.Errorf("stream continued after emit failure: %d sends", sent)
	}
}
