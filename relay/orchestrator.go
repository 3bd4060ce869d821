// Package relay runs one chat turn against a generation provider, handing
// tool calls to the tool proxy and re-emitting everything as stream events.
package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"askthecity/config"
	"askthecity/mcp"
	"askthecity/model"
)

const (
	DefaultGenerationTimeout = 30 * time.Second
	DefaultMaxToolRounds     = 5
)

// Turn is one validated chat request.
type Turn struct {
	Prompt             string
	SystemInstructions string
	History            []model.ChatMessage
}

// Emitter writes one event to the client. An error aborts the turn.
type Emitter func(ev model.StreamEvent) error

// Orchestrator drives the generation/tool loop for a single request. It
// holds no state between requests.
type Orchestrator struct {
	Provider model.Provider

	// Session is nil when the tool proxy is disabled or unreachable; the
	// turn then runs without tool declarations.
	Session mcp.Session

	// GenerationTimeout bounds the wait for the first delta of every
	// generation call. Total streaming time is not bounded.
	GenerationTimeout time.Duration

	// MaxToolRounds caps generation calls per turn. Tools are withheld on
	// the last round so the model has to answer in text.
	MaxToolRounds int
}

// Run streams the reply to turn through emit. Chunk events are emitted in
// arrival order. Run never emits error events; the caller reports the
// returned error.
func (o *Orchestrator) Run(ctx context.Context, turn Turn, emit Emitter) error {
	messages := append(model.FormatHistory(turn.History), model.Message{
		Role:    model.GenRoleUser,
		Content: turn.Prompt,
	})

	var tools []mcptypes.Tool
	if o.Session != nil {
		tools = o.Session.Tools()
	}
	if len(tools) > 0 {
		if err := emit(model.StreamEvent{IsMcp: true}); err != nil {
			return err
		}
	}

	maxRounds := o.MaxToolRounds
	if maxRounds < 1 {
		maxRounds = DefaultMaxToolRounds
	}

	for round := 0; round < maxRounds; round++ {
		roundTools := tools
		if round == maxRounds-1 {
			roundTools = nil
		}

		res, err := o.generate(ctx, turn.SystemInstructions, messages, roundTools, emit)
		if err != nil {
			return err
		}
		if res.call == nil {
			return nil
		}

		call := *res.call
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Relay] Round %d: tool call %s(%v)", round+1, call.Name, call.Arguments)
		}

		if err := emit(model.StreamEvent{
			ToolCall: &model.ToolCallEvent{Name: call.Name, Args: call.Arguments},
			Metadata: &model.Metadata{FunctionCalls: []model.FunctionCallRecord{{Name: call.Name, Args: call.Arguments}}},
		}); err != nil {
			return err
		}

		result, err := o.Session.CallTool(ctx, call.Name, call.Arguments)
		if err != nil {
			return fmt.Errorf("tool %s failed: %w", call.Name, err)
		}

		if err := emit(model.StreamEvent{
			Metadata: &model.Metadata{FunctionCalls: []model.FunctionCallRecord{{Name: call.Name, Response: result}}},
		}); err != nil {
			return err
		}

		messages = append(messages,
			model.Message{Role: model.GenRoleModel, Content: res.text, ToolCalls: []model.ToolCall{call}},
			model.Message{Role: model.GenRoleTool, Content: result, ToolCallID: call.ID, ToolName: call.Name},
		)
	}

	return nil
}

type roundResult struct {
	text string
	call *model.ToolCall
}

// generate runs one generation call. Text deltas are emitted until the
// first tool call is seen; later text and additional calls are dropped.
func (o *Orchestrator) generate(ctx context.Context, system string, messages []model.Message, tools []mcptypes.Tool, emit Emitter) (roundResult, error) {
	var res roundResult
	var text strings.Builder

	timeout := o.GenerationTimeout
	if timeout <= 0 {
		timeout = DefaultGenerationTimeout
	}

	genCtx, wd := startWatchdog(ctx, timeout)
	defer wd.stop()

	err := o.Provider.ChatWithTools(genCtx, system, messages, tools, func(d model.Delta) error {
		wd.delivered()

		if d.Text != "" && res.call == nil {
			text.WriteString(d.Text)
			if err := emit(model.ChunkEvent(d.Text)); err != nil {
				return err
			}
		}

		if len(d.ToolCalls) > 0 {
			if res.call != nil || len(tools) == 0 {
				logIgnoredCalls(d.ToolCalls, len(tools) == 0)
			} else {
				call := d.ToolCalls[0]
				if call.ID == "" {
					call.ID = "call_" + uuid.NewString()
				}
				if call.Arguments == nil {
					call.Arguments = map[string]any{}
				}
				res.call = &call
				if len(d.ToolCalls) > 1 {
					logIgnoredCalls(d.ToolCalls[1:], false)
				}
			}
		}

		if !d.Metadata.IsEmpty() {
			if err := emit(model.StreamEvent{Metadata: d.Metadata}); err != nil {
				return err
			}
		}
		return nil
	})

	if wd.timedOut() {
		return res, fmt.Errorf("%w after %s", ErrGenerationTimeout, timeout)
	}
	if err != nil {
		return res, err
	}

	res.text = text.String()
	return res, nil
}

func logIgnoredCalls(calls []model.ToolCall, noTools bool) {
	if config.DebugLog == nil {
		return
	}
	for _, c := range calls {
		if noTools {
			config.DebugLog.Printf("[Relay] Ignoring tool call %s: no tools offered this round", c.Name)
			continue
		}
		config.DebugLog.Printf("[Relay] Ignoring additional tool call %s: only the first call per round is run", c.Name)
	}
}
