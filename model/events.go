package model

// ErrorKind tells the client whether a failed turn is worth retrying.
type ErrorKind string

const (
	ErrorKindRetryable ErrorKind = "RETRYABLE_TRANSPORT"
	ErrorKindFatal     ErrorKind = "FATAL"
)

// StreamEvent is one frame of the generate event-stream. Exactly one of the
// payload groups is set per frame.
type StreamEvent struct {
	Chunk    string         `json:"chunk,omitempty"`
	Error    string         `json:"error,omitempty"`
	Details  string         `json:"details,omitempty"`
	Kind     ErrorKind      `json:"kind,omitempty"`
	IsMcp    bool           `json:"isMcp,omitempty"`
	ToolCall *ToolCallEvent `json:"tool_call,omitempty"`
	Metadata *Metadata      `json:"metadata,omitempty"`
}

// ToolCallEvent announces that the model asked for a tool and the relay is
// running it.
type ToolCallEvent struct {
	Name string         `json:"name"`
	Args map[string]any `json:"args,omitempty"`
}

// IsError reports whether the frame carries a failure.
func (e StreamEvent) IsError() bool {
	return e.Error != ""
}

func ChunkEvent(text string) StreamEvent {
	return StreamEvent{Chunk: text}
}

func ErrorEvent(message, details string, kind ErrorKind) StreamEvent {
	return StreamEvent{Error: message, Details: details, Kind: kind}
}
