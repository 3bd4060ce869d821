package model

// Chat roles as seen by the browser/terminal front end.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Generation roles as seen by the hosted generation API.
const (
	GenRoleUser  = "user"
	GenRoleModel = "model"
	GenRoleTool  = "tool"
)

// ChatMessage represents one entry of the client-side conversation.
// The sequence is append-only during a session and is sent read-only as
// request history.
type ChatMessage struct {
	Role     string    `json:"role"`
	Content  string    `json:"content"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

// Message is a provider-agnostic generation turn.
//
// Model turns that requested a tool carry ToolCalls; tool turns carry the
// ToolCallID and ToolName they answer.
type Message struct {
	Role       string
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	ToolName   string
}

// ToolCall is a structured request from the model to run a named tool.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]any
}

// FormatHistory translates chat history into generation turns.
// Assistant messages become "model" turns; every other role becomes "user".
func FormatHistory(history []ChatMessage) []Message {
	result := make([]Message, 0, len(history))
	for _, msg := range history {
		role := GenRoleUser
		if msg.Role == RoleAssistant {
			role = GenRoleModel
		}
		result = append(result, Message{
			Role:    role,
			Content: msg.Content,
		})
	}
	return result
}
