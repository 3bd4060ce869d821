package client

import (
	"fmt"
	"sync"

	"askthecity/model"
)

const (
	WelcomeGreeting = "Hi there! Welcome to CivicFlowTO!"
	WelcomePrompt   = "What would you like to know about Toronto and its [open data](https://www.toronto.ca/city-government/data-research-maps/open-data/)?"

	// FailureMessage replaces the reply when a send fails for good.
	FailureMessage = "An error occurred. Please try again later."
)

// WelcomeMessages returns the messages a new conversation starts with.
func WelcomeMessages() []model.ChatMessage {
	return []model.ChatMessage{
		{Role: model.RoleAssistant, Content: WelcomeGreeting},
		{Role: model.RoleAssistant, Content: WelcomePrompt},
	}
}

// ToolIndicator is the transient reply text shown while a tool runs.
func ToolIndicator(name string) string {
	return fmt.Sprintf("🔧 Running %s...", name)
}

// Conversation is the ordered chat shown to the user. It is append-only
// except for the reply currently being streamed, and Reset.
type Conversation struct {
	mu       sync.RWMutex
	messages []model.ChatMessage
	gen      int    // bumped by Reset; stale turns stop writing
	tool     string // tool whose indicator is showing, if any
}

// turn addresses the placeholder reply of one send.
type turn struct {
	gen int
	idx int
}

func NewConversation() *Conversation {
	return &Conversation{messages: WelcomeMessages()}
}

// Messages returns a snapshot safe to read while a reply streams.
func (c *Conversation) Messages() []model.ChatMessage {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return snapshot(c.messages)
}

func (c *Conversation) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// Last returns the most recent message.
func (c *Conversation) Last() (model.ChatMessage, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if len(c.messages) == 0 {
		return model.ChatMessage{}, false
	}
	return snapshot(c.messages[len(c.messages)-1:])[0], true
}

// RunningTool returns the tool whose indicator is showing, or "".
func (c *Conversation) RunningTool() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.tool
}

// Reset restores the welcome messages. A reply still streaming into the
// old conversation is discarded.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = WelcomeMessages()
	c.tool = ""
	c.gen++
}

// begin appends the user message and an empty reply. It returns the
// history as it was before the append.
func (c *Conversation) begin(text string) ([]model.ChatMessage, turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := snapshot(c.messages)
	c.messages = append(c.messages,
		model.ChatMessage{Role: model.RoleUser, Content: text},
		model.ChatMessage{Role: model.RoleAssistant},
	)
	c.tool = ""
	return history, turn{gen: c.gen, idx: len(c.messages) - 1}
}

// update applies fn to the turn's reply unless the conversation was reset.
func (c *Conversation) update(t turn, fn func(m *model.ChatMessage)) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.gen != c.gen || t.idx >= len(c.messages) {
		return false
	}
	fn(&c.messages[t.idx])
	return true
}

func (c *Conversation) appendText(t turn, text string) bool {
	return c.update(t, func(m *model.ChatMessage) {
		if c.tool != "" {
			m.Content = ""
			c.tool = ""
		}
		m.Content += text
	})
}

func (c *Conversation) showTool(t turn, name string) bool {
	return c.update(t, func(m *model.ChatMessage) {
		c.tool = name
		m.Content = ToolIndicator(name)
	})
}

func (c *Conversation) mergeMetadata(t turn, md *model.Metadata) bool {
	return c.update(t, func(m *model.ChatMessage) {
		m.Metadata = model.MergeMetadata(m.Metadata, md)
	})
}

// restart clears the reply before a retry.
func (c *Conversation) restart(t turn) bool {
	return c.update(t, func(m *model.ChatMessage) {
		m.Content = ""
		m.Metadata = nil
		c.tool = ""
	})
}

func (c *Conversation) fail(t turn) bool {
	return c.update(t, func(m *model.ChatMessage) {
		m.Content = FailureMessage
		c.tool = ""
	})
}

func snapshot(msgs []model.ChatMessage) []model.ChatMessage {
	out := make([]model.ChatMessage, len(msgs))
	for i, m := range msgs {
		out[i] = m
		if m.Metadata != nil {
			out[i].Metadata = model.MergeMetadata(m.Metadata, nil)
		}
	}
	return out
}
