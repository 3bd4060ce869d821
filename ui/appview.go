// Package ui is the terminal chat front end.
package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"askthecity/client"
)

type AppView struct {
	client   *client.Client
	endpoint string

	textarea textarea.Model
	viewport viewport.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool

	// updates carries change notifications from the streaming goroutine.
	updates chan struct{}
	cancel  context.CancelFunc
	sending bool

	status      string
	statusIsErr bool
	statusSeq   int
}

func NewAppView(c *client.Client, endpoint string) AppView {
	ta := textarea.New()
	ta.Placeholder = "Ask about Toronto's open data..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)

	// Alt+Enter for newline, Enter sends
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))

	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ToolStyle

	return AppView{
		client:   c,
		endpoint: endpoint,
		textarea: ta,
		viewport: viewport.New(0, 0),
		spinner:  sp,
		updates:  make(chan struct{}, 1),
	}
}

func (a AppView) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, a.spinner.Tick, a.waitForUpdate())
}

// waitForUpdate turns the next change notification into a message.
func (a AppView) waitForUpdate() tea.Cmd {
	ch := a.updates
	return func() tea.Msg {
		<-ch
		return conversationUpdatedMsg{}
	}
}

// notify never blocks the streaming goroutine; one pending notification
// is enough since the view re-reads the whole conversation.
func (a AppView) notify() {
	select {
	case a.updates <- struct{}{}:
	default:
	}
}

func (a AppView) View() string {
	if !a.ready {
		return "Loading Ask The City..."
	}

	title := TitleStyle.Render("Ask The City") + DimStyle.Render("  "+a.endpoint)
	separator := DimStyle.Render(strings.Repeat("─", max(a.width, 0)))

	return fmt.Sprintf("%s\n%s\n%s\n%s\n%s",
		title,
		a.viewport.View(),
		separator,
		a.textarea.View(),
		a.statusLine(),
	)
}

func (a AppView) statusLine() string {
	if a.status != "" {
		if a.statusIsErr {
			return ErrorStyle.Render(a.status)
		}
		return StatusStyle.Render(a.status)
	}
	if a.sending {
		return StatusStyle.Render(a.spinner.View()+" Streaming...") + "  " + FormatFooter("Ctrl+R", "Reset", "Esc", "Quit")
	}
	return FormatFooter("Enter", "Send", "Alt+Enter", "Newline", "Ctrl+Y", "Copy function calls", "Ctrl+R", "Reset", "Esc", "Quit")
}
