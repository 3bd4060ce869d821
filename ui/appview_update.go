package ui

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"

	"askthecity/config"
	"askthecity/model"
)

// writeClipboard is swapped out in tests.
var writeClipboard = clipboard.WriteAll

const statusDuration = 3 * time.Second

func (a AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		cmd  tea.Cmd
		cmds []tea.Cmd
	)

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height

		// Title (1), separator (1), textarea (3), status bar (1)
		a.viewport.Width = a.width
		a.viewport.Height = max(a.height-6, 1)
		a.textarea.SetWidth(a.width)

		a.ready = true
		a.updateViewportContent(true)
		return a, nil

	case spinner.TickMsg:
		a.spinner, cmd = a.spinner.Update(msg)
		if a.sending && a.client.Conversation().RunningTool() != "" {
			a.updateViewportContent(true)
		}
		return a, cmd

	case conversationUpdatedMsg:
		a.updateViewportContent(true)
		return a, a.waitForUpdate()

	case sendDoneMsg:
		a.sending = false
		if a.cancel != nil {
			a.cancel()
			a.cancel = nil
		}
		a.updateViewportContent(true)
		if msg.Err != nil && !errors.Is(msg.Err, context.Canceled) {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[UI] Send failed: %v", msg.Err)
			}
			return a, a.setStatus("Request failed: "+msg.Err.Error(), true)
		}
		return a, nil

	case statusClearMsg:
		if msg.Seq == a.statusSeq {
			a.status = ""
			a.statusIsErr = false
		}
		return a, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "esc", "ctrl+c":
			if a.cancel != nil {
				a.cancel()
			}
			return a, tea.Quit

		case "enter":
			return a, a.send()

		case "ctrl+r":
			return a, a.reset()

		case "ctrl+y":
			return a, a.copyFunctionCalls()

		case "pgup", "pgdown":
			a.viewport, cmd = a.viewport.Update(msg)
			return a, cmd
		}
	}

	a.textarea, cmd = a.textarea.Update(msg)
	cmds = append(cmds, cmd)
	a.viewport, cmd = a.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return a, tea.Batch(cmds...)
}

// send starts streaming a reply to the textarea contents.
func (a *AppView) send() tea.Cmd {
	text := strings.TrimSpace(a.textarea.Value())
	if text == "" || a.sending {
		return nil
	}
	a.textarea.Reset()
	a.sending = true

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel

	c := a.client
	notify := a.notify
	return func() tea.Msg {
		return sendDoneMsg{Err: c.Send(ctx, text, notify)}
	}
}

// reset abandons any reply in flight and restores the welcome messages.
func (a *AppView) reset() tea.Cmd {
	if a.cancel != nil {
		a.cancel()
	}
	a.client.Conversation().Reset()
	a.textarea.Reset()
	a.updateViewportContent(true)
	return a.setStatus("Conversation reset", false)
}

// copyFunctionCalls copies the function calls of the latest reply as JSON.
func (a *AppView) copyFunctionCalls() tea.Cmd {
	msgs := a.client.Conversation().Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role != model.RoleAssistant || msgs[i].Metadata == nil || len(msgs[i].Metadata.FunctionCalls) == 0 {
			continue
		}
		text, err := functionCallsJSON(msgs[i].Metadata.FunctionCalls)
		if err == nil {
			err = writeClipboard(text)
		}
		if err != nil {
			return a.setStatus("Copy failed: "+err.Error(), true)
		}
		return a.setStatus(fmt.Sprintf("Copied %d function call records", len(msgs[i].Metadata.FunctionCalls)), false)
	}
	return a.setStatus("No function calls to copy", false)
}

func functionCallsJSON(calls []model.FunctionCallRecord) (string, error) {
	b, err := json.MarshalIndent(calls, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func (a *AppView) setStatus(text string, isErr bool) tea.Cmd {
	a.statusSeq++
	a.status = text
	a.statusIsErr = isErr
	seq := a.statusSeq
	return tea.Tick(statusDuration, func(time.Time) tea.Msg {
		return statusClearMsg{Seq: seq}
	})
}
