package ui

import (
	"fmt"
	"regexp"
	"strings"

	"askthecity/client"
	"askthecity/model"
)

var ansiRegex = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func (a *AppView) updateViewportContent(gotoBottom bool) {
	conv := a.client.Conversation()
	msgs := conv.Messages()
	runningTool := conv.RunningTool()

	var content strings.Builder
	for i, msg := range msgs {
		last := i == len(msgs)-1

		if msg.Role == model.RoleUser {
			content.WriteString(formatUserMessage(UserStyle.Render("You"), msg.Content, a.width))
			continue
		}

		body := msg.Content
		switch {
		case last && runningTool != "" && a.sending:
			body = ToolStyle.Render(fmt.Sprintf("%s %s", body, a.spinner.View()))
		case last && body == "" && a.sending:
			body = DimStyle.Render(a.spinner.View() + " Waiting for response...")
		case body == client.FailureMessage:
			body = ErrorStyle.Render(body)
		default:
			body = wrapLines(body, a.width)
		}

		content.WriteString(AssistantStyle.Render("Assistant"))
		content.WriteString("\n")
		content.WriteString(strings.TrimRight(body, "\n"))
		content.WriteString("\n")
		if details := detailsLine(msg.Metadata); details != "" {
			content.WriteString(DimStyle.Render(details))
			content.WriteString("\n")
		}
		content.WriteString("\n")
	}

	a.viewport.SetContent(content.String())
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func formatUserMessage(role, content string, width int) string {
	bar := UserStyle.Render("┃")

	var result strings.Builder
	result.WriteString(fmt.Sprintf("%s %s\n", bar, role))
	for _, line := range strings.Split(content, "\n") {
		result.WriteString(wordWrapWithIndent(line, bar+" ", width))
	}
	result.WriteString("\n")
	return result.String()
}

// detailsLine summarises reply metadata: tools used, finish reason and
// token usage.
func detailsLine(md *model.Metadata) string {
	if md.IsEmpty() {
		return ""
	}

	var parts []string
	var tools []string
	for _, fc := range md.FunctionCalls {
		if !fc.IsResponse() {
			tools = append(tools, fc.Name)
		}
	}
	if len(tools) > 0 {
		parts = append(parts, "tools: "+strings.Join(tools, ", "))
	}
	if md.FinishReason != "" {
		parts = append(parts, "finish: "+md.FinishReason)
	}
	if u := md.UsageMetadata; u != nil {
		parts = append(parts, fmt.Sprintf("tokens: %d in / %d out", u.PromptTokenCount, u.CandidatesTokenCount))
	}
	for _, r := range md.SafetyRatings {
		if r.Blocked {
			parts = append(parts, "blocked: "+r.Category)
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return "  " + strings.Join(parts, " · ")
}

func wrapLines(text string, width int) string {
	var b strings.Builder
	for _, line := range strings.Split(text, "\n") {
		b.WriteString(wordWrapWithIndent(line, "", width))
	}
	return b.String()
}

// wordWrapWithIndent wraps text to maxWidth while preserving indentation for continuation lines
func wordWrapWithIndent(text string, prefix string, maxWidth int) string {
	prefixLen := len(stripANSI(prefix))
	availableWidth := maxWidth - prefixLen

	if availableWidth <= 0 {
		return prefix + text + "\n"
	}

	words := strings.Fields(text)
	if len(words) == 0 {
		return prefix + "\n"
	}

	var result strings.Builder
	var currentLine strings.Builder
	indent := strings.Repeat(" ", prefixLen)
	if prefix != "" {
		indent = prefix
	}
	isFirstLine := true

	flush := func() {
		if isFirstLine {
			result.WriteString(prefix)
			isFirstLine = false
		} else {
			result.WriteString(indent)
		}
		result.WriteString(currentLine.String())
		result.WriteString("\n")
		currentLine.Reset()
	}

	for _, word := range words {
		testLen := currentLine.Len()
		if testLen > 0 {
			testLen++
		}
		testLen += len(word)

		if testLen > availableWidth && currentLine.Len() > 0 {
			flush()
		}
		if currentLine.Len() > 0 {
			currentLine.WriteString(" ")
		}
		currentLine.WriteString(word)
	}
	if currentLine.Len() > 0 {
		flush()
	}

	return result.String()
}

// stripANSI removes ANSI escape codes for accurate length calculation
func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
