package ui

// conversationUpdatedMsg signals that the streaming reply changed.
type conversationUpdatedMsg struct{}

// sendDoneMsg is delivered when a send finishes.
type sendDoneMsg struct {
	Err error
}

// statusClearMsg clears a transient status line. Seq guards against
// clearing a newer status.
type statusClearMsg struct {
	Seq int
}
