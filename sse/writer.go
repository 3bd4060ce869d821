// Package sse implements the generate endpoint's event-stream framing:
// a flushing frame writer for the server and an incremental line decoder
// for clients.
package sse

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"askthecity/model"
)

// ErrClosed is returned by Send after a terminal error frame was written.
var ErrClosed = errors.New("event stream closed")

// SetHeaders applies the streaming response headers.
func SetHeaders(h http.Header) {
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
}

// Writer emits one frame per event and flushes after each, so deltas reach
// the client as soon as they are produced.
type Writer struct {
	w       io.Writer
	flusher http.Flusher
	mu      sync.Mutex
	closed  bool
	frames  int
}

// NewWriter wraps a ResponseWriter. The writer must support flushing.
func NewWriter(w http.ResponseWriter) (*Writer, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, errors.New("streaming unsupported by response writer")
	}
	return &Writer{w: w, flusher: flusher}, nil
}

// Send writes ev as `data: <json>\n\n`. Error events are written as
// `event: error\ndata: <json>\n\n` and close the writer: nothing may follow
// an error frame.
func (w *Writer) Send(ev model.StreamEvent) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to encode event: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return ErrClosed
	}

	if ev.IsError() {
		if _, err := io.WriteString(w.w, "event: error\n"); err != nil {
			return err
		}
		w.closed = true
	}
	if _, err := io.WriteString(w.w, "data: "); err != nil {
		return err
	}
	if _, err := w.w.Write(payload); err != nil {
		return err
	}
	if _, err := io.WriteString(w.w, "\n\n"); err != nil {
		return err
	}
	w.flusher.Flush()
	w.frames++
	return nil
}

// Frames returns how many frames were written.
func (w *Writer) Frames() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.frames
}

// Closed reports whether a terminal error frame was written.
func (w *Writer) Closed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closed
}
