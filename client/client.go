// Package client consumes the generate event-stream: it keeps the
// conversation, streams replies into it and retries transient failures.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"askthecity/config"
	"askthecity/httpx"
	"askthecity/model"
	"askthecity/sse"
)

var (
	// ErrBusy is returned when a send is attempted while a reply streams.
	ErrBusy = errors.New("a reply is already streaming")

	ErrEmptyMessage = errors.New("message is empty")
)

const maxErrorBody = 64 << 10

// Error is a failed attempt. Kind decides whether the send is retried.
type Error struct {
	Kind    model.ErrorKind
	Status  int
	Message string
	Details string
	Err     error
}

func (e *Error) Error() string {
	var b strings.Builder
	b.WriteString(e.Message)
	if e.Status != 0 {
		fmt.Fprintf(&b, " (status %d)", e.Status)
	}
	if e.Details != "" {
		b.WriteString(": ")
		b.WriteString(e.Details)
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Retryable() bool { return e.Kind == model.ErrorKindRetryable }

type Options struct {
	Endpoint           string
	SystemInstructions string
	MaxRetries         int
	RetryBackoff       time.Duration
	HTTPClient         *http.Client
}

func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Endpoint:           cfg.Client.Endpoint,
		SystemInstructions: cfg.Client.SystemInstructions,
		MaxRetries:         cfg.Client.MaxRetries,
		RetryBackoff:       cfg.RetryBackoff(),
	}
}

// UpdateFunc is called after every visible change to the conversation.
type UpdateFunc func()

type Client struct {
	opts    Options
	http    *http.Client
	conv    *Conversation
	loading atomic.Bool
}

// New returns a client streaming into conv. A nil conv starts a fresh
// conversation.
func New(opts Options, conv *Conversation) *Client {
	if conv == nil {
		conv = NewConversation()
	}
	return &Client{opts: opts, http: httpx.Wrap(opts.HTTPClient), conv: conv}
}

func (c *Client) Conversation() *Conversation { return c.conv }

// Loading reports whether a send is in progress.
func (c *Client) Loading() bool { return c.loading.Load() }

type generateRequest struct {
	Prompt             string              `json:"prompt"`
	SystemInstructions string              `json:"systemInstructions"`
	History            []model.ChatMessage `json:"history"`
}

// Send appends text and a reply placeholder to the conversation and streams
// the reply into the placeholder. Only one send runs at a time. Retryable
// failures restart the whole request with a fresh placeholder; any other
// failure leaves FailureMessage as the reply and is returned.
func (c *Client) Send(ctx context.Context, text string, onUpdate UpdateFunc) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyMessage
	}
	if !c.loading.CompareAndSwap(false, true) {
		return ErrBusy
	}
	defer c.loading.Store(false)

	if onUpdate == nil {
		onUpdate = func() {}
	}

	history, t := c.conv.begin(text)
	onUpdate()

	body, err := json.Marshal(generateRequest{
		Prompt:             text,
		SystemInstructions: c.opts.SystemInstructions,
		History:            history,
	})
	if err != nil {
		c.conv.fail(t)
		onUpdate()
		return fmt.Errorf("failed to encode request: %w", err)
	}

	for attempt := 0; ; attempt++ {
		err := c.attempt(ctx, body, t, onUpdate)
		if err == nil {
			return nil
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Client] Attempt %d failed: %v", attempt+1, err)
		}

		var cerr *Error
		retry := ctx.Err() == nil && errors.As(err, &cerr) && cerr.Retryable() && attempt < c.opts.MaxRetries
		if !retry {
			if c.conv.fail(t) {
				onUpdate()
			}
			return err
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Client] Retrying request (attempt %d/%d)", attempt+1, c.opts.MaxRetries)
		}
		if c.conv.restart(t) {
			onUpdate()
		}

		select {
		case <-time.After(c.opts.RetryBackoff):
		case <-ctx.Done():
			if c.conv.fail(t) {
				onUpdate()
			}
			return ctx.Err()
		}
	}
}

// attempt performs one request and streams its body into the reply.
func (c *Client) attempt(ctx context.Context, body []byte, t turn, onUpdate UpdateFunc) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.opts.Endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return &Error{Kind: model.ErrorKindRetryable, Message: "Request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return statusError(resp)
	}
	if resp.Body == http.NoBody {
		return &Error{Kind: model.ErrorKindFatal, Status: resp.StatusCode, Message: "Response body is empty"}
	}

	return c.consume(ctx, resp.Body, t, onUpdate)
}

// statusError builds the error for a non-200 response. A JSON body is a
// deliberate rejection; a non-JSON 5xx body means the edge runtime itself
// failed, which is worth retrying.
func statusError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))

	var payload struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		return &Error{
			Kind:    model.ErrorKindFatal,
			Status:  resp.StatusCode,
			Message: "Server API failed",
			Details: payload.Error,
		}
	}

	kind := model.ErrorKindFatal
	if resp.StatusCode >= 500 {
		kind = model.ErrorKindRetryable
	}
	return &Error{
		Kind:    kind,
		Status:  resp.StatusCode,
		Message: "Server API failed",
		Details: strings.TrimSpace(string(raw)),
	}
}

// consume decodes the event-stream. Malformed lines are shown as text.
func (c *Client) consume(ctx context.Context, body io.Reader, t turn, onUpdate UpdateFunc) error {
	dec := sse.NewDecoder(body)
	received := false

	for {
		line, err := dec.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			kind := model.ErrorKindFatal
			if !received {
				kind = model.ErrorKindRetryable
			}
			return &Error{Kind: kind, Message: "Stream read failed", Err: err}
		}

		switch line.Kind {
		case sse.LineData:
			received = true
			ev, perr := sse.ParseEvent(line.Value)
			if perr != nil {
				if line.Value != "" && c.conv.appendText(t, line.Value) {
					onUpdate()
				}
				continue
			}
			if err := c.apply(ev, t, onUpdate); err != nil {
				return err
			}
		case sse.LineText:
			received = true
			if c.conv.appendText(t, line.Value+"\n") {
				onUpdate()
			}
		}
	}

	// A cleanly closed stream is final even when it carried nothing.
	if !received {
		return &Error{Kind: model.ErrorKindFatal, Message: "Stream ended unexpectedly"}
	}
	return nil
}

func (c *Client) apply(ev model.StreamEvent, t turn, onUpdate UpdateFunc) error {
	if ev.IsError() {
		kind := ev.Kind
		if kind == "" {
			kind = model.ErrorKindFatal
		}
		return &Error{Kind: kind, Message: ev.Error, Details: ev.Details}
	}

	changed := false
	if ev.IsMcp && config.DebugLog != nil {
		config.DebugLog.Printf("[Client] Tools attached to this turn")
	}
	if ev.ToolCall != nil {
		changed = c.conv.showTool(t, ev.ToolCall.Name) || changed
	}
	if ev.Chunk != "" {
		changed = c.conv.appendText(t, ev.Chunk) || changed
	}
	if !ev.Metadata.IsEmpty() {
		changed = c.conv.mergeMetadata(t, ev.Metadata) || changed
	}
	if changed {
		onUpdate()
	}
	return nil
}
