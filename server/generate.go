package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"askthecity/config"
	"askthecity/mcp"
	"askthecity/model"
	"askthecity/provider"
	"askthecity/relay"
	"askthecity/sse"
)

const (
	msgInvalidBody       = "Invalid request body"
	msgPromptRequired    = "Prompt is required"
	msgSystemRequired    = "System instructions are required"
	msgMissingAPIKey     = "Server configuration error: Missing API key"
	msgServerMisconfig   = "Server configuration error"
	msgGenerationFailure = "Failed to generate response"
)

type generateRequest struct {
	Prompt             string              `json:"prompt" binding:"required"`
	SystemInstructions string              `json:"systemInstructions" binding:"required"`
	History            []model.ChatMessage `json:"history"`
}

// fieldMessages maps request fields to the message returned when they are
// missing.
var fieldMessages = map[string]string{
	"Prompt":             msgPromptRequired,
	"SystemInstructions": msgSystemRequired,
}

// bindingMessage turns a bind error into the client-facing message.
func bindingMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if msg, ok := fieldMessages[verrs[0].Field()]; ok {
			return msg
		}
	}
	return msgInvalidBody
}

// Generate handles POST /api/generate. Validation and configuration
// failures are plain JSON errors; once the stream starts the response is
// always 200 and failures travel as a single error frame.
func (s *Server) Generate(c *gin.Context) {
	reqID := c.GetString(requestIDKey)

	var req generateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Server] %s: rejected request: %v", reqID, err)
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": bindingMessage(err)})
		return
	}

	p, err := s.deps.NewProvider(s.cfg)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Server] %s: provider setup failed: %v", reqID, err)
		}
		msg := msgServerMisconfig
		if errors.Is(err, provider.ErrMissingAPIKey) {
			msg = msgMissingAPIKey
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
		return
	}

	ctx := c.Request.Context()

	var session mcp.Session
	if s.deps.Connector != nil {
		session, err = mcp.ConnectWithTimeout(ctx, s.deps.Connector, s.cfg.ConnectTimeout())
		if err != nil {
			// Degrade to a tool-less turn.
			if config.DebugLog != nil {
				config.DebugLog.Printf("[Server] %s: tool proxy unavailable, continuing without tools: %v", reqID, err)
			}
			session = nil
		}
	}
	if session != nil {
		defer func() {
			if err := mcp.CloseWithTimeout(session, sessionCloseTimeout); err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[Server] %s: closing tool session: %v", reqID, err)
			}
		}()
	}

	sse.SetHeaders(c.Writer.Header())
	c.Status(http.StatusOK)
	w, err := sse.NewWriter(c.Writer)
	if err != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Server] %s: %v", reqID, err)
		}
		return
	}

	var emitted bool
	var writeErr error
	emit := func(ev model.StreamEvent) error {
		if err := w.Send(ev); err != nil {
			writeErr = err
			return err
		}
		if ev.Chunk != "" {
			emitted = true
		}
		return nil
	}

	orch := &relay.Orchestrator{
		Provider:          p,
		Session:           session,
		GenerationTimeout: s.cfg.GenerationTimeout(),
		MaxToolRounds:     s.cfg.Generation.MaxToolRounds,
	}

	turn := relay.Turn{
		Prompt:             req.Prompt,
		SystemInstructions: req.SystemInstructions,
		History:            req.History,
	}

	err = orch.Run(ctx, turn, emit)
	if err == nil {
		return
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Server] %s: generation failed (emitted=%v): %v", reqID, emitted, err)
	}
	if writeErr != nil {
		// Client is gone.
		return
	}

	kind := relay.Classify(err, emitted)
	if err := w.Send(model.ErrorEvent(msgGenerationFailure, err.Error(), kind)); err != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[Server] %s: writing error frame: %v", reqID, err)
	}
}
