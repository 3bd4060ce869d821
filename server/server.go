// Package server exposes the generate endpoint over HTTP.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"askthecity/config"
	"askthecity/mcp"
	"askthecity/model"
	"askthecity/provider"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "request_id"

	sessionCloseTimeout = time.Second
	healthPingTimeout   = 5 * time.Second
	shutdownTimeout     = 10 * time.Second
)

// Deps are the collaborators a request needs. Both are swapped out in tests.
type Deps struct {
	// NewProvider builds the generation provider for one request.
	NewProvider func(cfg *config.Config) (model.Provider, error)

	// Connector opens the tool-proxy session. Nil disables tools.
	Connector mcp.Connector
}

// DefaultDeps wires the configured provider and tool proxy.
func DefaultDeps(cfg *config.Config) (Deps, error) {
	deps := Deps{NewProvider: provider.FromConfig}
	if !cfg.ToolsEnabled() {
		return deps, nil
	}

	connector, err := mcp.NewConnector(mcp.ConfigFromApp(cfg))
	if err != nil {
		return Deps{}, fmt.Errorf("failed to configure tool proxy: %w", err)
	}
	deps.Connector = connector
	return deps, nil
}

type Server struct {
	cfg  *config.Config
	deps Deps
}

// New returns the gin engine serving the API.
func New(cfg *config.Config, deps Deps) *gin.Engine {
	if deps.NewProvider == nil {
		deps.NewProvider = provider.FromConfig
	}
	s := &Server{cfg: cfg, deps: deps}

	r := gin.New()
	r.Use(gin.Recovery(), requestID())
	if config.DebugLog != nil {
		r.Use(gin.LoggerWithWriter(config.DebugLog.Writer()))
	}

	api := r.Group("/api")
	{
		api.POST("/generate", s.Generate)
		api.GET("/health", s.Health)
	}
	return r
}

// Run serves until ctx is cancelled, then drains in-flight streams.
func Run(ctx context.Context, cfg *config.Config, deps Deps) error {
	srv := &http.Server{
		Addr:    cfg.Server.Listen,
		Handler: New(cfg, deps),
	}

	errCh := make(chan error, 1)
	go func() {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[Server] Listening on %s", cfg.Server.Listen)
		}
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}
	return nil
}

func requestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Header(requestIDHeader, id)
		c.Next()
	}
}

// Health reports liveness. With ?deep=1 it also pings the provider.
func (s *Server) Health(c *gin.Context) {
	body := gin.H{
		"status":    "healthy",
		"service":   "askthecity",
		"provider":  s.cfg.Generation.Provider,
		"tools":     s.deps.Connector != nil,
		"timestamp": time.Now(),
	}

	if c.Query("deep") != "1" {
		c.JSON(http.StatusOK, body)
		return
	}

	p, err := s.deps.NewProvider(s.cfg)
	if err == nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), healthPingTimeout)
		defer cancel()
		err = p.Ping(ctx)
	}
	if err != nil {
		body["status"] = "unhealthy"
		body["error"] = err.Error()
		c.JSON(http.StatusServiceUnavailable, body)
		return
	}
	body["model"] = p.GetModel()
	c.JSON(http.StatusOK, body)
}
