package api

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/rs/zerolog"

	"github.com/smarter-sh/smarter/pkg/account"
	"github.com/smarter-sh/smarter/pkg/broker"
	"github.com/smarter-sh/smarter/pkg/log"
	"github.com/smarter-sh/smarter/pkg/metrics"
	"github.com/smarter-sh/smarter/pkg/storage"
)

// contextKey is the echo context key the resolved tenant is stored
// under.
const contextKey = "smarter.context"

// CommandRequest is the JSON body of a command POST. Every field is
// optional; commands that need a manifest fail with a loader error when
// none is supplied. Manifests arrive as inline text only: the server
// never reads files or fetches URLs on a client's behalf.
type CommandRequest struct {
	Manifest   string   `json:"manifest,omitempty"`
	Name       string   `json:"name,omitempty"`
	AllObjects bool     `json:"allObjects,omitempty"`
	Tags       []string `json:"tags,omitempty"`
	Prompt     string   `json:"prompt,omitempty"`
}

// Config carries the server's collaborators and listen settings.
type Config struct {
	Addr     string
	Registry *broker.Registry
	Brokers  broker.Config
	Resolver account.Resolver
	Store    storage.Store
}

// Server is the REST front-end of the command protocol.
type Server struct {
	cfg  Config
	echo *echo.Echo
	log  zerolog.Logger
}

// NewServer builds the server and its routes.
func NewServer(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		log: log.WithComponent("api"),
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(s.requestLogger)

	e.GET("/healthz", s.handleHealth)
	e.GET("/metrics", echo.WrapHandler(metrics.Handler()))

	cli := e.Group("/api/v1/cli", s.authenticate)
	cli.POST("/:command/:kind", s.handleCommand)
	cli.GET("/:command/:kind", s.handleCommand)

	s.echo = e
	return s
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("api server listening")
	err := s.echo.Start(s.cfg.Addr)
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.echo.Shutdown(ctx)
}

// Handler exposes the routing tree, for serving through an external
// listener or an in-process test.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// authenticate resolves the Authorization header into tenant context.
// Both "Token <key>" and "Bearer <key>" schemes are accepted.
func (s *Server) authenticate(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		apiKey := c.Request().Header.Get(echo.HeaderAuthorization)
		for _, scheme := range []string{"Token ", "Bearer "} {
			if strings.HasPrefix(apiKey, scheme) {
				apiKey = strings.TrimPrefix(apiKey, scheme)
				break
			}
		}

		ctx, err := s.cfg.Resolver.Resolve(apiKey)
		if err != nil {
			if errors.Is(err, account.ErrUnauthorized) {
				return c.JSON(http.StatusUnauthorized, map[string]any{
					"error": "invalid or missing API key",
				})
			}
			s.log.Error().Err(err).Msg("failed to resolve API key")
			return c.JSON(http.StatusInternalServerError, map[string]any{
				"error": "authentication backend failure",
			})
		}

		c.Set(contextKey, ctx)
		return next(c)
	}
}

// handleCommand routes one command invocation into the broker registry.
// The registry classifies every failure into the envelope, so the
// handler never sees a raw broker error.
func (s *Server) handleCommand(c echo.Context) error {
	command := c.Param("command")
	kind := c.Param("kind")
	ctx, _ := c.Get(contextKey).(broker.Context)

	var body CommandRequest
	if c.Request().ContentLength > 0 {
		if err := c.Bind(&body); err != nil {
			return c.JSON(http.StatusBadRequest, map[string]any{
				"error": "request body is not valid JSON",
			})
		}
	}
	if name := c.QueryParam("name"); name != "" {
		body.Name = name
	}
	if c.QueryParam("all") == "true" {
		body.AllObjects = true
	}
	if tags := c.QueryParam("tags"); tags != "" {
		body.Tags = strings.Split(tags, ",")
	}

	resp := s.cfg.Registry.Execute(s.cfg.Brokers, ctx, broker.Request{
		Command:    command,
		Kind:       kind,
		Manifest:   []byte(body.Manifest),
		Name:       body.Name,
		AllObjects: body.AllObjects,
		Tags:       body.Tags,
		Prompt:     body.Prompt,
	})
	return c.JSON(resp.StatusCode(), resp)
}

// handleHealth reports liveness plus store reachability.
func (s *Server) handleHealth(c echo.Context) error {
	version, err := s.cfg.Store.SchemaVersion()
	if err != nil {
		return c.JSON(http.StatusServiceUnavailable, map[string]any{
			"status": "unhealthy",
			"error":  err.Error(),
		})
	}
	return c.JSON(http.StatusOK, map[string]any{
		"status":         "ok",
		"schema_version": version,
	})
}

// requestLogger emits one structured line per request.
func (s *Server) requestLogger(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		start := time.Now()
		err := next(c)
		s.log.Info().
			Str("method", c.Request().Method).
			Str("path", c.Request().URL.Path).
			Int("status", c.Response().Status).
			Dur("duration", time.Since(start)).
			Msg("request")
		return err
	}
}
