// Package server exposes workflow runs over HTTP and MCP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"

	"github.com/hupe1980/agentflow/logging"
	"github.com/hupe1980/agentflow/runner"
)

// Asker runs one workflow for a user prompt. *runner.Runner implements it.
type Asker interface {
	Ask(ctx context.Context, prompt string) (*runner.Report, error)
}

// Options configure the Server.
type Options struct {
	Version        string
	AllowedOrigins []string // empty = allow all
	ReadTimeout    time.Duration
	WriteTimeout   time.Duration
	EnableMCP      bool
	Logger         logging.Logger
}

// Server serves the agent API, the health probe and the MCP endpoint.
type Server struct {
	echo   *echo.Echo
	asker  Asker
	opts   Options
	logger logging.Logger
}

// New creates a Server and registers its routes.
func New(asker Asker, optFns ...func(o *Options)) *Server {
	opts := Options{
		Version:   "dev",
		EnableMCP: true,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Server.ReadTimeout = opts.ReadTimeout
	e.Server.WriteTimeout = opts.WriteTimeout

	s := &Server{
		echo:   e,
		asker:  asker,
		opts:   opts,
		logger: opts.Logger,
	}

	e.Use(middleware.Recover())
	e.Use(s.requestLogger())
	e.Use(middleware.CORSWithConfig(corsConfig(opts.AllowedOrigins)))

	e.GET("/health", s.Health)
	e.POST("/api/agent", s.Agent)

	if opts.EnableMCP {
		mountMCP(e, NewMCPServer(asker, opts.Version, opts.Logger))
	}

	return s
}

func corsConfig(origins []string) middleware.CORSConfig {
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return middleware.CORSConfig{
		AllowOrigins: origins,
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{echo.HeaderContentType},
	}
}

func (s *Server) requestLogger() echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogValuesFunc: func(_ echo.Context, v middleware.RequestLoggerValues) error {
			s.logger.Debug("server.request",
				"method", v.Method,
				"uri", v.URI,
				"status", v.Status,
				"latency_ms", v.Latency.Milliseconds(),
			)
			return nil
		},
	})
}

// Handler returns the underlying http.Handler.
func (s *Server) Handler() http.Handler { return s.echo }

// Start listens on addr until Shutdown is called.
func (s *Server) Start(addr string) error {
	s.logger.Info("server.started", "addr", addr, "mcp", s.opts.EnableMCP)

	if err := s.echo.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops accepting connections and waits for in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("server.shutdown")
	return s.echo.Shutdown(ctx)
}
