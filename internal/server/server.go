// Package server exposes the bridge over loopback HTTP for a web UI.
package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/princespaghetti/poe2arb/internal/bridge"
	"github.com/princespaghetti/poe2arb/internal/config"
)

const (
	readHeaderTimeout       = 10 * time.Second
	gracefulShutdownTimeout = 10 * time.Second
	maxInvokeBodyBytes      = 1 << 20
)

// Server routes UI requests to the bridge registry.
type Server struct {
	router   *gin.Engine
	registry *bridge.Registry
	logger   *zap.Logger
	cfg      *config.Config
}

// New builds the router. gatherer backs /metrics; nil serves the default registry.
func New(cfg *config.Config, registry *bridge.Registry, gatherer prometheus.Gatherer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(cors.New(cors.Config{
		AllowOrigins:  cfg.CORSOrigins,
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Content-Type", "Accept", "Origin"},
		CustomSchemas: customSchemas(cfg.CORSOrigins),
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/health", s.health)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})))
	invoke := router.Group("/invoke")
	if cfg.RateLimitEnabled {
		invoke.Use(rateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst))
	}
	invoke.POST("/:command", s.invoke)

	s.router = router
	return s
}

// Handler returns the HTTP handler, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run listens on the configured address and serves until ctx is done.
func (s *Server) Run(ctx context.Context) error {
	addr := s.cfg.Addr()
	if !s.cfg.IsLoopback() {
		s.logger.Warn("Invoke server is not bound to loopback", zap.String("addr", addr))
	}

	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve accepts connections on ln until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting invoke server", zap.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	s.logger.Info("Shutting down invoke server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"commands": s.registry.Commands(),
	})
}

func (s *Server) invoke(c *gin.Context) {
	name := c.Param("command")
	if !s.registry.Has(name) {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown command: " + name})
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxInvokeBodyBytes)
	body, err := c.GetRawData()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "read body: " + err.Error()})
		return
	}
	args, err := argsObject(body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	resp, err := s.registry.Invoke(c.Request.Context(), name, args)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// argsObject accepts an empty body or a single JSON object.
func argsObject(body []byte) (json.RawMessage, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if trimmed[0] != '{' || !json.Valid(trimmed) {
		return nil, errors.New("request body must be a JSON object")
	}
	return json.RawMessage(trimmed), nil
}

// customSchemas lists the non-http(s) schemes among origins, e.g. "tauri://".
func customSchemas(origins []string) []string {
	var schemas []string
	for _, origin := range origins {
		scheme, _, ok := strings.Cut(origin, "://")
		if !ok || scheme == "http" || scheme == "https" {
			continue
		}
		if schema := scheme + "://"; !slices.Contains(schemas, schema) {
			schemas = append(schemas, schema)
		}
	}
	return schemas
}

func requestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Debug("HTTP request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)),
		)
	}
}
