// ============================================================================
// meinBOT (mBOT) - Chat Command Bot
// ============================================================================
//
// Package:     gateway
// Description: WebSocket gateway: receives chat messages as JSON frames and
//              streams the bot's replies back on the same connection
// Author:      Mike Stoffels
// Created:     2026-09-24
// License:     MIT
// ============================================================================

package gateway

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/msto63/mBOT/foundation/core/log"
	"github.com/msto63/mBOT/pkg/core/health"
	"github.com/msto63/mBOT/pkg/dispatch"
)

// DefaultPlatform is used for messages that do not name a platform
const DefaultPlatform = "websocket"

// Dispatcher routes one inbound message
type Dispatcher interface {
	Dispatch(ctx context.Context, msg dispatch.Message) (bool, error)
}

// Config holds server configuration
type Config struct {
	Host         string
	Port         int
	Path         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig() Config {
	return Config{
		Host:         "127.0.0.1",
		Port:         8765,
		Path:         "/ws",
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Server is the WebSocket gateway server
type Server struct {
	httpServer *http.Server
	dispatcher Dispatcher
	health     *health.Registry
	logger     *log.Logger
	config     Config
	upgrader   websocket.Upgrader
	handler    http.Handler

	conns sync.WaitGroup
}

// New creates a new gateway. healthRegistry may be nil.
func New(cfg Config, dispatcher Dispatcher, healthRegistry *health.Registry, logger *log.Logger) *Server {
	def := DefaultConfig()
	if cfg.Path == "" {
		cfg.Path = def.Path
	}
	if cfg.ReadTimeout <= 0 {
		cfg.ReadTimeout = def.ReadTimeout
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = def.WriteTimeout
	}
	if logger == nil {
		logger = log.GetDefault()
	}

	s := &Server{
		dispatcher: dispatcher,
		health:     healthRegistry,
		logger:     logger.WithField("component", "gateway"),
		config:     cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // clients are bot adapters, not browsers
			},
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc(cfg.Path, s.serveWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	s.handler = loggingMiddleware(s.logger, mux)

	// No server-level read/write timeouts: they would cut long-lived
	// websocket connections. Deadlines are set per frame instead.
	s.httpServer = &http.Server{
		Addr:              s.Address(),
		Handler:           s.handler,
		ReadHeaderTimeout: cfg.ReadTimeout,
	}
	return s
}

// Handler returns the HTTP handler, for embedding and tests
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Start starts the server and blocks until it stops
func (s *Server) Start() error {
	s.logger.Info("starting gateway", log.Fields{"address": s.Address(), "path": s.config.Path})
	if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Stop gracefully stops the server and waits for open connections
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("stopping gateway")
	err := s.httpServer.Shutdown(ctx)

	done := make(chan struct{})
	go func() {
		s.conns.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		s.logger.Warn("connections still open at shutdown")
	}
	return err
}

// Address returns the server address
func (s *Server) Address() string {
	return fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if s.health == nil {
		json.NewEncoder(w).Encode(map[string]string{"status": string(health.StatusHealthy)})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.WriteTimeout)
	defer cancel()
	report := s.health.Check(ctx)
	if report.Status == health.StatusUnhealthy {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(report)
}

// loggingMiddleware adds request logging
func loggingMiddleware(logger *log.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapper := &responseWrapper{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapper, r)

		logger.Debug("HTTP request", log.Fields{
			"method":   r.Method,
			"path":     r.URL.Path,
			"status":   wrapper.statusCode,
			"duration": time.Since(start).String(),
		})
	})
}

// responseWrapper wraps http.ResponseWriter to capture status code
type responseWrapper struct {
	http.ResponseWriter
	statusCode int
}

func (w *responseWrapper) WriteHeader(code int) {
	w.statusCode = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack implements http.Hijacker for the websocket upgrade
func (w *responseWrapper) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	w.statusCode = http.StatusSwitchingProtocols
	return hijacker.Hijack()
}

// Unwrap exposes the wrapped writer to http.ResponseController
func (w *responseWrapper) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}
