// Package dashboard serves a live view of a running load test: an embedded
// HTML page, an SSE stream of metric snapshots, and REST control endpoints.
// It consumes only the surfaces the core exposes — the run handle and the
// metrics subscription — and owns no test state of its own.
package dashboard

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/surgekit/surge"
)

// Run is the handle surface the dashboard needs from a runtime.
type Run interface {
	IsRunning() bool
	Stop()
	State() surge.TestState
	ActiveUsers() int64
	Spawned() int64
	Metrics() surge.MetricsCollector
}

// Server is the dashboard HTTP server.
type Server struct {
	run    Run
	logger *slog.Logger

	engine     *gin.Engine
	httpServer *http.Server

	mu      sync.RWMutex
	clients map[string]chan []surge.PoolMetricsSnapshot
	latest  []surge.PoolMetricsSnapshot

	started time.Time
}

// ServerOption configures a Server.
type ServerOption func(*Server)

// WithServerLogger sets a structured logger for the server.
func WithServerLogger(l *slog.Logger) ServerOption {
	return func(s *Server) { s.logger = l }
}

// NewServer creates a dashboard for the given run and subscribes to its
// metric snapshots.
func NewServer(run Run, addr string, opts ...ServerOption) *Server {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{
		run:     run,
		logger:  slog.New(slog.DiscardHandler),
		engine:  engine,
		clients: make(map[string]chan []surge.PoolMetricsSnapshot),
		started: time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.httpServer = &http.Server{Addr: addr, Handler: engine}

	s.setupRoutes()
	run.Metrics().OnSnapshot(s.broadcast)
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/", s.handleIndex)
	s.engine.GET("/events", s.handleEvents)

	api := s.engine.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/snapshots", s.handleSnapshots)
	api.POST("/stop", s.handleStop)
}

// Start begins serving. It blocks until the listener fails or Shutdown is
// called; http.ErrServerClosed is translated to nil.
func (s *Server) Start() error {
	s.logger.Info("dashboard listening", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Shutdown stops the server and disconnects every SSE client.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	for id, ch := range s.clients {
		close(ch)
		delete(s.clients, id)
	}
	s.mu.Unlock()
	return s.httpServer.Shutdown(ctx)
}

// broadcast fans one snapshot list out to every connected SSE client. Slow
// clients drop cycles instead of blocking the collector's dispatch.
func (s *Server) broadcast(snaps []surge.PoolMetricsSnapshot) {
	s.mu.Lock()
	s.latest = snaps
	for _, ch := range s.clients {
		select {
		case ch <- snaps:
		default:
		}
	}
	s.mu.Unlock()
}

func (s *Server) handleIndex(c *gin.Context) {
	c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(indexHTML))
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"state":       s.run.State().String(),
		"running":     s.run.IsRunning(),
		"activeUsers": s.run.ActiveUsers(),
		"spawned":     s.run.Spawned(),
		"uptimeMs":    time.Since(s.started).Milliseconds(),
	})
}

func (s *Server) handleSnapshots(c *gin.Context) {
	s.mu.RLock()
	latest := s.latest
	s.mu.RUnlock()
	if latest == nil {
		latest = []surge.PoolMetricsSnapshot{}
	}
	c.JSON(http.StatusOK, latest)
}

func (s *Server) handleStop(c *gin.Context) {
	go s.run.Stop()
	c.JSON(http.StatusAccepted, gin.H{"state": surge.StateStopping.String()})
}

// handleEvents streams snapshot lists as SSE "metrics" events until the
// client disconnects or the server shuts down.
func (s *Server) handleEvents(c *gin.Context) {
	id := surge.NewID()
	ch := make(chan []surge.PoolMetricsSnapshot, 4)

	s.mu.Lock()
	s.clients[id] = ch
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		if _, ok := s.clients[id]; ok {
			delete(s.clients, id)
			close(ch)
		}
		s.mu.Unlock()
	}()

	s.logger.Debug("sse client connected", "client", id)
	c.Stream(func(w io.Writer) bool {
		select {
		case snaps, ok := <-ch:
			if !ok {
				return false
			}
			c.SSEvent("metrics", snaps)
			return true
		case <-c.Request.Context().Done():
			return false
		}
	})
	s.logger.Debug("sse client disconnected", "client", id)
}
