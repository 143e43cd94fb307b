// Package status exposes the tracker state, alert history and live feed over HTTP.
package status

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"ipobot/services/alerts"
	"ipobot/services/feed"
	"ipobot/services/tracker"
)

const (
	shutdownTimeout = 5 * time.Second
	refreshTimeout  = 2 * time.Minute
)

// AlertLister returns recent alerts, newest first
type AlertLister interface {
	Recent(ctx context.Context, limit int) ([]alerts.Alert, error)
}

// Refresher triggers an out-of-band daily refresh
type Refresher interface {
	Refresh(ctx context.Context) error
}

// Server is the status API
type Server struct {
	addr      string
	registry  *tracker.Registry
	refresher Refresher
	hub       *feed.Hub
	store     AlertLister
	logger    *zap.Logger
	started   time.Time
	engine    *gin.Engine
}

// Option customizes a Server
type Option func(*Server)

// WithFeed serves the websocket feed on /ws
func WithFeed(hub *feed.Hub) Option {
	return func(s *Server) { s.hub = hub }
}

// WithAlerts serves the alert history on /alerts
func WithAlerts(store AlertLister) Option {
	return func(s *Server) { s.store = store }
}

// WithRefresher enables POST /refresh
func WithRefresher(r Refresher) Option {
	return func(s *Server) { s.refresher = r }
}

// NewServer creates a status server for registry listening on addr
func NewServer(addr string, registry *tracker.Registry, logger *zap.Logger, opts ...Option) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		addr:     addr,
		registry: registry,
		logger:   logger.Named("status"),
		started:  time.Now(),
	}
	for _, opt := range opts {
		opt(s)
	}

	r := gin.New()
	r.Use(gin.Recovery(), s.logRequests())

	r.GET("/health", s.handleHealth)
	r.GET("/ipos", s.handleIPOs)
	r.GET("/alerts", s.handleAlerts)
	r.POST("/refresh", s.handleRefresh)
	r.GET("/ws", s.handleWS)

	s.engine = r
	return s
}

// Handler returns the HTTP handler, mainly for tests
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Starting status API", zap.String("addr", s.addr))
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
		return err
	}
	return nil
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)))
	}
}

func (s *Server) handleHealth(c *gin.Context) {
	expected, opened := s.registry.Counts()
	c.JSON(http.StatusOK, gin.H{
		"status":   "ok",
		"uptime":   time.Since(s.started).Round(time.Second).String(),
		"expected": expected,
		"opened":   opened,
	})
}

func (s *Server) handleIPOs(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleAlerts(c *gin.Context) {
	if s.store == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "alert history is not enabled"})
		return
	}

	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a non-negative integer"})
			return
		}
		limit = n
	}

	list, err := s.store.Recent(c.Request.Context(), limit)
	if err != nil {
		s.logger.Error("Listing alerts failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}
	if list == nil {
		list = []alerts.Alert{}
	}
	c.JSON(http.StatusOK, list)
}

func (s *Server) handleRefresh(c *gin.Context) {
	if s.refresher == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "manual refresh is not enabled"})
		return
	}

	// The refresh outlives a dropped client connection.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), refreshTimeout)
	defer cancel()

	if err := s.refresher.Refresh(ctx); err != nil {
		if errors.Is(err, tracker.ErrCycleInProgress) {
			c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
			return
		}
		s.logger.Error("Manual refresh failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	c.JSON(http.StatusOK, s.registry.Snapshot())
}

func (s *Server) handleWS(c *gin.Context) {
	if s.hub == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "live feed is not enabled"})
		return
	}
	s.hub.ServeWS(c.Writer, c.Request)
}
