package api

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/engine"
	"fx-signal-engine/internal/router"
)

// Store is the persistence surface the API needs.
type Store interface {
	GetRecentSignals(ctx context.Context, symbol string, limit int) ([]*database.Signal, error)
	ResetEvent(ctx context.Context, id int64) error
}

// Server is the operational HTTP API: status, recent signals, mode switching
// and Prometheus metrics.
type Server struct {
	manager *router.Manager
	eng     *engine.Engine
	store   Store
	logger  zerolog.Logger
	srv     *http.Server
}

// NewServer builds the API server on the given address.
func NewServer(addr string, manager *router.Manager, eng *engine.Engine, store Store, logger zerolog.Logger) *Server {
	s := &Server{
		manager: manager,
		eng:     eng,
		store:   store,
		logger:  logger,
	}

	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(cors.Default())

	r.GET("/healthz", s.handleHealth)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", s.handleStatus)
		apiGroup.GET("/signals", s.handleSignals)
		apiGroup.POST("/mode", s.handleModeSwitch)
		apiGroup.POST("/events/:id/reset", s.handleEventReset)
	}

	s.srv = &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
	return s
}

// Run serves until the listener fails or Shutdown is called.
func (s *Server) Run() error {
	s.logger.Info().Str("addr", s.srv.Addr).Msg("api server started")
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleHealth(c *gin.Context) {
	if !s.manager.Healthy() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"mode":    s.manager.Router().Mode(),
		"healthy": s.manager.Healthy(),
		"engine":  s.eng.Stats().Snapshot(),
	})
}

func (s *Server) handleSignals(c *gin.Context) {
	symbol := c.Query("symbol")
	limit := 20
	if v := c.Query("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 500 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be an integer between 1 and 500"})
			return
		}
		limit = n
	}

	signals, err := s.store.GetRecentSignals(c.Request.Context(), symbol, limit)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to load signals")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load signals"})
		return
	}
	if signals == nil {
		signals = []*database.Signal{}
	}
	c.JSON(http.StatusOK, gin.H{"signals": signals, "count": len(signals)})
}

func (s *Server) handleModeSwitch(c *gin.Context) {
	var req struct {
		Mode string `json:"mode" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "mode is required"})
		return
	}

	if err := s.manager.Router().SwitchMode(req.Mode); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"mode": req.Mode})
}

// handleEventReset clears an event's processed flag so the router replays it.
func (s *Server) handleEventReset(c *gin.Context) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id < 1 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid event id"})
		return
	}

	if err := s.store.ResetEvent(c.Request.Context(), id); err != nil {
		s.logger.Error().Err(err).Int64("event_id", id).Msg("event reset failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "event reset failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"event_id": id, "status": "reset"})
}
