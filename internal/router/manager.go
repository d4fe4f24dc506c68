package router

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/market"
)

const healthInterval = 30 * time.Second

// HealthChecker is anything the manager monitors.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Manager runs the pipeline: the collector, the event router, and a health
// loop over the database and the market vendor.
type Manager struct {
	collector interface{ Run(ctx context.Context) }
	router    *Router
	db        HealthChecker
	provider  market.Provider
	logger    zerolog.Logger

	mu      sync.RWMutex
	healthy bool
}

// NewManager wires the pipeline components together.
func NewManager(collector interface{ Run(ctx context.Context) }, r *Router, db HealthChecker, provider market.Provider, logger zerolog.Logger) *Manager {
	return &Manager{
		collector: collector,
		router:    r,
		db:        db,
		provider:  provider,
		logger:    logger,
		healthy:   true,
	}
}

// Router exposes the event router for the ops API.
func (m *Manager) Router() *Router {
	return m.router
}

// Healthy reports the last health loop verdict.
func (m *Manager) Healthy() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthy
}

// Start launches the collector, router and health loops. It returns once
// all goroutines have exited after context cancellation.
func (m *Manager) Start(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(3)
	go func() {
		defer wg.Done()
		m.collector.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		m.router.Run(ctx)
	}()
	go func() {
		defer wg.Done()
		m.healthLoop(ctx)
	}()

	wg.Wait()
	m.logger.Info().Msg("pipeline stopped")
}

func (m *Manager) healthLoop(ctx context.Context) {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkHealth(ctx)
		}
	}
}

func (m *Manager) checkHealth(ctx context.Context) {
	checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	healthy := true
	if err := m.db.HealthCheck(checkCtx); err != nil {
		m.logger.Warn().Err(err).Msg("database health check failed")
		healthy = false
	}
	if m.provider != nil && !m.provider.HealthCheck(checkCtx) {
		m.logger.Warn().Msg("market vendor health check failed")
		healthy = false
	}

	m.mu.Lock()
	m.healthy = healthy
	m.mu.Unlock()
}
