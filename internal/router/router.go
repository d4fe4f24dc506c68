package router

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/analysis"
	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/events"
)

const (
	pollInterval = 5 * time.Second
	batchSize    = 10
)

// EventStore is the persistence surface the router needs.
type EventStore interface {
	GetUnprocessedEvents(ctx context.Context, eventType string, limit int) ([]*database.Event, error)
	MarkEventProcessed(ctx context.Context, id int64, procErr error) error
}

// Router polls the events table and dispatches collection-completed events
// to the active analysis backend. Events are marked processed after dispatch
// whether the backend succeeded or not; failures are recorded on the row.
type Router struct {
	store    EventStore
	backends map[string]analysis.Backend
	logger   zerolog.Logger

	mu     sync.RWMutex
	active analysis.Backend
}

// New creates a router over the given backends, activating the named mode.
func New(store EventStore, backends map[string]analysis.Backend, mode string, logger zerolog.Logger) (*Router, error) {
	backend, ok := backends[mode]
	if !ok {
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}
	return &Router{
		store:    store,
		backends: backends,
		logger:   logger,
		active:   backend,
	}, nil
}

// Mode returns the name of the active backend.
func (r *Router) Mode() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.active.Name()
}

// SwitchMode swaps the active backend. In-flight events finish on the
// backend that picked them up; subsequent batches use the new one.
func (r *Router) SwitchMode(mode string) error {
	backend, ok := r.backends[mode]
	if !ok {
		return fmt.Errorf("unknown analysis mode %q", mode)
	}
	r.mu.Lock()
	previous := r.active.Name()
	r.active = backend
	r.mu.Unlock()

	r.logger.Info().Str("from", previous).Str("to", mode).Msg("analysis mode switched")
	return nil
}

// Run polls for unprocessed events until the context is canceled.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	r.logger.Info().Str("mode", r.Mode()).Msg("event router started")
	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("event router stopped")
			return
		case <-ticker.C:
			if _, err := r.PollOnce(ctx); err != nil {
				r.logger.Error().Err(err).Msg("event poll failed")
			}
		}
	}
}

// PollOnce processes up to one batch of pending events, oldest first. It
// returns the number of events dispatched.
func (r *Router) PollOnce(ctx context.Context) (int, error) {
	pending, err := r.store.GetUnprocessedEvents(ctx, events.TypeDataCollectionCompleted, batchSize)
	if err != nil {
		return 0, fmt.Errorf("fetch pending events: %w", err)
	}

	dispatched := 0
	for _, ev := range pending {
		if !carriesNewData(ev) {
			r.logger.Debug().Int64("event_id", ev.ID).Str("symbol", ev.Symbol).
				Msg("event carries no new records, skipping analysis")
			if err := r.store.MarkEventProcessed(ctx, ev.ID, nil); err != nil {
				return 0, fmt.Errorf("mark event %d processed: %w", ev.ID, err)
			}
			continue
		}

		r.mu.RLock()
		backend := r.active
		r.mu.RUnlock()

		procErr := backend.HandleCollectionCompleted(ctx, ev.Symbol)
		dispatched++
		if procErr != nil {
			r.logger.Error().Err(procErr).Int64("event_id", ev.ID).
				Str("backend", backend.Name()).Msg("event dispatch failed")
		}
		if err := r.store.MarkEventProcessed(ctx, ev.ID, procErr); err != nil {
			return 0, fmt.Errorf("mark event %d processed: %w", ev.ID, err)
		}
	}
	return dispatched, nil
}

// carriesNewData reports whether the event payload recorded any new bars.
// The collector only emits events with new records, but replayed or
// externally inserted events may not honor that.
func carriesNewData(ev *database.Event) bool {
	var payload events.CollectionCompleted
	if err := json.Unmarshal(ev.EventData, &payload); err != nil {
		return true
	}
	return payload.TotalNewRecords > 0
}
