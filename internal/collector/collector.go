package collector

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/events"
	"fx-signal-engine/internal/market"
)

// Bootstrap windows for an empty series. Intraday vendors keep a limited
// history, daily goes back further.
const (
	intradayBootstrap = 60 * 24 * time.Hour
	dailyBootstrap    = 2 * 365 * 24 * time.Hour
)

// interTimeframePause spaces vendor requests within a cycle.
const interTimeframePause = time.Second

// Store is the persistence surface the collector needs.
type Store interface {
	UpsertBar(ctx context.Context, bar *database.Bar) (bool, error)
	GetLatestBarTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error)
	InsertEvent(ctx context.Context, eventType, symbol string, payload interface{}) (int64, error)
}

// Config holds collector settings.
type Config struct {
	Symbol     string
	Interval   time.Duration
	Timeframes []market.Timeframe
}

// Collector runs the ingest cycle: fetch new candles per timeframe, upsert
// them, and emit one collection event when anything actually changed.
type Collector struct {
	store    Store
	provider market.Provider
	cfg      Config
	logger   zerolog.Logger
	now      func() time.Time
	pause    time.Duration
}

// New creates a collector for the configured symbol.
func New(store Store, provider market.Provider, cfg Config, logger zerolog.Logger) *Collector {
	if cfg.Interval == 0 {
		cfg.Interval = 5 * time.Minute
	}
	if len(cfg.Timeframes) == 0 {
		cfg.Timeframes = market.AllTimeframes
	}
	return &Collector{
		store:    store,
		provider: provider,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		pause:    interTimeframePause,
	}
}

// Run executes collection cycles until the context is canceled. The first
// cycle runs immediately.
func (c *Collector) Run(ctx context.Context) {
	ticker := time.NewTicker(c.cfg.Interval)
	defer ticker.Stop()

	c.logger.Info().Str("symbol", c.cfg.Symbol).Dur("interval", c.cfg.Interval).Msg("collector started")
	c.RunCycle(ctx)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info().Msg("collector stopped")
			return
		case <-ticker.C:
			c.RunCycle(ctx)
		}
	}
}

// RunCycle collects every configured timeframe once. A failing timeframe is
// logged and skipped; the cycle continues with the rest. An event is emitted
// only when at least one bar changed.
func (c *Collector) RunCycle(ctx context.Context) {
	results := make(map[string]events.TimeframeResult, len(c.cfg.Timeframes))
	total := 0

	for i, tf := range c.cfg.Timeframes {
		if i > 0 {
			select {
			case <-ctx.Done():
				return
			case <-time.After(c.pause):
			}
		}

		result, err := c.collectTimeframe(ctx, tf)
		if err != nil {
			c.logger.Error().Err(err).Str("timeframe", string(tf)).Msg("timeframe collection failed")
			continue
		}
		results[string(tf)] = result
		total += result.NewRecords
	}

	if total == 0 {
		c.logger.Debug().Str("symbol", c.cfg.Symbol).Msg("collection cycle produced no new data")
		return
	}

	payload := events.NewCollectionCompleted(c.cfg.Symbol, results, total)
	id, err := c.store.InsertEvent(ctx, events.TypeDataCollectionCompleted, c.cfg.Symbol, payload)
	if err != nil {
		c.logger.Error().Err(err).Msg("failed to emit collection event")
		return
	}
	c.logger.Info().Int64("event_id", id).Int("new_records", total).Msg("collection cycle completed")
}

// collectTimeframe fetches candles newer than the stored series and upserts
// them, counting only bars that actually changed.
func (c *Collector) collectTimeframe(ctx context.Context, tf market.Timeframe) (events.TimeframeResult, error) {
	end := c.now().UTC()
	start := c.fetchStart(ctx, tf, end)

	candles, err := c.provider.GetHistorical(ctx, c.cfg.Symbol, tf, start, end)
	if err != nil {
		return events.TimeframeResult{}, err
	}

	result := events.TimeframeResult{}
	for i := range candles {
		bar := &database.Bar{
			Symbol:    c.cfg.Symbol,
			Timeframe: string(tf),
			Timestamp: candles[i].Timestamp,
			Open:      candles[i].Open,
			High:      candles[i].High,
			Low:       candles[i].Low,
			Close:     candles[i].Close,
			Volume:    candles[i].Volume,
		}
		changed, err := c.store.UpsertBar(ctx, bar)
		if err != nil {
			return result, err
		}
		if changed {
			result.NewRecords++
		}
		result.LatestTimestamp = candles[i].Timestamp.UTC().Format(time.RFC3339)
	}
	return result, nil
}

// fetchStart resumes one minute past the latest stored bar, or bootstraps
// the series when empty.
func (c *Collector) fetchStart(ctx context.Context, tf market.Timeframe, end time.Time) time.Time {
	latest, ok, err := c.store.GetLatestBarTime(ctx, c.cfg.Symbol, string(tf))
	if err != nil {
		c.logger.Warn().Err(err).Str("timeframe", string(tf)).Msg("latest bar lookup failed, bootstrapping")
		ok = false
	}
	if ok {
		return latest.Add(time.Minute)
	}
	if tf == market.TF1d {
		return end.Add(-dailyBootstrap)
	}
	return end.Add(-intradayBootstrap)
}
