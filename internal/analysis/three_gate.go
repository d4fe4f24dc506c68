package analysis

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/cache"
	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/engine"
	"fx-signal-engine/internal/indicator"
	"fx-signal-engine/internal/notification"
)

// analysisTimeframes are the timeframes merged into one indicator snapshot.
// 15m is collected for operator tooling but not analyzed.
var analysisTimeframes = []string{"5m", "1h", "4h", "1d"}

// minBarsForAnalysis is the smallest series the indicator engine accepts.
// EMA 200 plus warmup needs most of it; shorter series are skipped.
const minBarsForAnalysis = 50

// ThreeGateBackend feeds indicator snapshots through the three-gate engine,
// persisting and broadcasting any emitted signal.
type ThreeGateBackend struct {
	store    Store
	engine   *engine.Engine
	notifier *notification.Manager
	cache    *cache.SignalCache
	lookback int
	logger   zerolog.Logger
}

// NewThreeGateBackend creates the three-gate analysis backend. The cache may
// be nil when Redis is disabled.
func NewThreeGateBackend(store Store, eng *engine.Engine, notifier *notification.Manager, signalCache *cache.SignalCache, lookback int, logger zerolog.Logger) *ThreeGateBackend {
	if lookback <= 0 {
		lookback = 300
	}
	return &ThreeGateBackend{
		store:    store,
		engine:   eng,
		notifier: notifier,
		cache:    signalCache,
		lookback: lookback,
		logger:   logger,
	}
}

func (b *ThreeGateBackend) Name() string { return ModeThreeGate }

// HandleCollectionCompleted builds the multi-timeframe snapshot and runs the
// engine. A nil engine result means no signal this cycle.
func (b *ThreeGateBackend) HandleCollectionCompleted(ctx context.Context, symbol string) error {
	snap, err := b.buildSnapshot(ctx, symbol)
	if err != nil {
		return err
	}
	if len(snap) == 0 {
		b.logger.Warn().Str("symbol", symbol).Msg("no timeframe had enough data, analysis skipped")
		return nil
	}

	result, err := b.engine.Evaluate(symbol, snap)
	if err != nil {
		return fmt.Errorf("engine evaluation: %w", err)
	}
	if result == nil {
		return nil
	}

	sig := &database.Signal{
		Symbol:            result.Symbol,
		SignalType:        string(result.SignalType),
		OverallConfidence: result.OverallConfidence,
		EntryPrice:        result.EntryPrice,
		StopLoss:          result.StopLoss,
		TakeProfit:        result.TakeProfit,
		Gate1Pattern:      result.Gate1.Pattern,
		Gate1Confidence:   result.Gate1.Confidence,
		Gate2Pattern:      result.Gate2.Pattern,
		Gate2Confidence:   result.Gate2.Confidence,
		Gate3Pattern:      result.Gate3.Pattern,
		Gate3Confidence:   result.Gate3.Confidence,
	}
	if err := b.store.SaveSignal(ctx, sig); err != nil {
		return fmt.Errorf("save signal: %w", err)
	}

	// Delivery failures are already logged by the manager; the signal is
	// durable at this point.
	if b.notifier != nil {
		b.notifier.NotifySignal(result)
	}
	b.cache.PublishSignal(ctx, result)
	return nil
}

// buildSnapshot computes indicators per timeframe and merges them under
// timeframe prefixes. Timeframes with too little history are skipped.
func (b *ThreeGateBackend) buildSnapshot(ctx context.Context, symbol string) (indicator.Snapshot, error) {
	snap := indicator.Snapshot{}
	for _, tf := range analysisTimeframes {
		bars, err := b.store.GetRecentBars(ctx, symbol, tf, b.lookback)
		if err != nil {
			return nil, fmt.Errorf("load %s bars: %w", tf, err)
		}
		if len(bars) < minBarsForAnalysis {
			b.logger.Debug().Str("symbol", symbol).Str("timeframe", tf).
				Int("bars", len(bars)).Msg("insufficient history, timeframe skipped")
			continue
		}
		snap.Merge(tf, indicator.Compute(indicator.FromBars(bars)))
	}
	return snap, nil
}
