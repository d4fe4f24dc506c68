package analysis

import (
	"context"
	"fmt"
	"time"

	talib "github.com/markcheno/go-talib"
	"github.com/rs/zerolog"

	"fx-signal-engine/internal/notification"
)

// Legacy backend thresholds. The legacy strategy is a single-timeframe EMA
// cross with RSI and MACD confirmation; it notifies but never writes to the
// signals table.
const (
	legacyTimeframe  = "1h"
	legacyLookback   = 120
	legacyRSIFloor   = 35.0
	legacyRSICeiling = 65.0

	// Percentage-based risk levels; the legacy path predates the
	// ATR/structure model.
	legacyStopPct   = 0.003
	legacyTargetPct = 0.006
)

// LegacyBackend is the pre-three-gate analysis path, kept for fallback when
// the catalog-driven engine is misbehaving in production.
type LegacyBackend struct {
	store    Store
	notifier *notification.Manager
	logger   zerolog.Logger
}

// NewLegacyBackend creates the legacy analysis backend.
func NewLegacyBackend(store Store, notifier *notification.Manager, logger zerolog.Logger) *LegacyBackend {
	return &LegacyBackend{store: store, notifier: notifier, logger: logger}
}

func (b *LegacyBackend) Name() string { return ModeLegacy }

// HandleCollectionCompleted evaluates the EMA 21/55 cross on 1h bars with
// RSI and MACD histogram confirmation. Matches are logged and delivered to
// notifiers only.
func (b *LegacyBackend) HandleCollectionCompleted(ctx context.Context, symbol string) error {
	bars, err := b.store.GetRecentBars(ctx, symbol, legacyTimeframe, legacyLookback)
	if err != nil {
		return fmt.Errorf("load %s bars: %w", legacyTimeframe, err)
	}
	if len(bars) < 60 {
		b.logger.Debug().Str("symbol", symbol).Int("bars", len(bars)).Msg("insufficient history for legacy analysis")
		return nil
	}

	closes := make([]float64, len(bars))
	for i, bar := range bars {
		closes[i] = bar.Close
	}

	emaFast := talib.Ema(closes, 21)
	emaSlow := talib.Ema(closes, 55)
	rsi := talib.Rsi(closes, 14)
	_, _, hist := talib.Macd(closes, 12, 26, 9)

	n := len(closes) - 1
	crossedUp := emaFast[n] > emaSlow[n] && emaFast[n-1] <= emaSlow[n-1]
	crossedDown := emaFast[n] < emaSlow[n] && emaFast[n-1] >= emaSlow[n-1]

	direction := ""
	switch {
	case crossedUp && rsi[n] > legacyRSIFloor && hist[n] > 0:
		direction = "BUY"
	case crossedDown && rsi[n] < legacyRSICeiling && hist[n] < 0:
		direction = "SELL"
	default:
		return nil
	}

	b.logger.Info().
		Str("symbol", symbol).
		Str("signal", direction).
		Float64("close", closes[n]).
		Float64("ema_21", emaFast[n]).
		Float64("ema_55", emaSlow[n]).
		Float64("rsi_14", rsi[n]).
		Float64("macd_hist", hist[n]).
		Msg("legacy signal")

	if b.notifier != nil {
		b.notifier.NotifyPayload(legacyPayload(symbol, direction, closes[n]))
	}
	return nil
}

func legacyPayload(symbol, direction string, close float64) *notification.SignalPayload {
	stop := close * (1 - legacyStopPct)
	target := close * (1 + legacyTargetPct)
	if direction == "SELL" {
		stop = close * (1 + legacyStopPct)
		target = close * (1 - legacyTargetPct)
	}
	return &notification.SignalPayload{
		Symbol:       symbol,
		SignalType:   direction,
		EntryPrice:   close,
		StopLoss:     stop,
		TakeProfit:   []float64{target},
		Gate1Pattern: "legacy_ema_cross",
		Timestamp:    time.Now().UTC().Format(time.RFC3339),
	}
}
