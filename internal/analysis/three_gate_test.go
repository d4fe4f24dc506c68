package analysis

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/engine"
	"fx-signal-engine/internal/notification"
	"fx-signal-engine/internal/patterns"
)

type fakeAnalysisStore struct {
	barsPerTF map[string][]*database.Bar
	saved     []*database.Signal
}

func (s *fakeAnalysisStore) GetRecentBars(_ context.Context, _, timeframe string, limit int) ([]*database.Bar, error) {
	bars := s.barsPerTF[timeframe]
	if len(bars) > limit {
		bars = bars[len(bars)-limit:]
	}
	return bars, nil
}

func (s *fakeAnalysisStore) SaveSignal(_ context.Context, sig *database.Signal) error {
	sig.ID = int64(len(s.saved) + 1)
	sig.CreatedAt = time.Now()
	s.saved = append(s.saved, sig)
	return nil
}

func risingBars(tf string, n int) []*database.Bar {
	bars := make([]*database.Bar, n)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	price := 148.0
	for i := 0; i < n; i++ {
		open := price
		price += 0.02
		bars[i] = &database.Bar{
			Symbol:    "USDJPY=X",
			Timeframe: tf,
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      open,
			High:      price + 0.01,
			Low:       open - 0.01,
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

// Catalogs whose conditions hold for any positive price series, so the test
// controls signal emission through data availability alone.
const passGate1 = `
patterns:
  trending_market:
    name: "Trending Market"
    description: "always-on environment"
    variants:
      bullish:
        conditions:
          - name: price_positive
            indicator: close
            operator: ">"
            value: 0
            timeframe: "1h"
`

const passGate2 = `
environment_mapping:
  trending_market:
    - pullback_setup
patterns:
  pullback_setup:
    name: "Pullback Setup"
    description: "always-on scenario"
    environment_conditions:
      trending_bull:
        conditions:
          - name: price_positive
            indicator: close
            operator: ">"
            value: 0
            timeframe: "1h"
`

const passGate3 = `
patterns:
  momentum_trigger:
    name: "Momentum Trigger"
    description: "always-on trigger"
    direction: buy
    conditions:
      - name: price_positive
        indicator: close
        operator: ">"
        value: 0
        timeframe: "1h"
`

func newPassingEngine(t *testing.T) *engine.Engine {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"gate1_patterns.yaml": passGate1,
		"gate2_patterns.yaml": passGate2,
		"gate3_patterns.yaml": passGate3,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	loader := patterns.NewLoader(dir, zerolog.Nop())
	return engine.New(loader, engine.Config{DisableRateLimit: true}, zerolog.Nop())
}

func TestThreeGateBackendPersistsSignal(t *testing.T) {
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"5m": risingBars("5m", 300),
		"1h": risingBars("1h", 300),
		"4h": risingBars("4h", 300),
		"1d": risingBars("1d", 300),
	}}
	b := NewThreeGateBackend(store, newPassingEngine(t), notification.NewManager(zerolog.Nop()), nil, 300, zerolog.Nop())

	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}

	if len(store.saved) != 1 {
		t.Fatalf("saved %d signals, want 1", len(store.saved))
	}
	sig := store.saved[0]
	if sig.Symbol != "USDJPY=X" || sig.SignalType != "BUY" {
		t.Errorf("signal = %+v", sig)
	}
	if sig.Gate1Pattern != "trending_market_bullish" {
		t.Errorf("gate1 pattern = %q", sig.Gate1Pattern)
	}
	if sig.EntryPrice <= 0 || sig.StopLoss >= sig.EntryPrice {
		t.Errorf("levels: entry=%v stop=%v", sig.EntryPrice, sig.StopLoss)
	}
	if len(sig.TakeProfit) != 3 {
		t.Errorf("take profits = %v", sig.TakeProfit)
	}
}

func TestThreeGateBackendSkipsThinHistory(t *testing.T) {
	// All timeframes below the analysis minimum: no evaluation, no error.
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": risingBars("1h", 10),
	}}
	b := NewThreeGateBackend(store, newPassingEngine(t), nil, nil, 300, zerolog.Nop())

	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 0 {
		t.Errorf("saved %d signals, want 0", len(store.saved))
	}
}

func TestThreeGateBackendPartialTimeframes(t *testing.T) {
	// One healthy timeframe is enough to evaluate.
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": risingBars("1h", 300),
	}}
	b := NewThreeGateBackend(store, newPassingEngine(t), nil, nil, 300, zerolog.Nop())

	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}
	if len(store.saved) != 1 {
		t.Errorf("saved %d signals, want 1", len(store.saved))
	}
}
