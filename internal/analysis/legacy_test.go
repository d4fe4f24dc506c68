package analysis

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/database"
	"fx-signal-engine/internal/notification"
)

type recordingNotifier struct {
	payloads []*notification.SignalPayload
}

func (n *recordingNotifier) Send(p *notification.SignalPayload) error {
	n.payloads = append(n.payloads, p)
	return nil
}

func (n *recordingNotifier) Name() string    { return "recording" }
func (n *recordingNotifier) IsEnabled() bool { return true }

// flatThenMove builds a flat series with a final close at the given price,
// which flips the EMA cross exactly on the last bar.
func flatThenMove(n int, flat, lastClose float64) []*database.Bar {
	bars := make([]*database.Bar, n)
	start := time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC)
	for i := 0; i < n; i++ {
		price := flat
		if i == n-1 {
			price = lastClose
		}
		bars[i] = &database.Bar{
			Symbol:    "USDJPY=X",
			Timeframe: "1h",
			Timestamp: start.Add(time.Duration(i) * time.Hour),
			Open:      flat,
			High:      maxFloat(flat, price),
			Low:       minFloat(flat, price),
			Close:     price,
			Volume:    1000,
		}
	}
	return bars
}

func maxFloat(a, b float64) float64 {
	if a > b {
		return a
	}
	return b
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}

func TestLegacyBackendBuySignal(t *testing.T) {
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": flatThenMove(120, 150.0, 152.0),
	}}
	recorder := &recordingNotifier{}
	manager := notification.NewManager(zerolog.Nop())
	manager.AddNotifier(recorder)

	b := NewLegacyBackend(store, manager, zerolog.Nop())
	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}

	if len(recorder.payloads) != 1 {
		t.Fatalf("got %d notifications, want 1", len(recorder.payloads))
	}
	p := recorder.payloads[0]
	if p.SignalType != "BUY" || p.Symbol != "USDJPY=X" {
		t.Errorf("payload = %+v", p)
	}
	if p.EntryPrice != 152.0 {
		t.Errorf("entry = %v, want the last close", p.EntryPrice)
	}
	if p.StopLoss >= p.EntryPrice {
		t.Errorf("buy stop = %v, want below entry", p.StopLoss)
	}
	if len(p.TakeProfit) != 1 || p.TakeProfit[0] <= p.EntryPrice {
		t.Errorf("buy target = %v, want above entry", p.TakeProfit)
	}

	// Legacy signals never reach the signals table.
	if len(store.saved) != 0 {
		t.Errorf("legacy backend persisted %d signals", len(store.saved))
	}
}

func TestLegacyBackendSellSignal(t *testing.T) {
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": flatThenMove(120, 150.0, 148.0),
	}}
	recorder := &recordingNotifier{}
	manager := notification.NewManager(zerolog.Nop())
	manager.AddNotifier(recorder)

	b := NewLegacyBackend(store, manager, zerolog.Nop())
	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}

	if len(recorder.payloads) != 1 || recorder.payloads[0].SignalType != "SELL" {
		t.Errorf("payloads = %v", recorder.payloads)
	}
}

func TestLegacyBackendNoCrossNoSignal(t *testing.T) {
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": flatThenMove(120, 150.0, 150.0),
	}}
	recorder := &recordingNotifier{}
	manager := notification.NewManager(zerolog.Nop())
	manager.AddNotifier(recorder)

	b := NewLegacyBackend(store, manager, zerolog.Nop())
	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}
	if len(recorder.payloads) != 0 {
		t.Errorf("flat market produced %d notifications", len(recorder.payloads))
	}
}

func TestLegacyBackendThinHistory(t *testing.T) {
	store := &fakeAnalysisStore{barsPerTF: map[string][]*database.Bar{
		"1h": flatThenMove(30, 150.0, 152.0),
	}}
	b := NewLegacyBackend(store, nil, zerolog.Nop())
	if err := b.HandleCollectionCompleted(context.Background(), "USDJPY=X"); err != nil {
		t.Fatal(err)
	}
}
