package analysis

import (
	"context"

	"fx-signal-engine/internal/database"
)

// Backend modes selectable at runtime.
const (
	ModeThreeGate = "three_gate"
	ModeLegacy    = "legacy"
)

// Backend consumes a collection-completed event for a symbol. Implementations
// must be safe to call repeatedly for the same market state: analyzing
// unchanged data must not emit duplicate signals.
type Backend interface {
	Name() string
	HandleCollectionCompleted(ctx context.Context, symbol string) error
}

// Store is the persistence surface the analysis backends need.
type Store interface {
	GetRecentBars(ctx context.Context, symbol, timeframe string, limit int) ([]*database.Bar, error)
	SaveSignal(ctx context.Context, sig *database.Signal) error
}
