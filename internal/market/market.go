package market

import (
	"context"
	"time"
)

// Timeframe is a candle duration supported by the pipeline.
type Timeframe string

const (
	TF5m  Timeframe = "5m"
	TF15m Timeframe = "15m"
	TF1h  Timeframe = "1h"
	TF4h  Timeframe = "4h"
	TF1d  Timeframe = "1d"
)

// AllTimeframes lists every supported timeframe in ascending duration.
var AllTimeframes = []Timeframe{TF5m, TF15m, TF1h, TF4h, TF1d}

// Duration returns the candle duration for the timeframe.
func (tf Timeframe) Duration() time.Duration {
	switch tf {
	case TF5m:
		return 5 * time.Minute
	case TF15m:
		return 15 * time.Minute
	case TF1h:
		return time.Hour
	case TF4h:
		return 4 * time.Hour
	case TF1d:
		return 24 * time.Hour
	}
	return 0
}

// Valid reports whether the timeframe is one of the supported values.
func (tf Timeframe) Valid() bool {
	return tf.Duration() != 0
}

// Candle is a single OHLCV bar as returned by the vendor. Timestamps are UTC
// and aligned to the timeframe.
type Candle struct {
	Timestamp time.Time
	Open      float64
	High      float64
	Low       float64
	Close     float64
	Volume    int64
}

// Provider is the market data vendor capability. Implementations must return
// candles with UTC timestamps ordered oldest first.
type Provider interface {
	// GetHistorical fetches candles for the interval (start, end].
	GetHistorical(ctx context.Context, symbol string, tf Timeframe, start, end time.Time) ([]Candle, error)

	// GetLatest fetches the most recent candles for the timeframe.
	GetLatest(ctx context.Context, symbol string, tf Timeframe) ([]Candle, error)

	// HealthCheck reports whether the vendor is reachable.
	HealthCheck(ctx context.Context) bool
}
