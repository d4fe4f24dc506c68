package database

import (
	"time"
)

// DefaultSource is recorded on bars when the vendor does not say otherwise.
const DefaultSource = "yahoo_finance"

// Bar is one OHLCV candle in the price_data table. (Symbol, Timeframe,
// Timestamp) is the unique key.
type Bar struct {
	Symbol       string    `json:"symbol"`
	Timeframe    string    `json:"timeframe"`
	Timestamp    time.Time `json:"timestamp"`
	Open         float64   `json:"open"`
	High         float64   `json:"high"`
	Low          float64   `json:"low"`
	Close        float64   `json:"close"`
	Volume       int64     `json:"volume"`
	Source       string    `json:"source"`
	QualityScore float64   `json:"data_quality_score"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// WellFormed reports whether the bar satisfies low <= open, close <= high.
func (b *Bar) WellFormed() bool {
	return b.Low <= b.Open && b.Low <= b.Close && b.Open <= b.High && b.Close <= b.High
}

// ComputeQualityScore scores the bar's shape. Malformed bars are stored with
// an attenuated score rather than rejected.
func (b *Bar) ComputeQualityScore() float64 {
	if b.Volume < 0 {
		b.Volume = 0
	}
	if b.WellFormed() {
		return 1.0
	}
	return 0.5
}

// Event is one row in the events table. Rows are immutable except for the
// processing fields.
type Event struct {
	ID           int64      `json:"id"`
	EventType    string     `json:"event_type"`
	Symbol       string     `json:"symbol"`
	EventData    []byte     `json:"event_data"`
	Processed    bool       `json:"processed"`
	CreatedAt    time.Time  `json:"created_at"`
	ProcessedAt  *time.Time `json:"processed_at,omitempty"`
	ErrorMessage *string    `json:"error_message,omitempty"`
	RetryCount   int        `json:"retry_count"`
}

// Signal is one row in the three_gate_signals table. Rows are immutable.
type Signal struct {
	ID                int64     `json:"id"`
	Symbol            string    `json:"symbol"`
	SignalType        string    `json:"signal_type"`
	OverallConfidence float64   `json:"overall_confidence"`
	EntryPrice        float64   `json:"entry_price"`
	StopLoss          float64   `json:"stop_loss"`
	TakeProfit        []float64 `json:"take_profit"`
	Gate1Pattern      string    `json:"gate1_pattern"`
	Gate1Confidence   float64   `json:"gate1_confidence"`
	Gate2Pattern      string    `json:"gate2_pattern"`
	Gate2Confidence   float64   `json:"gate2_confidence"`
	Gate3Pattern      string    `json:"gate3_pattern"`
	Gate3Confidence   float64   `json:"gate3_confidence"`
	CreatedAt         time.Time `json:"created_at"`
}
