package events

import "time"

// Event types carried in the events table. The pipeline core only emits and
// consumes collection completions; the column is free-form for operational
// tooling.
const (
	TypeDataCollectionCompleted = "data_collection_completed"
)

// TimeframeResult summarizes one timeframe within a collection cycle.
type TimeframeResult struct {
	NewRecords      int    `json:"new_records"`
	LatestTimestamp string `json:"latest_timestamp"`
}

// CollectionCompleted is the event_data payload for a
// data_collection_completed event.
type CollectionCompleted struct {
	Symbol          string                     `json:"symbol"`
	Timeframes      map[string]TimeframeResult `json:"timeframes"`
	TotalNewRecords int                        `json:"total_new_records"`
	Timestamp       string                     `json:"timestamp"`
	DaemonType      string                     `json:"daemon_type"`
}

// NewCollectionCompleted builds the payload for a finished cycle.
func NewCollectionCompleted(symbol string, timeframes map[string]TimeframeResult, total int) *CollectionCompleted {
	return &CollectionCompleted{
		Symbol:          symbol,
		Timeframes:      timeframes,
		TotalNewRecords: total,
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		DaemonType:      "standalone",
	}
}
