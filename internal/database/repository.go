package database

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
)

// Repository provides data access methods
type Repository struct {
	db *DB
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db}
}

// HealthCheck performs a database health check
func (r *Repository) HealthCheck(ctx context.Context) error {
	return r.db.Pool.Ping(ctx)
}

// ============================================================================
// PRICE DATA
// ============================================================================

// UpsertBar inserts the bar or updates OHLCV on conflict. It reports whether
// the row actually changed: re-upserting an identical bar affects nothing,
// which is what lets a repeated collection cycle emit no event.
func (r *Repository) UpsertBar(ctx context.Context, bar *Bar) (bool, error) {
	if bar.Source == "" {
		bar.Source = DefaultSource
	}
	bar.QualityScore = bar.ComputeQualityScore()

	query := `
		INSERT INTO price_data (symbol, timeframe, timestamp, open, close, high, low, volume, source, data_quality_score)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (symbol, timeframe, timestamp) DO UPDATE
		SET open = EXCLUDED.open,
		    close = EXCLUDED.close,
		    high = EXCLUDED.high,
		    low = EXCLUDED.low,
		    volume = EXCLUDED.volume,
		    data_quality_score = EXCLUDED.data_quality_score,
		    updated_at = now()
		WHERE (price_data.open, price_data.close, price_data.high, price_data.low, price_data.volume)
		      IS DISTINCT FROM
		      (EXCLUDED.open, EXCLUDED.close, EXCLUDED.high, EXCLUDED.low, EXCLUDED.volume)
	`
	tag, err := r.db.Pool.Exec(
		ctx, query,
		bar.Symbol, bar.Timeframe, bar.Timestamp.UTC(),
		bar.Open, bar.Close, bar.High, bar.Low, bar.Volume,
		bar.Source, bar.QualityScore,
	)
	if err != nil {
		return false, fmt.Errorf("upsert bar failed: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// GetLatestBarTime returns the newest stored bar timestamp for the key, or
// ok=false when the series is empty.
func (r *Repository) GetLatestBarTime(ctx context.Context, symbol, timeframe string) (time.Time, bool, error) {
	var ts time.Time
	err := r.db.Pool.QueryRow(
		ctx,
		`SELECT timestamp FROM price_data WHERE symbol = $1 AND timeframe = $2 ORDER BY timestamp DESC LIMIT 1`,
		symbol, timeframe,
	).Scan(&ts)
	if errors.Is(err, pgx.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return ts.UTC(), true, nil
}

// GetRecentBars returns up to limit bars for the key, oldest first.
func (r *Repository) GetRecentBars(ctx context.Context, symbol, timeframe string, limit int) ([]*Bar, error) {
	query := `
		SELECT symbol, timeframe, timestamp, open, close, high, low, volume, source, data_quality_score, created_at, updated_at
		FROM price_data
		WHERE symbol = $1 AND timeframe = $2
		ORDER BY timestamp DESC
		LIMIT $3
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, timeframe, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var bars []*Bar
	for rows.Next() {
		bar := &Bar{}
		err := rows.Scan(
			&bar.Symbol, &bar.Timeframe, &bar.Timestamp, &bar.Open, &bar.Close,
			&bar.High, &bar.Low, &bar.Volume, &bar.Source, &bar.QualityScore,
			&bar.CreatedAt, &bar.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		bars = append(bars, bar)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	// Reverse into chronological order.
	for i, j := 0, len(bars)-1; i < j; i, j = i+1, j-1 {
		bars[i], bars[j] = bars[j], bars[i]
	}
	return bars, nil
}

// ============================================================================
// EVENTS
// ============================================================================

// InsertEvent appends an event with a JSON payload.
func (r *Repository) InsertEvent(ctx context.Context, eventType, symbol string, payload interface{}) (int64, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("marshal event payload: %w", err)
	}

	var id int64
	err = r.db.Pool.QueryRow(
		ctx,
		`INSERT INTO events (event_type, symbol, event_data) VALUES ($1, $2, $3) RETURNING id`,
		eventType, symbol, data,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert event failed: %w", err)
	}
	return id, nil
}

// GetUnprocessedEvents returns unprocessed events of the given type in
// created_at order, up to limit.
func (r *Repository) GetUnprocessedEvents(ctx context.Context, eventType string, limit int) ([]*Event, error) {
	query := `
		SELECT id, event_type, symbol, event_data, processed, created_at, processed_at, error_message, retry_count
		FROM events
		WHERE processed = FALSE AND event_type = $1
		ORDER BY created_at ASC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, eventType, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Event
	for rows.Next() {
		ev := &Event{}
		err := rows.Scan(
			&ev.ID, &ev.EventType, &ev.Symbol, &ev.EventData, &ev.Processed,
			&ev.CreatedAt, &ev.ProcessedAt, &ev.ErrorMessage, &ev.RetryCount,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// MarkEventProcessed marks the event processed, recording the error message
// when the dispatch failed. Failed events are not retried automatically.
func (r *Repository) MarkEventProcessed(ctx context.Context, id int64, procErr error) error {
	var msg *string
	if procErr != nil {
		s := procErr.Error()
		msg = &s
	}
	_, err := r.db.Pool.Exec(
		ctx,
		`UPDATE events SET processed = TRUE, processed_at = now(), error_message = $2 WHERE id = $1`,
		id, msg,
	)
	return err
}

// ResetEvent clears the processed flag so an operator can replay an event.
func (r *Repository) ResetEvent(ctx context.Context, id int64) error {
	_, err := r.db.Pool.Exec(
		ctx,
		`UPDATE events SET processed = FALSE, processed_at = NULL, error_message = NULL, retry_count = retry_count + 1 WHERE id = $1`,
		id,
	)
	return err
}

// ============================================================================
// SIGNALS
// ============================================================================

// SaveSignal persists an emitted signal.
func (r *Repository) SaveSignal(ctx context.Context, sig *Signal) error {
	tps, err := json.Marshal(sig.TakeProfit)
	if err != nil {
		return fmt.Errorf("marshal take profits: %w", err)
	}

	query := `
		INSERT INTO three_gate_signals
			(symbol, signal_type, overall_confidence, entry_price, stop_loss, take_profit,
			 gate1_pattern, gate1_confidence, gate2_pattern, gate2_confidence, gate3_pattern, gate3_confidence)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`
	return r.db.Pool.QueryRow(
		ctx, query,
		sig.Symbol, sig.SignalType, sig.OverallConfidence, sig.EntryPrice, sig.StopLoss, tps,
		sig.Gate1Pattern, sig.Gate1Confidence, sig.Gate2Pattern, sig.Gate2Confidence,
		sig.Gate3Pattern, sig.Gate3Confidence,
	).Scan(&sig.ID, &sig.CreatedAt)
}

// GetRecentSignals returns the newest signals for the symbol. An empty
// symbol returns signals across all symbols.
func (r *Repository) GetRecentSignals(ctx context.Context, symbol string, limit int) ([]*Signal, error) {
	query := `
		SELECT id, symbol, signal_type, overall_confidence, entry_price, stop_loss, take_profit,
		       gate1_pattern, gate1_confidence, gate2_pattern, gate2_confidence, gate3_pattern, gate3_confidence,
		       created_at
		FROM three_gate_signals
		WHERE ($1 = '' OR symbol = $1)
		ORDER BY created_at DESC
		LIMIT $2
	`
	rows, err := r.db.Pool.Query(ctx, query, symbol, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*Signal
	for rows.Next() {
		sig := &Signal{}
		var tps []byte
		err := rows.Scan(
			&sig.ID, &sig.Symbol, &sig.SignalType, &sig.OverallConfidence,
			&sig.EntryPrice, &sig.StopLoss, &tps,
			&sig.Gate1Pattern, &sig.Gate1Confidence,
			&sig.Gate2Pattern, &sig.Gate2Confidence,
			&sig.Gate3Pattern, &sig.Gate3Confidence,
			&sig.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		if len(tps) > 0 {
			if err := json.Unmarshal(tps, &sig.TakeProfit); err != nil {
				return nil, fmt.Errorf("unmarshal take profits: %w", err)
			}
		}
		out = append(out, sig)
	}
	return out, rows.Err()
}
