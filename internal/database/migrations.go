package database

import (
	"context"
	"fmt"
)

// RunMigrations creates the schema. Statements are idempotent and run in
// order on every startup.
func (db *DB) RunMigrations(ctx context.Context) error {
	migrations := []string{
		// Time-series store for OHLCV bars
		`CREATE TABLE IF NOT EXISTS price_data (
			symbol TEXT NOT NULL,
			timeframe TEXT NOT NULL,
			timestamp TIMESTAMPTZ NOT NULL,
			open DECIMAL(20, 8) NOT NULL,
			close DECIMAL(20, 8) NOT NULL,
			high DECIMAL(20, 8) NOT NULL,
			low DECIMAL(20, 8) NOT NULL,
			volume BIGINT NOT NULL DEFAULT 0,
			source TEXT DEFAULT 'yahoo_finance',
			data_quality_score DECIMAL(3, 2) DEFAULT 1.0,
			created_at TIMESTAMPTZ DEFAULT now(),
			updated_at TIMESTAMPTZ DEFAULT now(),
			PRIMARY KEY (symbol, timeframe, timestamp)
		)`,

		// Durable event queue coordinating the ingest -> analyze pipeline
		`CREATE TABLE IF NOT EXISTS events (
			id SERIAL PRIMARY KEY,
			event_type VARCHAR(50) NOT NULL,
			symbol VARCHAR(20),
			event_data JSONB,
			processed BOOLEAN DEFAULT FALSE,
			created_at TIMESTAMPTZ DEFAULT now(),
			processed_at TIMESTAMPTZ,
			error_message TEXT,
			retry_count INTEGER DEFAULT 0
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_type_processed ON events(event_type, processed)`,
		`CREATE INDEX IF NOT EXISTS idx_events_created_at ON events(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_symbol ON events(symbol)`,

		// Emitted signals
		`CREATE TABLE IF NOT EXISTS three_gate_signals (
			id SERIAL PRIMARY KEY,
			symbol VARCHAR(20) NOT NULL,
			signal_type VARCHAR(10) NOT NULL,
			overall_confidence DECIMAL(5, 4),
			entry_price DECIMAL(20, 8),
			stop_loss DECIMAL(20, 8),
			take_profit JSONB,
			gate1_pattern VARCHAR(100),
			gate1_confidence DECIMAL(5, 4),
			gate2_pattern VARCHAR(100),
			gate2_confidence DECIMAL(5, 4),
			gate3_pattern VARCHAR(100),
			gate3_confidence DECIMAL(5, 4),
			created_at TIMESTAMPTZ DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_symbol_created ON three_gate_signals(symbol, created_at DESC)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_type ON three_gate_signals(signal_type)`,
		`CREATE INDEX IF NOT EXISTS idx_signals_confidence ON three_gate_signals(overall_confidence DESC)`,
	}

	for i, migration := range migrations {
		if _, err := db.Pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
