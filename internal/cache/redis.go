package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"fx-signal-engine/internal/engine"
)

const (
	lastSignalKeyPrefix = "signals:last:"
	signalChannel       = "signals"
	lastSignalTTL       = 24 * time.Hour
)

// SignalCache mirrors the most recent signal per symbol into Redis and
// publishes emitted signals on a pub/sub channel. The cache is optional:
// a nil *SignalCache is safe to call and does nothing.
type SignalCache struct {
	client *redis.Client
	logger zerolog.Logger
}

// NewSignalCache connects to Redis. The connection is verified eagerly so a
// misconfigured address fails at startup rather than on first signal.
func NewSignalCache(ctx context.Context, addr, password string, db int, logger zerolog.Logger) (*SignalCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &SignalCache{client: client, logger: logger}, nil
}

// PublishSignal stores the signal as the symbol's latest and announces it on
// the signal channel. Errors are logged and swallowed; the cache is a mirror,
// not the system of record.
func (c *SignalCache) PublishSignal(ctx context.Context, result *engine.ThreeGateResult) {
	if c == nil {
		return
	}

	data, err := json.Marshal(result)
	if err != nil {
		c.logger.Warn().Err(err).Msg("failed to marshal signal for cache")
		return
	}

	if err := c.client.Set(ctx, lastSignalKeyPrefix+result.Symbol, data, lastSignalTTL).Err(); err != nil {
		c.logger.Warn().Err(err).Str("symbol", result.Symbol).Msg("failed to cache signal")
	}
	if err := c.client.Publish(ctx, signalChannel, data).Err(); err != nil {
		c.logger.Warn().Err(err).Str("symbol", result.Symbol).Msg("failed to publish signal")
	}
}

// GetLastSignal returns the cached latest signal for the symbol, or nil when
// none is cached.
func (c *SignalCache) GetLastSignal(ctx context.Context, symbol string) (*engine.ThreeGateResult, error) {
	if c == nil {
		return nil, nil
	}

	data, err := c.client.Get(ctx, lastSignalKeyPrefix+symbol).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var result engine.ThreeGateResult
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("unmarshal cached signal: %w", err)
	}
	return &result, nil
}

// HealthCheck reports whether Redis responds to ping.
func (c *SignalCache) HealthCheck(ctx context.Context) bool {
	if c == nil {
		return true
	}
	return c.client.Ping(ctx).Err() == nil
}

// Close releases the Redis connection.
func (c *SignalCache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
