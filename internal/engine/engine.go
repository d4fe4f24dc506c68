package engine

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/indicator"
	"fx-signal-engine/internal/patterns"
)

// SignalType is the direction of an emitted signal.
type SignalType string

const (
	SignalBuy     SignalType = "BUY"
	SignalSell    SignalType = "SELL"
	SignalNeutral SignalType = "NEUTRAL"
)

// Gate failure pattern identifiers.
const (
	NoValidPattern  = "no_valid_pattern"
	NoValidScenario = "no_valid_scenario"
	NoValidTrigger  = "no_valid_trigger"
)

// GateResult is the outcome of one gate evaluation.
type GateResult struct {
	Valid            bool                   `json:"valid"`
	Pattern          string                 `json:"pattern"`
	Confidence       float64                `json:"confidence"`
	PassedConditions []string               `json:"passed_conditions"`
	FailedConditions []string               `json:"failed_conditions"`
	AdditionalData   map[string]interface{} `json:"additional_data,omitempty"`
	Timestamp        time.Time              `json:"timestamp"`
}

// ThreeGateResult is a fully assembled signal candidate.
type ThreeGateResult struct {
	Symbol            string      `json:"symbol"`
	Gate1             *GateResult `json:"gate1"`
	Gate2             *GateResult `json:"gate2"`
	Gate3             *GateResult `json:"gate3"`
	OverallConfidence float64     `json:"overall_confidence"`
	SignalType        SignalType  `json:"signal_type"`
	EntryPrice        float64     `json:"entry_price"`
	StopLoss          float64     `json:"stop_loss"`
	TakeProfit        []float64   `json:"take_profit"`
	Timestamp         time.Time   `json:"timestamp"`
}

// Config holds engine tunables.
type Config struct {
	MinConfidence    float64       // pattern validity threshold, default 0.6
	SignalInterval   time.Duration // minimum gap between emitted signals
	DisableRateLimit bool          // test runs only
}

// Engine runs Gates 1-3 in strict order against indicator snapshots. One
// engine instance belongs to one goroutine; lastSignal and the pattern cache
// are unsynchronized by design.
type Engine struct {
	loader     *patterns.Loader
	cfg        Config
	logger     zerolog.Logger
	stats      *Stats
	lastSignal time.Time
	now        func() time.Time
}

// New creates an engine reading catalogs through the given loader.
func New(loader *patterns.Loader, cfg Config, logger zerolog.Logger) *Engine {
	if cfg.MinConfidence == 0 {
		cfg.MinConfidence = 0.6
	}
	if cfg.SignalInterval == 0 {
		cfg.SignalInterval = 15 * time.Minute
	}
	return &Engine{
		loader: loader,
		cfg:    cfg,
		logger: logger,
		stats:  NewStats(),
		now:    time.Now,
	}
}

// Stats returns the engine's in-memory counters.
func (e *Engine) Stats() *Stats {
	return e.stats
}

// Evaluate runs the three gates for the symbol. It returns a result only
// when all gates pass, the direction is actionable and the rate limit
// allows emission; a nil result with nil error means "no signal".
func (e *Engine) Evaluate(symbol string, snap indicator.Snapshot) (*ThreeGateResult, error) {
	started := e.now()
	defer func() {
		e.stats.recordEvaluation(e.now().Sub(started))
	}()

	gate1, err := e.evaluateGate1(snap)
	if err != nil {
		return nil, err
	}
	if !gate1.Valid {
		e.logger.Debug().Str("symbol", symbol).Msg("gate 1 rejected")
		return nil, nil
	}
	e.stats.recordGatePass(1)

	gate2, err := e.evaluateGate2(snap, gate1)
	if err != nil {
		return nil, err
	}
	if !gate2.Valid {
		e.logger.Debug().Str("symbol", symbol).Str("environment", gate1.Pattern).Msg("gate 2 rejected")
		return nil, nil
	}
	e.stats.recordGatePass(2)

	gate3, err := e.evaluateGate3(snap, gate1)
	if err != nil {
		return nil, err
	}
	if !gate3.Valid {
		e.logger.Debug().Str("symbol", symbol).Str("environment", gate1.Pattern).Msg("gate 3 rejected")
		return nil, nil
	}
	e.stats.recordGatePass(3)

	signalType := e.signalDirection(gate1.Pattern, gate3)
	if signalType == SignalNeutral {
		e.logger.Debug().Str("symbol", symbol).Str("trigger", gate3.Pattern).
			Msg("no direction for neutral environment, signal suppressed")
		return nil, nil
	}

	// Rate limit applies only once a candidate has passed every gate.
	if !e.cfg.DisableRateLimit && !e.lastSignal.IsZero() {
		if elapsed := e.now().Sub(e.lastSignal); elapsed < e.cfg.SignalInterval {
			e.logger.Info().Str("symbol", symbol).Dur("elapsed", elapsed).
				Dur("interval", e.cfg.SignalInterval).Msg("signal suppressed by rate limit")
			return nil, nil
		}
	}

	entry, stopLoss, takeProfits := computeLevels(snap, signalType)

	result := &ThreeGateResult{
		Symbol:            symbol,
		Gate1:             gate1,
		Gate2:             gate2,
		Gate3:             gate3,
		OverallConfidence: (gate1.Confidence + gate2.Confidence + gate3.Confidence) / 3,
		SignalType:        signalType,
		EntryPrice:        entry,
		StopLoss:          stopLoss,
		TakeProfit:        takeProfits,
		Timestamp:         e.now(),
	}

	e.lastSignal = result.Timestamp
	e.stats.recordSignal()
	e.logger.Info().
		Str("symbol", symbol).
		Str("signal", string(signalType)).
		Float64("confidence", result.OverallConfidence).
		Str("gate1", gate1.Pattern).
		Str("gate2", gate2.Pattern).
		Str("gate3", gate3.Pattern).
		Float64("entry", entry).
		Float64("stop_loss", stopLoss).
		Msg("signal emitted")
	return result, nil
}

// ============================================================================
// GATE 1: ENVIRONMENT RECOGNITION
// ============================================================================

func (e *Engine) evaluateGate1(snap indicator.Snapshot) (*GateResult, error) {
	catalog, err := e.loader.LoadGatePatterns(1)
	if err != nil {
		return nil, fmt.Errorf("load gate 1 catalog: %w", err)
	}

	for _, key := range catalog.PatternOrder {
		pattern := catalog.Patterns[key]
		if len(pattern.Variants) > 0 {
			for _, variantName := range pattern.VariantOrder {
				variant := pattern.Variants[variantName]
				result := e.evaluateConditionSet(
					snap, key+"_"+variantName,
					variant.Conditions, variant.RequiredConditions,
					firstConfidence(variant.MinConfidence, pattern.MinConfidence),
				)
				if result.Valid {
					return result, nil
				}
			}
			continue
		}
		result := e.evaluateConditionSet(snap, key, pattern.Conditions, pattern.RequiredConditions, pattern.MinConfidence)
		if result.Valid {
			return result, nil
		}
	}

	return &GateResult{Pattern: NoValidPattern, Timestamp: e.now()}, nil
}

// ============================================================================
// GATE 2: SCENARIO SELECTION
// ============================================================================

// defaultEnvironmentMapping applies only when the catalog has no
// environment_mapping section at all.
var defaultEnvironmentMapping = map[string][]string{
	"trending_market": {"pullback_setup", "breakout_setup"},
	"trend_reversal":  {"first_pullback"},
	"ranging_market":  {"range_boundary"},
}

func (e *Engine) evaluateGate2(snap indicator.Snapshot, gate1 *GateResult) (*GateResult, error) {
	catalog, err := e.loader.LoadGatePatterns(2)
	if err != nil {
		return nil, fmt.Errorf("load gate 2 catalog: %w", err)
	}

	environment := normalizeEnvironment(gate1.Pattern)
	mapping := catalog.EnvironmentMapping
	if len(mapping) == 0 {
		mapping = defaultEnvironmentMapping
	}
	scenarios := mapping[environment]

	var evaluated []map[string]interface{}
	for _, name := range scenarios {
		pattern, ok := catalog.Patterns[name]
		if !ok {
			continue
		}

		if len(pattern.EnvironmentConditions) > 0 {
			for _, envKey := range pattern.EnvironmentOrder {
				if !matchesEnvironment(envKey, gate1.Pattern) {
					continue
				}
				variant := pattern.EnvironmentConditions[envKey]
				result := e.evaluateConditionSet(
					snap, name+"_"+envKey,
					variant.Conditions, variant.RequiredConditions,
					firstConfidence(variant.MinConfidence, pattern.MinConfidence),
				)
				if result.Valid {
					result.AdditionalData["gate1_environment"] = gate1.Pattern
					return result, nil
				}
				evaluated = append(evaluated, summarize(result))
			}
			continue
		}

		result := e.evaluateConditionSet(snap, name, pattern.Conditions, pattern.RequiredConditions, pattern.MinConfidence)
		if result.Valid {
			result.AdditionalData["gate1_environment"] = gate1.Pattern
			return result, nil
		}
		evaluated = append(evaluated, summarize(result))
	}

	return &GateResult{
		Pattern:   NoValidScenario,
		Timestamp: e.now(),
		AdditionalData: map[string]interface{}{
			"gate1_environment":   gate1.Pattern,
			"scenarios_evaluated": evaluated,
		},
	}, nil
}

// normalizeEnvironment strips the directional suffix from a Gate 1 pattern
// name. The rule is part of the catalog contract and must not change.
func normalizeEnvironment(pattern string) string {
	pattern = strings.TrimSuffix(pattern, "_bullish")
	pattern = strings.TrimSuffix(pattern, "_bearish")
	return pattern
}

// matchesEnvironment relates an environment_conditions key to the Gate 1
// pattern that selected it.
func matchesEnvironment(key, gate1Pattern string) bool {
	switch key {
	case "trending_bull":
		return gate1Pattern == "trending_market_bullish"
	case "trending_bear":
		return gate1Pattern == "trending_market_bearish"
	case "trend_reversal":
		return strings.HasPrefix(gate1Pattern, "trend_reversal")
	case "ranging_market":
		return strings.HasPrefix(gate1Pattern, "ranging_market")
	}
	return key == gate1Pattern
}

// ============================================================================
// GATE 3: TRIGGER
// ============================================================================

func (e *Engine) evaluateGate3(snap indicator.Snapshot, gate1 *GateResult) (*GateResult, error) {
	catalog, err := e.loader.LoadGatePatterns(3)
	if err != nil {
		return nil, fmt.Errorf("load gate 3 catalog: %w", err)
	}

	for _, key := range catalog.PatternOrder {
		pattern := catalog.Patterns[key]
		if len(pattern.AllowedEnvironments) > 0 && !contains(pattern.AllowedEnvironments, gate1.Pattern) {
			continue
		}

		if len(pattern.Variants) > 0 {
			for _, variantName := range pattern.VariantOrder {
				variant := pattern.Variants[variantName]
				result := e.evaluateConditionSet(
					snap, key+"_"+variantName,
					variant.Conditions, variant.RequiredConditions,
					firstConfidence(variant.MinConfidence, pattern.MinConfidence),
				)
				if result.Valid {
					if direction := firstNonEmpty(variant.Direction, pattern.Direction); direction != "" {
						result.AdditionalData["direction"] = direction
					}
					return result, nil
				}
			}
			continue
		}

		result := e.evaluateConditionSet(snap, key, pattern.Conditions, pattern.RequiredConditions, pattern.MinConfidence)
		if result.Valid {
			if pattern.Direction != "" {
				result.AdditionalData["direction"] = pattern.Direction
			}
			return result, nil
		}
	}

	return &GateResult{Pattern: NoValidTrigger, Timestamp: e.now()}, nil
}

// ============================================================================
// PATTERN EVALUATION
// ============================================================================

// evaluateConditionSet scores one pattern or variant: weighted mean of
// condition scores, a condition passing at >= 0.5, validity requiring the
// confidence threshold and every required condition passed.
func (e *Engine) evaluateConditionSet(snap indicator.Snapshot, name string, conditions []*patterns.Condition, required []string, minConfidence *float64) *GateResult {
	result := &GateResult{
		Pattern:        name,
		Timestamp:      e.now(),
		AdditionalData: map[string]interface{}{},
	}

	details := make(map[string]string, len(conditions))
	var weightedSum, totalWeight float64
	for _, cond := range conditions {
		score, detail := EvaluateCondition(snap, cond)
		weight := 1.0
		if cond.Weight != nil {
			weight = *cond.Weight
		}
		weightedSum += score * weight
		totalWeight += weight
		details[cond.Name] = detail

		if score >= 0.5 {
			result.PassedConditions = append(result.PassedConditions, cond.Name)
		} else {
			result.FailedConditions = append(result.FailedConditions, cond.Name)
		}
	}
	result.AdditionalData["condition_details"] = details

	if totalWeight > 0 {
		result.Confidence = weightedSum / totalWeight
	}

	threshold := e.cfg.MinConfidence
	if minConfidence != nil {
		threshold = *minConfidence
	}

	result.Valid = result.Confidence >= threshold
	for _, name := range required {
		if !contains(result.PassedConditions, name) {
			result.Valid = false
			break
		}
	}
	return result
}

// signalDirection derives the trade direction: the Gate 1 environment when
// it is directional, otherwise the Gate 3 trigger's structured direction,
// otherwise substring inference on the trigger name.
func (e *Engine) signalDirection(gate1Pattern string, gate3 *GateResult) SignalType {
	if strings.Contains(gate1Pattern, "bullish") {
		return SignalBuy
	}
	if strings.Contains(gate1Pattern, "bearish") {
		return SignalSell
	}

	if direction, ok := gate3.AdditionalData["direction"].(string); ok {
		switch strings.ToLower(direction) {
		case "buy":
			return SignalBuy
		case "sell":
			return SignalSell
		}
	}

	name := gate3.Pattern
	for _, marker := range []string{"pinbar_down", "bearish", "momentum_down"} {
		if strings.Contains(name, marker) {
			return SignalSell
		}
	}
	for _, marker := range []string{"pinbar_up", "bullish", "momentum_up"} {
		if strings.Contains(name, marker) {
			return SignalBuy
		}
	}
	return SignalNeutral
}

func summarize(result *GateResult) map[string]interface{} {
	return map[string]interface{}{
		"pattern":           result.Pattern,
		"confidence":        result.Confidence,
		"failed_conditions": result.FailedConditions,
		"condition_details": result.AdditionalData["condition_details"],
	}
}

func firstConfidence(values ...*float64) *float64 {
	for _, v := range values {
		if v != nil {
			return v
		}
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func contains(list []string, value string) bool {
	for _, item := range list {
		if item == value {
			return true
		}
	}
	return false
}
