package engine

import (
	"testing"

	"github.com/rs/zerolog"

	"fx-signal-engine/internal/indicator"
	"fx-signal-engine/internal/patterns"
)

const shippedCatalogDir = "../../config"

func TestShippedCatalogsLoad(t *testing.T) {
	loader := patterns.NewLoader(shippedCatalogDir, zerolog.Nop())
	for gate := 1; gate <= 3; gate++ {
		catalog, err := loader.LoadGatePatterns(gate)
		if err != nil {
			t.Fatalf("gate %d: %v", gate, err)
		}
		if len(catalog.Patterns) == 0 {
			t.Errorf("gate %d: no patterns", gate)
		}
	}
}

// A small nonzero histogram must count as fading; the band is absolute, not
// scaled by the reference.
func TestFirstPullbackHistogramBand(t *testing.T) {
	loader := patterns.NewLoader(shippedCatalogDir, zerolog.Nop())
	catalog, err := loader.LoadGatePatterns(2)
	if err != nil {
		t.Fatal(err)
	}
	variant := catalog.Patterns["first_pullback"].EnvironmentConditions["trend_reversal"]
	if variant == nil {
		t.Fatal("first_pullback has no trend_reversal conditions")
	}

	e := New(patterns.NewLoader(t.TempDir(), zerolog.Nop()), Config{}, zerolog.Nop())
	snap := indicator.Snapshot{
		"1h_close":          150.1,
		"1h_EMA_21":         150.0,
		"1h_RSI_14":         50.0,
		"1h_MACD_Histogram": 0.02,
	}
	result := e.evaluateConditionSet(snap, "first_pullback_trend_reversal",
		variant.Conditions, variant.RequiredConditions, nil)

	if !contains(result.PassedConditions, "histogram_fading") {
		t.Errorf("histogram 0.02 failed the fading band: %v", result.FailedConditions)
	}
	if !result.Valid {
		t.Errorf("expected valid scenario, failed conditions: %v", result.FailedConditions)
	}

	snap["1h_MACD_Histogram"] = 0.2
	result = e.evaluateConditionSet(snap, "first_pullback_trend_reversal",
		variant.Conditions, variant.RequiredConditions, nil)
	if contains(result.PassedConditions, "histogram_fading") {
		t.Error("histogram 0.2 passed the fading band")
	}
}
