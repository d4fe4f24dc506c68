package engine

import (
	"math"

	"fx-signal-engine/internal/indicator"
)

// Risk-management constants. Pip scale is 1e-4 of price on this instrument.
const (
	pipSize          = 1e-4
	minRiskPips      = 3.0
	atrMultiplierMin = 0.8
	atrMultiplierMax = 2.0
	bufferPips       = 2.0
	defaultATR       = 0.01
	tpSnapATRs       = 0.5
)

// Take-profit ladder in R units.
var takeProfitRatios = []float64{2.0, 3.0, 4.0}

// Timeframes contributing support/resistance candidates.
var srTimeframes = []string{"1h", "4h", "1d"}

// Indicator keys used as support/resistance candidates per timeframe.
var srIndicators = []string{
	"BB_Upper", "BB_Middle", "BB_Lower",
	"EMA_21", "EMA_50", "EMA_200",
	"Fib_0.236", "Fib_0.382", "Fib_0.5", "Fib_0.618", "Fib_0.786",
	"Fib_1.272", "Fib_1.414", "Fib_1.618", "Fib_2.0",
}

// computeLevels derives entry, stop-loss and the three take-profit levels
// for a direction. The entry is the current close on the shortest available
// timeframe; the stop honors both structure and the ATR floor; take-profits
// are R-multiples snapped to nearby structure when close enough.
func computeLevels(snap indicator.Snapshot, direction SignalType) (entry, stopLoss float64, takeProfits []float64) {
	entry = entryPrice(snap)
	atr := currentATR(snap)
	levels := srLevels(snap)

	buffer := bufferPips * pipSize
	atrFloor := math.Max(atr*atrMultiplierMin, minRiskPips*pipSize)

	if direction == SignalBuy {
		stopLoss = entry - atrFloor
		if sr, ok := closestLevel(levels, func(l float64) bool { return l <= entry-buffer }, true); ok {
			// The tighter of structure and the ATR floor wins.
			stopLoss = math.Max(sr-buffer, entry-atrFloor)
		}
	} else {
		stopLoss = entry + atrFloor
		if sr, ok := closestLevel(levels, func(l float64) bool { return l >= entry+buffer }, false); ok {
			stopLoss = math.Min(sr+buffer, entry+atrFloor)
		}
	}

	takeProfits = make([]float64, 0, len(takeProfitRatios))
	previous := entry
	for _, ratio := range takeProfitRatios {
		var target float64
		if direction == SignalBuy {
			tpATR := entry + ratio*atr
			target = tpATR
			if sr, ok := nearestTo(levels, tpATR, func(l float64) bool { return l > entry }); ok {
				if math.Abs(sr-tpATR) <= atr*tpSnapATRs {
					if snapped := sr - buffer; snapped > previous {
						target = snapped
					}
				}
			}
			if target <= previous {
				target = tpATR
			}
		} else {
			tpATR := entry - ratio*atr
			target = tpATR
			if sr, ok := nearestTo(levels, tpATR, func(l float64) bool { return l < entry }); ok {
				if math.Abs(sr-tpATR) <= atr*tpSnapATRs {
					if snapped := sr + buffer; snapped < previous {
						target = snapped
					}
				}
			}
			if target >= previous {
				target = tpATR
			}
		}
		takeProfits = append(takeProfits, target)
		previous = target
	}
	return entry, stopLoss, takeProfits
}

// entryPrice prefers the shortest available timeframe's close.
func entryPrice(snap indicator.Snapshot) float64 {
	for _, tf := range []string{"5m", "1h", "4h", "1d"} {
		if v, ok := snapFloat(snap, tf+"_close"); ok && v > 0 {
			return v
		}
	}
	return 0
}

// currentATR returns the first positive ATR across timeframes, defaulting
// to 0.01 exactly when none is available.
func currentATR(snap indicator.Snapshot) float64 {
	for _, key := range []string{"1h_ATR_14", "4h_ATR_14", "5m_ATR_14", "1d_ATR_14"} {
		if v, ok := snapFloat(snap, key); ok && v > 0 {
			return v
		}
	}
	return defaultATR
}

func srLevels(snap indicator.Snapshot) []float64 {
	var levels []float64
	for _, tf := range srTimeframes {
		for _, name := range srIndicators {
			if v, ok := snapFloat(snap, tf+"_"+name); ok && v > 0 {
				levels = append(levels, v)
			}
		}
	}
	return levels
}

// closestLevel returns the qualifying level closest to the entry: the
// highest when highest is true (supports), the lowest otherwise.
func closestLevel(levels []float64, qualifies func(float64) bool, highest bool) (float64, bool) {
	var best float64
	found := false
	for _, l := range levels {
		if !qualifies(l) {
			continue
		}
		if !found || (highest && l > best) || (!highest && l < best) {
			best = l
			found = true
		}
	}
	return best, found
}

// nearestTo returns the qualifying level nearest to the target price.
func nearestTo(levels []float64, target float64, qualifies func(float64) bool) (float64, bool) {
	var best float64
	bestDist := math.MaxFloat64
	found := false
	for _, l := range levels {
		if !qualifies(l) {
			continue
		}
		if d := math.Abs(l - target); d < bestDist {
			best, bestDist = l, d
			found = true
		}
	}
	return best, found
}

func snapFloat(snap indicator.Snapshot, key string) (float64, bool) {
	v, ok := snap[key]
	if !ok {
		return 0, false
	}
	f, ok := toFloat(v)
	return f, ok
}
