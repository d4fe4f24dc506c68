package indicator

// Snapshot is the flat indicator map handed to the engine. Keys are
// "{timeframe}_{indicator}", e.g. "1h_EMA_21". Values are float64 for
// numeric indicators, string for state tags, or []float64 where an operator
// consumes a window.
type Snapshot map[string]interface{}

// lookupOrder is the fixed timeframe fallback order used when a condition
// names an indicator without a resolvable timeframe prefix.
var lookupOrder = []string{"1d", "4h", "1h", "5m"}

// Lookup resolves an indicator name against the snapshot:
//
//  1. "{timeframe}_{name}"
//  2. the name as provided
//  3. each of 1d, 4h, 1h, 5m prefixes in that fixed order
//
// The order is part of the engine contract and must not change.
func (s Snapshot) Lookup(name, timeframe string) (interface{}, bool) {
	if timeframe != "" {
		if v, ok := s[timeframe+"_"+name]; ok {
			return v, true
		}
	}
	if v, ok := s[name]; ok {
		return v, true
	}
	for _, tf := range lookupOrder {
		if v, ok := s[tf+"_"+name]; ok {
			return v, true
		}
	}
	return nil, false
}

// Merge copies values into the snapshot under a timeframe prefix.
func (s Snapshot) Merge(timeframe string, values map[string]interface{}) {
	for k, v := range values {
		s[timeframe+"_"+k] = v
	}
}
