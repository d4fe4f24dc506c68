package indicator

import "testing"

func TestSnapshotLookupOrder(t *testing.T) {
	snap := Snapshot{
		"1h_RSI_14": 40.0,
		"4h_RSI_14": 50.0,
		"1d_RSI_14": 60.0,
		"bare_key":  1.0,
	}

	// Requested timeframe wins.
	if v, ok := snap.Lookup("RSI_14", "1h"); !ok || v != 40.0 {
		t.Errorf("Lookup 1h = %v %v", v, ok)
	}

	// Bare key beats prefix fallback.
	if v, ok := snap.Lookup("bare_key", "1h"); !ok || v != 1.0 {
		t.Errorf("Lookup bare = %v %v", v, ok)
	}

	// Missing timeframe falls back through 1d first.
	if v, ok := snap.Lookup("RSI_14", "15m"); !ok || v != 60.0 {
		t.Errorf("fallback should resolve 1d first, got %v %v", v, ok)
	}

	// Without 1d the chain continues to 4h.
	delete(snap, "1d_RSI_14")
	if v, ok := snap.Lookup("RSI_14", "15m"); !ok || v != 50.0 {
		t.Errorf("fallback should resolve 4h next, got %v %v", v, ok)
	}

	if _, ok := snap.Lookup("nothing", "1h"); ok {
		t.Error("unknown indicator should not resolve")
	}
}

func TestSnapshotMerge(t *testing.T) {
	snap := Snapshot{}
	snap.Merge("1h", map[string]interface{}{"RSI_14": 55.0, "Trend_Direction": "BULLISH"})

	if snap["1h_RSI_14"] != 55.0 {
		t.Errorf("merged value = %v", snap["1h_RSI_14"])
	}
	if snap["1h_Trend_Direction"] != "BULLISH" {
		t.Errorf("merged state = %v", snap["1h_Trend_Direction"])
	}
}
