package database

import (
	"testing"
	"time"
)

func TestBarQualityScore(t *testing.T) {
	good := &Bar{Open: 150.0, High: 150.2, Low: 149.8, Close: 150.1, Volume: 100}
	if !good.WellFormed() {
		t.Error("bar should be well formed")
	}
	if score := good.ComputeQualityScore(); score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}

	// High below the close: malformed, stored with an attenuated score.
	bad := &Bar{Open: 150.0, High: 149.9, Low: 149.8, Close: 150.1, Volume: 100}
	if bad.WellFormed() {
		t.Error("bar should be malformed")
	}
	if score := bad.ComputeQualityScore(); score != 0.5 {
		t.Errorf("score = %v, want 0.5", score)
	}
}

func TestBarQualityScoreClampsNegativeVolume(t *testing.T) {
	bar := &Bar{Open: 150.0, High: 150.2, Low: 149.8, Close: 150.1, Volume: -5}
	if score := bar.ComputeQualityScore(); score != 1.0 {
		t.Errorf("score = %v, want 1.0", score)
	}
	if bar.Volume != 0 {
		t.Errorf("volume = %d, want clamped to 0", bar.Volume)
	}
}

func TestBarWellFormedBoundaries(t *testing.T) {
	// Equality at the boundaries is allowed.
	flat := &Bar{Open: 150.0, High: 150.0, Low: 150.0, Close: 150.0, Timestamp: time.Now()}
	if !flat.WellFormed() {
		t.Error("flat bar should be well formed")
	}
}
