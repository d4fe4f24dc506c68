package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	os.Setenv("CONFIG_FILE", "nonexistent.json")
	defer os.Unsetenv("CONFIG_FILE")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.CollectorConfig.Symbol != "USDJPY=X" {
		t.Errorf("symbol = %q", cfg.CollectorConfig.Symbol)
	}
	if cfg.CollectorConfig.IntervalMinutes != 5 {
		t.Errorf("interval = %d", cfg.CollectorConfig.IntervalMinutes)
	}
	if len(cfg.CollectorConfig.Timeframes) != 5 {
		t.Errorf("timeframes = %v", cfg.CollectorConfig.Timeframes)
	}
	if cfg.EngineConfig.MinConfidence != 0.6 {
		t.Errorf("min confidence = %v", cfg.EngineConfig.MinConfidence)
	}
	if cfg.EngineConfig.SignalIntervalMinutes != 15 {
		t.Errorf("signal interval = %d", cfg.EngineConfig.SignalIntervalMinutes)
	}
	if cfg.AnalysisConfig.Mode != "three_gate" {
		t.Errorf("mode = %q", cfg.AnalysisConfig.Mode)
	}
	if cfg.AnalysisConfig.Lookback != 300 {
		t.Errorf("lookback = %d", cfg.AnalysisConfig.Lookback)
	}
	if cfg.DatabaseConfig.MinConns != 3 || cfg.DatabaseConfig.MaxConns != 15 {
		t.Errorf("pool = %d/%d", cfg.DatabaseConfig.MinConns, cfg.DatabaseConfig.MaxConns)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	os.Setenv("CONFIG_FILE", "nonexistent.json")
	os.Setenv("SYMBOL", "EURUSD=X")
	os.Setenv("ANALYSIS_MODE", "legacy")
	os.Setenv("ENGINE_DISABLE_RATE_LIMIT", "true")
	os.Setenv("DB_PORT", "5433")
	defer func() {
		for _, k := range []string{"CONFIG_FILE", "SYMBOL", "ANALYSIS_MODE", "ENGINE_DISABLE_RATE_LIMIT", "DB_PORT"} {
			os.Unsetenv(k)
		}
	}()

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}

	if cfg.CollectorConfig.Symbol != "EURUSD=X" {
		t.Errorf("symbol = %q", cfg.CollectorConfig.Symbol)
	}
	if cfg.AnalysisConfig.Mode != "legacy" {
		t.Errorf("mode = %q", cfg.AnalysisConfig.Mode)
	}
	if !cfg.EngineConfig.DisableRateLimit {
		t.Error("rate limit override not applied")
	}
	if cfg.DatabaseConfig.Port != 5433 {
		t.Errorf("port = %d", cfg.DatabaseConfig.Port)
	}
}
