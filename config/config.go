package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

type Config struct {
	DatabaseConfig     DatabaseConfig     `json:"database"`
	CollectorConfig    CollectorConfig    `json:"collector"`
	EngineConfig       EngineConfig       `json:"engine"`
	AnalysisConfig     AnalysisConfig     `json:"analysis"`
	NotificationConfig NotificationConfig `json:"notification"`
	RedisConfig        RedisConfig        `json:"redis"`
	APIConfig          APIConfig          `json:"api"`
	LoggingConfig      LoggingConfig      `json:"logging"`
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	User           string `json:"user"`
	Password       string `json:"password"`
	Database       string `json:"database"`
	SSLMode        string `json:"sslmode"`
	MinConns       int    `json:"min_conns"`
	MaxConns       int    `json:"max_conns"`
	CommandTimeout int    `json:"command_timeout"` // seconds, applied as statement_timeout
}

// CollectorConfig holds market data collection settings
type CollectorConfig struct {
	Symbol          string   `json:"symbol"`           // vendor symbol, e.g. "USDJPY=X"
	IntervalMinutes int      `json:"interval_minutes"` // minutes between collection cycles
	Timeframes      []string `json:"timeframes"`       // subset of 5m 15m 1h 4h 1d
	VendorTimeout   int      `json:"vendor_timeout"`   // seconds
}

// EngineConfig holds three-gate engine settings
type EngineConfig struct {
	ConfigDir             string  `json:"config_dir"`              // directory holding gate{1,2,3}_patterns.yaml
	MinConfidence         float64 `json:"min_confidence"`          // pattern validity threshold
	SignalIntervalMinutes int     `json:"signal_interval_minutes"` // minimum minutes between signals
	DisableRateLimit      bool    `json:"disable_rate_limit"`      // test runs only
}

// AnalysisConfig selects the active analysis backend
type AnalysisConfig struct {
	Mode     string `json:"mode"`     // "three_gate" or "legacy"
	Lookback int    `json:"lookback"` // bars per timeframe fed to the indicator engine
}

type NotificationConfig struct {
	Enabled    bool   `json:"enabled"`
	WebhookURL string `json:"webhook_url"` // generic JSON webhook
	Discord    string `json:"discord_webhook_url"`
}

type RedisConfig struct {
	Enabled  bool   `json:"enabled"`
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
}

type APIConfig struct {
	Enabled bool   `json:"enabled"`
	Addr    string `json:"addr"` // listen address, e.g. ":8090"
}

type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
	Output string `json:"output"`
}

// Load reads config.json (if present), then applies environment variable
// overrides. A .env file in the working directory is honored first.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFromFile(getEnvOrDefault("CONFIG_FILE", "config.json"))
	if err != nil {
		cfg = &Config{}
	}

	applyEnvOverrides(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	// Database
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)
	cfg.DatabaseConfig.MinConns = getEnvIntOrDefault("DB_MIN_CONNS", cfg.DatabaseConfig.MinConns)
	cfg.DatabaseConfig.MaxConns = getEnvIntOrDefault("DB_MAX_CONNS", cfg.DatabaseConfig.MaxConns)

	// Collector
	cfg.CollectorConfig.Symbol = getEnvOrDefault("SYMBOL", cfg.CollectorConfig.Symbol)
	cfg.CollectorConfig.IntervalMinutes = getEnvIntOrDefault("COLLECTION_INTERVAL_MINUTES", cfg.CollectorConfig.IntervalMinutes)

	// Engine
	cfg.EngineConfig.ConfigDir = getEnvOrDefault("ENGINE_CONFIG_DIR", cfg.EngineConfig.ConfigDir)
	cfg.EngineConfig.DisableRateLimit = getEnvOrDefault("ENGINE_DISABLE_RATE_LIMIT", "") == "true" || cfg.EngineConfig.DisableRateLimit

	// Analysis
	cfg.AnalysisConfig.Mode = getEnvOrDefault("ANALYSIS_MODE", cfg.AnalysisConfig.Mode)

	// Notifications
	if v := os.Getenv("NOTIFICATIONS_ENABLED"); v != "" {
		cfg.NotificationConfig.Enabled = v == "true"
	}
	cfg.NotificationConfig.WebhookURL = getEnvOrDefault("NOTIFY_WEBHOOK_URL", cfg.NotificationConfig.WebhookURL)
	cfg.NotificationConfig.Discord = getEnvOrDefault("DISCORD_WEBHOOK_URL", cfg.NotificationConfig.Discord)

	// Redis
	if v := os.Getenv("REDIS_ENABLED"); v != "" {
		cfg.RedisConfig.Enabled = v == "true"
	}
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)

	// API
	if v := os.Getenv("API_ENABLED"); v != "" {
		cfg.APIConfig.Enabled = v == "true"
	}
	cfg.APIConfig.Addr = getEnvOrDefault("API_ADDR", cfg.APIConfig.Addr)

	// Logging
	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Output = getEnvOrDefault("LOG_OUTPUT", cfg.LoggingConfig.Output)
	if v := os.Getenv("LOG_PRETTY"); v != "" {
		cfg.LoggingConfig.Pretty = v == "true"
	}
}

func applyDefaults(cfg *Config) {
	if cfg.DatabaseConfig.Host == "" {
		cfg.DatabaseConfig.Host = "localhost"
	}
	if cfg.DatabaseConfig.Port == 0 {
		cfg.DatabaseConfig.Port = 5432
	}
	if cfg.DatabaseConfig.SSLMode == "" {
		cfg.DatabaseConfig.SSLMode = "disable"
	}
	if cfg.DatabaseConfig.MinConns == 0 {
		cfg.DatabaseConfig.MinConns = 3
	}
	if cfg.DatabaseConfig.MaxConns == 0 {
		cfg.DatabaseConfig.MaxConns = 15
	}
	if cfg.DatabaseConfig.CommandTimeout == 0 {
		cfg.DatabaseConfig.CommandTimeout = 60
	}
	if cfg.CollectorConfig.Symbol == "" {
		cfg.CollectorConfig.Symbol = "USDJPY=X"
	}
	if cfg.CollectorConfig.IntervalMinutes == 0 {
		cfg.CollectorConfig.IntervalMinutes = 5
	}
	if len(cfg.CollectorConfig.Timeframes) == 0 {
		cfg.CollectorConfig.Timeframes = []string{"5m", "15m", "1h", "4h", "1d"}
	}
	if cfg.CollectorConfig.VendorTimeout == 0 {
		cfg.CollectorConfig.VendorTimeout = 30
	}
	if cfg.EngineConfig.ConfigDir == "" {
		cfg.EngineConfig.ConfigDir = "config"
	}
	if cfg.EngineConfig.MinConfidence == 0 {
		cfg.EngineConfig.MinConfidence = 0.6
	}
	if cfg.EngineConfig.SignalIntervalMinutes == 0 {
		cfg.EngineConfig.SignalIntervalMinutes = 15
	}
	if cfg.AnalysisConfig.Mode == "" {
		cfg.AnalysisConfig.Mode = "three_gate"
	}
	if cfg.AnalysisConfig.Lookback == 0 {
		cfg.AnalysisConfig.Lookback = 300
	}
	if cfg.RedisConfig.Addr == "" {
		cfg.RedisConfig.Addr = "localhost:6379"
	}
	if cfg.APIConfig.Addr == "" {
		cfg.APIConfig.Addr = ":8090"
	}
	if cfg.LoggingConfig.Level == "" {
		cfg.LoggingConfig.Level = "info"
	}
}

func loadFromFile(filename string) (*Config, error) {
	file, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(file, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	return &config, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
