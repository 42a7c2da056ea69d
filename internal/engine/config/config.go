package config

import (
	"time"

	"ignitex-signal-engine/pkg/config"
)

// Engine holds pipeline-specific configuration.
type Engine struct {
	Workers          int           `mapstructure:"workers"`
	IntakeBuffer     int           `mapstructure:"intake_buffer"`
	StageTimeout     time.Duration `mapstructure:"stage_timeout"`
	FlushInterval    time.Duration `mapstructure:"flush_interval"`
	SignalTTL        time.Duration `mapstructure:"signal_ttl"`
	DedupTTL         time.Duration `mapstructure:"dedup_ttl"`
	IntakeRatePerSec float64       `mapstructure:"intake_rate_per_sec"`
	IntakeBurst      int           `mapstructure:"intake_burst"`
	StatsRefreshCron string        `mapstructure:"stats_refresh_cron"`
	AutoStart        bool          `mapstructure:"auto_start"`

	// RegimeCompatibility maps a strategy name to the regimes it may trade
	// in; strategies absent from the map are unrestricted.
	RegimeCompatibility map[string][]string `mapstructure:"regime_compatibility"`
}

// Telegram holds configuration for the Telegram broadcaster. Broadcasting is
// disabled when the bot token is empty.
type Telegram struct {
	BotToken string `mapstructure:"bot_token"`
	ChatID   int64  `mapstructure:"chat_id"`
}

// Config holds the full configuration for the engine service.
type Config struct {
	App      config.App      `mapstructure:"app"`
	Logger   config.Logger   `mapstructure:"logger"`
	Database config.Database `mapstructure:"database"`
	Redis    config.Redis    `mapstructure:"redis"`
	API      config.API      `mapstructure:"api"`
	Engine   Engine          `mapstructure:"engine"`
	Telegram Telegram        `mapstructure:"telegram"`
}

// Load loads the engine configuration from the given path.
func Load(path string) (*Config, error) {
	var cfg Config
	if err := config.Load(path, &cfg); err != nil {
		return nil, err
	}
	applyDefaults(&cfg.Engine)
	return &cfg, nil
}

func applyDefaults(e *Engine) {
	if e.Workers <= 0 {
		e.Workers = 4
	}
	if e.IntakeBuffer <= 0 {
		e.IntakeBuffer = 256
	}
	if e.StageTimeout <= 0 {
		e.StageTimeout = 10 * time.Second
	}
	if e.FlushInterval <= 0 {
		e.FlushInterval = time.Second
	}
	if e.SignalTTL <= 0 {
		e.SignalTTL = 4 * time.Hour
	}
	if e.DedupTTL <= 0 {
		e.DedupTTL = 30 * time.Minute
	}
	if e.IntakeRatePerSec <= 0 {
		e.IntakeRatePerSec = 50
	}
	if e.IntakeBurst <= 0 {
		e.IntakeBurst = 100
	}
}
