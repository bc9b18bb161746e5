package models

// Config holds all runtime configuration for the assistant.
type Config struct {
	IsTestnet bool   `json:"is_testnet"`
	DBPath    string `json:"db_path"`

	// Monitor settings.
	MonitorIntervalSec   int `json:"monitor_interval_sec"`   // tick interval, default 5
	PriceTimeoutSec      int `json:"price_timeout_sec"`      // per-symbol fetch timeout, default 3
	MaxConcurrentFetches int `json:"max_concurrent_fetches"` // fan-out bound, default 8

	// Persistence retry settings for writes that must not be lost.
	PersistRetryAttempts int `json:"persist_retry_attempts"` // default 5
	PersistRetryMinMs    int `json:"persist_retry_min_ms"`   // default 200
	PersistRetryMaxMs    int `json:"persist_retry_max_ms"`   // default 5000

	// Paper trading settings.
	PaperSlippageRate float64 `json:"paper_slippage_rate,omitempty"`

	// Status report interval, default 30.
	StatusIntervalSec int `json:"status_interval_sec"`

	Telegram  TelegramConfig `json:"telegram"`
	LogConfig LogConfig      `json:"log"`
}

// TelegramConfig configures the optional Telegram notification sink.
// The bot token is taken from the environment, not the config file.
type TelegramConfig struct {
	Enabled bool   `json:"enabled"`
	ChatID  string `json:"chat_id"`
}

// LogConfig defines logging behaviour.
type LogConfig struct {
	Level      string `json:"level"`       // "debug", "info", "warn", "error"
	Output     string `json:"output"`      // "console", "file", "both"
	File       string `json:"file"`        // log file path
	MaxSize    int    `json:"max_size"`    // max size of one log file (MB)
	MaxBackups int    `json:"max_backups"` // rotated files to keep
	MaxAge     int    `json:"max_age"`     // days to keep rotated files
	Compress   bool   `json:"compress"`
}

// ApplyDefaults fills zero values with sane defaults.
func (c *Config) ApplyDefaults() {
	if c.MonitorIntervalSec <= 0 {
		c.MonitorIntervalSec = 5
	}
	if c.PriceTimeoutSec <= 0 {
		c.PriceTimeoutSec = 3
	}
	if c.MaxConcurrentFetches <= 0 {
		c.MaxConcurrentFetches = 8
	}
	if c.PersistRetryAttempts <= 0 {
		c.PersistRetryAttempts = 5
	}
	if c.PersistRetryMinMs <= 0 {
		c.PersistRetryMinMs = 200
	}
	if c.PersistRetryMaxMs <= 0 {
		c.PersistRetryMaxMs = 5000
	}
	if c.StatusIntervalSec <= 0 {
		c.StatusIntervalSec = 30
	}
}
