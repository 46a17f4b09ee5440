package config

// Config is the top-level configuration for skipper.
type Config struct {
	App      AppConfig      `toml:"app"`
	Universe UniverseConfig `toml:"universe"`
	Model    ModelConfig    `toml:"model"`
	Queue    QueueConfig    `toml:"queue"`
	History  HistoryConfig  `toml:"history"`
	Loop     LoopConfig     `toml:"loop"`
	Risk     RiskConfig     `toml:"risk"`
	Health   HealthConfig   `toml:"health"`
	EventLog EventLogConfig `toml:"event_log"`
}

type AppConfig struct {
	Env      string `toml:"env"`
	LogLevel string `toml:"log_level"`
	LogPath  string `toml:"log_path"`
	HTTPAddr string `toml:"http_addr"`
}

// UniverseConfig selects where the tradable instrument set comes from.
// The universe is owned externally; skipper only consumes it.
type UniverseConfig struct {
	Provider    string   `toml:"provider"` // "static" | "file"
	Symbols     []string `toml:"symbols"`
	FilePath    string   `toml:"file_path"`
	QuoteAsset  string   `toml:"quote_asset"`
	RefreshSlow bool     `toml:"refresh_on_slow_tick"`
}

// ModelConfig covers the model artifact directory and the policy thresholds
// the classifier applies. Thresholds are immutable for the process run.
type ModelConfig struct {
	Dir                   string  `toml:"dir"`
	TargetHistoryDays     int     `toml:"target_history_days"`
	MinHistoryDaysToTrain int     `toml:"min_history_days_to_train"`
	MinHistoryCoveragePct float64 `toml:"min_history_coverage_pct"`
	// Zero values keep the safe behavior: untrained and short-history
	// symbols blocked, new trainable symbols queued, directory watched.
	AllowUntrainedSymbols bool `toml:"allow_untrained_symbols"`
	DisableAutoQueue      bool `toml:"disable_auto_queue"`
	DisableWatch          bool `toml:"disable_watch"`
}

type QueueConfig struct {
	Path string `toml:"path"`
}

// HistoryConfig points at the candle store populated by the external data
// collector. skipper only reads it to derive history metrics.
type HistoryConfig struct {
	Path            string `toml:"path"`
	IntervalMinutes int    `toml:"interval_minutes"`
}

type LoopConfig struct {
	FastInterval   string `toml:"fast_interval"` // e.g. "1m"
	SlowEvery      int    `toml:"slow_every"`    // slow tick every N fast ticks
	RunImmediately bool   `toml:"run_immediately"`
}

type RiskConfig struct {
	MaxDrawdown      float64 `toml:"max_drawdown"`
	MaxDailyLoss     float64 `toml:"max_daily_loss"`
	MaxErrors        int     `toml:"max_errors"`
	BreakerThreshold int     `toml:"breaker_threshold"`
	BreakerTimeout   string  `toml:"breaker_timeout"`
}

type HealthConfig struct {
	StatusPath          string `toml:"status_path"`
	CheckEveryFastTicks int    `toml:"check_every_fast_ticks"`
	// StaleAfterMinutes marks the status UNHEALTHY when no classification
	// pass has completed for this long.
	StaleAfterMinutes int `toml:"stale_after_minutes"`
}

type EventLogConfig struct {
	Path string `toml:"path"`
}
