package config

const (
	defaultAppEnv            = "dev"
	defaultAppLogLevel       = "info"
	defaultAppHTTPAddr       = ":9992"
	defaultAppLogPath        = "/data/logs/skipper-live.log"
	defaultUniverseProvider  = "static"
	defaultUniverseQuote     = "USDT"
	defaultModelDir          = "/data/models"
	defaultTargetHistoryDays = 730
	defaultMinHistoryDays    = 90
	defaultMinCoveragePct    = 0.95
	defaultQueuePath         = "/data/db/training_queue.db"
	defaultHistoryPath       = "/data/db/candles.db"
	defaultHistoryInterval   = 60
	defaultFastInterval      = "1m"
	defaultSlowEvery         = 5
	defaultMaxDrawdown       = 0.15
	defaultMaxDailyLoss      = 0.05
	defaultMaxErrors         = 10
	defaultBreakerThreshold  = 5
	defaultBreakerTimeout    = "2m"
	defaultStatusPath        = "/data/logs/skipper-status.json"
	defaultHealthEvery       = 5
	defaultStaleAfterMin     = 15
	defaultEventLogPath      = "/data/db/events.db"
)

func (c *Config) applyDefaults() {
	c.App.applyDefaults()
	c.Universe.applyDefaults()
	c.Model.applyDefaults()
	c.Queue.applyDefaults()
	c.History.applyDefaults()
	c.Loop.applyDefaults()
	c.Risk.applyDefaults()
	c.Health.applyDefaults()
	c.EventLog.applyDefaults()
}

func (a *AppConfig) applyDefaults() {
	if a.Env == "" {
		a.Env = defaultAppEnv
	}
	if a.LogLevel == "" {
		a.LogLevel = defaultAppLogLevel
	}
	if a.HTTPAddr == "" {
		a.HTTPAddr = defaultAppHTTPAddr
	}
	if a.LogPath == "" {
		a.LogPath = defaultAppLogPath
	}
}

func (u *UniverseConfig) applyDefaults() {
	if u.Provider == "" {
		u.Provider = defaultUniverseProvider
	}
	if u.QuoteAsset == "" {
		u.QuoteAsset = defaultUniverseQuote
	}
}

func (m *ModelConfig) applyDefaults() {
	if m.Dir == "" {
		m.Dir = defaultModelDir
	}
	if m.TargetHistoryDays <= 0 {
		m.TargetHistoryDays = defaultTargetHistoryDays
	}
	if m.MinHistoryDaysToTrain <= 0 {
		m.MinHistoryDaysToTrain = defaultMinHistoryDays
	}
	if m.MinHistoryCoveragePct <= 0 {
		m.MinHistoryCoveragePct = defaultMinCoveragePct
	}
}

func (q *QueueConfig) applyDefaults() {
	if q.Path == "" {
		q.Path = defaultQueuePath
	}
}

func (h *HistoryConfig) applyDefaults() {
	if h.Path == "" {
		h.Path = defaultHistoryPath
	}
	if h.IntervalMinutes <= 0 {
		h.IntervalMinutes = defaultHistoryInterval
	}
}

func (l *LoopConfig) applyDefaults() {
	if l.FastInterval == "" {
		l.FastInterval = defaultFastInterval
	}
	if l.SlowEvery <= 0 {
		l.SlowEvery = defaultSlowEvery
	}
}

func (r *RiskConfig) applyDefaults() {
	if r.MaxDrawdown <= 0 {
		r.MaxDrawdown = defaultMaxDrawdown
	}
	if r.MaxDailyLoss <= 0 {
		r.MaxDailyLoss = defaultMaxDailyLoss
	}
	if r.MaxErrors <= 0 {
		r.MaxErrors = defaultMaxErrors
	}
	if r.BreakerThreshold <= 0 {
		r.BreakerThreshold = defaultBreakerThreshold
	}
	if r.BreakerTimeout == "" {
		r.BreakerTimeout = defaultBreakerTimeout
	}
}

func (h *HealthConfig) applyDefaults() {
	if h.StatusPath == "" {
		h.StatusPath = defaultStatusPath
	}
	if h.CheckEveryFastTicks <= 0 {
		h.CheckEveryFastTicks = defaultHealthEvery
	}
	if h.StaleAfterMinutes <= 0 {
		h.StaleAfterMinutes = defaultStaleAfterMin
	}
}

func (e *EventLogConfig) applyDefaults() {
	if e.Path == "" {
		e.Path = defaultEventLogPath
	}
}
