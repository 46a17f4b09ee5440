package config

import (
	"fmt"
	"strings"
	"time"
)

// validate performs basic sanity checks before the process starts trading.
func validate(c *Config) error {
	if err := c.Universe.validate(); err != nil {
		return err
	}
	if err := c.Model.validate(); err != nil {
		return err
	}
	if err := c.Loop.validate(); err != nil {
		return err
	}
	if err := c.Risk.validate(); err != nil {
		return err
	}
	return nil
}

func (u *UniverseConfig) validate() error {
	switch u.Provider {
	case "static":
		if len(u.Symbols) == 0 {
			return fmt.Errorf("universe.symbols requires at least one symbol for the static provider")
		}
	case "file":
		if strings.TrimSpace(u.FilePath) == "" {
			return fmt.Errorf("universe.file_path cannot be empty for the file provider")
		}
	default:
		return fmt.Errorf("universe.provider must be \"static\" or \"file\", got %q", u.Provider)
	}
	return nil
}

func (m *ModelConfig) validate() error {
	if strings.TrimSpace(m.Dir) == "" {
		return fmt.Errorf("model.dir cannot be empty")
	}
	if m.MinHistoryCoveragePct > 1 {
		return fmt.Errorf("model.min_history_coverage_pct must be a fraction in (0,1], got %v", m.MinHistoryCoveragePct)
	}
	if m.MinHistoryDaysToTrain > m.TargetHistoryDays {
		return fmt.Errorf("model.min_history_days_to_train (%d) exceeds target_history_days (%d)",
			m.MinHistoryDaysToTrain, m.TargetHistoryDays)
	}
	return nil
}

func (l *LoopConfig) validate() error {
	if _, err := time.ParseDuration(l.FastInterval); err != nil {
		return fmt.Errorf("loop.fast_interval is not a duration: %w", err)
	}
	return nil
}

func (r *RiskConfig) validate() error {
	if r.MaxDrawdown >= 1 {
		return fmt.Errorf("risk.max_drawdown must be a fraction below 1, got %v", r.MaxDrawdown)
	}
	if r.MaxDailyLoss >= 1 {
		return fmt.Errorf("risk.max_daily_loss must be a fraction below 1, got %v", r.MaxDailyLoss)
	}
	if _, err := time.ParseDuration(r.BreakerTimeout); err != nil {
		return fmt.Errorf("risk.breaker_timeout is not a duration: %w", err)
	}
	return nil
}
