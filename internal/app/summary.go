package app

import (
	"fmt"
	"strings"
)

// StartupSummary is printed once after a successful build so an operator can
// confirm the effective configuration without digging through the log.
type StartupSummary struct {
	Model    ModelSummary
	Universe UniverseSummary
	Loop     LoopSummary
	Risk     RiskSummary
	Paths    PathSummary
}

type ModelSummary struct {
	Dir                   string
	TargetHistoryDays     int
	MinHistoryDaysToTrain int
	MinHistoryCoveragePct float64
	AllowUntrained        bool
	AutoQueue             bool
	WatchDir              bool
}

type UniverseSummary struct {
	Provider string
	Symbols  []string
}

type LoopSummary struct {
	FastInterval   string
	SlowEvery      int
	RunImmediately bool
}

type RiskSummary struct {
	MaxDrawdown  float64
	MaxDailyLoss float64
	MaxErrors    int
}

type PathSummary struct {
	Queue    string
	History  string
	EventLog string
	Status   string
	HTTPAddr string
}

func (s *StartupSummary) Print() {
	line := strings.Repeat("=", 72)
	fmt.Println(line)
	fmt.Println("STARTUP SUMMARY")
	fmt.Println(line)

	fmt.Println("[MODEL]")
	fmt.Printf("  dir: %s (watch=%v)\n", s.Model.Dir, s.Model.WatchDir)
	fmt.Printf("  thresholds: target=%dd min_train=%dd min_coverage=%.0f%%\n",
		s.Model.TargetHistoryDays, s.Model.MinHistoryDaysToTrain, s.Model.MinHistoryCoveragePct*100)
	fmt.Printf("  policy: allow_untrained=%v auto_queue=%v\n", s.Model.AllowUntrained, s.Model.AutoQueue)
	fmt.Println()

	fmt.Println("[UNIVERSE]")
	fmt.Printf("  provider: %s\n", s.Universe.Provider)
	fmt.Printf("  symbols: %s\n", formatList(s.Universe.Symbols))
	fmt.Println()

	fmt.Println("[LOOP]")
	fmt.Printf("  fast=%s slow_every=%d run_immediately=%v\n",
		s.Loop.FastInterval, s.Loop.SlowEvery, s.Loop.RunImmediately)
	fmt.Println()

	fmt.Println("[RISK]")
	fmt.Printf("  max_drawdown=%.0f%% max_daily_loss=%.0f%% max_errors=%d\n",
		s.Risk.MaxDrawdown*100, s.Risk.MaxDailyLoss*100, s.Risk.MaxErrors)
	fmt.Println()

	fmt.Println("[PATHS]")
	fmt.Printf("  queue=%s\n", s.Paths.Queue)
	fmt.Printf("  history=%s\n", s.Paths.History)
	fmt.Printf("  event_log=%s\n", s.Paths.EventLog)
	fmt.Printf("  status=%s http=%s\n", s.Paths.Status, s.Paths.HTTPAddr)
	fmt.Println(line)
}

func formatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	if len(items) > 12 {
		return fmt.Sprintf("%s ... (%d total)", strings.Join(items[:12], ", "), len(items))
	}
	return strings.Join(items, ", ")
}
