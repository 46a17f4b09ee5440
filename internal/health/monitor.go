package health

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"skipper/internal/logger"
	"skipper/internal/symbolstate"
)

// Status is the per-check summary written for external alerting. Content
// over format: state counts and the last model rotation are required, the
// rest is operator convenience.
type Status struct {
	Timestamp      time.Time      `json:"timestamp"`
	Health         string         `json:"health_status"` // HEALTHY | DEGRADED | UNHEALTHY
	Issues         []string       `json:"issues,omitempty"`
	Warnings       []string       `json:"warnings,omitempty"`
	ModelVersion   string         `json:"model_version"`
	ModelLoadedAt  time.Time      `json:"model_loaded_at"`
	LastRotation   *time.Time     `json:"last_rotation,omitempty"`
	StateCounts    map[string]int `json:"state_counts"`
	TradableCount  int            `json:"tradable_count"`
	FailedLookups  int            `json:"failed_lookups"`
	QueueDepth     int64          `json:"queue_depth"`
	OpenPositions  int            `json:"open_positions"`
	KillSwitch     bool           `json:"kill_switch"`
	KillReason     string         `json:"kill_switch_reason,omitempty"`
	LastClassified *time.Time     `json:"last_classified,omitempty"`
	Tick           int            `json:"tick"`
}

// Monitor derives a Status from loop state and persists it atomically.
type Monitor struct {
	statusPath     string
	maxClassifyGap time.Duration
	nowFn          func() time.Time
}

func NewMonitor(statusPath string, maxClassifyGap time.Duration) *Monitor {
	return &Monitor{
		statusPath:     statusPath,
		maxClassifyGap: maxClassifyGap,
		nowFn:          time.Now,
	}
}

// Input is everything the monitor needs from the loop for one check.
type Input struct {
	Snapshot      *symbolstate.Snapshot
	ModelVersion  string
	ModelLoadedAt time.Time
	LastRotation  time.Time
	QueueDepth    int64
	OpenPositions int
	KillSwitch    bool
	KillReason    string
	Tick          int
}

// Check builds the status and classifies overall health: a stale or missing
// classification degrades, a tripped kill-switch is flagged but deliberate.
func (m *Monitor) Check(in Input) Status {
	now := m.nowFn().UTC()
	st := Status{
		Timestamp:     now,
		Health:        "HEALTHY",
		ModelVersion:  in.ModelVersion,
		ModelLoadedAt: in.ModelLoadedAt,
		StateCounts:   map[string]int{},
		QueueDepth:    in.QueueDepth,
		OpenPositions: in.OpenPositions,
		KillSwitch:    in.KillSwitch,
		KillReason:    in.KillReason,
		Tick:          in.Tick,
	}
	if !in.LastRotation.IsZero() {
		t := in.LastRotation
		st.LastRotation = &t
	}

	if in.Snapshot == nil {
		st.Warnings = append(st.Warnings, "no classification pass completed yet")
		st.Health = "DEGRADED"
	} else {
		at := in.Snapshot.At
		st.LastClassified = &at
		for state, n := range in.Snapshot.Counts() {
			st.StateCounts[state.String()] = n
		}
		st.TradableCount = in.Snapshot.TradableCount()
		st.FailedLookups = len(in.Snapshot.Failed)
		if m.maxClassifyGap > 0 && now.Sub(at) > m.maxClassifyGap {
			st.Issues = append(st.Issues, "classification stale: last pass "+at.Format(time.RFC3339))
			st.Health = "UNHEALTHY"
		}
		if st.FailedLookups > 0 {
			st.Warnings = append(st.Warnings, "history metric lookups failing")
			if st.Health == "HEALTHY" {
				st.Health = "DEGRADED"
			}
		}
	}

	if in.KillSwitch {
		st.Warnings = append(st.Warnings, "kill switch active: "+in.KillReason)
	}
	return st
}

// Write persists the status file via rename so readers never observe a
// partial document.
func (m *Monitor) Write(st Status) {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		logger.Errorf("status marshal failed: %v", err)
		return
	}
	dir := filepath.Dir(m.statusPath)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			logger.Errorf("status dir: %v", err)
			return
		}
	}
	tmp := m.statusPath + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		logger.Errorf("status write failed: %v", err)
		return
	}
	if err := os.Rename(tmp, m.statusPath); err != nil {
		logger.Errorf("status rename failed: %v", err)
	}
}
