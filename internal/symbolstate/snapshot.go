package symbolstate

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Snapshot is one completed classification pass. It is immutable once
// published; the gate reads it lock-free for a whole fast-tick cadence.
type Snapshot struct {
	At           time.Time
	ModelVersion string
	States       map[string]State
	// Failed lists symbols whose metrics lookup errored this pass; they are
	// not tradable and carry no state until the next pass.
	Failed []string
	// allowUntrained widens tradability to every classified symbol (operator
	// escape hatch mirroring the policy toggle).
	allowUntrained bool
}

// IsTradable reports whether signal processing may run for symbol.
func (s *Snapshot) IsTradable(sym string) bool {
	if s == nil {
		return false
	}
	state, ok := s.States[sym]
	if !ok {
		return false
	}
	if s.allowUntrained {
		return true
	}
	return state == StateTrained
}

func (s *Snapshot) StateOf(sym string) (State, bool) {
	if s == nil {
		return StateUnknown, false
	}
	state, ok := s.States[sym]
	return state, ok
}

// Counts returns how many symbols sit in each state.
func (s *Snapshot) Counts() map[State]int {
	out := make(map[State]int, 3)
	if s == nil {
		return out
	}
	for _, state := range s.States {
		out[state]++
	}
	return out
}

func (s *Snapshot) TradableCount() int {
	if s == nil {
		return 0
	}
	n := 0
	for sym := range s.States {
		if s.IsTradable(sym) {
			n++
		}
	}
	return n
}

// Summary renders the per-tick observability line: counts per state plus
// failures.
func (s *Snapshot) Summary() string {
	if s == nil {
		return "no classification yet"
	}
	counts := s.Counts()
	parts := make([]string, 0, 4)
	for _, st := range []State{StateTrained, StateUntrainedTrainable, StateUntrainedShortHistory} {
		parts = append(parts, fmt.Sprintf("%s=%d", st, counts[st]))
	}
	if len(s.Failed) > 0 {
		failed := append([]string(nil), s.Failed...)
		sort.Strings(failed)
		parts = append(parts, fmt.Sprintf("failed=%d (%s)", len(failed), strings.Join(failed, ",")))
	}
	return fmt.Sprintf("model=v%s %s", s.ModelVersion, strings.Join(parts, " "))
}
