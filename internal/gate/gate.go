package gate

import (
	"sync/atomic"

	"skipper/internal/symbolstate"
)

// Gate answers "may signal processing run for this symbol" from the most
// recent classification snapshot. O(1) lookup, no model access, no
// recomputation. Before the first snapshot everything is denied.
//
// The snapshot is swapped whole between ticks by the control loop; readers
// (including the HTTP status server) always see a complete, consistent pass.
type Gate struct {
	snap atomic.Value // *symbolstate.Snapshot
}

func New() *Gate {
	return &Gate{}
}

// Publish installs the result of a completed classification pass.
func (g *Gate) Publish(s *symbolstate.Snapshot) {
	if s == nil {
		return
	}
	g.snap.Store(s)
}

func (g *Gate) Snapshot() *symbolstate.Snapshot {
	s, _ := g.snap.Load().(*symbolstate.Snapshot)
	return s
}

// IsTradable is called on every signal-processing attempt. Denials are
// silent here; the once-per-transition logging lives in the classifier.
func (g *Gate) IsTradable(symbol string) bool {
	return g.Snapshot().IsTradable(symbol)
}

func (g *Gate) StateOf(symbol string) (symbolstate.State, bool) {
	return g.Snapshot().StateOf(symbol)
}
