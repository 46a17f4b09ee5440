package model

import (
	"time"
)

// Handle is an immutable reference to one loaded model version. It is created
// by the Manager and never mutated; consumers hold it for at most one tick.
type Handle struct {
	Version      string
	LoadID       string
	LoadedAt     time.Time
	TrainedAt    time.Time
	TrainingDays int

	trained map[string]struct{}
}

// NewHandle is exported for tests and replay harnesses; live code obtains
// handles from Manager.Load / Manager.MaybeRotate.
func NewHandle(version, loadID string, loadedAt time.Time, trainedSymbols []string) *Handle {
	h := &Handle{
		Version:  version,
		LoadID:   loadID,
		LoadedAt: loadedAt,
		trained:  make(map[string]struct{}, len(trainedSymbols)),
	}
	for _, s := range trainedSymbols {
		h.trained[s] = struct{}{}
	}
	return h
}

// IsTrained reports trained-set membership for a symbol.
func (h *Handle) IsTrained(symbol string) bool {
	if h == nil {
		return false
	}
	_, ok := h.trained[symbol]
	return ok
}

func (h *Handle) TrainedCount() int {
	if h == nil {
		return 0
	}
	return len(h.trained)
}

// TrainedSymbols returns a copy; the internal set stays immutable.
func (h *Handle) TrainedSymbols() []string {
	if h == nil {
		return nil
	}
	out := make([]string, 0, len(h.trained))
	for s := range h.trained {
		out = append(out, s)
	}
	return out
}
