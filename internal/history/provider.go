package history

import (
	"context"
)

// Metrics summarizes how much usable history a symbol has. Derived from the
// candle store, consumed read-only by the classifier.
type Metrics struct {
	AvailableDays int
	CoveragePct   float64
	TotalCandles  int64
}

// Provider yields per-symbol history metrics. A lookup failure affects only
// the symbol in question; callers treat it as not tradable for the pass.
type Provider interface {
	Metrics(ctx context.Context, symbol string) (Metrics, error)
}
