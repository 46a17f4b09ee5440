package live

import (
	"context"
	"time"

	"skipper/internal/gate"
	"skipper/internal/logger"

	"github.com/shopspring/decimal"
)

// Signal is an entry intent produced upstream. skipper does not generate
// signals; it only gates and forwards them.
type Signal struct {
	Symbol   string
	Side     string // "long" | "short"
	Strength decimal.Decimal
	At       time.Time
}

// SignalSource drains pending signals for one tick.
type SignalSource interface {
	Pending(ctx context.Context) ([]Signal, error)
}

// Processor executes an admitted signal.
type Processor interface {
	Process(ctx context.Context, s Signal) error
}

// dispatch forwards the tick's signals through the tradability gate.
// A denied symbol is dropped quietly; a processing failure is logged and
// counted but never stops the rest of the batch.
func dispatch(ctx context.Context, src SignalSource, proc Processor, g *gate.Gate) (admitted, blocked, failed int) {
	if src == nil || proc == nil {
		return 0, 0, 0
	}
	signals, err := src.Pending(ctx)
	if err != nil {
		logger.Errorf("signal fetch failed: %v", err)
		return 0, 0, 1
	}
	for _, s := range signals {
		if !g.IsTradable(s.Symbol) {
			blocked++
			continue
		}
		if err := proc.Process(ctx, s); err != nil {
			logger.Errorf("signal %s %s failed: %v", s.Symbol, s.Side, err)
			failed++
			continue
		}
		admitted++
	}
	if blocked > 0 {
		logger.Debugf("dispatch: %d signal(s) blocked by gate", blocked)
	}
	return admitted, blocked, failed
}
