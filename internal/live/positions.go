package live

import (
	"context"
	"time"

	"skipper/internal/logger"

	"github.com/shopspring/decimal"
)

// Position is an open position as reported by the execution venue.
type Position struct {
	Symbol     string
	Side       string // "long" | "short"
	Quantity   decimal.Decimal
	EntryPrice decimal.Decimal
	MarkPrice  decimal.Decimal
	StopLoss   decimal.Decimal
	TakeProfit decimal.Decimal
	PnL        decimal.Decimal
	OpenedAt   time.Time
}

// PositionSource reports current open positions and account equity.
// Implementations talk to the venue; the loop only consumes snapshots.
type PositionSource interface {
	Open(ctx context.Context) ([]Position, error)
	Equity(ctx context.Context) (decimal.Decimal, error)
}

// Executor closes positions. Exit decisions made here are protective only;
// entries come exclusively from dispatched signals.
type Executor interface {
	ClosePosition(ctx context.Context, p Position, reason string) error
	CloseAll(ctx context.Context, reason string) error
}

// checkExits scans positions for stop-loss / take-profit breaches against the
// mark price and closes the breached ones. Returns the symbols closed.
func checkExits(ctx context.Context, positions []Position, exec Executor) []string {
	if exec == nil {
		return nil
	}
	var closed []string
	for _, p := range positions {
		reason, hit := exitReason(p)
		if !hit {
			continue
		}
		if err := exec.ClosePosition(ctx, p, reason); err != nil {
			logger.Errorf("close %s (%s) failed: %v", p.Symbol, reason, err)
			continue
		}
		logger.Infof("closed %s %s qty=%s entry=%s mark=%s reason=%s",
			p.Symbol, p.Side, p.Quantity, p.EntryPrice, p.MarkPrice, reason)
		closed = append(closed, p.Symbol)
	}
	return closed
}

func exitReason(p Position) (string, bool) {
	if p.MarkPrice.IsZero() {
		return "", false
	}
	long := p.Side == "long"
	if !p.StopLoss.IsZero() {
		if (long && p.MarkPrice.LessThanOrEqual(p.StopLoss)) ||
			(!long && p.MarkPrice.GreaterThanOrEqual(p.StopLoss)) {
			return "stop_loss", true
		}
	}
	if !p.TakeProfit.IsZero() {
		if (long && p.MarkPrice.GreaterThanOrEqual(p.TakeProfit)) ||
			(!long && p.MarkPrice.LessThanOrEqual(p.TakeProfit)) {
			return "take_profit", true
		}
	}
	return "", false
}
