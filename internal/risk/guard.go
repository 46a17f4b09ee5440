package risk

import (
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// Guard is the kill-switch: a deliberate, global trading halt on drawdown,
// daily loss or error pile-up. Daily loss is the equity delta since the first
// equity reading of the UTC day. A trip suspends signal dispatch but the loop
// keeps running so the operator can watch recovery.
//
// Guarded by a mutex: the loop feeds it every fast tick and the admin reset
// endpoint may clear it from another goroutine.
type Guard struct {
	mu sync.Mutex

	maxDrawdown  decimal.Decimal
	maxDailyLoss decimal.Decimal
	maxErrors    int

	peakEquity decimal.Decimal
	hasEquity  bool

	dayOpenEquity decimal.Decimal
	dailyPnL      decimal.Decimal
	dailyReset    time.Time

	errorCount int
	tripped    bool
	tripReason string
	trippedAt  time.Time

	nowFn func() time.Time
}

type GuardOptions struct {
	MaxDrawdown  float64 // fraction of peak equity, 0 disables
	MaxDailyLoss float64 // fraction of current equity, 0 disables
	MaxErrors    int
}

func NewGuard(opts GuardOptions) *Guard {
	g := &Guard{
		maxDrawdown:  decimal.NewFromFloat(opts.MaxDrawdown),
		maxDailyLoss: decimal.NewFromFloat(opts.MaxDailyLoss),
		maxErrors:    opts.MaxErrors,
		nowFn:        time.Now,
	}
	g.dailyReset = g.nowFn().UTC().Truncate(24 * time.Hour)
	return g
}

// UpdateEquity tracks peak equity and the running daily PnL. The first
// reading of a UTC day becomes the day-open baseline; every later reading
// sets dailyPnL to the delta from that baseline.
func (g *Guard) UpdateEquity(equity decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateEquityLocked(equity)
}

func (g *Guard) updateEquityLocked(equity decimal.Decimal) {
	day := g.nowFn().UTC().Truncate(24 * time.Hour)
	if !g.hasEquity {
		g.peakEquity = equity
		g.dayOpenEquity = equity
		g.dailyReset = day
		g.hasEquity = true
	}
	if equity.GreaterThan(g.peakEquity) {
		g.peakEquity = equity
	}
	if day.After(g.dailyReset) {
		g.dayOpenEquity = equity
		g.dailyReset = day
	}
	g.dailyPnL = equity.Sub(g.dayOpenEquity)
}

// RecordError counts a loop-level operational error toward the trip limit.
func (g *Guard) RecordError() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errorCount++
}

func (g *Guard) ResetErrors() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.errorCount = 0
}

// Check evaluates the kill-switch against the latest equity. Once tripped it
// stays tripped until Reset; re-evaluation only refreshes the reason.
func (g *Guard) Check(equity decimal.Decimal) (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.updateEquityLocked(equity)

	if g.maxDrawdown.IsPositive() && g.hasEquity && g.peakEquity.IsPositive() {
		drawdown := g.peakEquity.Sub(equity).Div(g.peakEquity)
		if drawdown.GreaterThan(g.maxDrawdown) {
			g.trip(fmt.Sprintf("drawdown exceeded: %s", drawdown.StringFixed(4)))
			return true, g.tripReason
		}
	}

	if g.maxDailyLoss.IsPositive() {
		lossLimit := equity.Mul(g.maxDailyLoss).Abs().Neg()
		if g.dailyPnL.LessThan(lossLimit) {
			g.trip(fmt.Sprintf("daily loss limit exceeded: %s", g.dailyPnL.StringFixed(2)))
			return true, g.tripReason
		}
	}

	if g.maxErrors > 0 && g.errorCount > g.maxErrors {
		g.trip(fmt.Sprintf("too many errors: %d", g.errorCount))
		return true, g.tripReason
	}

	return g.tripped, g.tripReason
}

func (g *Guard) trip(reason string) {
	if !g.tripped {
		g.trippedAt = g.nowFn().UTC()
	}
	g.tripped = true
	g.tripReason = reason
}

func (g *Guard) Tripped() (bool, string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tripped, g.tripReason
}

func (g *Guard) TrippedAt() time.Time {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.trippedAt
}

// Reset clears a trip after operator intervention.
func (g *Guard) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.tripped = false
	g.tripReason = ""
	g.trippedAt = time.Time{}
	g.errorCount = 0
}
