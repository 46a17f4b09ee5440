package scheduler

import (
	"context"
	"time"

	"skipper/internal/logger"
)

// TickLoop drives the control loop on a single goroutine: one fast tick per
// interval, and every SlowEvery fast ticks the slow callback runs after the
// fast one. Ticks are aligned to wall-clock interval boundaries.
type TickLoop struct {
	Interval       time.Duration
	SlowEvery      int
	RunImmediately bool

	nowFn func() time.Time
}

func NewTickLoop(interval time.Duration, slowEvery int) *TickLoop {
	if slowEvery <= 0 {
		slowEvery = 1
	}
	return &TickLoop{
		Interval:  interval,
		SlowEvery: slowEvery,
		nowFn:     time.Now,
	}
}

// Run blocks until ctx is cancelled. onFast runs every tick; onSlow runs on
// the ticks where fastCount%SlowEvery == 0, strictly after onFast returns, so
// a slow pass never interleaves with the same tick's fast work.
func (l *TickLoop) Run(ctx context.Context, onFast func(tick int), onSlow func(tick int)) {
	if l == nil || onFast == nil {
		return
	}
	if l.Interval <= 0 {
		logger.Warnf("TickLoop: invalid interval=%s, exit", l.Interval)
		return
	}
	if l.nowFn == nil {
		l.nowFn = time.Now
	}

	startAt := l.nowFn().UTC()
	logger.Infof("TickLoop: started interval=%s slow_every=%d run_immediately=%v at=%s",
		l.Interval, l.SlowEvery, l.RunImmediately, startAt.Format(time.RFC3339))

	tick := 0
	runTick := func() {
		tick++
		onFast(tick)
		if onSlow != nil && tick%l.SlowEvery == 0 {
			onSlow(tick)
		}
	}

	if l.RunImmediately {
		runTick()
	}

	for {
		now := l.nowFn().UTC()
		wakeAt := now.Truncate(l.Interval).Add(l.Interval)
		wait := wakeAt.Sub(now)
		if wait <= 0 {
			runTick()
			continue
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			logger.Infof("TickLoop: ctx done after %d tick(s), exit", tick)
			return
		case <-timer.C:
		}
		select {
		case <-ctx.Done():
			logger.Infof("TickLoop: ctx done after %d tick(s), exit", tick)
			return
		default:
		}
		runTick()
	}
}
