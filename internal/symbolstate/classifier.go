package symbolstate

import (
	"context"
	"fmt"
	"time"

	"skipper/internal/history"
	"skipper/internal/logger"
	"skipper/internal/model"
	"skipper/internal/trainqueue"
)

// QueueWriter is the slice of the training queue the classifier needs.
type QueueWriter interface {
	PendingSymbols(ctx context.Context) (map[string]struct{}, error)
	EnqueueBatch(ctx context.Context, entries []trainqueue.Entry) (int, error)
}

// EventRecorder receives state-transition events for the audit log. May be
// nil; recording failures never affect classification.
type EventRecorder interface {
	Record(ctx context.Context, kind, symbol, detail string) error
}

// Classifier recomputes every symbol's state against the current model
// handle. It never loads or rotates models itself and is the only component
// that writes training requests.
type Classifier struct {
	metrics    history.Provider
	queue      QueueWriter
	events     EventRecorder
	thresholds Thresholds

	allowUntrained bool
	autoQueue      bool

	last  map[string]State
	nowFn func() time.Time
}

type ClassifierOptions struct {
	Metrics        history.Provider
	Queue          QueueWriter
	Events         EventRecorder
	Thresholds     Thresholds
	AllowUntrained bool
	AutoQueue      bool
}

func NewClassifier(opts ClassifierOptions) (*Classifier, error) {
	if opts.Metrics == nil {
		return nil, fmt.Errorf("classifier requires a history metrics provider")
	}
	if opts.Queue == nil {
		return nil, fmt.Errorf("classifier requires a queue writer")
	}
	return &Classifier{
		metrics:        opts.Metrics,
		queue:          opts.Queue,
		events:         opts.Events,
		thresholds:     opts.Thresholds,
		allowUntrained: opts.AllowUntrained,
		autoQueue:      opts.AutoQueue,
		last:           make(map[string]State),
		nowFn:          time.Now,
	}, nil
}

// Classify is the pure state decision for one symbol. Trained membership
// wins outright; history is not re-validated for trained symbols. Equality
// with a threshold passes it.
func Classify(sym string, m history.Metrics, handle *model.Handle, th Thresholds) State {
	if handle.IsTrained(sym) {
		return StateTrained
	}
	if m.AvailableDays < th.MinHistoryDaysToTrain {
		return StateUntrainedShortHistory
	}
	if m.CoveragePct < th.MinHistoryCoveragePct {
		return StateUntrainedShortHistory
	}
	return StateUntrainedTrainable
}

// ClassifyAll runs one full classification pass: recompute each symbol's
// state, enqueue one training request per trainable symbol without a pending
// entry, and return the new snapshot. The pass is idempotent: unchanged
// inputs produce identical states and zero new queue rows.
//
// Queue writes happen in a single transaction after states are computed; a
// cancelled context rolls the transaction back and the snapshot is not
// returned, so the pass either lands whole or not at all. A queue-write
// failure past that point is logged and retried next slow tick, the states
// themselves still stand.
func (c *Classifier) ClassifyAll(ctx context.Context, symbols []string, handle *model.Handle) (*Snapshot, error) {
	if handle == nil {
		return nil, fmt.Errorf("classification requires a loaded model handle")
	}

	pending, err := c.queue.PendingSymbols(ctx)
	if err != nil {
		return nil, fmt.Errorf("reading pending training entries: %w", err)
	}

	now := c.nowFn().UTC()
	snap := &Snapshot{
		At:             now,
		ModelVersion:   handle.Version,
		States:         make(map[string]State, len(symbols)),
		allowUntrained: c.allowUntrained,
	}
	var candidates []trainqueue.Entry

	for _, sym := range symbols {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		var m history.Metrics
		if !handle.IsTrained(sym) {
			m, err = c.metrics.Metrics(ctx, sym)
			if err != nil {
				logger.Warnf("classify %s: history metrics lookup failed, not tradable this pass: %v", sym, err)
				snap.Failed = append(snap.Failed, sym)
				continue
			}
		}
		state := Classify(sym, m, handle, c.thresholds)
		snap.States[sym] = state

		if state == StateUntrainedTrainable && c.autoQueue {
			if _, has := pending[sym]; !has {
				candidates = append(candidates, trainqueue.Entry{
					Symbol:      sym,
					Reason:      "untrained_trainable",
					RequestedAt: now,
					Context: map[string]any{
						"available_days": m.AvailableDays,
						"coverage_pct":   m.CoveragePct,
						"model_version":  handle.Version,
					},
				})
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if len(candidates) > 0 {
		n, err := c.queue.EnqueueBatch(ctx, candidates)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			logger.Errorf("training queue write failed, will retry next slow tick: %v", err)
		} else if n > 0 {
			logger.Infof("queued %d symbol(s) for external training", n)
		}
	}

	c.logTransitions(ctx, snap)
	return snap, nil
}

// logTransitions emits one line per state change since the previous pass, so
// a blocked symbol is reported when it becomes blocked, not on every tick.
func (c *Classifier) logTransitions(ctx context.Context, snap *Snapshot) {
	for sym, state := range snap.States {
		prev, seen := c.last[sym]
		if seen && prev == state {
			continue
		}
		switch state {
		case StateTrained:
			logger.Infof("symbol %s: TRAINED, tradable", sym)
		case StateUntrainedTrainable:
			logger.Infof("symbol %s: UNTRAINED_TRAINABLE, blocked until externally trained", sym)
		case StateUntrainedShortHistory:
			logger.Infof("symbol %s: UNTRAINED_SHORT_HISTORY (need %d days, %.0f%% coverage), blocked",
				sym, c.thresholds.MinHistoryDaysToTrain, c.thresholds.MinHistoryCoveragePct*100)
		}
		if c.events != nil {
			detail := fmt.Sprintf("%s -> %s", prev, state)
			if !seen {
				detail = fmt.Sprintf("initial %s", state)
			}
			if err := c.events.Record(ctx, "state_transition", sym, detail); err != nil {
				logger.Warnf("event log write failed for %s: %v", sym, err)
			}
		}
		c.last[sym] = state
	}
	// Symbols that left the universe drop out of the transition memory.
	for sym := range c.last {
		if _, ok := snap.States[sym]; !ok {
			if containsString(snap.Failed, sym) {
				continue
			}
			delete(c.last, sym)
		}
	}
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
