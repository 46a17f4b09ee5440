package live

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"skipper/internal/gate"
	"skipper/internal/health"
	"skipper/internal/logger"
	"skipper/internal/model"
	"skipper/internal/pkg/circuit"
	"skipper/internal/risk"
	"skipper/internal/scheduler"
	"skipper/internal/store/eventlog"
	"skipper/internal/symbolstate"
	"skipper/internal/trainqueue"
	"skipper/internal/universe"
)

// Service is the live control loop. Everything below it is driven from a
// single goroutine: fast ticks do position/risk/dispatch work, slow ticks do
// the model rotation check and the classification pass. The gate snapshot is
// the only state shared outward, and it is swapped atomically.
type Service struct {
	universe   universe.Provider
	manager    *model.Manager
	classifier *symbolstate.Classifier
	gate       *gate.Gate
	guard      *risk.Guard
	monitor    *health.Monitor
	queue      *trainqueue.Store
	events     *eventlog.Store

	positions PositionSource
	exec      Executor
	signals   SignalSource
	proc      Processor
	venueCB   *circuit.CircuitBreaker

	fastInterval   time.Duration
	slowEvery      int
	runImmediately bool
	healthEvery    int

	symbols      []string // last known universe
	tracked      map[string]struct{}
	openCount    int
	tripHandled  atomic.Bool
	lastStatus   atomic.Pointer[health.Status]
	lastRotation time.Time
}

type ServiceOptions struct {
	Universe   universe.Provider
	Manager    *model.Manager
	Classifier *symbolstate.Classifier
	Gate       *gate.Gate
	Guard      *risk.Guard
	Monitor    *health.Monitor
	Queue      *trainqueue.Store
	Events     *eventlog.Store

	// Venue-facing hooks. All optional: the loop degrades to a
	// classification-only daemon without them.
	Positions PositionSource
	Executor  Executor
	Signals   SignalSource
	Processor Processor
	VenueCB   *circuit.CircuitBreaker

	FastInterval   time.Duration
	SlowEvery      int
	RunImmediately bool
	HealthEvery    int
}

func NewService(opts ServiceOptions) (*Service, error) {
	switch {
	case opts.Universe == nil:
		return nil, fmt.Errorf("live service requires a universe provider")
	case opts.Manager == nil:
		return nil, fmt.Errorf("live service requires a model manager")
	case opts.Classifier == nil:
		return nil, fmt.Errorf("live service requires a classifier")
	case opts.Gate == nil:
		return nil, fmt.Errorf("live service requires a gate")
	case opts.FastInterval <= 0:
		return nil, fmt.Errorf("live service requires a positive fast interval")
	}
	healthEvery := opts.HealthEvery
	if healthEvery <= 0 {
		healthEvery = 1
	}
	return &Service{
		universe:       opts.Universe,
		manager:        opts.Manager,
		classifier:     opts.Classifier,
		gate:           opts.Gate,
		guard:          opts.Guard,
		monitor:        opts.Monitor,
		queue:          opts.Queue,
		events:         opts.Events,
		positions:      opts.Positions,
		exec:           opts.Executor,
		signals:        opts.Signals,
		proc:           opts.Processor,
		venueCB:        opts.VenueCB,
		fastInterval:   opts.FastInterval,
		slowEvery:      opts.SlowEvery,
		runImmediately: opts.RunImmediately,
		healthEvery:    healthEvery,
	}, nil
}

// Run loads the model, publishes an initial classification so the gate is
// never empty-open, then blocks on the tick loop until ctx is cancelled.
func (s *Service) Run(ctx context.Context) error {
	handle, err := s.manager.Load()
	if err != nil {
		return fmt.Errorf("model load: %w", err)
	}
	logger.Infof("model %s loaded: %d trained symbol(s)", handle.Version, handle.TrainedCount())

	if err := s.classifyAndPublish(ctx); err != nil {
		return fmt.Errorf("initial classification: %w", err)
	}

	loop := scheduler.NewTickLoop(s.fastInterval, s.slowEvery)
	loop.RunImmediately = s.runImmediately
	loop.Run(ctx,
		func(tick int) { s.fastTick(ctx, tick) },
		func(tick int) { s.slowTick(ctx, tick) },
	)
	logger.Infof("live loop stopped")
	return nil
}

// Status returns the most recently computed health status, or nil before the
// first fast tick. Safe to call from other goroutines.
func (s *Service) Status() *health.Status {
	return s.lastStatus.Load()
}

func (s *Service) fastTick(ctx context.Context, tick int) {
	// The breaker is consulted once per tick; the position check and the
	// equity fetch ride on the same decision, and a failed venue call
	// blocks the rest of the tick.
	venueOK := s.venueCB == nil || s.venueCB.Allow()
	venueOK = s.monitorPositions(ctx, venueOK)
	tripped := s.checkRisk(ctx, venueOK)
	if !tripped {
		dispatch(ctx, s.signals, s.proc, s.gate)
	}
	if s.monitor != nil && tick%s.healthEvery == 0 {
		s.writeHealth(tick)
	}
}

func (s *Service) slowTick(ctx context.Context, tick int) {
	if symbols, err := s.universe.List(ctx); err != nil {
		logger.Warnf("universe refresh failed, keeping %d symbol(s): %v", len(s.symbols), err)
	} else {
		s.symbols = symbols
	}

	if _, rotated, err := s.manager.MaybeRotate(); err != nil {
		logger.Warnf("rotation check failed: %v", err)
	} else if rotated {
		s.lastRotation = s.manager.LastRotation()
		s.recordEvent(ctx, "model_rotated", "", s.manager.Current().Version)
	}

	if err := s.classifyAndPublish(ctx); err != nil {
		// ctx cancellation mid-pass: no snapshot was published, the
		// previous one stands.
		logger.Warnf("classification pass aborted: %v", err)
	}
}

func (s *Service) classifyAndPublish(ctx context.Context) error {
	if len(s.symbols) == 0 {
		symbols, err := s.universe.List(ctx)
		if err != nil {
			return fmt.Errorf("universe: %w", err)
		}
		s.symbols = symbols
	}
	snap, err := s.classifier.ClassifyAll(ctx, s.symbols, s.manager.Current())
	if err != nil {
		return err
	}
	s.gate.Publish(snap)
	logger.Infof("classified: %s", snap.Summary())
	return nil
}

// monitorPositions refreshes open positions and enforces protective exits.
// Reports whether the venue is still usable this tick, so a skipped or
// failed check also blocks the equity fetch that follows.
func (s *Service) monitorPositions(ctx context.Context, venueOK bool) bool {
	if s.positions == nil {
		return venueOK
	}
	if !venueOK {
		logger.Debugf("venue breaker open, skipping position check")
		// A skipped check still counts toward the error trip: a venue that
		// stays dark long enough must halt trading.
		if s.guard != nil {
			s.guard.RecordError()
		}
		return false
	}
	open, err := s.positions.Open(ctx)
	if err != nil {
		s.venueFailure(err)
		return false
	}
	s.venueSuccess()
	s.reconcile(open)
	s.openCount = len(open)
	for _, sym := range checkExits(ctx, open, s.exec) {
		delete(s.tracked, sym)
		s.openCount--
	}
	return true
}

// reconcile logs positions appearing or vanishing outside this loop's own
// close actions, so externally-placed or externally-closed positions are
// visible in the log.
func (s *Service) reconcile(open []Position) {
	current := make(map[string]struct{}, len(open))
	for _, p := range open {
		current[p.Symbol] = struct{}{}
		if _, seen := s.tracked[p.Symbol]; !seen && s.tracked != nil {
			logger.Infof("position appeared: %s %s qty=%s", p.Symbol, p.Side, p.Quantity)
		}
	}
	for sym := range s.tracked {
		if _, still := current[sym]; !still {
			logger.Infof("position gone: %s", sym)
		}
	}
	s.tracked = current
}

// checkRisk feeds equity into the guard and reports whether the kill switch
// is active for this tick. The equity reading also drives the daily loss
// limit, measured from the first reading of the UTC day. The first trip
// flattens all positions once.
func (s *Service) checkRisk(ctx context.Context, venueOK bool) bool {
	if s.guard == nil {
		return false
	}
	if s.positions != nil && venueOK {
		equity, err := s.positions.Equity(ctx)
		if err != nil {
			s.venueFailure(err)
		} else {
			s.venueSuccess()
			if tripped, reason := s.guard.Check(equity); tripped {
				s.handleTrip(ctx, reason)
				return true
			}
		}
	}
	tripped, reason := s.guard.Tripped()
	if tripped {
		s.handleTrip(ctx, reason)
	}
	return tripped
}

func (s *Service) handleTrip(ctx context.Context, reason string) {
	if !s.tripHandled.CompareAndSwap(false, true) {
		return
	}
	logger.Errorf("KILL SWITCH: %s, dispatch suspended", reason)
	s.recordEvent(ctx, "kill_switch", "", reason)
	if s.exec != nil {
		if err := s.exec.CloseAll(ctx, "kill_switch: "+reason); err != nil {
			logger.Errorf("flatten after kill switch failed: %v", err)
		} else {
			s.openCount = 0
			s.tracked = nil
		}
	}
}

// ResetKillSwitch clears a latched trip so dispatch resumes on the next fast
// tick, and re-arms the flatten-once behavior for a future trip. Safe to
// call from other goroutines.
func (s *Service) ResetKillSwitch(ctx context.Context) {
	if s.guard == nil {
		return
	}
	s.guard.Reset()
	s.tripHandled.Store(false)
	logger.Warnf("kill switch reset by operator, dispatch resumes")
	s.recordEvent(ctx, "kill_switch_reset", "", "")
}

func (s *Service) venueFailure(err error) {
	logger.Errorf("venue call failed: %v", err)
	if s.venueCB != nil {
		s.venueCB.RecordFailure()
	}
	if s.guard != nil {
		s.guard.RecordError()
	}
}

func (s *Service) venueSuccess() {
	if s.venueCB != nil {
		s.venueCB.RecordSuccess()
	}
	if s.guard != nil {
		s.guard.ResetErrors()
	}
}

func (s *Service) writeHealth(tick int) {
	in := health.Input{
		Snapshot:      s.gate.Snapshot(),
		LastRotation:  s.lastRotation,
		OpenPositions: s.openCount,
		Tick:          tick,
	}
	if h := s.manager.Current(); h != nil {
		in.ModelVersion = h.Version
		in.ModelLoadedAt = h.LoadedAt
	}
	if s.queue != nil {
		if depth, err := s.queue.Depth(context.Background()); err == nil {
			in.QueueDepth = depth
		}
	}
	if s.guard != nil {
		in.KillSwitch, in.KillReason = s.guard.Tripped()
	}
	st := s.monitor.Check(in)
	s.monitor.Write(st)
	s.lastStatus.Store(&st)
}

func (s *Service) recordEvent(ctx context.Context, kind, symbol, detail string) {
	if s.events == nil {
		return
	}
	if err := s.events.Record(ctx, kind, symbol, detail); err != nil {
		logger.Warnf("event %s not recorded: %v", kind, err)
	}
}
