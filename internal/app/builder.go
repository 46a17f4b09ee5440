package app

import (
	"context"
	"fmt"
	"time"

	skcfg "skipper/internal/config"
	"skipper/internal/gate"
	"skipper/internal/health"
	"skipper/internal/history"
	"skipper/internal/live"
	"skipper/internal/logger"
	"skipper/internal/model"
	"skipper/internal/pkg/circuit"
	"skipper/internal/pkg/symbol"
	"skipper/internal/risk"
	"skipper/internal/store/eventlog"
	"skipper/internal/symbolstate"
	"skipper/internal/trainqueue"
	"skipper/internal/universe"
)

// AppBuilder assembles the component graph from config. The fn hooks exist
// so tests can substitute stores and venue adapters without touching disk.
type AppBuilder struct {
	cfg *skcfg.Config

	queueFn    func(skcfg.QueueConfig) (*trainqueue.Store, error)
	historyFn  func(skcfg.HistoryConfig) (history.Provider, func() error, error)
	eventsFn   func(skcfg.EventLogConfig) (*eventlog.Store, error)
	managerFn  func(skcfg.ModelConfig) (*model.Manager, error)
	universeFn func(skcfg.UniverseConfig) (universe.Provider, error)

	positions live.PositionSource
	executor  live.Executor
	signals   live.SignalSource
	processor live.Processor
}

type AppBuilderOption func(*AppBuilder)

// WithVenue attaches the venue-facing adapters. Without it the loop runs as
// a classification-only daemon.
func WithVenue(pos live.PositionSource, exec live.Executor, sig live.SignalSource, proc live.Processor) AppBuilderOption {
	return func(b *AppBuilder) {
		b.positions = pos
		b.executor = exec
		b.signals = sig
		b.processor = proc
	}
}

func NewAppBuilder(cfg *skcfg.Config, opts ...AppBuilderOption) *AppBuilder {
	b := &AppBuilder{
		cfg:        cfg,
		queueFn:    buildQueueStore,
		historyFn:  buildHistoryProvider,
		eventsFn:   buildEventLog,
		managerFn:  buildModelManager,
		universeFn: buildUniverseProvider,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

func buildQueueStore(cfg skcfg.QueueConfig) (*trainqueue.Store, error) {
	return trainqueue.NewStore(cfg.Path)
}

func buildHistoryProvider(cfg skcfg.HistoryConfig) (history.Provider, func() error, error) {
	cs, err := history.NewCandleStore(cfg.Path, cfg.IntervalMinutes)
	if err != nil {
		return nil, nil, err
	}
	return cs, cs.Close, nil
}

func buildEventLog(cfg skcfg.EventLogConfig) (*eventlog.Store, error) {
	if cfg.Path == "" {
		return nil, nil
	}
	return eventlog.NewStore(cfg.Path)
}

func buildModelManager(cfg skcfg.ModelConfig) (*model.Manager, error) {
	return model.NewManager(model.ManagerOptions{
		Dir:   cfg.Dir,
		Watch: !cfg.DisableWatch,
	})
}

func buildUniverseProvider(cfg skcfg.UniverseConfig) (universe.Provider, error) {
	symbols := symbol.NormalizeList(cfg.Symbols)
	switch cfg.Provider {
	case "file":
		return universe.NewFileProvider(cfg.FilePath, symbols), nil
	case "", "static":
		if len(symbols) == 0 {
			return nil, fmt.Errorf("static universe requires at least one symbol")
		}
		return universe.NewStaticProvider(symbols), nil
	default:
		return nil, fmt.Errorf("unknown universe provider %q", cfg.Provider)
	}
}

func (b *AppBuilder) Build(ctx context.Context) (*App, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if b.cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	cfg := b.cfg
	logger.SetLevel(cfg.App.LogLevel)

	uni, err := b.universeFn(cfg.Universe)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	symbols, err := uni.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("universe: %w", err)
	}
	logger.Infof("universe ready: %s", universe.Describe(symbols))

	queue, err := b.queueFn(cfg.Queue)
	if err != nil {
		return nil, fmt.Errorf("training queue: %w", err)
	}
	metrics, closeHistory, err := b.historyFn(cfg.History)
	if err != nil {
		return nil, fmt.Errorf("candle store: %w", err)
	}
	events, err := b.eventsFn(cfg.EventLog)
	if err != nil {
		return nil, fmt.Errorf("event log: %w", err)
	}
	manager, err := b.managerFn(cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("model manager: %w", err)
	}

	classifier, err := symbolstate.NewClassifier(symbolstate.ClassifierOptions{
		Metrics: metrics,
		Queue:   queue,
		Events:  eventRecorder(events),
		Thresholds: symbolstate.Thresholds{
			TargetHistoryDays:     cfg.Model.TargetHistoryDays,
			MinHistoryDaysToTrain: cfg.Model.MinHistoryDaysToTrain,
			MinHistoryCoveragePct: cfg.Model.MinHistoryCoveragePct,
		},
		AllowUntrained: cfg.Model.AllowUntrainedSymbols,
		AutoQueue:      !cfg.Model.DisableAutoQueue,
	})
	if err != nil {
		return nil, err
	}

	g := gate.New()
	guard := risk.NewGuard(risk.GuardOptions{
		MaxDrawdown:  cfg.Risk.MaxDrawdown,
		MaxDailyLoss: cfg.Risk.MaxDailyLoss,
		MaxErrors:    cfg.Risk.MaxErrors,
	})

	fastInterval, err := time.ParseDuration(cfg.Loop.FastInterval)
	if err != nil {
		return nil, fmt.Errorf("fast interval: %w", err)
	}
	staleAfter := time.Duration(cfg.Health.StaleAfterMinutes) * time.Minute
	if staleAfter <= 0 {
		staleAfter = 2 * fastInterval * time.Duration(cfg.Loop.SlowEvery)
	}
	monitor := health.NewMonitor(cfg.Health.StatusPath, staleAfter)

	breakerTimeout, err := time.ParseDuration(cfg.Risk.BreakerTimeout)
	if err != nil {
		return nil, fmt.Errorf("breaker timeout: %w", err)
	}
	venueCB := circuit.NewCircuitBreaker("venue", cfg.Risk.BreakerThreshold, breakerTimeout)
	venueCB.SetStateChangeHandler(func(name string, from, to circuit.State) {
		logger.Warnf("breaker %s: %s -> %s", name, from, to)
	})

	svc, err := live.NewService(live.ServiceOptions{
		Universe:       uni,
		Manager:        manager,
		Classifier:     classifier,
		Gate:           g,
		Guard:          guard,
		Monitor:        monitor,
		Queue:          queue,
		Events:         events,
		Positions:      b.positions,
		Executor:       b.executor,
		Signals:        b.signals,
		Processor:      b.processor,
		VenueCB:        venueCB,
		FastInterval:   fastInterval,
		SlowEvery:      cfg.Loop.SlowEvery,
		RunImmediately: cfg.Loop.RunImmediately,
		HealthEvery:    cfg.Health.CheckEveryFastTicks,
	})
	if err != nil {
		return nil, err
	}

	a := &App{
		cfg:          cfg,
		live:         svc,
		gate:         g,
		queue:        queue,
		events:       events,
		manager:      manager,
		closeHistory: closeHistory,
		Summary:      buildSummary(cfg, symbols),
	}
	a.buildStatusServer()
	return a, nil
}

// eventRecorder adapts a possibly-nil concrete store to the classifier's
// optional interface without handing it a typed nil.
func eventRecorder(s *eventlog.Store) symbolstate.EventRecorder {
	if s == nil {
		return nil
	}
	return s
}

func buildSummary(cfg *skcfg.Config, symbols []string) *StartupSummary {
	return &StartupSummary{
		Model: ModelSummary{
			Dir:                   cfg.Model.Dir,
			TargetHistoryDays:     cfg.Model.TargetHistoryDays,
			MinHistoryDaysToTrain: cfg.Model.MinHistoryDaysToTrain,
			MinHistoryCoveragePct: cfg.Model.MinHistoryCoveragePct,
			AllowUntrained:        cfg.Model.AllowUntrainedSymbols,
			AutoQueue:             !cfg.Model.DisableAutoQueue,
			WatchDir:              !cfg.Model.DisableWatch,
		},
		Universe: UniverseSummary{
			Provider: cfg.Universe.Provider,
			Symbols:  symbols,
		},
		Loop: LoopSummary{
			FastInterval:   cfg.Loop.FastInterval,
			SlowEvery:      cfg.Loop.SlowEvery,
			RunImmediately: cfg.Loop.RunImmediately,
		},
		Risk: RiskSummary{
			MaxDrawdown:  cfg.Risk.MaxDrawdown,
			MaxDailyLoss: cfg.Risk.MaxDailyLoss,
			MaxErrors:    cfg.Risk.MaxErrors,
		},
		Paths: PathSummary{
			Queue:    cfg.Queue.Path,
			History:  cfg.History.Path,
			EventLog: cfg.EventLog.Path,
			Status:   cfg.Health.StatusPath,
			HTTPAddr: cfg.App.HTTPAddr,
		},
	}
}
