package live

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"skipper/internal/gate"
	"skipper/internal/history"
	"skipper/internal/model"
	"skipper/internal/pkg/circuit"
	"skipper/internal/risk"
	"skipper/internal/symbolstate"
	"skipper/internal/trainqueue"
	"skipper/internal/universe"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubVenue struct {
	positions []Position
	equity    decimal.Decimal
	openErr   error

	closed      []string
	closedAll   int
	equityCalls int
}

func (v *stubVenue) Open(_ context.Context) ([]Position, error) {
	if v.openErr != nil {
		return nil, v.openErr
	}
	return v.positions, nil
}

func (v *stubVenue) Equity(_ context.Context) (decimal.Decimal, error) {
	v.equityCalls++
	return v.equity, nil
}

func (v *stubVenue) ClosePosition(_ context.Context, p Position, reason string) error {
	v.closed = append(v.closed, p.Symbol+":"+reason)
	return nil
}

func (v *stubVenue) CloseAll(_ context.Context, _ string) error {
	v.closedAll++
	v.positions = nil
	return nil
}

type stubSignals struct {
	out []Signal
}

func (s *stubSignals) Pending(_ context.Context) ([]Signal, error) {
	return s.out, nil
}

type stubProcessor struct {
	processed []Signal
}

func (p *stubProcessor) Process(_ context.Context, s Signal) error {
	p.processed = append(p.processed, s)
	return nil
}

type mapMetrics map[string]history.Metrics

func (m mapMetrics) Metrics(_ context.Context, symbol string) (history.Metrics, error) {
	return m[symbol], nil
}

func writeModelArtifact(t *testing.T, dir, version string, symbols []string) {
	t.Helper()
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, fmt.Sprintf("model_v%s.bin", version)), []byte("w"), 0o644))
	meta := `{"trained_symbols": ["` + symbols[0] + `"], "trained_at": "` +
		time.Now().UTC().Format(time.RFC3339) + `"}`
	if len(symbols) > 1 {
		meta = `{"trained_symbols": ["` + symbols[0] + `", "` + symbols[1] + `"], "trained_at": "` +
			time.Now().UTC().Format(time.RFC3339) + `"}`
	}
	require.NoError(t, os.WriteFile(
		filepath.Join(dir, fmt.Sprintf("model_config_v%s.json", version)), []byte(meta), 0o644))
}

type serviceFixture struct {
	svc      *Service
	venue    *stubVenue
	signals  *stubSignals
	proc     *stubProcessor
	modelDir string
	gate     *gate.Gate
	guard    *risk.Guard
}

func newServiceFixture(t *testing.T) *serviceFixture {
	t.Helper()
	modelDir := t.TempDir()
	writeModelArtifact(t, modelDir, "2.1", []string{"BTCUSDT"})

	manager, err := model.NewManager(model.ManagerOptions{Dir: modelDir, Watch: false})
	require.NoError(t, err)
	t.Cleanup(func() { manager.Close() })

	queue, err := trainqueue.NewStore(filepath.Join(t.TempDir(), "queue.db"))
	require.NoError(t, err)
	t.Cleanup(func() { queue.Close() })

	classifier, err := symbolstate.NewClassifier(symbolstate.ClassifierOptions{
		Metrics: mapMetrics{
			"ETHUSDT": {AvailableDays: 400, CoveragePct: 0.99},
		},
		Queue: queue,
		Thresholds: symbolstate.Thresholds{
			TargetHistoryDays:     730,
			MinHistoryDaysToTrain: 90,
			MinHistoryCoveragePct: 0.95,
		},
		AutoQueue: true,
	})
	require.NoError(t, err)

	venue := &stubVenue{equity: decimal.NewFromInt(10000)}
	signals := &stubSignals{}
	proc := &stubProcessor{}
	g := gate.New()
	guard := risk.NewGuard(risk.GuardOptions{MaxDrawdown: 0.20, MaxDailyLoss: 0.05, MaxErrors: 10})

	svc, err := NewService(ServiceOptions{
		Universe:     universe.NewStaticProvider([]string{"BTCUSDT", "ETHUSDT"}),
		Manager:      manager,
		Classifier:   classifier,
		Gate:         g,
		Guard:        guard,
		Queue:        queue,
		Positions:    venue,
		Executor:     venue,
		Signals:      signals,
		Processor:    proc,
		FastInterval: time.Minute,
		SlowEvery:    5,
	})
	require.NoError(t, err)

	return &serviceFixture{
		svc:      svc,
		venue:    venue,
		signals:  signals,
		proc:     proc,
		modelDir: modelDir,
		gate:     g,
		guard:    guard,
	}
}

func (f *serviceFixture) start(t *testing.T) {
	t.Helper()
	_, err := f.svc.manager.Load()
	require.NoError(t, err)
	require.NoError(t, f.svc.classifyAndPublish(context.Background()))
}

func TestServiceRunPublishesInitialSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.svc.Run(ctx) }()

	require.Eventually(t, func() bool {
		return f.gate.Snapshot() != nil
	}, 2*time.Second, 10*time.Millisecond)

	assert.True(t, f.gate.IsTradable("BTCUSDT"))
	assert.False(t, f.gate.IsTradable("ETHUSDT"))

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("service did not stop on cancel")
	}
}

func TestServiceRunFailsWithoutModel(t *testing.T) {
	f := newServiceFixture(t)
	// Remove the only artifact before start.
	entries, err := os.ReadDir(f.modelDir)
	require.NoError(t, err)
	for _, e := range entries {
		require.NoError(t, os.Remove(filepath.Join(f.modelDir, e.Name())))
	}
	err = f.svc.Run(context.Background())
	assert.Error(t, err)
}

func TestFastTickDispatchesOnlyTradableSymbols(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.signals.out = []Signal{
		{Symbol: "BTCUSDT", Side: "long"},
		{Symbol: "ETHUSDT", Side: "long"},
		{Symbol: "NEWUSDT", Side: "short"},
	}

	f.svc.fastTick(context.Background(), 1)

	require.Len(t, f.proc.processed, 1)
	assert.Equal(t, "BTCUSDT", f.proc.processed[0].Symbol)
}

func TestFastTickKillSwitchSuspendsDispatchOnce(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.signals.out = []Signal{{Symbol: "BTCUSDT", Side: "long"}}

	f.svc.fastTick(context.Background(), 1)
	require.Len(t, f.proc.processed, 1)

	// 30% drawdown from the 10000 peak trips the guard.
	f.venue.equity = decimal.NewFromInt(7000)
	f.svc.fastTick(context.Background(), 2)
	assert.Len(t, f.proc.processed, 1)
	assert.Equal(t, 1, f.venue.closedAll)

	// The loop stays alive and dispatch stays suspended; positions are not
	// flattened again.
	f.svc.fastTick(context.Background(), 3)
	assert.Len(t, f.proc.processed, 1)
	assert.Equal(t, 1, f.venue.closedAll)

	tripped, reason := f.guard.Tripped()
	assert.True(t, tripped)
	assert.Contains(t, reason, "drawdown")
}

func TestFastTickDailyLossTripsKillSwitch(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.signals.out = []Signal{{Symbol: "BTCUSDT", Side: "long"}}

	f.svc.fastTick(context.Background(), 1)
	require.Len(t, f.proc.processed, 1)

	// A 6% slide from the day-open equity stays inside the 20% drawdown
	// limit but breaches the 5% daily loss limit.
	f.venue.equity = decimal.NewFromInt(9400)
	f.svc.fastTick(context.Background(), 2)

	assert.Len(t, f.proc.processed, 1)
	assert.Equal(t, 1, f.venue.closedAll)
	tripped, reason := f.guard.Tripped()
	assert.True(t, tripped)
	assert.Contains(t, reason, "daily loss")
}

func TestResetKillSwitchResumesDispatch(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.signals.out = []Signal{{Symbol: "BTCUSDT", Side: "long"}}

	f.svc.fastTick(context.Background(), 1)
	require.Len(t, f.proc.processed, 1)

	f.venue.equity = decimal.NewFromInt(7000)
	f.svc.fastTick(context.Background(), 2)
	assert.Len(t, f.proc.processed, 1)
	assert.Equal(t, 1, f.venue.closedAll)

	// Operator reset after equity recovers: dispatch resumes and a later
	// trip flattens again.
	f.venue.equity = decimal.NewFromInt(10000)
	f.svc.ResetKillSwitch(context.Background())
	f.svc.fastTick(context.Background(), 3)
	assert.Len(t, f.proc.processed, 2)

	f.venue.equity = decimal.NewFromInt(7000)
	f.svc.fastTick(context.Background(), 4)
	assert.Len(t, f.proc.processed, 2)
	assert.Equal(t, 2, f.venue.closedAll)
}

func TestFastTickSharesBreakerDecision(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.svc.venueCB = circuit.NewCircuitBreaker("venue", 1, 0)
	f.svc.venueCB.RecordFailure()
	f.venue.openErr = errors.New("venue down")
	time.Sleep(time.Millisecond)

	f.svc.fastTick(context.Background(), 1)

	// The half-open breaker admitted the position fetch, which failed; the
	// equity fetch must not get a second chance in the same tick.
	assert.Equal(t, 0, f.venue.equityCalls)
	assert.Equal(t, circuit.StateOpen, f.svc.venueCB.State())
}

func TestFastTickClosesBreachedPositions(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	f.venue.positions = []Position{
		{
			Symbol:    "BTCUSDT",
			Side:      "long",
			MarkPrice: decimal.NewFromInt(94),
			StopLoss:  decimal.NewFromInt(95),
		},
		{
			Symbol:     "ETHUSDT",
			Side:       "short",
			MarkPrice:  decimal.NewFromInt(80),
			TakeProfit: decimal.NewFromInt(85),
		},
		{
			Symbol:    "SOLUSDT",
			Side:      "long",
			MarkPrice: decimal.NewFromInt(100),
			StopLoss:  decimal.NewFromInt(95),
		},
	}

	f.svc.fastTick(context.Background(), 1)

	assert.ElementsMatch(t, []string{"BTCUSDT:stop_loss", "ETHUSDT:take_profit"}, f.venue.closed)
}

func TestSlowTickRotatesModel(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	require.Equal(t, "2.1", f.gate.Snapshot().ModelVersion)

	// The external trainer drops a newer artifact covering ETHUSDT too.
	writeModelArtifact(t, f.modelDir, "2.2", []string{"BTCUSDT", "ETHUSDT"})
	f.svc.slowTick(context.Background(), 5)

	snap := f.gate.Snapshot()
	require.NotNil(t, snap)
	assert.Equal(t, "2.2", snap.ModelVersion)
	assert.True(t, f.gate.IsTradable("ETHUSDT"))
	assert.False(t, f.svc.manager.LastRotation().IsZero())
}

func TestSlowTickCancelledKeepsPreviousSnapshot(t *testing.T) {
	f := newServiceFixture(t)
	f.start(t)
	before := f.gate.Snapshot()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	f.svc.slowTick(ctx, 5)

	assert.Same(t, before, f.gate.Snapshot())
}

func TestExitReason(t *testing.T) {
	long := Position{Side: "long", StopLoss: decimal.NewFromInt(95), TakeProfit: decimal.NewFromInt(110)}

	long.MarkPrice = decimal.NewFromInt(95)
	reason, hit := exitReason(long)
	assert.True(t, hit)
	assert.Equal(t, "stop_loss", reason)

	long.MarkPrice = decimal.NewFromInt(110)
	reason, hit = exitReason(long)
	assert.True(t, hit)
	assert.Equal(t, "take_profit", reason)

	long.MarkPrice = decimal.NewFromInt(100)
	_, hit = exitReason(long)
	assert.False(t, hit)

	// Unknown mark price never triggers an exit.
	_, hit = exitReason(Position{Side: "long", StopLoss: decimal.NewFromInt(95)})
	assert.False(t, hit)
}
