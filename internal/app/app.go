package app

import (
	"context"
	"fmt"

	skcfg "skipper/internal/config"
	"skipper/internal/gate"
	"skipper/internal/live"
	"skipper/internal/logger"
	"skipper/internal/model"
	"skipper/internal/store/eventlog"
	"skipper/internal/trainqueue"
	statushttp "skipper/internal/transport/http/status"

	"golang.org/x/sync/errgroup"
)

// App owns the application lifecycle: build the graph from config, run the
// live loop and the status server, tear both down on context cancel.
type App struct {
	cfg        *skcfg.Config
	live       *live.Service
	statusHTTP *statushttp.Server

	gate         *gate.Gate
	queue        *trainqueue.Store
	events       *eventlog.Store
	manager      *model.Manager
	closeHistory func() error

	Summary *StartupSummary
}

// NewApp builds the application (does not start it).
func NewApp(cfg *skcfg.Config) (*App, error) {
	if cfg == nil {
		return nil, fmt.Errorf("nil config")
	}
	logger.SetLevel(cfg.App.LogLevel)
	return buildAppWithWire(context.Background(), cfg)
}

func (a *App) buildStatusServer() {
	if a.cfg.App.HTTPAddr == "" {
		return
	}
	a.statusHTTP = statushttp.NewServer(statushttp.ServerOptions{
		Addr:      a.cfg.App.HTTPAddr,
		Gate:      a.gate,
		Queue:     a.queue,
		Events:    a.events,
		Status:    a.live.Status,
		RiskReset: a.live.ResetKillSwitch,
	})
}

// Run starts the loop and the status server and blocks until both stop.
func (a *App) Run(ctx context.Context) error {
	if a == nil || a.cfg == nil {
		return fmt.Errorf("app not initialized")
	}
	if a.Summary != nil {
		a.Summary.Print()
	}
	if a.live == nil {
		return fmt.Errorf("live service not initialized")
	}

	group, ctx := errgroup.WithContext(ctx)

	if a.statusHTTP != nil {
		group.Go(func() error {
			if err := a.statusHTTP.Run(ctx); err != nil {
				return fmt.Errorf("status server error: %w", err)
			}
			return nil
		})
	}

	group.Go(func() error {
		defer a.Close()
		return a.live.Run(ctx)
	})

	return group.Wait()
}

// LiveService exposes the loop instance for test harnesses.
func (a *App) LiveService() *live.Service {
	if a == nil {
		return nil
	}
	return a.live
}

// Close releases the stores. Safe to call more than once.
func (a *App) Close() {
	if a.manager != nil {
		if err := a.manager.Close(); err != nil {
			logger.Warnf("model manager close: %v", err)
		}
		a.manager = nil
	}
	if a.queue != nil {
		if err := a.queue.Close(); err != nil {
			logger.Warnf("queue close: %v", err)
		}
		a.queue = nil
	}
	if a.closeHistory != nil {
		if err := a.closeHistory(); err != nil {
			logger.Warnf("candle store close: %v", err)
		}
		a.closeHistory = nil
	}
	if a.events != nil {
		if err := a.events.Close(); err != nil {
			logger.Warnf("event log close: %v", err)
		}
		a.events = nil
	}
}
