package status

import (
	"context"
	"errors"
	"net/http"
	"time"

	"skipper/internal/gate"
	"skipper/internal/health"
	"skipper/internal/logger"
	"skipper/internal/store/eventlog"
	"skipper/internal/trainqueue"

	"github.com/gin-gonic/gin"
)

// Server exposes a view of the loop: health, per-symbol states, queue
// contents and recent events, plus the single control endpoint that clears a
// latched kill switch. Everything else stays with the loop goroutine.
type Server struct {
	addr      string
	gate      *gate.Gate
	queue     *trainqueue.Store
	events    *eventlog.Store
	status    func() *health.Status
	riskReset func(ctx context.Context)

	httpSrv *http.Server
}

type ServerOptions struct {
	Addr   string
	Gate   *gate.Gate
	Queue  *trainqueue.Store
	Events *eventlog.Store
	// Status returns the latest health snapshot, nil before first tick.
	Status func() *health.Status
	// RiskReset clears a latched kill switch.
	RiskReset func(ctx context.Context)
}

func NewServer(opts ServerOptions) *Server {
	return &Server{
		addr:      opts.Addr,
		gate:      opts.Gate,
		queue:     opts.Queue,
		events:    opts.Events,
		status:    opts.Status,
		riskReset: opts.RiskReset,
	}
}

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())

	router.GET("/healthz", s.handleHealthz)
	api := router.Group("/api")
	{
		api.GET("/status", s.handleStatus)
		api.GET("/symbols", s.handleSymbols)
		api.GET("/symbols/:symbol", s.handleSymbol)
		api.GET("/queue", s.handleQueue)
		api.GET("/events", s.handleEvents)
		api.POST("/risk/reset", s.handleRiskReset)
	}

	s.httpSrv = &http.Server{Addr: s.addr, Handler: router}
	errCh := make(chan error, 1)
	go func() {
		logger.Infof("status server listening on %s", s.addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warnf("status server shutdown: %v", err)
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleStatus(c *gin.Context) {
	if s.status == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "status not wired"})
		return
	}
	st := s.status()
	if st == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no health check completed yet"})
		return
	}
	c.JSON(http.StatusOK, st)
}

func (s *Server) handleSymbols(c *gin.Context) {
	snap := s.gate.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no classification yet"})
		return
	}
	states := make(map[string]gin.H, len(snap.States))
	for sym, st := range snap.States {
		states[sym] = gin.H{
			"state":    st.String(),
			"tradable": snap.IsTradable(sym),
		}
	}
	c.JSON(http.StatusOK, gin.H{
		"classified_at": snap.At,
		"model_version": snap.ModelVersion,
		"symbols":       states,
		"failed":        snap.Failed,
	})
}

func (s *Server) handleSymbol(c *gin.Context) {
	sym := c.Param("symbol")
	snap := s.gate.Snapshot()
	if snap == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "no classification yet"})
		return
	}
	st, ok := snap.StateOf(sym)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown symbol", "symbol": sym})
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"symbol":        sym,
		"state":         st.String(),
		"tradable":      snap.IsTradable(sym),
		"classified_at": snap.At,
	})
}

func (s *Server) handleQueue(c *gin.Context) {
	if s.queue == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue not wired"})
		return
	}
	entries, err := s.queue.Pending(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"depth": len(entries), "entries": entries})
}

func (s *Server) handleRiskReset(c *gin.Context) {
	if s.riskReset == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "risk guard not wired"})
		return
	}
	s.riskReset(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"status": "kill switch reset"})
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.events == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "event log not wired"})
		return
	}
	events, err := s.events.Recent(c.Request.Context(), 100)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}
