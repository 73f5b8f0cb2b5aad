package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/michaelpento.lv/arbkeeper/cmd/bot"
	"github.com/michaelpento.lv/arbkeeper/strategies/arbitrage"
	"github.com/michaelpento.lv/arbkeeper/utils/metrics"
	"github.com/michaelpento.lv/arbkeeper/utils/monitor"
)

const shutdownTimeout = 5 * time.Second

// Pauser toggles the local execution pause flag
type Pauser interface {
	Pause()
	Resume()
	IsPaused() bool
}

type StatsSource interface {
	Snapshot() arbitrage.StatsSnapshot
}

type SchedulerStatus interface {
	State() bot.State
	Ticks() uint64
}

type SystemSampler interface {
	Last() monitor.Sample
}

// Deps are the components the status server reports on. Sampler and Gatherer may be nil.
type Deps struct {
	Pauser    Pauser
	Stats     StatsSource
	Scheduler SchedulerStatus
	Sampler   SystemSampler
	Gatherer  prometheus.Gatherer
	System    *metrics.SystemMetrics
}

// Server is the keeper's status HTTP server
type Server struct {
	listen string
	deps   Deps
	engine *gin.Engine
	logger *zap.Logger
}

func NewServer(listen string, deps Deps, logger *zap.Logger) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		listen: listen,
		deps:   deps,
		engine: gin.New(),
		logger: logger,
	}

	s.engine.Use(gin.Recovery(), s.logRequests())
	s.engine.GET("/healthz", s.health)
	s.engine.GET("/stats", s.stats)
	s.engine.POST("/pause", s.pause)
	s.engine.POST("/resume", s.resume)
	if deps.Gatherer != nil {
		s.engine.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}
	return s
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Status server listening", zap.String("addr", s.listen))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "ok",
		"state":  s.deps.Scheduler.State().String(),
		"paused": s.deps.Pauser.IsPaused(),
	})
}

func (s *Server) stats(c *gin.Context) {
	resp := gin.H{
		"statistics": s.deps.Stats.Snapshot(),
		"state":      s.deps.Scheduler.State().String(),
		"ticks":      s.deps.Scheduler.Ticks(),
		"paused":     s.deps.Pauser.IsPaused(),
	}
	if s.deps.Sampler != nil {
		resp["system"] = s.deps.Sampler.Last()
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) pause(c *gin.Context) {
	s.deps.Pauser.Pause()
	s.setPausedGauge(1)
	s.logger.Warn("Execution paused via status API", zap.String("remote", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"paused": true})
}

func (s *Server) resume(c *gin.Context) {
	s.deps.Pauser.Resume()
	s.setPausedGauge(0)
	s.logger.Info("Execution resumed via status API", zap.String("remote", c.ClientIP()))
	c.JSON(http.StatusOK, gin.H{"paused": false})
}

func (s *Server) setPausedGauge(v float64) {
	if s.deps.System != nil {
		s.deps.System.Paused.Set(v)
	}
}

func (s *Server) logRequests() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug("Status request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.FullPath()),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("elapsed", time.Since(start)))
	}
}
