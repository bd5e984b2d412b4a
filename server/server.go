// Package server exposes the operator HTTP surface: status, start/stop
// control and live risk tuning.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/rustyeddy/fxpilot/bot"
	"github.com/rustyeddy/fxpilot/risk"
)

// Controller is the operator side of the trading bot.
type Controller interface {
	Start(ctx context.Context) error
	Stop() error
	Status() bot.Snapshot
	UpdateRisk(p risk.Params) (bot.Snapshot, error)
}

type Options struct {
	// RateLimitPerMinute caps requests per client; zero disables it.
	RateLimitPerMinute int
	ShutdownTimeout    time.Duration
}

type Server struct {
	ctl    Controller
	log    *zap.Logger
	opts   Options
	engine *gin.Engine
}

type controlRequest struct {
	Action string `json:"action" binding:"required"`
}

type configRequest struct {
	RiskPerTrade        float64 `json:"riskPerTrade" binding:"required,gt=0"`
	MaxConcurrentTrades int     `json:"maxConcurrentTrades" binding:"required,gte=1"`
	MaxDailyDrawdown    float64 `json:"maxDailyDrawdown" binding:"required,gt=0"`
}

func New(ctl Controller, opts Options, log *zap.Logger) *Server {
	if log == nil {
		log = zap.NewNop()
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = 5 * time.Second
	}
	s := &Server{ctl: ctl, log: log.Named("http"), opts: opts}

	g := gin.New()
	g.Use(gin.Recovery(), RequestID(), CORS(), AccessLog(s.log))
	if opts.RateLimitPerMinute > 0 {
		g.Use(RateLimit(NewIPRateLimiter(opts.RateLimitPerMinute)))
	}

	g.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	g.GET("/metrics", gin.WrapH(promhttp.Handler()))
	g.GET("/status", s.status)
	g.POST("/control", s.control)
	g.POST("/config", s.config)

	s.engine = g
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) status(c *gin.Context) {
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) control(c *gin.Context) {
	var req controlRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	switch req.Action {
	case "start":
		if err := s.ctl.Start(c.Request.Context()); err != nil {
			s.log.Error("start failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"detail": err.Error()})
			return
		}
	case "stop":
		if err := s.ctl.Stop(); err != nil {
			s.log.Error("stop failed", zap.Error(err))
			c.JSON(http.StatusInternalServerError, gin.H{"detail": err.Error()})
			return
		}
	case "refresh":
	default:
		c.JSON(http.StatusBadRequest, gin.H{"detail": "Unknown action."})
		return
	}
	c.JSON(http.StatusOK, s.ctl.Status())
}

func (s *Server) config(c *gin.Context) {
	var req configRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"detail": err.Error()})
		return
	}

	snap, err := s.ctl.UpdateRisk(risk.Params{
		RiskPerTrade:        req.RiskPerTrade,
		MaxConcurrentTrades: req.MaxConcurrentTrades,
		MaxDailyDrawdown:    req.MaxDailyDrawdown,
	})
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, risk.ErrInvalidParams) {
			status = http.StatusUnprocessableEntity
		}
		c.JSON(status, gin.H{"detail": err.Error()})
		return
	}
	c.JSON(http.StatusOK, snap)
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.log.Info("listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	s.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	return <-errc
}
