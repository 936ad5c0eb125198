package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"TokenScope/internal/middleware"
	"TokenScope/internal/service/ratelimit"
	"TokenScope/internal/service/stream"
	"TokenScope/pkg/config"
	xhttp "TokenScope/pkg/http"
	pkgkafka "TokenScope/pkg/kafka"
	applogger "TokenScope/pkg/logger"
)

const limiterSweepInterval = time.Minute

type cleanup struct {
	name string
	fn   func() error
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	httpServer *xhttp.Server
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	pipeline   *middleware.VerdictPipeline
	hub        *stream.Hub
	limiter    *ratelimit.Limiter
	cleanups   []cleanup
}

type Option func(*App)

// WithConsumer runs the Kafka consumer with handler registered.
func WithConsumer(c *pkgkafka.Consumer, h pkgkafka.MessageHandler) Option {
	return func(a *App) {
		a.consumer = c
		a.kh = h
	}
}

func WithPipeline(p *middleware.VerdictPipeline) Option {
	return func(a *App) { a.pipeline = p }
}

func WithHub(h *stream.Hub) Option {
	return func(a *App) { a.hub = h }
}

func WithLimiter(l *ratelimit.Limiter) Option {
	return func(a *App) { a.limiter = l }
}

// WithCleanup registers fn to run last during shutdown, in registration order.
func WithCleanup(name string, fn func() error) Option {
	return func(a *App) {
		if fn != nil {
			a.cleanups = append(a.cleanups, cleanup{name: name, fn: fn})
		}
	}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, log *applogger.Logger, httpServer *xhttp.Server, opts ...Option) *App {
	if log == nil {
		log = applogger.NewNop()
	}
	a := &App{cfg: cfg, log: log, httpServer: httpServer}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run starts the application and blocks until SIGINT or SIGTERM.
func (a *App) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return a.RunContext(ctx)
}

// RunContext starts every component and blocks until ctx is done, then shuts down.
func (a *App) RunContext(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if a.pipeline != nil {
		a.pipeline.Start(runCtx)
	}

	if a.limiter != nil {
		go a.sweepLimiter(runCtx)
	}

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			a.log.Error("kafka consumer start error", applogger.Error(err))
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("tokenscope started",
		applogger.String("env", a.cfg.Environment),
		applogger.String("backend", a.cfg.Backend.Type),
		applogger.Bool("synthetic_fallback", a.cfg.Analysis.SyntheticFallback),
	)

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

func (a *App) sweepLimiter(ctx context.Context) {
	t := time.NewTicker(limiterSweepInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := a.limiter.Sweep(); n > 0 {
				a.log.Debug("rate limiter swept", applogger.Int("keys", n))
			}
		}
	}
}

// shutdown stops intake first (HTTP, consumer), then delivery, then closes
// infrastructure clients.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	a.log.Info("shutting down...")

	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.pipeline != nil {
		a.pipeline.Stop()
		if n := a.pipeline.Buffered(); n > 0 {
			a.log.Warn("verdicts left undelivered", applogger.Int("count", n))
		}
	}

	if a.hub != nil {
		a.hub.Close()
	}

	for _, c := range a.cleanups {
		if err := c.fn(); err != nil {
			a.log.Warn(c.name+" close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
