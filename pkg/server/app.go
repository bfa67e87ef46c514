package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"QuietSpike/pkg/config"
	xhttp "QuietSpike/pkg/http"
	pkgkafka "QuietSpike/pkg/kafka"
	applogger "QuietSpike/pkg/logger"
)

// Scheduler is the cron runner started alongside the HTTP server.
type Scheduler interface {
	Start()
	Stop(ctx context.Context) error
	RunNow(name string) error
}

// App encapsulates the long-running service lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    xhttp.Handler
	consumer   *pkgkafka.Consumer
	kh         pkgkafka.MessageHandler
	scheduler  Scheduler
	collectPub applogger.Publisher
	httpServer *xhttp.Server
}

// New creates a new App. consumer, kh, scheduler and collectPub may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	kh pkgkafka.MessageHandler,
	scheduler Scheduler,
	collectPub applogger.Publisher,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		handler:    handler,
		consumer:   consumer,
		kh:         kh,
		scheduler:  scheduler,
		collectPub: collectPub,
	}
}

// Run starts every component and blocks until ctx is done or a signal arrives.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if a.cfg.Log.CollectTopic != "" && a.collectPub != nil {
		a.log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   a.cfg.Log.CollectInterval,
			CountThreshold: 100,
			Topic:          a.cfg.Log.CollectTopic,
			Publisher:      a.collectPub,
		})
		a.log.Info("log collector enabled", applogger.String("topic", a.cfg.Log.CollectTopic))
	}

	metricsPath := ""
	if a.cfg.Metrics.Enabled {
		metricsPath = a.cfg.Metrics.Path
	}
	a.httpServer = xhttp.NewServer(a.log, a.handler,
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
		xhttp.WithMetrics(metricsPath),
		xhttp.WithCORS(a.cfg.Server.CORSOrigins),
	)

	if a.consumer != nil && a.kh != nil {
		a.consumer.RegisterHandler(a.kh)
		if err := a.consumer.Start(); err != nil {
			return err
		}
		a.log.Info("kafka consumer started", applogger.String("topic", a.kh.Topic()))
	}

	if a.scheduler != nil {
		a.scheduler.Start()
	}

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}

	<-ctx.Done()
	a.log.Info("shutdown signal received")
	return a.shutdown()
}

// shutdown stops producers of work first, then sinks.
func (a *App) shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), a.shutdownTimeout())
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(ctx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
		errs = append(errs, err)
	}
	if a.scheduler != nil {
		if err := a.scheduler.Stop(ctx); err != nil {
			a.log.Warn("scheduler stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.consumer != nil {
		if err := a.consumer.Stop(ctx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	// flushes pending aggregated logs while the producer is still open
	a.log.RemoveCollector()

	a.log.Info("shutdown complete")
	return errors.Join(errs...)
}

func (a *App) shutdownTimeout() time.Duration {
	if a.cfg.Server.ShutdownTimeout > 0 {
		return a.cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
