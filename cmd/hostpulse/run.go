package main

import (
	"context"
	"errors"
	"fmt"
	netHttp "net/http"
	"os/signal"
	"syscall"
	"time"

	"hostpulse/internal/adapters/http"
	"hostpulse/internal/adapters/http/response"
	"hostpulse/internal/adapters/http/validator"
	"hostpulse/internal/adapters/ws/metricsws"
	appmetrics "hostpulse/internal/application/metrics"
	"hostpulse/internal/application/workers"
	"hostpulse/internal/domain"
	"hostpulse/internal/metrics"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newRunCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Sample continuously and serve the HTTP API until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.run(cmd.Context())
		},
	}
}

func (a *app) run(parent context.Context) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, log := a.cfg, a.log

	var repo domain.SnapshotRepository
	if cfg.StorageEnabled {
		store, err := a.openStore(ctx)
		if err != nil {
			return fmt.Errorf("failed to open store: %w", err)
		}
		repo = store
		log.Info("store: ready", "path", store.Path())
	}

	source := metrics.NewHostSource(metrics.HostSourceConfig{
		DiskPath:              cfg.DiskPath,
		DiskMaxThroughputMBps: cfg.DiskMaxThroughputMBps,
	})

	svc, err := appmetrics.NewService(cfg, source, repo, log,
		appmetrics.WithErrorHandler(func(err error) {
			log.Warn("metrics: collection continued after error", "error", err)
		}),
	)
	if err != nil {
		return err
	}

	g, gctx := errgroup.WithContext(ctx)

	// WebSocket
	hub := metricsws.NewHub(gctx, log.With("component", "ws"))
	svc.Subscribe(hub.Publish)
	g.Go(func() error {
		hub.Run()
		return nil
	})

	// HTTP
	res := response.NewJSONWriter(log)
	metricsHandler := http.NewMetricsHandler(svc, res, validator.NewValidator(), cfg.StatsCacheTTL, log)
	svc.OnPrune(metricsHandler.InvalidateStats)
	router := http.NewRouter(cfg, &http.RouterDeps{
		Ws:      metricsws.NewHandler(hub, log, cfg.AllowedOrigins),
		Metrics: metricsHandler,
		Log:     log,
	})
	srv := http.NewServer(router, cfg.Address)

	g.Go(func() error {
		log.Info("http: starting server", "address", cfg.Address)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, netHttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error("http: server shutdown error", "error", err)
		}
		hub.Stop()
		return nil
	})

	// Workers
	manager := workers.NewManager(workers.NewScheduler(log), cfg, log, svc)
	manager.Start(gctx)
	g.Go(func() error {
		manager.Wait()
		return nil
	})

	if err := svc.Start(); err != nil {
		stop()
		g.Wait()
		return err
	}

	err = g.Wait()

	if !svc.Stop() {
		log.Warn("sampler did not stop cleanly", "timeout", cfg.StopTimeout)
	}

	log.Info("hostpulse stopped")
	return err
}
