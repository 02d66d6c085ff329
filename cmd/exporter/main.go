package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/speedwagon-io/amtron-exporter/internal/amtron"
	"github.com/speedwagon-io/amtron-exporter/internal/config"
	"github.com/speedwagon-io/amtron-exporter/internal/lib/logger/sl"
	"github.com/speedwagon-io/amtron-exporter/internal/metrics"
	"github.com/speedwagon-io/amtron-exporter/internal/poller"
	"github.com/speedwagon-io/amtron-exporter/internal/server"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	log := sl.SetupLogger(cfg.Log.Level, cfg.Log.Format)

	log.Info("starting AMTRON exporter",
		slog.String("device", cfg.Device.Host),
		slog.Duration("interval", cfg.Device.PollInterval()),
		slog.Int("port", cfg.Server.Port),
	)

	client := amtron.NewClient(log, cfg.Device.Host, cfg.Device.Username, cfg.Device.Password, cfg.Device.Timeout)
	parser := amtron.NewParser(log)

	store := metrics.NewStore()
	registry := prometheus.NewRegistry()
	registry.MustRegister(store)
	pollerMetrics := metrics.NewPollerMetrics(registry)

	p := poller.New(log, client, parser, store, pollerMetrics, cfg.Device.PollInterval())

	srv := server.New(log, fmt.Sprintf(":%d", cfg.Server.Port), registry)
	srv.AddChecker(server.NewPollerHealthChecker(p, store))

	if err := srv.Start(); err != nil {
		log.Error("failed to start exposition server", sl.Err(err))
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		log.Info("received signal, shutting down", slog.String("signal", sig.String()))
		cancel()
	}()

	p.Start(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	p.Stop()

	if err := srv.Stop(shutdownCtx); err != nil {
		log.Error("failed to stop exposition server", sl.Err(err))
	}

	log.Info("exporter stopped")
}
