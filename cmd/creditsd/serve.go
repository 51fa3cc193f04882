package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/xraph/credits"
	"github.com/xraph/credits/api"
	"github.com/xraph/credits/extension"
	"github.com/xraph/credits/observability"
	"github.com/xraph/credits/plan"
	"github.com/xraph/credits/store/memory"
	"github.com/xraph/credits/subscription"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := Load(configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		return serve(cmd.Context(), cfg)
	},
}

func serve(ctx context.Context, cfg Config) error {
	logger := newLogger(cfg.Log.Level, cfg.Log.Format)

	opts, err := extension.BuildLedgerOptions(cfg.Ledger)
	if err != nil {
		return err
	}

	subs := subscription.NewStatic()
	for accountID, tier := range cfg.Subscriptions {
		subs.Set(subscription.Subscription{AccountID: accountID, Tier: plan.Tier(tier)})
	}
	opts = append(opts,
		credits.WithLogger(logger),
		credits.WithSubscriptions(subs),
	)

	var reg *prometheus.Registry
	if cfg.Metrics.Enabled {
		reg = prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		metrics := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
		opts = append(opts, credits.WithPlugin(metrics))
	}

	l := credits.New(memory.New(), opts...)
	if err := l.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := l.Stop(); err != nil {
			logger.Error("ledger shutdown failed", "error", err)
		}
	}()

	srv := api.NewServer(l, logger)
	if reg != nil {
		srv.SetMetricsHandler(promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	}

	httpServer := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Info("creditsd listening", "addr", cfg.HTTP.Addr, "metrics", cfg.Metrics.Enabled)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info("creditsd shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return httpServer.Shutdown(shutdownCtx)
}
