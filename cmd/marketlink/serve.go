package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	_ "github.com/custodia-labs/marketlink/docs"
	"github.com/custodia-labs/marketlink/internal/adapters/driven/auth"
	"github.com/custodia-labs/marketlink/internal/adapters/driven/metrics"
	"github.com/custodia-labs/marketlink/internal/adapters/driving/http"
	"github.com/custodia-labs/marketlink/internal/core/domain"
	"github.com/custodia-labs/marketlink/internal/core/services"
)

func newServeCmd(a *app) *cobra.Command {
	var (
		host      string
		port      int
		scheduler bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the maintenance scheduler",
		Long: `Serves the management API, the provider OAuth callback, health checks and
Prometheus metrics. The maintenance scheduler sweeps expired states every
SWEEP_INTERVAL_SEC unless --scheduler=false.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := a.cfg.RequireJWTSecret(); err != nil {
				return err
			}
			if !cmd.Flags().Changed("port") {
				port = a.cfg.Port
			}
			return a.serve(cmd.Context(), host, port, scheduler)
		},
	}

	cmd.Flags().StringVar(&host, "host", "0.0.0.0", "Listen address")
	cmd.Flags().IntVar(&port, "port", 8080, "Listen port (default from PORT)")
	cmd.Flags().BoolVar(&scheduler, "scheduler", true, "Run the maintenance scheduler")
	return cmd
}

func (a *app) serve(parent context.Context, host string, port int, runScheduler bool) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	authAdapter, err := auth.NewAdapter(a.cfg.JWTSecret)
	if err != nil {
		return fmt.Errorf("%w: %w", domain.ErrConfiguration, err)
	}

	b, err := openBackend(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer b.Close()

	a.logger.Info("marketlink starting",
		"version", version,
		"store", b.Descriptor.Store,
		"ledger", b.Descriptor.Ledger,
		"lock", b.Descriptor.LockOrNone(),
	)
	if !b.Descriptor.Distributed() {
		a.logger.Warn("refresh leases are lock files on this host, run every instance here or configure REDIS_URL",
			"lock", b.Descriptor.LockOrNone(),
		)
	}

	prom := metrics.NewPrometheus()
	credentialService := a.credentialService(b, prom)

	if runScheduler {
		sched := a.scheduler(b, credentialService, prom)
		if err := sched.Start(ctx); err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer sched.Stop()
	}

	server := http.NewServer(
		http.Config{
			Host:           host,
			Port:           port,
			Version:        version,
			AllowedOrigins: a.cfg.AllowedOrigins,
			Logger:         a.logger,
		},
		services.NewAuthService(authAdapter),
		credentialService,
		prom.Handler(),
		b.Checks...,
	)

	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("server: %w", err)
	}
	a.logger.Info("API server stopped")
	return nil
}
