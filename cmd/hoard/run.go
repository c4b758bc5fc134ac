package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"hoard/internal/config"
	"hoard/internal/ingest"
	"hoard/internal/lifecycle"
	"hoard/internal/metrics"
	"hoard/internal/server"
)

func newRunCmd(cfg *config.Config) *cobra.Command {
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run ingestion and retention on a schedule until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			if metricsAddr != "" {
				cfg.Schedule.MetricsAddr = metricsAddr
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			return withApp(ctx, cfg, func(a *app) error {
				var (
					m        *metrics.Metrics
					gatherer prometheus.Gatherer
				)
				if cfg.Schedule.MetricsAddr != "" {
					registry := prometheus.NewRegistry()
					registry.MustRegister(collectors.NewGoCollector())
					registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
					m = metrics.Init(registry)
					gatherer = registry
				}

				pipeline, err := a.pipeline(m)
				if err != nil {
					return err
				}
				job, err := a.lifecycleJob(m)
				if err != nil {
					return err
				}

				g, gctx := errgroup.WithContext(ctx)
				if gatherer != nil {
					addr, err := server.ListenAddr(cfg.Schedule.MetricsAddr)
					if err != nil {
						return err
					}
					srv := server.New(addr, a.records, []string{cfg.Tiers.HotBucket, cfg.Tiers.ColdBucket}, gatherer, a.logger)
					g.Go(func() error { return srv.ListenAndServe(gctx) })
				}
				g.Go(func() error {
					return schedule(gctx, a.logger, pipeline, job,
						cfg.Schedule.IngestInterval.Std(), cfg.Schedule.RetentionInterval.Std())
				})

				err = g.Wait()
				if errors.Is(err, context.Canceled) {
					return nil
				}
				return err
			})
		},
	}

	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "serve /metrics and status on host:port (overrides schedule.metrics_addr)")
	return cmd
}

// schedule runs an ingestion pass and a retention pass immediately, then on
// their tickers, one at a time. A corrupt store stops the loop; other run
// failures are logged and retried on the next tick.
func schedule(ctx context.Context, logger *slog.Logger, pipeline *ingest.Pipeline, job *lifecycle.Job, ingestEvery, retainEvery time.Duration) error {
	logger = logger.With("component", "scheduler")
	logger.Info("scheduler started", "ingest_interval", ingestEvery.String(), "retention_interval", retainEvery.String())

	runIngest := func() error {
		_, err := pipeline.Run(ctx)
		var corrupt *ingest.CorruptionError
		if errors.As(err, &corrupt) {
			return err
		}
		return nil
	}
	runRetention := func() {
		// Phase failures are already logged by the job.
		_, _ = job.Run(ctx, lifecycle.RunOptions{})
	}

	if err := runIngest(); err != nil {
		return err
	}
	runRetention()

	ingestTicker := time.NewTicker(ingestEvery)
	defer ingestTicker.Stop()
	retainTicker := time.NewTicker(retainEvery)
	defer retainTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info("scheduler stopping")
			return ctx.Err()
		case <-ingestTicker.C:
			if err := runIngest(); err != nil {
				return err
			}
		case <-retainTicker.C:
			runRetention()
		}
	}
}
