package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"hoard/internal/blobstore"
	"hoard/internal/config"
	"hoard/internal/ingest"
	"hoard/internal/lifecycle"
	"hoard/internal/metrics"
	"hoard/internal/mongostore"
	"hoard/internal/store"
)

const mongoConnectTimeout = 10 * time.Second

// app holds the opened stores for one command invocation.
type app struct {
	cfg     *config.Config
	records store.RecordStore
	tiers   *blobstore.LocalTiers
	logger  *slog.Logger
}

func (a *app) Close() error {
	if a == nil || a.records == nil {
		return nil
	}
	return a.records.Close()
}

// openRecordStore opens the configured metadata backend.
func openRecordStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (store.RecordStore, error) {
	switch cfg.Metadata.Driver {
	case config.DriverMongo:
		logger.Info("connecting to mongo", "database", cfg.Metadata.MongoDatabase, "collection", cfg.Metadata.MongoCollection)
		connectCtx, cancel := context.WithTimeout(ctx, mongoConnectTimeout)
		defer cancel()
		st, err := mongostore.Connect(connectCtx, cfg.Metadata.MongoURI, cfg.Metadata.MongoDatabase, cfg.Metadata.MongoCollection)
		if err != nil {
			return nil, fmt.Errorf("connect mongo: %w", err)
		}
		return st, nil
	default:
		logger.Info("opening database", "path", cfg.Metadata.DBPath)
		st, err := store.Open(cfg.Metadata.DBPath)
		if err != nil {
			return nil, fmt.Errorf("open database %s: %w", cfg.Metadata.DBPath, err)
		}
		return st, nil
	}
}

func openTiers(cfg *config.Config) (*blobstore.LocalTiers, error) {
	return blobstore.NewLocalTiers(
		blobstore.TierConfig{Name: cfg.Tiers.HotBucket, Root: cfg.Tiers.HotDir},
		blobstore.TierConfig{
			Name:     cfg.Tiers.ColdBucket,
			Root:     cfg.Tiers.ColdDir,
			Compress: cfg.Tiers.ColdCompression == config.CompressionZstd,
		},
	)
}

// openApp validates store settings and opens the metadata store and
// object tiers. The caller closes the returned app.
func openApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config not initialized")
	}
	if err := cfg.ValidateStores(); err != nil {
		return nil, err
	}
	logger := slog.Default()

	tiers, err := openTiers(cfg)
	if err != nil {
		return nil, err
	}
	records, err := openRecordStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	return &app{cfg: cfg, records: records, tiers: tiers, logger: logger}, nil
}

func withApp(ctx context.Context, cfg *config.Config, fn func(*app) error) error {
	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	return fn(a)
}

func (a *app) pipeline(m *metrics.Metrics) (*ingest.Pipeline, error) {
	if err := a.cfg.ValidateIngest(); err != nil {
		return nil, err
	}
	c := a.cfg
	return ingest.New(ingest.Config{
		SourceDir:      c.SourceDir,
		HotBucket:      c.Tiers.HotBucket,
		HashAlgorithm:  c.Ingest.HashAlgorithm,
		IgnorePatterns: c.Ingest.IgnorePatterns,
		Admission: ingest.AdmissionConfig{
			DailyThreshold:     c.Ingest.DailyThreshold,
			BoundaryHour:       c.Ingest.QuotaBoundaryHour,
			SmallFileThreshold: int64(c.Ingest.SmallFileThreshold),
			DenseDirThreshold:  c.Ingest.DenseDirThreshold,
			OverridePattern:    c.Ingest.OverridePattern,
		},
		PurgeTombstones:    c.Ingest.PurgeTombstones,
		TombstoneRetention: c.Lifecycle.TombstoneRetention.Std(),
	}, a.records, a.tiers, a.logger, ingest.WithMetrics(m))
}

func (a *app) lifecycleJob(m *metrics.Metrics) (*lifecycle.Job, error) {
	if err := a.cfg.ValidateLifecycle(); err != nil {
		return nil, err
	}
	c := a.cfg
	return lifecycle.New(lifecycle.Config{
		HotBucket:          c.Tiers.HotBucket,
		ColdBucket:         c.Tiers.ColdBucket,
		PromotionWindow:    c.Lifecycle.PromotionWindow.Std(),
		TombstoneRetention: c.Lifecycle.TombstoneRetention.Std(),
		Concurrency:        c.Lifecycle.Concurrency,
	}, a.records, a.tiers, a.logger, lifecycle.WithMetrics(m))
}
