package main

import (
	"time"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/ingest"
	"hoard/internal/store"
)

type infoResponse struct {
	Driver         string       `json:"driver" yaml:"driver"`
	DBPath         string       `json:"db_path,omitempty" yaml:"db_path,omitempty"`
	SourceDir      string       `json:"source_dir" yaml:"source_dir"`
	Stats          *store.Stats `json:"stats" yaml:"stats"`
	QuotaBoundary  time.Time    `json:"quota_boundary" yaml:"quota_boundary"`
	QuotaThreshold int          `json:"quota_threshold" yaml:"quota_threshold"`
	QuotaUsed      int64        `json:"quota_used" yaml:"quota_used"`
	QuotaRemaining int          `json:"quota_remaining" yaml:"quota_remaining"`
}

func newInfoCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "info",
		Short: "Show record counts and the current quota window",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app) error {
				ctx := cmd.Context()
				stats, err := store.CollectStats(ctx, a.records, []string{cfg.Tiers.HotBucket, cfg.Tiers.ColdBucket})
				if err != nil {
					return err
				}
				controller, err := ingest.NewController(ctx, a.records, ingest.AdmissionConfig{
					DailyThreshold:     cfg.Ingest.DailyThreshold,
					BoundaryHour:       cfg.Ingest.QuotaBoundaryHour,
					SmallFileThreshold: int64(cfg.Ingest.SmallFileThreshold),
					DenseDirThreshold:  cfg.Ingest.DenseDirThreshold,
				}, time.Now())
				if err != nil {
					return err
				}

				resp := infoResponse{
					Driver:         cfg.Metadata.Driver,
					SourceDir:      cfg.SourceDir,
					Stats:          stats,
					QuotaBoundary:  controller.Boundary(),
					QuotaThreshold: cfg.Ingest.DailyThreshold,
					QuotaUsed:      controller.Used(),
					QuotaRemaining: controller.Remaining(),
				}
				if cfg.Metadata.Driver == config.DriverSQLite {
					resp.DBPath = cfg.Metadata.DBPath
				}

				if *jsonOutput {
					return writeJSON(resp)
				}

				_ = writePlain("driver: %s\n", resp.Driver)
				if resp.DBPath != "" {
					_ = writePlain("db_path: %s\n", resp.DBPath)
				}
				_ = writePlain("source_dir: %s\n", resp.SourceDir)
				_ = writePlain("total_records: %d\n", stats.Total)
				for _, level := range sortedKeys(stats.Levels) {
					_ = writePlain("  %s: %d\n", level, stats.Levels[level])
				}
				_ = writePlain("buckets:\n")
				for _, bucket := range sortedKeys(stats.Buckets) {
					_ = writePlain("  %s: %d\n", bucket, stats.Buckets[bucket])
				}
				_ = writePlain("quota_boundary: %s\n", formatTime(resp.QuotaBoundary))
				_ = writePlain("quota: %d/%d used, %d remaining\n", resp.QuotaUsed, resp.QuotaThreshold, resp.QuotaRemaining)
				return nil
			})
		},
	}
	return cmd
}
