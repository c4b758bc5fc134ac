package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"hoard/internal/api"
	"hoard/internal/config"
)

func newStatusCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Query a running scheduler's status server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(addr)
			if target == "" {
				target = cfg.Schedule.MetricsAddr
			}
			if target == "" {
				return &config.ConfigurationError{Key: "schedule.metrics_addr", Reason: "no status server address configured"}
			}

			client := api.NewClient(target)
			ctx := cmd.Context()
			if err := client.Ping(ctx); err != nil {
				return fmt.Errorf("status %s: %w", target, err)
			}
			stats, err := client.GetInfo(ctx)
			if err != nil {
				return fmt.Errorf("status %s: %w", target, err)
			}

			if *jsonOutput {
				return writeJSON(stats)
			}
			_ = writePlain("addr: %s\n", target)
			_ = writePlain("total_records: %d\n", stats.Total)
			for _, level := range sortedKeys(stats.Levels) {
				_ = writePlain("  %s: %d\n", level, stats.Levels[level])
			}
			_ = writePlain("buckets:\n")
			for _, bucket := range sortedKeys(stats.Buckets) {
				_ = writePlain("  %s: %d\n", bucket, stats.Buckets[bucket])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "status server address (defaults to schedule.metrics_addr)")
	return cmd
}
