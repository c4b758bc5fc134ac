package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/lifecycle"
)

func newPurgeCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var olderThan time.Duration

	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Hard-delete tombstones older than the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			retention := cfg.Lifecycle.TombstoneRetention.Std()
			if cmd.Flags().Changed("older-than") {
				retention = olderThan
			}
			if retention <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}

			return withApp(cmd.Context(), cfg, func(a *app) error {
				cutoff := time.Now().Add(-retention)
				n, err := lifecycle.PurgeTombstones(cmd.Context(), a.records, cutoff)
				if err != nil {
					return fmt.Errorf("purge tombstones: %w", err)
				}
				a.logger.Info("purged tombstones", "count", n, "cutoff", formatTime(cutoff))
				if *jsonOutput {
					return writeJSON(map[string]any{"purged": n, "cutoff": cutoff.UTC()})
				}
				return writePlain("purged: %d\n", n)
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "override lifecycle.tombstone_retention")
	return cmd
}
