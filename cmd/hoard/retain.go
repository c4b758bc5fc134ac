package main

import (
	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/lifecycle"
)

func newRetainCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var opts lifecycle.RunOptions

	cmd := &cobra.Command{
		Use:   "retain",
		Short: "Run one retention pass: promote, delete trashed, archive, purge",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app) error {
				job, err := a.lifecycleJob(nil)
				if err != nil {
					return err
				}
				report, runErr := job.Run(cmd.Context(), opts)
				if report != nil {
					if *jsonOutput {
						if err := writeJSON(report); err != nil {
							return err
						}
					} else if err := writeRetentionReport(report); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().BoolVar(&opts.SkipPromote, "skip-promote", false, "skip promoting aged new records")
	cmd.Flags().BoolVar(&opts.SkipDelete, "skip-delete", false, "skip deleting trashed objects")
	cmd.Flags().BoolVar(&opts.SkipArchive, "skip-archive", false, "skip archiving approved objects to the cold tier")
	cmd.Flags().BoolVar(&opts.SkipPurge, "skip-purge", false, "skip purging expired tombstones")
	return cmd
}
