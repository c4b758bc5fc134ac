package main

import (
	"github.com/spf13/cobra"

	"hoard/internal/config"
)

func newIngestCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var sourceDir string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Run one ingestion pass over the source directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			if sourceDir != "" {
				cfg.SourceDir = sourceDir
			}
			return withApp(cmd.Context(), cfg, func(a *app) error {
				pipeline, err := a.pipeline(nil)
				if err != nil {
					return err
				}
				report, runErr := pipeline.Run(cmd.Context())
				if report != nil {
					if *jsonOutput {
						if err := writeJSON(report); err != nil {
							return err
						}
					} else if err := writeIngestReport(report); err != nil {
						return err
					}
				}
				return runErr
			})
		},
	}

	cmd.Flags().StringVar(&sourceDir, "source", "", "source directory (overrides source_dir)")
	return cmd
}
