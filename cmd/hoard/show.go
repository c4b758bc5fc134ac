package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/store"
)

func newShowCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a blob record",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app) error {
				record, err := a.records.FindByKey(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if record == nil {
					return fmt.Errorf("show %s: %w", args[0], store.ErrRecordNotFound)
				}
				if *jsonOutput {
					return writeJSON(record)
				}
				return writeRecordDetail(*record)
			})
		},
	}

	return cmd
}
