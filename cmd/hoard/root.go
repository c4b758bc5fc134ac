package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/format"
)

func newRootCmd(cfg *config.Config) *cobra.Command {
	var (
		jsonOutput bool
		yamlOutput bool
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:           "hoard",
		Short:         "Hoard ingests media into tiered storage and ages it out",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if jsonOutput && yamlOutput {
				return fmt.Errorf("--json and --yaml are mutually exclusive")
			}
			// --yaml reuses the structured output path with another formatter.
			if yamlOutput {
				outputFormatter = format.YAMLFormatter{}
				jsonOutput = true
			}
			choice, err := resolveLogLevel(logLevel, os.Getenv(logLevelEnvKey), cfg.LogLevel)
			if err != nil {
				return err
			}
			if choice.warning != "" {
				fmt.Fprintln(os.Stderr, choice.warning)
			}
			installLogger(commandName(cmd.CommandPath()), choice, jsonOutput)
			return nil
		},
	}

	cmd.Version = version
	cmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output JSON")
	cmd.PersistentFlags().BoolVar(&yamlOutput, "yaml", false, "output YAML")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error)")

	cmd.AddCommand(
		newIngestCmd(cfg, &jsonOutput),
		newRetainCmd(cfg, &jsonOutput),
		newPurgeCmd(cfg, &jsonOutput),
		newRunCmd(cfg),
		newShowCmd(cfg, &jsonOutput),
		newListCmd(cfg, &jsonOutput),
		newTrashCmd(cfg, &jsonOutput),
		newInfoCmd(cfg, &jsonOutput),
		newStatusCmd(cfg, &jsonOutput),
		newMigrateCmd(cfg, &jsonOutput),
		newConfigCmd(cfg),
	)

	return cmd
}
