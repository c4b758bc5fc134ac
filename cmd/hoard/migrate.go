package main

import (
	"database/sql"
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/store"

	_ "modernc.org/sqlite"
)

func newMigrateCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var dryRun bool
	var inspect bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run or inspect metadata schema migrations (sqlite driver)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if cfg.Metadata.Driver != config.DriverSQLite {
				return fmt.Errorf("migrate only applies to the %s driver; %s indexes are ensured on connect", config.DriverSQLite, cfg.Metadata.Driver)
			}
			db, err := openRawDB(cfg.Metadata.DBPath)
			if err != nil {
				return err
			}
			defer db.Close()

			if inspect || dryRun {
				plan, err := store.MigrationPlan(db)
				if err != nil {
					return fmt.Errorf("inspect migrations: %w", err)
				}

				if *jsonOutput {
					return writeJSON(plan)
				}

				_ = writePlain("Current version: %d\n", plan.CurrentVersion)
				_ = writePlain("Available version: %d\n", plan.AvailableVersion)
				if len(plan.Pending) == 0 {
					return writePlain("No pending migrations.\n")
				}
				_ = writePlain("Pending migrations: %d\n", len(plan.Pending))
				for _, m := range plan.Pending {
					_ = writePlain("  %d: %s\n", m.Version, m.Description)
				}
				return nil
			}

			// Opening the store applies pending migrations.
			st, err := store.Open(cfg.Metadata.DBPath)
			if err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			defer st.Close()

			if *jsonOutput {
				plan, err := store.MigrationPlan(st.DB())
				if err != nil {
					return err
				}
				return writeJSON(plan)
			}

			return writePlain("Migrations applied successfully.\n")
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show pending migrations without applying")
	cmd.Flags().BoolVar(&inspect, "inspect", false, "show migration status")

	return cmd
}

func openRawDB(path string) (*sql.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("db path is required")
	}
	u := url.URL{Scheme: "file", Path: path}
	return sql.Open("sqlite", u.String())
}
