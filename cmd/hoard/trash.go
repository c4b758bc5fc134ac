package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/models"
	"hoard/internal/store"
)

func newTrashCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var only bool

	cmd := &cobra.Command{
		Use:   "trash <id>",
		Short: "Trash every new record sharing a directory with the given record",
		Args:  requireOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(cmd.Context(), cfg, func(a *app) error {
				trash := trashRelated
				if only {
					trash = trashOne
				}
				n, err := trash(cmd.Context(), a.records, args[0], time.Now())
				if err != nil {
					return err
				}
				a.logger.Info("trashed records", "id", args[0], "count", n, "only", only)
				if *jsonOutput {
					return writeJSON(map[string]int64{"modified": n})
				}
				return writePlain("trashed: %d\n", n)
			})
		},
	}

	cmd.Flags().BoolVar(&only, "only", false, "trash just this record, new or approved")
	return cmd
}

// trashRelated moves every New record that shares a non-root directory with
// the record id to Trashed. A record that only sits in the source root trashes
// nothing but itself.
func trashRelated(ctx context.Context, records store.RecordStore, id string, now time.Time) (int64, error) {
	record, err := records.FindByKey(ctx, id)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, fmt.Errorf("trash %s: %w", id, store.ErrRecordNotFound)
	}

	dirs := make([]string, 0, len(record.Dirs))
	for _, dir := range record.Dirs {
		if dir != models.RootDir && dir != "" {
			dirs = append(dirs, dir)
		}
	}
	filter := store.Filter{Levels: []models.Level{models.LevelNew}}
	if len(dirs) > 0 {
		filter.Dirs = dirs
	} else {
		filter.IDs = []string{id}
	}

	return records.UpdateMatching(ctx, filter, store.Patch{
		Level:          store.LevelPtr(models.LevelTrashed),
		LastModifiedAt: now,
	})
}

// trashOne moves a single New or Approved record to Trashed.
func trashOne(ctx context.Context, records store.RecordStore, id string, now time.Time) (int64, error) {
	record, err := records.FindByKey(ctx, id)
	if err != nil {
		return 0, err
	}
	if record == nil {
		return 0, fmt.Errorf("trash %s: %w", id, store.ErrRecordNotFound)
	}
	if !record.Level.CanTransition(models.LevelTrashed) {
		return 0, fmt.Errorf("cannot trash %s: record is %s", id, record.Level)
	}
	return records.UpdateMatching(ctx,
		store.Filter{IDs: []string{id}, Levels: []models.Level{record.Level}},
		store.Patch{Level: store.LevelPtr(models.LevelTrashed), LastModifiedAt: now},
	)
}
