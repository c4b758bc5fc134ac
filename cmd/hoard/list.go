package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"hoard/internal/config"
	"hoard/internal/models"
	"hoard/internal/store"
)

var listSortFields = map[string]store.SortField{
	"created":  store.SortByCreatedAt,
	"modified": store.SortByLastModifiedAt,
	"length":   store.SortByLength,
	"id":       store.SortByID,
}

func newListCmd(cfg *config.Config, jsonOutput *bool) *cobra.Command {
	var (
		levels []string
		bucket string
		dirs   []string
		sortBy string
		desc   bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List blob records",
		RunE: func(cmd *cobra.Command, args []string) error {
			filter := store.Filter{Bucket: bucket, Dirs: dirs}
			for _, raw := range levels {
				level, err := models.ParseLevel(raw)
				if err != nil {
					return err
				}
				filter.Levels = append(filter.Levels, level)
			}
			field, ok := listSortFields[sortBy]
			if !ok {
				return fmt.Errorf("invalid --sort %q (allowed: created, modified, length, id)", sortBy)
			}
			if limit < 0 {
				return fmt.Errorf("--limit must not be negative")
			}

			return withApp(cmd.Context(), cfg, func(a *app) error {
				records, err := a.records.ListMatching(cmd.Context(), filter, store.Sort{Field: field, Desc: desc}, limit)
				if err != nil {
					return err
				}
				if *jsonOutput {
					if records == nil {
						records = []models.BlobRecord{}
					}
					return writeJSON(records)
				}
				return writeRecordList(records)
			})
		},
	}

	cmd.Flags().StringSliceVar(&levels, "level", nil, "level filter (new, approved, trashed, deleted); repeatable")
	cmd.Flags().StringVar(&bucket, "bucket", "", "bucket filter")
	cmd.Flags().StringSliceVar(&dirs, "dir", nil, "directory filter; repeatable")
	cmd.Flags().StringVar(&sortBy, "sort", "created", "sort by created, modified, length or id")
	cmd.Flags().BoolVar(&desc, "desc", false, "sort descending")
	cmd.Flags().IntVar(&limit, "limit", 50, "limit results (0 for all)")

	return cmd
}
