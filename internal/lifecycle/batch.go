package lifecycle

import (
	"context"

	"golang.org/x/sync/errgroup"

	"hoard/internal/models"
)

// forEachBatch runs fn over records in batches of size: up to size calls run
// at once and the next batch starts only after the whole batch returned.
// Errors are collected per record and never cancel siblings. Records not
// started because ctx ended get ctx's error.
func forEachBatch(ctx context.Context, records []models.BlobRecord, size int, fn func(context.Context, models.BlobRecord) error) []error {
	if size <= 0 {
		size = 1
	}
	errs := make([]error, len(records))
	for start := 0; start < len(records); start += size {
		if err := ctx.Err(); err != nil {
			for i := start; i < len(records); i++ {
				errs[i] = err
			}
			break
		}
		end := min(start+size, len(records))

		var g errgroup.Group
		for i := start; i < end; i++ {
			g.Go(func() error {
				errs[i] = fn(ctx, records[i])
				return nil
			})
		}
		_ = g.Wait()
	}
	return errs
}
