// Package lifecycle implements the retention pass: promotion of aged new
// records, deletion of trashed objects, archival of approved objects to the
// cold tier, and purging of expired tombstones.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"hoard/internal/blobstore"
	"hoard/internal/metrics"
	"hoard/internal/models"
	"hoard/internal/store"
)

// Phase names, also used as metric labels.
const (
	PhasePromote = "promote"
	PhaseDelete  = "delete"
	PhaseArchive = "archive"
	PhasePurge   = "purge"
)

const (
	resultOK       = "ok"
	resultNotFound = "not_found"
	resultFailed   = "failed"
)

// errTolerated marks a record whose object was already gone.
var errTolerated = errors.New("object already absent")

// Config configures a Job.
type Config struct {
	HotBucket          string
	ColdBucket         string
	PromotionWindow    time.Duration
	TombstoneRetention time.Duration
	Concurrency        int
}

// RunOptions selects phases.
type RunOptions struct {
	SkipPromote bool
	SkipDelete  bool
	SkipArchive bool
	SkipPurge   bool
}

// PhaseReport counts per-record outcomes of a batched phase.
type PhaseReport struct {
	Candidates int `json:"candidates" yaml:"candidates"`
	Succeeded  int `json:"succeeded" yaml:"succeeded"`
	NotFound   int `json:"not_found" yaml:"not_found"`
	Failed     int `json:"failed" yaml:"failed"`
}

// Report summarizes one retention pass.
type Report struct {
	RunID      string      `json:"run_id" yaml:"run_id"`
	StartedAt  time.Time   `json:"started_at" yaml:"started_at"`
	FinishedAt time.Time   `json:"finished_at" yaml:"finished_at"`
	Promoted   int64       `json:"promoted" yaml:"promoted"`
	Deletion   PhaseReport `json:"deletion" yaml:"deletion"`
	Archival   PhaseReport `json:"archival" yaml:"archival"`
	Purged     int64       `json:"purged" yaml:"purged"`
	Skipped    []string    `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// Job runs retention passes against a record store and the object tiers.
type Job struct {
	cfg     Config
	records store.RecordStore
	objects blobstore.ObjectStore
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Job.
type Option func(*Job)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(j *Job) { j.now = now }
}

// WithMetrics records per-phase metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(j *Job) { j.metrics = m }
}

// New validates cfg and builds a job.
func New(cfg Config, records store.RecordStore, objects blobstore.ObjectStore, logger *slog.Logger, opts ...Option) (*Job, error) {
	if cfg.HotBucket == "" || cfg.ColdBucket == "" {
		return nil, fmt.Errorf("hot and cold buckets are required")
	}
	if cfg.HotBucket == cfg.ColdBucket {
		return nil, fmt.Errorf("hot and cold buckets must differ")
	}
	if cfg.PromotionWindow <= 0 || cfg.TombstoneRetention <= 0 {
		return nil, fmt.Errorf("promotion window and tombstone retention must be positive")
	}
	if cfg.Concurrency <= 0 {
		return nil, fmt.Errorf("concurrency must be positive")
	}
	if logger == nil {
		logger = slog.Default()
	}
	j := &Job{
		cfg:     cfg,
		records: records,
		objects: objects,
		logger:  logger.With("component", "lifecycle"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j, nil
}

// Run executes the selected phases in order. A phase that cannot list or
// update its records is logged and the remaining phases still run; the
// returned error joins those phase failures. Per-record failures are only
// counted.
func (j *Job) Run(ctx context.Context, opts RunOptions) (*Report, error) {
	start := j.now()
	report := &Report{RunID: uuid.NewString(), StartedAt: start}
	logger := j.logger.With("run_id", report.RunID)

	var errs []error
	fail := func(phase string, err error) {
		logger.Error("retention phase failed", "phase", phase, "err", err)
		errs = append(errs, fmt.Errorf("%s: %w", phase, err))
	}

	if opts.SkipPromote {
		report.Skipped = append(report.Skipped, PhasePromote)
	} else if n, err := j.Promote(ctx, start); err != nil {
		fail(PhasePromote, err)
	} else {
		report.Promoted = n
	}

	if opts.SkipDelete {
		report.Skipped = append(report.Skipped, PhaseDelete)
	} else if phase, err := j.DeleteTrashed(ctx, start); err != nil {
		fail(PhaseDelete, err)
	} else {
		report.Deletion = phase
	}

	if opts.SkipArchive {
		report.Skipped = append(report.Skipped, PhaseArchive)
	} else if phase, err := j.Archive(ctx, start); err != nil {
		fail(PhaseArchive, err)
	} else {
		report.Archival = phase
	}

	if opts.SkipPurge {
		report.Skipped = append(report.Skipped, PhasePurge)
	} else if n, err := j.Purge(ctx, start); err != nil {
		fail(PhasePurge, err)
	} else {
		report.Purged = n
	}

	report.FinishedAt = j.now()
	err := errors.Join(errs...)
	j.metrics.RecordRun("retain", err, report.FinishedAt.Sub(start))
	logger.Info("retention run finished",
		"promoted", report.Promoted,
		"deleted", report.Deletion.Succeeded+report.Deletion.NotFound,
		"delete_failed", report.Deletion.Failed,
		"archived", report.Archival.Succeeded+report.Archival.NotFound,
		"archive_failed", report.Archival.Failed,
		"purged", report.Purged,
	)
	return report, err
}

// Promote approves every New record created before now minus the promotion
// window, in one bulk update.
func (j *Job) Promote(ctx context.Context, now time.Time) (int64, error) {
	n, err := j.records.UpdateMatching(ctx,
		store.Filter{
			Levels:        []models.Level{models.LevelNew},
			CreatedBefore: now.Add(-j.cfg.PromotionWindow),
		},
		store.Patch{Level: store.LevelPtr(models.LevelApproved), LastModifiedAt: now},
	)
	if err != nil {
		return 0, err
	}
	j.metrics.RecordLifecycle(PhasePromote, resultOK, int(n))
	if n > 0 {
		j.logger.Info("promoted records", "count", n)
	}
	return n, nil
}

// DeleteTrashed removes the objects of Trashed records, oldest first, and
// marks them Deleted. An object that is already absent counts as deleted.
func (j *Job) DeleteTrashed(ctx context.Context, now time.Time) (PhaseReport, error) {
	trashed, err := j.records.ListMatching(ctx,
		store.Filter{Levels: []models.Level{models.LevelTrashed}},
		store.Sort{Field: store.SortByCreatedAt},
		0,
	)
	if err != nil {
		return PhaseReport{}, fmt.Errorf("list trashed: %w", err)
	}

	errs := forEachBatch(ctx, trashed, j.cfg.Concurrency, func(ctx context.Context, rec models.BlobRecord) error {
		return j.deleteOne(ctx, rec, now)
	})
	return j.tally(PhaseDelete, trashed, errs), nil
}

func (j *Job) deleteOne(ctx context.Context, rec models.BlobRecord, now time.Time) error {
	var tolerated bool
	if err := j.objects.Delete(ctx, rec.Bucket, rec.ID); err != nil {
		if !errors.Is(err, blobstore.ErrObjectNotFound) {
			return fmt.Errorf("delete object %s/%s: %w", rec.Bucket, rec.ID, err)
		}
		tolerated = true
	}

	_, err := j.records.UpdateMatching(ctx,
		store.Filter{IDs: []string{rec.ID}, Levels: []models.Level{models.LevelTrashed}},
		store.Patch{Level: store.LevelPtr(models.LevelDeleted), LastModifiedAt: now},
	)
	if err != nil {
		return fmt.Errorf("mark %s deleted: %w", rec.ID, err)
	}
	j.logger.Info("deleted", "id", rec.ID, "bucket", rec.Bucket, "paths", rec.Paths, "already_absent", tolerated)
	if tolerated {
		return errTolerated
	}
	return nil
}

// Archive moves the objects of Approved records from the hot tier to the
// cold tier and repoints the records. A missing hot source counts as
// already migrated.
func (j *Job) Archive(ctx context.Context, now time.Time) (PhaseReport, error) {
	approved, err := j.records.ListMatching(ctx,
		store.Filter{Levels: []models.Level{models.LevelApproved}, Bucket: j.cfg.HotBucket},
		store.Sort{Field: store.SortByCreatedAt},
		0,
	)
	if err != nil {
		return PhaseReport{}, fmt.Errorf("list approved: %w", err)
	}

	errs := forEachBatch(ctx, approved, j.cfg.Concurrency, func(ctx context.Context, rec models.BlobRecord) error {
		return j.archiveOne(ctx, rec, now)
	})
	return j.tally(PhaseArchive, approved, errs), nil
}

func (j *Job) archiveOne(ctx context.Context, rec models.BlobRecord, now time.Time) error {
	hot, cold := j.cfg.HotBucket, j.cfg.ColdBucket
	var tolerated bool

	if err := j.objects.Copy(ctx, hot, cold, rec.ID); err != nil {
		if !errors.Is(err, blobstore.ErrObjectNotFound) {
			return fmt.Errorf("copy %s to %s: %w", rec.ID, cold, err)
		}
		tolerated = true
	}
	if err := j.objects.Delete(ctx, hot, rec.ID); err != nil && !errors.Is(err, blobstore.ErrObjectNotFound) {
		return fmt.Errorf("delete %s/%s: %w", hot, rec.ID, err)
	}

	// Only the bucket is guarded; a record trashed meanwhile must still
	// point at the tier that holds its object.
	_, err := j.records.UpdateMatching(ctx,
		store.Filter{IDs: []string{rec.ID}, Bucket: hot},
		store.Patch{Bucket: store.StringPtr(cold), LastModifiedAt: now},
	)
	if err != nil {
		return fmt.Errorf("repoint %s to %s: %w", rec.ID, cold, err)
	}
	j.logger.Info("archived", "id", rec.ID, "paths", rec.Paths, "already_migrated", tolerated)
	if tolerated {
		return errTolerated
	}
	return nil
}

// Purge hard-deletes tombstones older than the retention period.
func (j *Job) Purge(ctx context.Context, now time.Time) (int64, error) {
	n, err := PurgeTombstones(ctx, j.records, now.Add(-j.cfg.TombstoneRetention))
	if err != nil {
		return 0, err
	}
	j.metrics.RecordLifecycle(PhasePurge, resultOK, int(n))
	if n > 0 {
		j.logger.Info("purged tombstones", "count", n)
	}
	return n, nil
}

// PurgeTombstones deletes Deleted records last modified before cutoff.
func PurgeTombstones(ctx context.Context, records store.RecordStore, cutoff time.Time) (int64, error) {
	return records.DeleteMatching(ctx, store.Filter{
		Levels:         []models.Level{models.LevelDeleted},
		ModifiedBefore: cutoff,
	})
}

func (j *Job) tally(phase string, recs []models.BlobRecord, errs []error) PhaseReport {
	report := PhaseReport{Candidates: len(recs)}
	for i, err := range errs {
		switch {
		case err == nil:
			report.Succeeded++
		case errors.Is(err, errTolerated):
			report.NotFound++
		default:
			report.Failed++
			j.logger.Warn("retention record failed", "phase", phase, "id", recs[i].ID, "err", err)
		}
	}
	j.metrics.RecordLifecycle(phase, resultOK, report.Succeeded)
	j.metrics.RecordLifecycle(phase, resultNotFound, report.NotFound)
	j.metrics.RecordLifecycle(phase, resultFailed, report.Failed)
	return report
}
