// Package ingest moves files from a watched source directory into the hot
// tier, deduplicating by content and enforcing the daily admission quota.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"

	"hoard/internal/blobstore"
	"hoard/internal/lifecycle"
	"hoard/internal/metrics"
	"hoard/internal/models"
	"hoard/internal/store"
)

// File outcomes, also used as metric labels.
const (
	OutcomeIgnored      = "ignored"
	OutcomeUnrecognized = "unrecognized"
	OutcomeEmpty        = "empty"
	OutcomeDuplicate    = "duplicate"
	OutcomeUploaded     = "uploaded"
	OutcomeDeferred     = "deferred"
	OutcomeFailed       = "failed"
)

// Config configures a pipeline.
type Config struct {
	SourceDir          string
	HotBucket          string
	HashAlgorithm      string
	IgnorePatterns     []string
	Admission          AdmissionConfig
	PurgeTombstones    bool
	TombstoneRetention time.Duration
}

// Report summarizes one run.
type Report struct {
	RunID            string         `json:"run_id" yaml:"run_id"`
	StartedAt        time.Time      `json:"started_at" yaml:"started_at"`
	FinishedAt       time.Time      `json:"finished_at" yaml:"finished_at"`
	Scanned          int            `json:"scanned" yaml:"scanned"`
	Uploaded         int            `json:"uploaded" yaml:"uploaded"`
	UploadedBytes    int64          `json:"uploaded_bytes" yaml:"uploaded_bytes"`
	Duplicates       int            `json:"duplicates" yaml:"duplicates"`
	Deferred         int            `json:"deferred" yaml:"deferred"`
	Ignored          int            `json:"ignored" yaml:"ignored"`
	Unrecognized     int            `json:"unrecognized" yaml:"unrecognized"`
	Empty            int            `json:"empty" yaml:"empty"`
	Failed           int            `json:"failed" yaml:"failed"`
	Admissions       map[string]int `json:"admissions" yaml:"admissions"`
	PrunedDirs       int            `json:"pruned_dirs" yaml:"pruned_dirs"`
	PurgedTombstones int64          `json:"purged_tombstones" yaml:"purged_tombstones"`
	QuotaBoundary    time.Time      `json:"quota_boundary" yaml:"quota_boundary"`
	QuotaUsed        int64          `json:"quota_used" yaml:"quota_used"`
	QuotaRemaining   int            `json:"quota_remaining" yaml:"quota_remaining"`
}

func (r *Report) count(outcome string) {
	switch outcome {
	case OutcomeIgnored:
		r.Ignored++
	case OutcomeUnrecognized:
		r.Unrecognized++
	case OutcomeEmpty:
		r.Empty++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeUploaded:
		r.Uploaded++
	case OutcomeDeferred:
		r.Deferred++
	case OutcomeFailed:
		r.Failed++
	}
}

// Pipeline runs ingestion passes. It holds no per-run state; each Run builds
// its own admission controller.
type Pipeline struct {
	cfg     Config
	ignore  []*regexp.Regexp
	records store.RecordStore
	objects blobstore.ObjectStore
	hasher  *Hasher
	dedup   *Deduplicator
	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option customizes a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// WithMetrics records run metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(p *Pipeline) { p.metrics = m }
}

// New validates cfg and builds a pipeline.
func New(cfg Config, records store.RecordStore, objects blobstore.ObjectStore, logger *slog.Logger, opts ...Option) (*Pipeline, error) {
	if cfg.SourceDir == "" {
		return nil, fmt.Errorf("source dir is required")
	}
	if cfg.HotBucket == "" {
		return nil, fmt.Errorf("hot bucket is required")
	}
	hasher, err := NewHasher(cfg.HashAlgorithm)
	if err != nil {
		return nil, err
	}
	ignore := make([]*regexp.Regexp, 0, len(cfg.IgnorePatterns))
	for _, pattern := range cfg.IgnorePatterns {
		re, err := regexp.Compile("(?i)" + pattern)
		if err != nil {
			return nil, fmt.Errorf("compile ignore pattern %q: %w", pattern, err)
		}
		ignore = append(ignore, re)
	}
	if logger == nil {
		logger = slog.Default()
	}

	p := &Pipeline{
		cfg:     cfg,
		ignore:  ignore,
		records: records,
		objects: objects,
		hasher:  hasher,
		dedup:   NewDeduplicator(records),
		logger:  logger.With("component", "ingest"),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

type runState struct {
	logger      *slog.Logger
	controller  *Controller
	report      *Report
	warnedQuota bool
}

// Run performs one ingestion pass. A *CorruptionError aborts the run; other
// per-file failures are logged and counted and the file stays for the next run.
func (p *Pipeline) Run(ctx context.Context) (*Report, error) {
	start := p.now()
	report := &Report{
		RunID:      uuid.NewString(),
		StartedAt:  start,
		Admissions: map[string]int{},
	}
	logger := p.logger.With("run_id", report.RunID)

	err := p.run(ctx, logger, report)
	report.FinishedAt = p.now()
	p.metrics.RecordRun("ingest", err, report.FinishedAt.Sub(start))

	if err != nil {
		logger.Error("ingest run aborted", "err", err, "scanned", report.Scanned, "uploaded", report.Uploaded)
		return report, err
	}
	logger.Info("ingest run finished",
		"scanned", report.Scanned,
		"uploaded", report.Uploaded,
		"uploaded_size", humanize.IBytes(uint64(report.UploadedBytes)),
		"duplicates", report.Duplicates,
		"deferred", report.Deferred,
		"failed", report.Failed,
		"quota_remaining", report.QuotaRemaining,
	)
	return report, nil
}

func (p *Pipeline) run(ctx context.Context, logger *slog.Logger, report *Report) error {
	start := report.StartedAt

	if p.cfg.PurgeTombstones {
		n, err := lifecycle.PurgeTombstones(ctx, p.records, start.Add(-p.cfg.TombstoneRetention))
		if err != nil {
			logger.Warn("purge tombstones failed", "err", err)
		} else {
			report.PurgedTombstones = n
		}
	}

	controller, err := NewController(ctx, p.records, p.cfg.Admission, start)
	if err != nil {
		return err
	}
	report.QuotaBoundary = controller.Boundary()
	report.QuotaUsed = controller.Used()
	report.QuotaRemaining = controller.Remaining()
	p.metrics.SetQuotaRemaining(controller.Remaining())
	logger.Info("quota window",
		"boundary", controller.Boundary().Format(time.RFC3339),
		"used", controller.Used(),
		"remaining", controller.Remaining(),
	)

	walk, err := walkSource(p.cfg.SourceDir)
	if err != nil {
		return fmt.Errorf("read source dir: %w", err)
	}
	for dir, werr := range walk.Unreadable {
		logger.Warn("skipping unreadable directory", "dir", dir, "err", werr)
	}
	report.Scanned = len(walk.Files)
	logger.Debug("source scanned", "dir", p.cfg.SourceDir, "files", len(walk.Files))

	state := &runState{logger: logger, controller: controller, report: report}
	for _, rel := range walk.Files {
		if err := ctx.Err(); err != nil {
			return err
		}
		outcome, err := p.processFile(ctx, state, rel)
		var corrupt *CorruptionError
		if errors.As(err, &corrupt) {
			return err
		}
		if err != nil {
			logger.Warn("ingest file failed", "path", rel, "err", err)
			outcome = OutcomeFailed
		}
		report.count(outcome)
		p.metrics.RecordFile(outcome)
	}

	report.PrunedDirs += pruneEmptyDirs(p.cfg.SourceDir)
	report.QuotaRemaining = controller.Remaining()
	p.metrics.SetQuotaRemaining(controller.Remaining())
	return nil
}

func (p *Pipeline) processFile(ctx context.Context, state *runState, rel string) (string, error) {
	full := filepath.Join(p.cfg.SourceDir, filepath.FromSlash(rel))
	dir := models.DirOf(rel)
	logger := state.logger.With("path", rel)

	if pattern, ok := p.ignored(path.Base(rel)); ok {
		if err := p.removeLocal(state, full, dir); err != nil {
			return "", err
		}
		logger.Info("deleted ignored file", "pattern", pattern)
		return OutcomeIgnored, nil
	}

	contentType, ok := models.ContentTypeForPath(rel)
	if !ok {
		logger.Debug("skipping unrecognized file")
		return OutcomeUnrecognized, nil
	}

	size, regular, err := statRegular(full)
	if err != nil {
		return "", err
	}
	if !regular || size == 0 {
		logger.Debug("skipping empty file")
		return OutcomeEmpty, nil
	}

	id, length, err := p.hasher.HashFile(full)
	if err != nil {
		return "", fmt.Errorf("hash: %w", err)
	}
	candidate := Candidate{ID: id, Length: length, Path: rel, Dir: dir}

	resolution, err := p.dedup.Resolve(ctx, candidate)
	if err != nil {
		return "", err
	}
	if resolution == ResolvedDuplicate {
		if err := p.removeLocal(state, full, dir); err != nil {
			return "", err
		}
		logger.Info("folded duplicate", "id", id)
		return OutcomeDuplicate, nil
	}

	dirFiles, err := countRegularFiles(filepath.Dir(full))
	if err != nil {
		return "", fmt.Errorf("count dir files: %w", err)
	}
	decision := state.controller.Decide(length, dirFiles, dir)
	if !decision.Admitted() {
		if !state.warnedQuota {
			logger.Warn("daily quota exhausted, deferring small files",
				"threshold", p.cfg.Admission.DailyThreshold,
				"remaining", state.controller.Remaining(),
			)
			state.warnedQuota = true
		}
		return OutcomeDeferred, nil
	}
	state.report.Admissions[decision.String()]++

	if err := p.upload(ctx, full, id, contentType); err != nil {
		return "", err
	}

	now := p.now()
	record := &models.BlobRecord{
		ID:             id,
		ContentType:    contentType,
		CreatedAt:      now,
		LastModifiedAt: now,
		Length:         length,
		Level:          models.LevelNew,
		Tags:           []string{},
		Paths:          []string{rel},
		Dirs:           []string{dir},
		Bucket:         p.cfg.HotBucket,
	}
	if insertErr := p.records.Insert(ctx, record); insertErr != nil {
		if !errors.Is(insertErr, store.ErrRecordExists) {
			return "", fmt.Errorf("insert record %s: %w", id, insertErr)
		}
		// Inserted concurrently; fold into it only after the length check.
		resolution, err := p.dedup.Resolve(ctx, candidate)
		if err != nil {
			return "", err
		}
		if resolution != ResolvedDuplicate {
			return "", fmt.Errorf("insert record %s: %w", id, insertErr)
		}
	}

	if err := p.removeLocal(state, full, dir); err != nil {
		return "", err
	}
	state.report.UploadedBytes += length
	p.metrics.RecordUpload(length)
	logger.Info("uploaded",
		"id", id,
		"size", humanize.IBytes(uint64(length)),
		"decision", decision.String(),
		"remaining", state.controller.Remaining(),
	)
	return OutcomeUploaded, nil
}

func (p *Pipeline) upload(ctx context.Context, full, id, contentType string) error {
	f, err := os.Open(full)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := p.objects.Put(ctx, p.cfg.HotBucket, id, f, contentType); err != nil {
		return fmt.Errorf("put %s/%s: %w", p.cfg.HotBucket, id, err)
	}
	return nil
}

func (p *Pipeline) removeLocal(state *runState, full, dir string) error {
	if err := os.Remove(full); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove local file: %w", err)
	}
	state.report.PrunedDirs += pruneEmptyParents(p.cfg.SourceDir, dir)
	return nil
}

func (p *Pipeline) ignored(base string) (string, bool) {
	for _, re := range p.ignore {
		if re.MatchString(base) {
			return re.String(), true
		}
	}
	return "", false
}
