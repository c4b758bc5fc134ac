package ingest

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"hoard/internal/models"
	"hoard/internal/store"
)

// Decision is the admission verdict for one new file.
type Decision int

const (
	Defer Decision = iota
	AdmitLarge
	Admit
	AdmitSparse
	AdmitOverride
)

var decisionNames = map[Decision]string{
	Defer:         "defer",
	AdmitLarge:    "admit-large",
	Admit:         "admit",
	AdmitSparse:   "admit-sparse",
	AdmitOverride: "admit-override",
}

func (d Decision) String() string {
	if name, ok := decisionNames[d]; ok {
		return name
	}
	return fmt.Sprintf("decision(%d)", int(d))
}

// Admitted reports whether the file should be uploaded.
func (d Decision) Admitted() bool {
	return d != Defer
}

// AdmissionConfig tunes the controller.
type AdmissionConfig struct {
	DailyThreshold     int
	BoundaryHour       int
	SmallFileThreshold int64
	DenseDirThreshold  int
	OverridePattern    string
}

// QuotaBoundary returns the start of the quota window containing now: the
// most recent occurrence of hour:00 local time at or before now.
func QuotaBoundary(now time.Time, hour int) time.Time {
	y, m, d := now.Date()
	boundary := time.Date(y, m, d, hour, 0, 0, 0, now.Location())
	if now.Hour() < hour {
		boundary = time.Date(y, m, d-1, hour, 0, 0, 0, now.Location())
	}
	return boundary
}

// Controller enforces the daily small-file quota for one run.
type Controller struct {
	cfg       AdmissionConfig
	override  *regexp.Regexp
	boundary  time.Time
	used      int64
	remaining int
}

// NewController counts small records created since the current quota window
// began and derives the remaining allowance.
func NewController(ctx context.Context, records store.RecordStore, cfg AdmissionConfig, now time.Time) (*Controller, error) {
	var override *regexp.Regexp
	if cfg.OverridePattern != "" {
		re, err := regexp.Compile("(?i)" + cfg.OverridePattern)
		if err != nil {
			return nil, fmt.Errorf("compile override pattern: %w", err)
		}
		override = re
	}

	boundary := QuotaBoundary(now, cfg.BoundaryHour)
	used, err := records.CountMatching(ctx, store.Filter{
		CreatedSince: boundary,
		MinLevel:     store.LevelPtr(models.LevelTrashed),
		MaxLength:    store.Int64Ptr(cfg.SmallFileThreshold),
	})
	if err != nil {
		return nil, fmt.Errorf("count quota usage: %w", err)
	}

	return &Controller{
		cfg:       cfg,
		override:  override,
		boundary:  boundary,
		used:      used,
		remaining: cfg.DailyThreshold - int(used),
	}, nil
}

// Boundary is the start of the current quota window.
func (c *Controller) Boundary() time.Time {
	return c.boundary
}

// Used is the number of small records counted at construction.
func (c *Controller) Used() int64 {
	return c.used
}

// Remaining is the number of quota-consuming admissions left. It may be
// negative when the window is already over quota.
func (c *Controller) Remaining() int {
	return c.remaining
}

// Decide applies the admission rules in order. dirFiles is the number of
// regular files currently in the candidate's directory; dir is the
// source-relative directory.
func (c *Controller) Decide(length int64, dirFiles int, dir string) Decision {
	if length > c.cfg.SmallFileThreshold {
		return AdmitLarge
	}
	if c.remaining > 0 {
		c.remaining--
		return Admit
	}
	if dirFiles <= c.cfg.DenseDirThreshold {
		return AdmitSparse
	}
	if c.override != nil && c.override.MatchString(dir) {
		return AdmitOverride
	}
	return Defer
}
