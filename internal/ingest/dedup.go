package ingest

import (
	"context"
	"fmt"

	"hoard/internal/store"
)

// Resolution is the result of resolving a candidate against the record store.
type Resolution int

const (
	ResolvedNew Resolution = iota
	ResolvedDuplicate
)

func (r Resolution) String() string {
	if r == ResolvedDuplicate {
		return "duplicate"
	}
	return "new"
}

// Candidate is a hashed local file.
type Candidate struct {
	ID     string
	Length int64
	Path   string // source-relative, slash separated
	Dir    string
}

// CorruptionError reports two different lengths under one content id.
// It is never retried and aborts the ingestion run.
type CorruptionError struct {
	ID           string
	Path         string
	StoredLength int64
	FileLength   int64
}

func (e *CorruptionError) Error() string {
	return fmt.Sprintf("content id %s collision at %s: stored length %d, file length %d",
		e.ID, e.Path, e.StoredLength, e.FileLength)
}

// Deduplicator folds repeated content into existing records.
type Deduplicator struct {
	records store.RecordStore
}

// NewDeduplicator wraps a record store.
func NewDeduplicator(records store.RecordStore) *Deduplicator {
	return &Deduplicator{records: records}
}

// Resolve adds the candidate's location to an existing record, or reports
// new content. A stored record with a different length is corruption; the
// record is left untouched.
func (d *Deduplicator) Resolve(ctx context.Context, c Candidate) (Resolution, error) {
	existing, err := d.records.FindByKey(ctx, c.ID)
	if err != nil {
		return ResolvedNew, fmt.Errorf("find record %s: %w", c.ID, err)
	}
	if existing == nil {
		return ResolvedNew, nil
	}
	if existing.Length != c.Length {
		return ResolvedDuplicate, &CorruptionError{
			ID:           c.ID,
			Path:         c.Path,
			StoredLength: existing.Length,
			FileLength:   c.Length,
		}
	}
	if err := d.records.AddLocations(ctx, c.ID, []string{c.Path}, []string{c.Dir}); err != nil {
		return ResolvedDuplicate, fmt.Errorf("add location to %s: %w", c.ID, err)
	}
	return ResolvedDuplicate, nil
}
