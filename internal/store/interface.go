package store

import (
	"context"
	"errors"
	"time"

	"hoard/internal/models"
)

var (
	// ErrRecordExists is returned by Insert when the content id is already tracked.
	ErrRecordExists = errors.New("record already exists")
	// ErrRecordNotFound is returned by mutations that target one missing record.
	ErrRecordNotFound = errors.New("record not found")
	// ErrEmptyPatch is returned when an update would change nothing.
	ErrEmptyPatch = errors.New("patch is empty")
)

// RecordStore is the metadata persistence surface used by the ingestion
// pipeline and the lifecycle job. Implementations must treat Paths, Dirs and
// Tags as sets.
type RecordStore interface {
	FindByKey(ctx context.Context, id string) (*models.BlobRecord, error)
	Insert(ctx context.Context, record *models.BlobRecord) error
	AddLocations(ctx context.Context, id string, paths, dirs []string) error
	UpdateMatching(ctx context.Context, filter Filter, patch Patch) (int64, error)
	CountMatching(ctx context.Context, filter Filter) (int64, error)
	ListMatching(ctx context.Context, filter Filter, sort Sort, limit int) ([]models.BlobRecord, error)
	DeleteOne(ctx context.Context, id string) error
	DeleteMatching(ctx context.Context, filter Filter) (int64, error)
	Close() error
}

var _ RecordStore = (*Store)(nil)

// Filter selects records. Zero-valued fields do not constrain the match;
// all set fields must hold.
type Filter struct {
	IDs            []string
	Levels         []models.Level
	MinLevel       *models.Level
	Bucket         string
	Dirs           []string // record has at least one of these dirs
	CreatedBefore  time.Time
	CreatedSince   time.Time // inclusive
	ModifiedBefore time.Time
	MaxLength      *int64 // inclusive
}

// Patch describes the fields an update sets. LastModifiedAt is written when non-zero.
type Patch struct {
	Level          *models.Level
	Bucket         *string
	LastModifiedAt time.Time
	LastViewedAt   *time.Time
}

// IsEmpty reports whether the patch sets no field.
func (p Patch) IsEmpty() bool {
	return p.Level == nil && p.Bucket == nil && p.LastModifiedAt.IsZero() && p.LastViewedAt == nil
}

// SortField names a sortable record column.
type SortField string

const (
	SortByCreatedAt      SortField = "created_at"
	SortByLastModifiedAt SortField = "last_modified_at"
	SortByLength         SortField = "length"
	SortByID             SortField = "id"
)

// Sort orders listings. The zero value sorts by creation time ascending.
type Sort struct {
	Field SortField
	Desc  bool
}

// LevelPtr returns a pointer to level, for Filter and Patch literals.
func LevelPtr(level models.Level) *models.Level {
	return &level
}

// Int64Ptr returns a pointer to v.
func Int64Ptr(v int64) *int64 {
	return &v
}

// StringPtr returns a pointer to v.
func StringPtr(v string) *string {
	return &v
}
