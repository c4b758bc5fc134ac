package blobstore

import (
	"context"
	"errors"
	"io"
)

var (
	// ErrObjectNotFound is returned when a bucket holds no object under a key.
	ErrObjectNotFound = errors.New("object not found")
	// ErrUnknownTier is returned for bucket names that were never configured.
	ErrUnknownTier = errors.New("unknown storage tier")
)

// ObjectInfo describes one stored object.
type ObjectInfo struct {
	Bucket      string   `json:"bucket" yaml:"bucket"`
	Key         string   `json:"key" yaml:"key"`
	ContentType string   `json:"content_type" yaml:"content_type"`
	SizeBytes   int64    `json:"size_bytes" yaml:"size_bytes"`
	Encoding    Encoding `json:"encoding" yaml:"encoding"`
}

// ObjectStore is the tiered byte-storage abstraction used by ingestion and
// the lifecycle job. Buckets name tiers.
type ObjectStore interface {
	Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error
	Open(ctx context.Context, bucket, key string) (io.ReadCloser, error)
	Stat(ctx context.Context, bucket, key string) (ObjectInfo, error)
	Delete(ctx context.Context, bucket, key string) error
	Copy(ctx context.Context, srcBucket, dstBucket, key string) error
}

var _ ObjectStore = (*LocalTiers)(nil)
