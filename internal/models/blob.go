package models

import (
	"path"
	"time"
)

// RootDir is the directory recorded for files that sit directly in the source root.
const RootDir = "."

// BlobRecord is one tracked piece of content, keyed by its content hash.
type BlobRecord struct {
	ID             string     `json:"id" yaml:"id"`
	ContentType    string     `json:"content_type" yaml:"content_type"`
	CreatedAt      time.Time  `json:"created_at" yaml:"created_at"`
	LastModifiedAt time.Time  `json:"last_modified_at" yaml:"last_modified_at"`
	LastViewedAt   *time.Time `json:"last_viewed_at,omitempty" yaml:"last_viewed_at,omitempty"`
	Length         int64      `json:"length" yaml:"length"`
	Level          Level      `json:"level" yaml:"level"`
	Tags           []string   `json:"tags,omitempty" yaml:"tags,omitempty"`
	Paths          []string   `json:"paths" yaml:"paths"`
	Dirs           []string   `json:"dirs" yaml:"dirs"`
	Bucket         string     `json:"bucket" yaml:"bucket"`
}

// DirOf returns the recorded parent directory for a source-relative slash path.
func DirOf(relPath string) string {
	dir := path.Dir(relPath)
	if dir == "" || dir == "/" {
		return RootDir
	}
	return dir
}
