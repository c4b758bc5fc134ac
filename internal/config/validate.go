package config

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
)

// ConfigurationError reports a missing or invalid setting.
type ConfigurationError struct {
	Key    string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Key, e.Reason)
}

func invalid(key, format string, args ...any) error {
	return &ConfigurationError{Key: key, Reason: fmt.Sprintf(format, args...)}
}

// Validate checks the settings every command depends on.
func (c *Config) Validate() error {
	if err := c.ValidateStores(); err != nil {
		return err
	}
	if err := c.ValidateIngest(); err != nil {
		return err
	}
	return c.ValidateLifecycle()
}

// ValidateStores checks metadata and tier settings.
func (c *Config) ValidateStores() error {
	switch c.Metadata.Driver {
	case DriverSQLite:
		if strings.TrimSpace(c.Metadata.DBPath) == "" {
			return invalid("metadata.db_path", "required for the sqlite driver")
		}
	case DriverMongo:
		if strings.TrimSpace(c.Metadata.MongoURI) == "" {
			return invalid("metadata.mongo_uri", "required for the mongo driver")
		}
		if strings.TrimSpace(c.Metadata.MongoDatabase) == "" {
			return invalid("metadata.mongo_database", "required for the mongo driver")
		}
		if strings.TrimSpace(c.Metadata.MongoCollection) == "" {
			return invalid("metadata.mongo_collection", "required for the mongo driver")
		}
	default:
		return invalid("metadata.driver", "must be %q or %q, got %q", DriverSQLite, DriverMongo, c.Metadata.Driver)
	}

	if strings.TrimSpace(c.Tiers.HotBucket) == "" {
		return invalid("tiers.hot_bucket", "required")
	}
	if strings.TrimSpace(c.Tiers.ColdBucket) == "" {
		return invalid("tiers.cold_bucket", "required")
	}
	if c.Tiers.HotBucket == c.Tiers.ColdBucket {
		return invalid("tiers.cold_bucket", "must differ from tiers.hot_bucket")
	}
	if strings.TrimSpace(c.Tiers.HotDir) == "" {
		return invalid("tiers.hot_dir", "required")
	}
	if strings.TrimSpace(c.Tiers.ColdDir) == "" {
		return invalid("tiers.cold_dir", "required")
	}
	overlap, err := dirsOverlap(c.Tiers.HotDir, c.Tiers.ColdDir)
	if err != nil {
		return invalid("tiers.cold_dir", "%v", err)
	}
	if overlap {
		return invalid("tiers.cold_dir", "must not share or nest with tiers.hot_dir (%s)", c.Tiers.HotDir)
	}
	switch c.Tiers.ColdCompression {
	case CompressionZstd, CompressionNone:
	default:
		return invalid("tiers.cold_compression", "must be %q or %q", CompressionZstd, CompressionNone)
	}
	return nil
}

// ValidateIngest checks ingestion and admission settings.
func (c *Config) ValidateIngest() error {
	if strings.TrimSpace(c.SourceDir) == "" {
		return invalid("source_dir", "required")
	}
	if c.Ingest.DailyThreshold < 0 {
		return invalid("ingest.daily_threshold", "must not be negative")
	}
	if c.Ingest.QuotaBoundaryHour < 0 || c.Ingest.QuotaBoundaryHour > 23 {
		return invalid("ingest.quota_boundary_hour", "must be between 0 and 23")
	}
	if c.Ingest.SmallFileThreshold <= 0 {
		return invalid("ingest.small_file_threshold", "must be positive")
	}
	if c.Ingest.DenseDirThreshold <= 0 {
		return invalid("ingest.dense_dir_threshold", "must be positive")
	}
	if c.Ingest.OverridePattern != "" {
		if _, err := regexp.Compile("(?i)" + c.Ingest.OverridePattern); err != nil {
			return invalid("ingest.override_pattern", "%v", err)
		}
	}
	for _, pattern := range c.Ingest.IgnorePatterns {
		if _, err := regexp.Compile("(?i)" + pattern); err != nil {
			return invalid("ingest.ignore_patterns", "%q: %v", pattern, err)
		}
	}
	switch c.Ingest.HashAlgorithm {
	case HashSHA256, HashBlake2b:
	default:
		return invalid("ingest.hash_algorithm", "must be %q or %q", HashSHA256, HashBlake2b)
	}
	return nil
}

// ValidateLifecycle checks retention and scheduling settings.
func (c *Config) ValidateLifecycle() error {
	if c.Lifecycle.PromotionWindow <= 0 {
		return invalid("lifecycle.promotion_window", "must be positive")
	}
	if c.Lifecycle.TombstoneRetention <= 0 {
		return invalid("lifecycle.tombstone_retention", "must be positive")
	}
	if c.Lifecycle.Concurrency <= 0 {
		return invalid("lifecycle.concurrency", "must be positive")
	}
	if c.Schedule.IngestInterval <= 0 {
		return invalid("schedule.ingest_interval", "must be positive")
	}
	if c.Schedule.RetentionInterval <= 0 {
		return invalid("schedule.retention_interval", "must be positive")
	}
	return nil
}

// dirsOverlap reports whether a and b are the same directory or one contains the other.
func dirsOverlap(a, b string) (bool, error) {
	absA, err := filepath.Abs(strings.TrimSpace(a))
	if err != nil {
		return false, err
	}
	absB, err := filepath.Abs(strings.TrimSpace(b))
	if err != nil {
		return false, err
	}
	return within(absA, absB) || within(absB, absA), nil
}

func within(parent, child string) bool {
	rel, err := filepath.Rel(parent, child)
	if err != nil {
		return false
	}
	return rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)))
}
