package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/dustin/go-humanize"
)

var allowedKeys = []string{
	"source_dir",
	"log_level",
	"metadata.driver",
	"metadata.db_path",
	"metadata.mongo_uri",
	"metadata.mongo_database",
	"metadata.mongo_collection",
	"tiers.hot_bucket",
	"tiers.hot_dir",
	"tiers.cold_bucket",
	"tiers.cold_dir",
	"tiers.cold_compression",
	"ingest.daily_threshold",
	"ingest.quota_boundary_hour",
	"ingest.small_file_threshold",
	"ingest.dense_dir_threshold",
	"ingest.override_pattern",
	"ingest.ignore_patterns",
	"ingest.hash_algorithm",
	"ingest.purge_tombstones",
	"lifecycle.promotion_window",
	"lifecycle.tombstone_retention",
	"lifecycle.concurrency",
	"schedule.ingest_interval",
	"schedule.retention_interval",
	"schedule.metrics_addr",
}

// AllowedKeys returns the set of valid config keys.
func AllowedKeys() []string {
	return allowedKeys
}

// IsAllowedKey checks if a key is a valid config key.
func IsAllowedKey(key string) bool {
	for _, k := range allowedKeys {
		if k == key {
			return true
		}
	}
	return false
}

// Get returns the value of a config key.
func (c *Config) Get(key string) (string, error) {
	switch key {
	case "source_dir":
		return c.SourceDir, nil
	case "log_level":
		return c.LogLevel, nil
	case "metadata.driver":
		return c.Metadata.Driver, nil
	case "metadata.db_path":
		return c.Metadata.DBPath, nil
	case "metadata.mongo_uri":
		return c.Metadata.MongoURI, nil
	case "metadata.mongo_database":
		return c.Metadata.MongoDatabase, nil
	case "metadata.mongo_collection":
		return c.Metadata.MongoCollection, nil
	case "tiers.hot_bucket":
		return c.Tiers.HotBucket, nil
	case "tiers.hot_dir":
		return c.Tiers.HotDir, nil
	case "tiers.cold_bucket":
		return c.Tiers.ColdBucket, nil
	case "tiers.cold_dir":
		return c.Tiers.ColdDir, nil
	case "tiers.cold_compression":
		return c.Tiers.ColdCompression, nil
	case "ingest.daily_threshold":
		return strconv.Itoa(c.Ingest.DailyThreshold), nil
	case "ingest.quota_boundary_hour":
		return strconv.Itoa(c.Ingest.QuotaBoundaryHour), nil
	case "ingest.small_file_threshold":
		return c.Ingest.SmallFileThreshold.String(), nil
	case "ingest.dense_dir_threshold":
		return strconv.Itoa(c.Ingest.DenseDirThreshold), nil
	case "ingest.override_pattern":
		return c.Ingest.OverridePattern, nil
	case "ingest.ignore_patterns":
		return strings.Join(c.Ingest.IgnorePatterns, ","), nil
	case "ingest.hash_algorithm":
		return c.Ingest.HashAlgorithm, nil
	case "ingest.purge_tombstones":
		return strconv.FormatBool(c.Ingest.PurgeTombstones), nil
	case "lifecycle.promotion_window":
		return c.Lifecycle.PromotionWindow.String(), nil
	case "lifecycle.tombstone_retention":
		return c.Lifecycle.TombstoneRetention.String(), nil
	case "lifecycle.concurrency":
		return strconv.Itoa(c.Lifecycle.Concurrency), nil
	case "schedule.ingest_interval":
		return c.Schedule.IngestInterval.String(), nil
	case "schedule.retention_interval":
		return c.Schedule.RetentionInterval.String(), nil
	case "schedule.metrics_addr":
		return c.Schedule.MetricsAddr, nil
	default:
		return "", fmt.Errorf("unknown key: %s", key)
	}
}

// SetKey reads the TOML file at path, sets key=value, and writes it back.
func SetKey(path, key, value string) error {
	if !IsAllowedKey(key) {
		return fmt.Errorf("unknown key: %s", key)
	}

	data := make(map[string]any)
	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &data); err != nil {
			return fmt.Errorf("parse %s: %w", path, err)
		}
	}

	parsedValue, err := parseSetValue(key, value)
	if err != nil {
		return err
	}
	if err := setNestedKey(data, strings.Split(key, "."), parsedValue); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(data)
}

func parseSetValue(key, value string) (any, error) {
	value = strings.TrimSpace(value)
	switch key {
	case "ingest.daily_threshold", "ingest.quota_boundary_hour":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed < 0 {
			return nil, fmt.Errorf("%s must be a non-negative integer", key)
		}
		return parsed, nil
	case "ingest.dense_dir_threshold", "lifecycle.concurrency":
		parsed, err := strconv.Atoi(value)
		if err != nil || parsed <= 0 {
			return nil, fmt.Errorf("%s must be a positive integer", key)
		}
		return parsed, nil
	case "ingest.small_file_threshold":
		if _, err := humanize.ParseBytes(value); err != nil {
			return nil, fmt.Errorf("%s must be a size such as 1MiB", key)
		}
		return value, nil
	case "lifecycle.promotion_window", "lifecycle.tombstone_retention",
		"schedule.ingest_interval", "schedule.retention_interval":
		if _, err := time.ParseDuration(value); err != nil {
			return nil, fmt.Errorf("%s must be a duration such as 168h", key)
		}
		return value, nil
	case "ingest.purge_tombstones":
		parsed, err := strconv.ParseBool(value)
		if err != nil {
			return nil, fmt.Errorf("%s must be true or false", key)
		}
		return parsed, nil
	case "ingest.ignore_patterns":
		return splitCSV(value), nil
	default:
		return value, nil
	}
}

func setNestedKey(data map[string]any, parts []string, value any) error {
	if len(parts) == 0 {
		return fmt.Errorf("invalid config key")
	}
	if len(parts) == 1 {
		data[parts[0]] = value
		return nil
	}
	childRaw, ok := data[parts[0]]
	if !ok {
		child := map[string]any{}
		data[parts[0]] = child
		return setNestedKey(child, parts[1:], value)
	}
	child, ok := childRaw.(map[string]any)
	if !ok {
		return fmt.Errorf("cannot set nested key %q", strings.Join(parts, "."))
	}
	return setNestedKey(child, parts[1:], value)
}

func splitCSV(value string) []string {
	value = strings.TrimSpace(value)
	if value == "" {
		return []string{}
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
