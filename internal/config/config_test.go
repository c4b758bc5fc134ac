package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

// chdir switches into dir for the duration of the test.
func chdir(t *testing.T, dir string) {
	t.Helper()
	oldWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(oldWD)
	})
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
}

// isolate points HOME and the workspace at temp dirs and clears env overrides.
func isolate(t *testing.T) (homeDir, workspace string) {
	t.Helper()
	homeDir = t.TempDir()
	workspace = t.TempDir()
	chdir(t, workspace)
	t.Setenv("HOME", homeDir)
	for _, key := range []string{
		"HOARD_CONFIG_DIR", "HOARD_TRUST_PROJECT_CONFIG", "HOARD_SOURCE_DIR",
		"HOARD_DB", "HOARD_MONGO_URI", "HOARD_OVERRIDE_PATTERN", "HOARD_DAILY_THRESHOLD",
	} {
		t.Setenv(key, "")
	}
	return homeDir, workspace
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
	if cfg.Metadata.Driver != DriverSQLite {
		t.Fatalf("expected sqlite driver, got %q", cfg.Metadata.Driver)
	}
	if cfg.Ingest.QuotaBoundaryHour != 22 {
		t.Fatalf("expected boundary hour 22, got %d", cfg.Ingest.QuotaBoundaryHour)
	}
	if cfg.Ingest.SmallFileThreshold != 1048576 {
		t.Fatalf("expected small file threshold 1MiB, got %d", cfg.Ingest.SmallFileThreshold)
	}
	if cfg.Ingest.DenseDirThreshold != 5 {
		t.Fatalf("expected dense dir threshold 5, got %d", cfg.Ingest.DenseDirThreshold)
	}
	if cfg.Lifecycle.PromotionWindow.Std() != 7*24*time.Hour {
		t.Fatalf("expected 7d promotion window, got %v", cfg.Lifecycle.PromotionWindow)
	}
	if cfg.Lifecycle.Concurrency != 32 {
		t.Fatalf("expected concurrency 32, got %d", cfg.Lifecycle.Concurrency)
	}
	if !cfg.Ingest.PurgeTombstones {
		t.Fatal("expected purge_tombstones default true")
	}
	if len(cfg.Ingest.IgnorePatterns) != 2 {
		t.Fatalf("expected default ignore patterns, got %v", cfg.Ingest.IgnorePatterns)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte(`source_dir = "/srv/inbox"
log_level = "warn"

[ingest]
daily_threshold = 3
small_file_threshold = "512KiB"
override_pattern = "^keep"

[lifecycle]
promotion_window = "48h"
`), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/srv/inbox" {
		t.Fatalf("expected source_dir, got %q", cfg.SourceDir)
	}
	if cfg.LogLevel != "warn" {
		t.Fatalf("expected log_level 'warn', got %q", cfg.LogLevel)
	}
	if cfg.Ingest.DailyThreshold != 3 {
		t.Fatalf("expected daily_threshold 3, got %d", cfg.Ingest.DailyThreshold)
	}
	if cfg.Ingest.SmallFileThreshold != 512*1024 {
		t.Fatalf("expected 512KiB, got %d", cfg.Ingest.SmallFileThreshold)
	}
	if cfg.Lifecycle.PromotionWindow.Std() != 48*time.Hour {
		t.Fatalf("expected 48h, got %v", cfg.Lifecycle.PromotionWindow)
	}
	if cfg.Ingest.DenseDirThreshold != DefaultDenseDirThreshold {
		t.Fatal("defaults should be preserved for unset keys")
	}
}

func TestLoadFileRejectsBadSize(t *testing.T) {
	path := filepath.Join(t.TempDir(), configFileName)
	if err := os.WriteFile(path, []byte("[ingest]\nsmall_file_threshold = \"lots\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	cfg := Default()
	if err := loadFile(path, &cfg); err == nil {
		t.Fatal("expected parse error for bad size")
	}
}

func TestLoadFileMissing(t *testing.T) {
	cfg := Default()
	if err := loadFile("/nonexistent/path/.hoard.toml", &cfg); err != nil {
		t.Fatalf("missing file should not error: %v", err)
	}
	if cfg.Ingest.DailyThreshold != DefaultDailyThreshold {
		t.Fatalf("defaults should be preserved")
	}
}

func TestIsAllowedKey(t *testing.T) {
	for _, key := range []string{
		"source_dir",
		"log_level",
		"metadata.db_path",
		"tiers.cold_compression",
		"ingest.daily_threshold",
		"ingest.small_file_threshold",
		"lifecycle.promotion_window",
		"schedule.metrics_addr",
	} {
		if !IsAllowedKey(key) {
			t.Fatalf("expected %q to be allowed", key)
		}
	}
	if IsAllowedKey("invalid") {
		t.Fatal("expected 'invalid' to not be allowed")
	}
}

func TestGetKeyCoversAllowedKeys(t *testing.T) {
	cfg := Default()
	for _, key := range AllowedKeys() {
		if _, err := cfg.Get(key); err != nil {
			t.Fatalf("get %q: %v", key, err)
		}
	}
	if _, err := cfg.Get("invalid"); err == nil {
		t.Fatal("expected error for invalid key")
	}
}

func TestGetKeyFormatsValues(t *testing.T) {
	cfg := Default()
	cfg.Ingest.IgnorePatterns = []string{"a", "b"}

	val, err := cfg.Get("ingest.small_file_threshold")
	if err != nil || val != "1.0 MiB" {
		t.Fatalf("expected '1.0 MiB', got %q (err: %v)", val, err)
	}
	val, err = cfg.Get("lifecycle.tombstone_retention")
	if err != nil || val != "168h0m0s" {
		t.Fatalf("expected '168h0m0s', got %q (err: %v)", val, err)
	}
	val, err = cfg.Get("ingest.ignore_patterns")
	if err != nil || val != "a,b" {
		t.Fatalf("expected 'a,b', got %q (err: %v)", val, err)
	}
}

func TestSetKeyCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "new.toml")
	if err := SetKey(path, "source_dir", "/data/in"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/data/in" {
		t.Fatalf("expected '/data/in', got %q", cfg.SourceDir)
	}
}

func TestSetKeyUpdatesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "existing.toml")
	if err := os.WriteFile(path, []byte("source_dir = \"old\"\nlog_level = \"debug\"\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := SetKey(path, "source_dir", "new"); err != nil {
		t.Fatalf("set: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "new" {
		t.Fatalf("expected 'new', got %q", cfg.SourceDir)
	}
	if cfg.LogLevel != "debug" {
		t.Fatalf("expected preserved log_level 'debug', got %q", cfg.LogLevel)
	}
}

func TestSetNestedKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested.toml")
	if err := SetKey(path, "ingest.daily_threshold", "7"); err != nil {
		t.Fatalf("set daily_threshold: %v", err)
	}
	if err := SetKey(path, "ingest.small_file_threshold", "2MiB"); err != nil {
		t.Fatalf("set small_file_threshold: %v", err)
	}
	if err := SetKey(path, "lifecycle.tombstone_retention", "72h"); err != nil {
		t.Fatalf("set tombstone_retention: %v", err)
	}

	cfg := Default()
	if err := loadFile(path, &cfg); err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Ingest.DailyThreshold != 7 {
		t.Fatalf("expected 7, got %d", cfg.Ingest.DailyThreshold)
	}
	if cfg.Ingest.SmallFileThreshold != 2<<20 {
		t.Fatalf("expected 2MiB, got %d", cfg.Ingest.SmallFileThreshold)
	}
	if cfg.Lifecycle.TombstoneRetention.Std() != 72*time.Hour {
		t.Fatalf("expected 72h, got %v", cfg.Lifecycle.TombstoneRetention)
	}
}

func TestSetKeyRejectsInvalidValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.toml")
	if err := SetKey(path, "invalid_key", "value"); err == nil {
		t.Fatal("expected error for invalid key")
	}
	if err := SetKey(path, "ingest.daily_threshold", "-1"); err == nil {
		t.Fatal("expected error for negative threshold")
	}
	if err := SetKey(path, "lifecycle.promotion_window", "a week"); err == nil {
		t.Fatal("expected error for bad duration")
	}
	if err := SetKey(path, "ingest.small_file_threshold", "huge"); err == nil {
		t.Fatal("expected error for bad size")
	}
}

func TestConfigDirOverridePaths(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("HOARD_CONFIG_DIR", dir)

	globalPath, err := GlobalPath()
	if err != nil {
		t.Fatalf("global path: %v", err)
	}
	if globalPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected global path: %s", globalPath)
	}

	projectPath, err := ProjectPath()
	if err != nil {
		t.Fatalf("project path: %v", err)
	}
	if projectPath != filepath.Join(dir, configFileName) {
		t.Fatalf("unexpected project path: %s", projectPath)
	}
}

func TestLoadConfigDirOverride(t *testing.T) {
	_, workspace := isolate(t)
	configDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(configDir, configFileName), []byte("source_dir = \"/from/override\"\n"), 0o644); err != nil {
		t.Fatalf("write override config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("source_dir = \"/from/workspace\"\n"), 0o644); err != nil {
		t.Fatalf("write workspace config: %v", err)
	}
	t.Setenv("HOARD_CONFIG_DIR", configDir)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/from/override" {
		t.Fatalf("expected config-dir source_dir, got %q", cfg.SourceDir)
	}
	if cfg.Metadata.DBPath != filepath.Join(workspace, DefaultDBFileName) {
		t.Fatalf("expected default workspace db path, got %q", cfg.Metadata.DBPath)
	}
	if cfg.Tiers.HotDir != filepath.Join(workspace, DefaultObjectDirName, DefaultHotBucket) {
		t.Fatalf("expected default hot dir, got %q", cfg.Tiers.HotDir)
	}
}

func TestEnvOverrides(t *testing.T) {
	isolate(t)
	t.Setenv("HOARD_SOURCE_DIR", "/env/in")
	t.Setenv("HOARD_DB", "/tmp/override.db")
	t.Setenv("HOARD_DAILY_THRESHOLD", "12")
	t.Setenv("HOARD_OVERRIDE_PATTERN", "^vip")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/env/in" {
		t.Fatalf("expected env override for source dir, got %q", cfg.SourceDir)
	}
	if cfg.Metadata.DBPath != "/tmp/override.db" {
		t.Fatalf("expected env override for DB path, got %q", cfg.Metadata.DBPath)
	}
	if cfg.Ingest.DailyThreshold != 12 {
		t.Fatalf("expected env override for threshold, got %d", cfg.Ingest.DailyThreshold)
	}
	if cfg.Ingest.OverridePattern != "^vip" {
		t.Fatalf("expected env override for pattern, got %q", cfg.Ingest.OverridePattern)
	}
}

func TestEnvThresholdMustBeInteger(t *testing.T) {
	isolate(t)
	t.Setenv("HOARD_DAILY_THRESHOLD", "many")

	_, err := Load()
	var cfgErr *ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %v", err)
	}
	if cfgErr.Key != "ingest.daily_threshold" {
		t.Fatalf("unexpected key %q", cfgErr.Key)
	}
}

func TestLoadReadsDotenv(t *testing.T) {
	_, workspace := isolate(t)
	if err := os.WriteFile(filepath.Join(workspace, ".env"), []byte("HOARD_SOURCE_DIR=/dotenv/in\n"), 0o644); err != nil {
		t.Fatalf("write .env: %v", err)
	}
	// godotenv writes into the process env; restore it afterwards.
	t.Setenv("HOARD_SOURCE_DIR", "")
	if err := os.Unsetenv("HOARD_SOURCE_DIR"); err != nil {
		t.Fatalf("unsetenv: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/dotenv/in" {
		t.Fatalf("expected source dir from .env, got %q", cfg.SourceDir)
	}
}

func TestLoadFallsBackToDefaultLogLevelWhenConfiguredEmpty(t *testing.T) {
	homeDir, _ := isolate(t)
	if err := os.WriteFile(filepath.Join(homeDir, configFileName), []byte("log_level = \"\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.LogLevel != DefaultLogLevel {
		t.Fatalf("expected default log level %q, got %q", DefaultLogLevel, cfg.LogLevel)
	}
}

func TestLoadIgnoresProjectConfigByDefault(t *testing.T) {
	homeDir, workspace := isolate(t)
	if err := os.WriteFile(filepath.Join(homeDir, configFileName), []byte("source_dir = \"/global\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("source_dir = \"/project\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/global" {
		t.Fatalf("expected global source_dir, got %q", cfg.SourceDir)
	}
	if cfg.TrustedProjectConfigPath != "" {
		t.Fatalf("expected no trusted project config path, got %q", cfg.TrustedProjectConfigPath)
	}
}

func TestLoadAppliesProjectConfigWhenTrusted(t *testing.T) {
	homeDir, workspace := isolate(t)
	if err := os.WriteFile(filepath.Join(homeDir, configFileName), []byte("source_dir = \"/global\"\n"), 0o644); err != nil {
		t.Fatalf("write home config: %v", err)
	}
	if err := os.WriteFile(filepath.Join(workspace, configFileName), []byte("source_dir = \"/project\"\n"), 0o644); err != nil {
		t.Fatalf("write project config: %v", err)
	}
	t.Setenv("HOARD_TRUST_PROJECT_CONFIG", "true")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.SourceDir != "/project" {
		t.Fatalf("expected trusted project source_dir, got %q", cfg.SourceDir)
	}
	if cfg.TrustedProjectConfigPath != filepath.Join(workspace, configFileName) {
		t.Fatalf("unexpected trusted project path %q", cfg.TrustedProjectConfigPath)
	}
}
