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
	"github.com/joho/godotenv"
)

const (
	DefaultLogLevel      = "info"
	DefaultDBFileName    = ".hoard.db"
	DefaultObjectDirName = ".hoard"

	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"

	CompressionZstd = "zstd"
	CompressionNone = "none"

	HashSHA256  = "sha256"
	HashBlake2b = "blake2b"

	DefaultMongoDatabase   = "hoard"
	DefaultMongoCollection = "blobs"
	DefaultHotBucket       = "hot"
	DefaultColdBucket      = "cold"

	DefaultDailyThreshold     = 50
	DefaultQuotaBoundaryHour  = 22
	DefaultSmallFileThreshold = ByteSize(1 << 20)
	DefaultDenseDirThreshold  = 5

	DefaultPromotionWindow    = Duration(7 * 24 * time.Hour)
	DefaultTombstoneRetention = Duration(7 * 24 * time.Hour)
	DefaultConcurrency        = 32

	DefaultIngestInterval    = Duration(10 * time.Minute)
	DefaultRetentionInterval = Duration(time.Hour)

	configFileName           = ".hoard.toml"
	configDirEnvKey          = "HOARD_CONFIG_DIR"
	trustProjectConfigEnvKey = "HOARD_TRUST_PROJECT_CONFIG"
	dotenvFileName           = ".env"
)

// DefaultIgnorePatterns are matched case-insensitively against file base names.
var DefaultIgnorePatterns = []string{`^\.DS_Store$`, `\.txt$`}

// MetadataConfig selects and configures the record store.
type MetadataConfig struct {
	Driver          string `toml:"driver"`
	DBPath          string `toml:"db_path"`
	MongoURI        string `toml:"mongo_uri"`
	MongoDatabase   string `toml:"mongo_database"`
	MongoCollection string `toml:"mongo_collection"`
}

// TiersConfig names the hot and cold buckets and their local roots.
type TiersConfig struct {
	HotBucket       string `toml:"hot_bucket"`
	HotDir          string `toml:"hot_dir"`
	ColdBucket      string `toml:"cold_bucket"`
	ColdDir         string `toml:"cold_dir"`
	ColdCompression string `toml:"cold_compression"`
}

// IngestConfig tunes the ingestion pipeline and admission control.
type IngestConfig struct {
	DailyThreshold     int      `toml:"daily_threshold"`
	QuotaBoundaryHour  int      `toml:"quota_boundary_hour"`
	SmallFileThreshold ByteSize `toml:"small_file_threshold"`
	DenseDirThreshold  int      `toml:"dense_dir_threshold"`
	OverridePattern    string   `toml:"override_pattern"`
	IgnorePatterns     []string `toml:"ignore_patterns"`
	HashAlgorithm      string   `toml:"hash_algorithm"`
	PurgeTombstones    bool     `toml:"purge_tombstones"`
}

// LifecycleConfig tunes the retention job.
type LifecycleConfig struct {
	PromotionWindow    Duration `toml:"promotion_window"`
	TombstoneRetention Duration `toml:"tombstone_retention"`
	Concurrency        int      `toml:"concurrency"`
}

// ScheduleConfig drives `hoard run`.
type ScheduleConfig struct {
	IngestInterval    Duration `toml:"ingest_interval"`
	RetentionInterval Duration `toml:"retention_interval"`
	MetricsAddr       string   `toml:"metrics_addr"`
}

// Config defines runtime configuration for hoard.
type Config struct {
	SourceDir                string          `toml:"source_dir"`
	LogLevel                 string          `toml:"log_level"`
	Metadata                 MetadataConfig  `toml:"metadata"`
	Tiers                    TiersConfig     `toml:"tiers"`
	Ingest                   IngestConfig    `toml:"ingest"`
	Lifecycle                LifecycleConfig `toml:"lifecycle"`
	Schedule                 ScheduleConfig  `toml:"schedule"`
	TrustedProjectConfigPath string          `toml:"-"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		LogLevel: DefaultLogLevel,
		Metadata: MetadataConfig{
			Driver:          DriverSQLite,
			MongoDatabase:   DefaultMongoDatabase,
			MongoCollection: DefaultMongoCollection,
		},
		Tiers: TiersConfig{
			HotBucket:       DefaultHotBucket,
			ColdBucket:      DefaultColdBucket,
			ColdCompression: CompressionZstd,
		},
		Ingest: IngestConfig{
			DailyThreshold:     DefaultDailyThreshold,
			QuotaBoundaryHour:  DefaultQuotaBoundaryHour,
			SmallFileThreshold: DefaultSmallFileThreshold,
			DenseDirThreshold:  DefaultDenseDirThreshold,
			IgnorePatterns:     append([]string(nil), DefaultIgnorePatterns...),
			HashAlgorithm:      HashSHA256,
			PurgeTombstones:    true,
		},
		Lifecycle: LifecycleConfig{
			PromotionWindow:    DefaultPromotionWindow,
			TombstoneRetention: DefaultTombstoneRetention,
			Concurrency:        DefaultConcurrency,
		},
		Schedule: ScheduleConfig{
			IngestInterval:    DefaultIngestInterval,
			RetentionInterval: DefaultRetentionInterval,
		},
	}
}

func loadFile(path string, cfg *Config) error {
	_, err := loadFileIfExists(path, cfg)
	return err
}

func loadFileIfExists(path string, cfg *Config) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if info.IsDir() {
		return false, nil
	}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return false, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return true, nil
}

func overrideConfigPath() (string, bool) {
	dir := strings.TrimSpace(os.Getenv(configDirEnvKey))
	if dir == "" {
		return "", false
	}
	return filepath.Join(dir, configFileName), true
}

func trustProjectConfig() bool {
	raw := strings.TrimSpace(os.Getenv(trustProjectConfigEnvKey))
	if raw == "" {
		return false
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return value
}

// GlobalPath returns the path to the global config file.
func GlobalPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, configFileName), nil
}

// ProjectPath returns the path to the project config file.
func ProjectPath() (string, error) {
	if path, ok := overrideConfigPath(); ok {
		return path, nil
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}
	return filepath.Join(cwd, configFileName), nil
}

// Load reads .env, then trusted config files, then applies env overrides.
// It does not validate; call Validate before mutating anything.
func Load() (*Config, error) {
	if err := loadDotenv(); err != nil {
		return nil, err
	}

	cfg := Default()

	if overridePath, ok := overrideConfigPath(); ok {
		if err := loadFile(overridePath, &cfg); err != nil {
			return nil, err
		}
	} else {
		if home, err := os.UserHomeDir(); err == nil {
			if err := loadFile(filepath.Join(home, configFileName), &cfg); err != nil {
				return nil, err
			}
		}

		if trustProjectConfig() {
			if cwd, err := os.Getwd(); err == nil {
				projectPath := filepath.Join(cwd, configFileName)
				info, statErr := os.Stat(projectPath)
				switch {
				case statErr == nil && !info.IsDir():
					if err := loadFile(projectPath, &cfg); err != nil {
						return nil, err
					}
					cfg.TrustedProjectConfigPath = projectPath
				case statErr != nil && !os.IsNotExist(statErr):
					return nil, statErr
				}
			}
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.normalizeDefaults()
	cfg.fillPathDefaults()

	return &cfg, nil
}

// loadDotenv loads ./.env without overriding variables already set.
func loadDotenv() error {
	cwd, err := os.Getwd()
	if err != nil {
		return nil
	}
	path := filepath.Join(cwd, dotenvFileName)
	if _, err := os.Stat(path); err != nil {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("HOARD_SOURCE_DIR"); v != "" {
		c.SourceDir = v
	}
	if v := os.Getenv("HOARD_DB"); v != "" {
		c.Metadata.DBPath = v
	}
	if v := os.Getenv("HOARD_MONGO_URI"); v != "" {
		c.Metadata.MongoURI = v
	}
	if v := os.Getenv("HOARD_OVERRIDE_PATTERN"); v != "" {
		c.Ingest.OverridePattern = v
	}
	if raw := strings.TrimSpace(os.Getenv("HOARD_DAILY_THRESHOLD")); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return &ConfigurationError{Key: "ingest.daily_threshold", Reason: fmt.Sprintf("HOARD_DAILY_THRESHOLD %q is not an integer", raw)}
		}
		c.Ingest.DailyThreshold = parsed
	}
	return nil
}

// normalizeDefaults restores defaults for keys a config file set to empty.
func (c *Config) normalizeDefaults() {
	if strings.TrimSpace(c.LogLevel) == "" {
		c.LogLevel = DefaultLogLevel
	}
	if c.Metadata.Driver == "" {
		c.Metadata.Driver = DriverSQLite
	}
	if c.Metadata.MongoDatabase == "" {
		c.Metadata.MongoDatabase = DefaultMongoDatabase
	}
	if c.Metadata.MongoCollection == "" {
		c.Metadata.MongoCollection = DefaultMongoCollection
	}
	if c.Tiers.ColdCompression == "" {
		c.Tiers.ColdCompression = CompressionZstd
	}
	if c.Ingest.HashAlgorithm == "" {
		c.Ingest.HashAlgorithm = HashSHA256
	}
	c.Ingest.HashAlgorithm = strings.ToLower(c.Ingest.HashAlgorithm)
}

func (c *Config) fillPathDefaults() {
	cwd, err := os.Getwd()
	if err != nil {
		return
	}
	if c.Metadata.DBPath == "" {
		c.Metadata.DBPath = filepath.Join(cwd, DefaultDBFileName)
	}
	if c.Tiers.HotDir == "" && c.Tiers.HotBucket != "" {
		c.Tiers.HotDir = filepath.Join(cwd, DefaultObjectDirName, c.Tiers.HotBucket)
	}
	if c.Tiers.ColdDir == "" && c.Tiers.ColdBucket != "" {
		c.Tiers.ColdDir = filepath.Join(cwd, DefaultObjectDirName, c.Tiers.ColdBucket)
	}
}

// ByteSize is a byte count written in TOML as a humanized string ("1MiB").
type ByteSize int64

// UnmarshalText parses humanized sizes.
func (b *ByteSize) UnmarshalText(text []byte) error {
	parsed, err := humanize.ParseBytes(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid size %q: %w", string(text), err)
	}
	*b = ByteSize(parsed)
	return nil
}

// MarshalText writes IEC units.
func (b ByteSize) MarshalText() ([]byte, error) {
	return []byte(b.String()), nil
}

func (b ByteSize) String() string {
	return humanize.IBytes(uint64(b))
}

// Duration is a time.Duration written in TOML as a string ("168h").
type Duration time.Duration

// UnmarshalText parses Go duration strings.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(text), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText writes the duration string.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d Duration) String() string {
	return time.Duration(d).String()
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}
