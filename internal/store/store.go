package store

import (
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

const (
	busyTimeoutMS          = 5000
	defaultMaxOpenConns    = 1
	defaultMaxIdleConns    = 1
	defaultConnMaxLifetime = 5 * time.Minute

	maxOpenConnsEnvKey    = "HOARD_DB_MAX_OPEN_CONNS"
	maxIdleConnsEnvKey    = "HOARD_DB_MAX_IDLE_CONNS"
	connMaxLifetimeEnvKey = "HOARD_DB_CONN_MAX_LIFETIME"
)

// Store wraps the SQLite metadata database.
type Store struct {
	db *sql.DB
}

// Open opens the SQLite database and applies pending migrations.
func Open(path string) (*Store, error) {
	dsn, err := sqliteDSN(path)
	if err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}

	poolConfigFromEnv().apply(db)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := runMigrations(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the raw handle for migration inspection.
func (s *Store) DB() *sql.DB {
	return s.db
}

// poolConfig sizes the sqlite pool from the HOARD_DB_* settings. Idle
// connections never exceed open ones.
type poolConfig struct {
	maxOpen     int
	maxIdle     int
	maxLifetime time.Duration
}

func poolConfigFromEnv() poolConfig {
	pc := poolConfig{
		maxOpen:     positiveIntEnv(maxOpenConnsEnvKey, defaultMaxOpenConns),
		maxIdle:     positiveIntEnv(maxIdleConnsEnvKey, defaultMaxIdleConns),
		maxLifetime: positiveDurationEnv(connMaxLifetimeEnvKey, defaultConnMaxLifetime),
	}
	if pc.maxIdle > pc.maxOpen {
		pc.maxIdle = pc.maxOpen
	}
	return pc
}

func (pc poolConfig) apply(db *sql.DB) {
	db.SetMaxOpenConns(pc.maxOpen)
	db.SetMaxIdleConns(pc.maxIdle)
	db.SetConnMaxLifetime(pc.maxLifetime)
}

func positiveIntEnv(key string, fallback int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil || v <= 0 {
		return fallback
	}
	return v
}

// positiveDurationEnv accepts Go durations or a bare number of seconds.
func positiveDurationEnv(key string, fallback time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	d, err := time.ParseDuration(raw)
	if secs, convErr := strconv.Atoi(raw); convErr == nil {
		d, err = time.Duration(secs)*time.Second, nil
	}
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

// sqliteDSN carries the pragmas in the DSN so every pooled connection gets
// them, including connections reopened after connMaxLifetime.
func sqliteDSN(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("db path is required")
	}
	query := url.Values{}
	query.Add("_pragma", "journal_mode(WAL)")
	query.Add("_pragma", "synchronous(NORMAL)")
	query.Add("_pragma", "foreign_keys(1)")
	query.Add("_pragma", fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS))
	u := url.URL{Scheme: "file", Path: path, RawQuery: query.Encode()}
	return u.String(), nil
}
