package store

import (
	"database/sql"
	"fmt"
	"sort"
)

// Migration represents a schema migration step.
type Migration struct {
	Version     int
	Description string
	SQL         string
}

// MigrationStatus reports the current and available migration versions.
type MigrationStatus struct {
	CurrentVersion   int             `json:"current_version" yaml:"current_version"`
	AvailableVersion int             `json:"available_version" yaml:"available_version"`
	Pending          []MigrationInfo `json:"pending" yaml:"pending"`
}

// MigrationInfo describes a single migration.
type MigrationInfo struct {
	Version     int    `json:"version" yaml:"version"`
	Description string `json:"description" yaml:"description"`
}

// migrations is the ordered list of all schema migrations.
var migrations = []Migration{
	{
		Version:     1,
		Description: "initial schema: blobs, paths, dirs, tags tables",
		SQL: `
CREATE TABLE IF NOT EXISTS blobs (
  id TEXT PRIMARY KEY,
  content_type TEXT NOT NULL,
  created_at TEXT NOT NULL,
  last_modified_at TEXT NOT NULL,
  last_viewed_at TEXT,
  length INTEGER NOT NULL,
  level INTEGER NOT NULL,
  bucket TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS blob_paths (
  blob_id TEXT NOT NULL,
  path TEXT NOT NULL,
  UNIQUE(blob_id, path),
  FOREIGN KEY (blob_id) REFERENCES blobs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS blob_dirs (
  blob_id TEXT NOT NULL,
  dir TEXT NOT NULL,
  UNIQUE(blob_id, dir),
  FOREIGN KEY (blob_id) REFERENCES blobs(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS blob_tags (
  blob_id TEXT NOT NULL,
  tag TEXT NOT NULL,
  UNIQUE(blob_id, tag),
  FOREIGN KEY (blob_id) REFERENCES blobs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_blobs_level_created ON blobs(level, created_at);
`,
	},
	{
		Version:     2,
		Description: "lifecycle and trash index tuning",
		SQL: `
CREATE INDEX IF NOT EXISTS idx_blobs_level_bucket ON blobs(level, bucket);
CREATE INDEX IF NOT EXISTS idx_blobs_level_modified ON blobs(level, last_modified_at);
CREATE INDEX IF NOT EXISTS idx_blob_dirs_dir ON blob_dirs(dir);
`,
	},
}

const migrationsTableSQL = `
CREATE TABLE IF NOT EXISTS schema_migrations (
  version INTEGER PRIMARY KEY,
  applied_at TEXT NOT NULL
);
`

// ensureMigrationsTable creates the schema_migrations table if it doesn't exist.
func ensureMigrationsTable(db *sql.DB) error {
	_, err := db.Exec(migrationsTableSQL)
	return err
}

// currentVersion returns the highest applied migration version, or 0 if none.
func currentVersion(db *sql.DB) (int, error) {
	var version int
	err := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&version)
	if err != nil {
		return 0, err
	}
	return version, nil
}

func sortedMigrations() []Migration {
	sorted := make([]Migration, len(migrations))
	copy(sorted, migrations)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Version < sorted[j].Version })
	return sorted
}

// runMigrations applies all pending migrations in order.
func runMigrations(db *sql.DB) error {
	if err := ensureMigrationsTable(db); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	current, err := currentVersion(db)
	if err != nil {
		return fmt.Errorf("get current version: %w", err)
	}

	for _, m := range sortedMigrations() {
		if m.Version <= current {
			continue
		}

		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", m.Version, err)
		}

		if _, err := tx.Exec(m.SQL); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %d (%s): %w", m.Version, m.Description, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version, applied_at) VALUES (?, datetime('now'))", m.Version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", m.Version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", m.Version, err)
		}
	}

	return nil
}

// MigrationPlan returns the current migration status without applying anything.
func MigrationPlan(db *sql.DB) (*MigrationStatus, error) {
	if err := ensureMigrationsTable(db); err != nil {
		return nil, err
	}

	current, err := currentVersion(db)
	if err != nil {
		return nil, err
	}

	sorted := sortedMigrations()
	available := 0
	if len(sorted) > 0 {
		available = sorted[len(sorted)-1].Version
	}

	var pending []MigrationInfo
	for _, m := range sorted {
		if m.Version > current {
			pending = append(pending, MigrationInfo{Version: m.Version, Description: m.Description})
		}
	}

	return &MigrationStatus{
		CurrentVersion:   current,
		AvailableVersion: available,
		Pending:          pending,
	}, nil
}

// LatestMigrationVersion reports the highest known schema version.
func LatestMigrationVersion() int {
	sorted := sortedMigrations()
	if len(sorted) == 0 {
		return 0
	}
	return sorted[len(sorted)-1].Version
}
