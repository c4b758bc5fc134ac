package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hoard/internal/models"
)

const recordColumns = "id, content_type, created_at, last_modified_at, last_viewed_at, length, level, bucket"

// setLoadChunk bounds the number of ids bound into one IN (...) lookup.
const setLoadChunk = 500

// childSet describes one of the per-record set tables.
type childSet struct {
	table  string
	column string
}

var (
	pathSet = childSet{table: "blob_paths", column: "path"}
	dirSet  = childSet{table: "blob_dirs", column: "dir"}
	tagSet  = childSet{table: "blob_tags", column: "tag"}
)

// FindByKey returns the record with id, or nil when none exists.
func (s *Store) FindByKey(ctx context.Context, id string) (*models.BlobRecord, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+recordColumns+" FROM blobs WHERE id = ?", id)
	record, err := scanRecord(row)
	if err != nil || record == nil {
		return record, err
	}
	if err := s.attachSets(ctx, []*models.BlobRecord{record}); err != nil {
		return nil, err
	}
	return record, nil
}

// Insert stores a new record with its sets.
func (s *Store) Insert(ctx context.Context, record *models.BlobRecord) (err error) {
	if record == nil {
		return fmt.Errorf("record is required")
	}
	if strings.TrimSpace(record.ID) == "" {
		return fmt.Errorf("record id is required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := recordExistsTx(ctx, tx, record.ID)
	if err != nil {
		return err
	}
	if exists {
		return ErrRecordExists
	}

	lastModified := record.LastModifiedAt
	if lastModified.IsZero() {
		lastModified = record.CreatedAt
	}
	_, err = tx.ExecContext(ctx,
		"INSERT INTO blobs ("+recordColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
		record.ID,
		record.ContentType,
		formatTime(record.CreatedAt),
		formatTime(lastModified),
		nullTime(record.LastViewedAt),
		record.Length,
		int(record.Level),
		record.Bucket,
	)
	if err != nil {
		return err
	}

	if err = insertSetTx(ctx, tx, pathSet, record.ID, record.Paths); err != nil {
		return err
	}
	if err = insertSetTx(ctx, tx, dirSet, record.ID, record.Dirs); err != nil {
		return err
	}
	if err = insertSetTx(ctx, tx, tagSet, record.ID, record.Tags); err != nil {
		return err
	}

	return tx.Commit()
}

// AddLocations adds paths and dirs to an existing record's sets.
func (s *Store) AddLocations(ctx context.Context, id string, paths, dirs []string) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	exists, err := recordExistsTx(ctx, tx, id)
	if err != nil {
		return err
	}
	if !exists {
		return ErrRecordNotFound
	}

	if err = insertSetTx(ctx, tx, pathSet, id, paths); err != nil {
		return err
	}
	if err = insertSetTx(ctx, tx, dirSet, id, dirs); err != nil {
		return err
	}
	return tx.Commit()
}

// UpdateMatching applies patch to every record matching filter.
func (s *Store) UpdateMatching(ctx context.Context, filter Filter, patch Patch) (int64, error) {
	if patch.IsEmpty() {
		return 0, ErrEmptyPatch
	}
	query, args := buildUpdateQuery(filter, patch)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CountMatching counts records matching filter.
func (s *Store) CountMatching(ctx context.Context, filter Filter) (int64, error) {
	query, args := buildCountQuery(filter)
	var count int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// ListMatching lists records matching filter. A non-positive limit lists all.
func (s *Store) ListMatching(ctx context.Context, filter Filter, sort Sort, limit int) ([]models.BlobRecord, error) {
	query, args := buildSelectQuery(filter, sort, limit)
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}

	var records []models.BlobRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			_ = rows.Close()
			return nil, err
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, err
	}
	// The set lookups below need the single connection back.
	_ = rows.Close()

	ptrs := make([]*models.BlobRecord, len(records))
	for i := range records {
		ptrs[i] = &records[i]
	}
	if err := s.attachSets(ctx, ptrs); err != nil {
		return nil, err
	}
	return records, nil
}

// DeleteOne removes a record and its sets. Missing records are not an error.
func (s *Store) DeleteOne(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, "DELETE FROM blobs WHERE id = ?", id)
	return err
}

// DeleteMatching removes every record matching filter.
func (s *Store) DeleteMatching(ctx context.Context, filter Filter) (int64, error) {
	query, args := buildDeleteQuery(filter)
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// attachSets fills Paths, Dirs and Tags for records in bulk.
func (s *Store) attachSets(ctx context.Context, records []*models.BlobRecord) error {
	if len(records) == 0 {
		return nil
	}
	byID := make(map[string]*models.BlobRecord, len(records))
	ids := make([]string, 0, len(records))
	for _, record := range records {
		byID[record.ID] = record
		ids = append(ids, record.ID)
	}

	for _, set := range []childSet{pathSet, dirSet, tagSet} {
		values, err := s.loadSet(ctx, set, ids)
		if err != nil {
			return fmt.Errorf("load %s: %w", set.table, err)
		}
		for id, list := range values {
			record := byID[id]
			switch set {
			case pathSet:
				record.Paths = list
			case dirSet:
				record.Dirs = list
			case tagSet:
				record.Tags = list
			}
		}
	}
	return nil
}

func (s *Store) loadSet(ctx context.Context, set childSet, ids []string) (map[string][]string, error) {
	values := make(map[string][]string)
	for start := 0; start < len(ids); start += setLoadChunk {
		end := min(start+setLoadChunk, len(ids))
		chunk := ids[start:end]

		query := fmt.Sprintf("SELECT blob_id, %s FROM %s WHERE blob_id IN (%s) ORDER BY rowid",
			set.column, set.table, placeholders(len(chunk)))
		args := make([]any, 0, len(chunk))
		for _, id := range chunk {
			args = append(args, id)
		}
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var id, value string
			if err := rows.Scan(&id, &value); err != nil {
				_ = rows.Close()
				return nil, err
			}
			values[id] = append(values[id], value)
		}
		err = rows.Err()
		_ = rows.Close()
		if err != nil {
			return nil, err
		}
	}
	return values, nil
}

func recordExistsTx(ctx context.Context, tx *sql.Tx, id string) (bool, error) {
	var one int
	err := tx.QueryRowContext(ctx, "SELECT 1 FROM blobs WHERE id = ?", id).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func insertSetTx(ctx context.Context, tx *sql.Tx, set childSet, id string, values []string) error {
	values = dedupeValues(values)
	if len(values) == 0 {
		return nil
	}
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (blob_id, %s) VALUES %s", set.table, set.column, pairValues(len(values)))
	_, err := tx.ExecContext(ctx, query, pairArgs(id, values)...)
	return err
}

func scanRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.BlobRecord, error) {
	var record models.BlobRecord
	var createdAt, lastModifiedAt string
	var lastViewedAt sql.NullString
	var level int

	if err := scanner.Scan(
		&record.ID,
		&record.ContentType,
		&createdAt,
		&lastModifiedAt,
		&lastViewedAt,
		&record.Length,
		&level,
		&record.Bucket,
	); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	record.Level = models.Level(level)

	var err error
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.LastModifiedAt, err = parseTime(lastModifiedAt); err != nil {
		return nil, err
	}
	if lastViewedAt.Valid {
		parsed, err := parseTime(lastViewedAt.String)
		if err != nil {
			return nil, err
		}
		record.LastViewedAt = &parsed
	}

	return &record, nil
}

// timeLayout is fixed-width so stored values compare correctly as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, value)
}

func nullTime(value *time.Time) any {
	if value == nil || value.IsZero() {
		return nil
	}
	return formatTime(*value)
}

func placeholders(count int) string {
	if count <= 0 {
		return ""
	}
	return strings.TrimRight(strings.Repeat("?,", count), ",")
}

func pairValues(count int) string {
	values := make([]string, count)
	for i := 0; i < count; i++ {
		values[i] = "(?, ?)"
	}
	return strings.Join(values, ",")
}

func pairArgs(id string, values []string) []any {
	args := make([]any, 0, len(values)*2)
	for _, value := range values {
		args = append(args, id, value)
	}
	return args
}

func dedupeValues(values []string) []string {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, value := range values {
		if _, ok := seen[value]; ok {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, value)
	}
	return out
}
