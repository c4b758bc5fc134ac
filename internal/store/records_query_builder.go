package store

import (
	"fmt"
	"strings"
)

// recordQueryBuilder translates a Filter into a WHERE clause over blobs.
// Table-qualified columns are not needed since child sets are matched with
// sub-selects.
type recordQueryBuilder struct {
	filter Filter
	where  []string
	args   []any
}

func newRecordQueryBuilder(filter Filter) *recordQueryBuilder {
	b := &recordQueryBuilder{filter: filter}
	b.appendIDs()
	b.appendLevels()
	b.appendMinLevel()
	b.appendBucket()
	b.appendDirs()
	b.appendTimeFilters()
	b.appendMaxLength()
	return b
}

func (b *recordQueryBuilder) whereClause() string {
	if len(b.where) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(b.where, " AND ")
}

func buildSelectQuery(filter Filter, sort Sort, limit int) (string, []any) {
	b := newRecordQueryBuilder(filter)
	query := "SELECT " + recordColumns + " FROM blobs" + b.whereClause()
	query += orderClause(sort)
	args := b.args
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}
	return query, args
}

func buildCountQuery(filter Filter) (string, []any) {
	b := newRecordQueryBuilder(filter)
	return "SELECT COUNT(*) FROM blobs" + b.whereClause(), b.args
}

func buildDeleteQuery(filter Filter) (string, []any) {
	b := newRecordQueryBuilder(filter)
	return "DELETE FROM blobs" + b.whereClause(), b.args
}

func buildUpdateQuery(filter Filter, patch Patch) (string, []any) {
	var sets []string
	var args []any
	if patch.Level != nil {
		sets = append(sets, "level = ?")
		args = append(args, int(*patch.Level))
	}
	if patch.Bucket != nil {
		sets = append(sets, "bucket = ?")
		args = append(args, *patch.Bucket)
	}
	if !patch.LastModifiedAt.IsZero() {
		sets = append(sets, "last_modified_at = ?")
		args = append(args, formatTime(patch.LastModifiedAt))
	}
	if patch.LastViewedAt != nil {
		sets = append(sets, "last_viewed_at = ?")
		args = append(args, nullTime(patch.LastViewedAt))
	}

	b := newRecordQueryBuilder(filter)
	query := "UPDATE blobs SET " + strings.Join(sets, ", ") + b.whereClause()
	return query, append(args, b.args...)
}

func orderClause(sort Sort) string {
	field := sort.Field
	switch field {
	case SortByCreatedAt, SortByLastModifiedAt, SortByLength, SortByID:
	default:
		field = SortByCreatedAt
	}
	dir := "ASC"
	if sort.Desc {
		dir = "DESC"
	}
	clause := fmt.Sprintf(" ORDER BY %s %s", field, dir)
	if field != SortByID {
		clause += ", id ASC"
	}
	return clause
}

func (b *recordQueryBuilder) appendIDs() {
	if len(b.filter.IDs) == 0 {
		return
	}
	b.where = append(b.where, fmt.Sprintf("id IN (%s)", placeholders(len(b.filter.IDs))))
	for _, id := range b.filter.IDs {
		b.args = append(b.args, id)
	}
}

func (b *recordQueryBuilder) appendLevels() {
	if len(b.filter.Levels) == 0 {
		return
	}
	b.where = append(b.where, fmt.Sprintf("level IN (%s)", placeholders(len(b.filter.Levels))))
	for _, level := range b.filter.Levels {
		b.args = append(b.args, int(level))
	}
}

func (b *recordQueryBuilder) appendMinLevel() {
	if b.filter.MinLevel == nil {
		return
	}
	b.where = append(b.where, "level >= ?")
	b.args = append(b.args, int(*b.filter.MinLevel))
}

func (b *recordQueryBuilder) appendBucket() {
	if b.filter.Bucket == "" {
		return
	}
	b.where = append(b.where, "bucket = ?")
	b.args = append(b.args, b.filter.Bucket)
}

func (b *recordQueryBuilder) appendDirs() {
	if len(b.filter.Dirs) == 0 {
		return
	}
	b.where = append(b.where, fmt.Sprintf("id IN (SELECT blob_id FROM blob_dirs WHERE dir IN (%s))", placeholders(len(b.filter.Dirs))))
	for _, dir := range b.filter.Dirs {
		b.args = append(b.args, dir)
	}
}

func (b *recordQueryBuilder) appendTimeFilters() {
	if !b.filter.CreatedBefore.IsZero() {
		b.where = append(b.where, "created_at < ?")
		b.args = append(b.args, formatTime(b.filter.CreatedBefore))
	}
	if !b.filter.CreatedSince.IsZero() {
		b.where = append(b.where, "created_at >= ?")
		b.args = append(b.args, formatTime(b.filter.CreatedSince))
	}
	if !b.filter.ModifiedBefore.IsZero() {
		b.where = append(b.where, "last_modified_at < ?")
		b.args = append(b.args, formatTime(b.filter.ModifiedBefore))
	}
}

func (b *recordQueryBuilder) appendMaxLength() {
	if b.filter.MaxLength == nil {
		return
	}
	b.where = append(b.where, "length <= ?")
	b.args = append(b.args, *b.filter.MaxLength)
}
