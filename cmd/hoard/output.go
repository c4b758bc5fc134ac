package main

import (
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"hoard/internal/format"
	"hoard/internal/ingest"
	"hoard/internal/lifecycle"
	"hoard/internal/models"
)

var outputFormatter format.Formatter = format.JSONFormatter{}

func writeJSON(payload any) error {
	return outputFormatter.Write(os.Stdout, payload)
}

func writePlain(format string, args ...any) error {
	_, err := fmt.Fprintf(os.Stdout, format, args...)
	return err
}

func writeRecordList(records []models.BlobRecord) error {
	for _, record := range records {
		if err := writePlain("%s\n", formatRecordLine(record)); err != nil {
			return err
		}
	}
	return nil
}

func writeRecordDetail(record models.BlobRecord) error {
	lines := []string{
		fmt.Sprintf("id: %s", record.ID),
		fmt.Sprintf("level: %s", record.Level),
		fmt.Sprintf("bucket: %s", record.Bucket),
		fmt.Sprintf("content_type: %s", record.ContentType),
		fmt.Sprintf("length: %d (%s)", record.Length, humanize.IBytes(uint64(record.Length))),
		fmt.Sprintf("created_at: %s", formatTime(record.CreatedAt)),
		fmt.Sprintf("last_modified_at: %s", formatTime(record.LastModifiedAt)),
	}
	if record.LastViewedAt != nil {
		lines = append(lines, fmt.Sprintf("last_viewed_at: %s", formatTime(*record.LastViewedAt)))
	}
	if len(record.Tags) > 0 {
		lines = append(lines, fmt.Sprintf("tags: %s", strings.Join(record.Tags, ", ")))
	}
	lines = append(lines, "paths:")
	for _, p := range record.Paths {
		lines = append(lines, fmt.Sprintf("  - %s", p))
	}
	lines = append(lines, fmt.Sprintf("dirs: %s", strings.Join(record.Dirs, ", ")))

	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func formatRecordLine(record models.BlobRecord) string {
	first := ""
	if len(record.Paths) > 0 {
		first = record.Paths[0]
	}
	return fmt.Sprintf("%s [%s] [%s] %s %s", shortID(record.ID), record.Level, record.Bucket, humanize.IBytes(uint64(record.Length)), first)
}

func shortID(id string) string {
	if len(id) <= 12 {
		return id
	}
	return id[:12]
}

func writeIngestReport(report *ingest.Report) error {
	lines := []string{
		fmt.Sprintf("run_id: %s", report.RunID),
		fmt.Sprintf("scanned: %d", report.Scanned),
		fmt.Sprintf("uploaded: %d (%s)", report.Uploaded, humanize.IBytes(uint64(report.UploadedBytes))),
		fmt.Sprintf("duplicates: %d", report.Duplicates),
		fmt.Sprintf("deferred: %d", report.Deferred),
		fmt.Sprintf("ignored: %d", report.Ignored),
		fmt.Sprintf("unrecognized: %d", report.Unrecognized),
		fmt.Sprintf("empty: %d", report.Empty),
		fmt.Sprintf("failed: %d", report.Failed),
		fmt.Sprintf("pruned_dirs: %d", report.PrunedDirs),
		fmt.Sprintf("purged_tombstones: %d", report.PurgedTombstones),
		fmt.Sprintf("quota: %d used since %s, %d remaining", report.QuotaUsed, formatTime(report.QuotaBoundary), report.QuotaRemaining),
	}
	if len(report.Admissions) > 0 {
		lines = append(lines, "admissions:")
		for _, name := range sortedKeys(report.Admissions) {
			lines = append(lines, fmt.Sprintf("  %s: %d", name, report.Admissions[name]))
		}
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func writeRetentionReport(report *lifecycle.Report) error {
	phase := func(name string, p lifecycle.PhaseReport) string {
		return fmt.Sprintf("%s: %d candidates, %d done, %d already absent, %d failed",
			name, p.Candidates, p.Succeeded, p.NotFound, p.Failed)
	}
	lines := []string{
		fmt.Sprintf("run_id: %s", report.RunID),
		fmt.Sprintf("promoted: %d", report.Promoted),
		phase("deletion", report.Deletion),
		phase("archival", report.Archival),
		fmt.Sprintf("purged: %d", report.Purged),
	}
	if len(report.Skipped) > 0 {
		lines = append(lines, fmt.Sprintf("skipped: %s", strings.Join(report.Skipped, ", ")))
	}
	return writePlain("%s\n", strings.Join(lines, "\n"))
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
