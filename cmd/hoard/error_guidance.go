package main

import (
	"context"
	"errors"
	"net"

	"hoard/internal/api"
	"hoard/internal/config"
	"hoard/internal/ingest"
	"hoard/internal/store"
)

func formatCLIError(err error) []string {
	if err == nil {
		return nil
	}

	lines := []string{err.Error()}

	var cfgErr *config.ConfigurationError
	if errors.As(err, &cfgErr) {
		lines = append(lines,
			"hint: set it with: hoard config set "+cfgErr.Key+" <value>",
			"hint: or export the matching HOARD_* environment variable (see .env).",
		)
		return uniqueLines(lines)
	}

	var corrupt *ingest.CorruptionError
	if errors.As(err, &corrupt) {
		lines = append(lines,
			"hint: the ingest run stopped; "+corrupt.Path+" was left in place.",
			"hint: inspect the stored record with: hoard show "+corrupt.ID,
		)
		return uniqueLines(lines)
	}

	var apiErr *api.APIError
	if errors.As(err, &apiErr) {
		lines = append(lines, "hint: the status server answered but refused the request; check `hoard run` logs.")
		return uniqueLines(lines)
	}

	if errors.Is(err, store.ErrRecordNotFound) {
		lines = append(lines, "hint: list known records with: hoard list")
		return uniqueLines(lines)
	}

	if errors.Is(err, context.DeadlineExceeded) {
		lines = append(lines, "hint: the metadata store did not answer in time; check metadata.mongo_uri.")
		return uniqueLines(lines)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		lines = append(lines,
			"hint: ensure the metadata store at metadata.mongo_uri is reachable.",
			"hint: for `hoard status`, ensure `hoard run` is serving schedule.metrics_addr.",
		)
		return uniqueLines(lines)
	}

	return uniqueLines(lines)
}

func uniqueLines(lines []string) []string {
	seen := make(map[string]struct{}, len(lines))
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if line == "" {
			continue
		}
		if _, ok := seen[line]; ok {
			continue
		}
		seen[line] = struct{}{}
		out = append(out, line)
	}
	return out
}
