package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testKey = "9f86d081884c7d659a2feaa0c55ad015a3bf4f1b2b0b822cd15d6c15b0f00a08"

func testTiers(t *testing.T) (*LocalTiers, string, string) {
	t.Helper()
	hotRoot := filepath.Join(t.TempDir(), "hot")
	coldRoot := filepath.Join(t.TempDir(), "cold")
	lt, err := NewLocalTiers(
		TierConfig{Name: "hot", Root: hotRoot},
		TierConfig{Name: "cold", Root: coldRoot, Compress: true},
	)
	if err != nil {
		t.Fatalf("new local tiers: %v", err)
	}
	return lt, hotRoot, coldRoot
}

func readAll(t *testing.T, lt *LocalTiers, bucket, key string) string {
	t.Helper()
	rc, err := lt.Open(context.Background(), bucket, key)
	if err != nil {
		t.Fatalf("open %s/%s: %v", bucket, key, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	return string(data)
}

func TestLocalTiersPutOpenDelete(t *testing.T) {
	lt, hotRoot, _ := testTiers(t)
	ctx := context.Background()

	if err := lt.Put(ctx, "hot", testKey, bytes.NewBufferString("hello"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if _, err := os.Stat(filepath.Join(hotRoot, "9f", "86", testKey)); err != nil {
		t.Fatalf("expected sharded layout: %v", err)
	}
	if got := readAll(t, lt, "hot", testKey); got != "hello" {
		t.Fatalf("expected hello, got %q", got)
	}

	info, err := lt.Stat(ctx, "hot", testKey)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.ContentType != "image/png" || info.SizeBytes != 5 || info.Encoding != EncodingIdentity {
		t.Fatalf("unexpected info: %#v", info)
	}

	if err := lt.Delete(ctx, "hot", testKey); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := lt.Delete(ctx, "hot", testKey); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound on second delete, got %v", err)
	}
	if _, err := lt.Open(ctx, "hot", testKey); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound on open, got %v", err)
	}
}

func TestLocalTiersCompressedTier(t *testing.T) {
	lt, _, coldRoot := testTiers(t)
	ctx := context.Background()
	payload := strings.Repeat("compress me ", 512)

	if err := lt.Put(ctx, "cold", testKey, strings.NewReader(payload), "video/mp4"); err != nil {
		t.Fatalf("put: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(coldRoot, "9f", "86", testKey))
	if err != nil {
		t.Fatalf("read raw: %v", err)
	}
	if !bytes.HasPrefix(raw, []byte{0x28, 0xb5, 0x2f, 0xfd}) {
		t.Fatalf("expected zstd frame magic, got % x", raw[:4])
	}
	if len(raw) >= len(payload) {
		t.Fatalf("expected compressed size below %d, got %d", len(payload), len(raw))
	}
	if got := readAll(t, lt, "cold", testKey); got != payload {
		t.Fatal("decoded payload mismatch")
	}

	info, err := lt.Stat(ctx, "cold", testKey)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.SizeBytes != int64(len(payload)) || info.Encoding != EncodingZstd {
		t.Fatalf("unexpected info: %#v", info)
	}
}

func TestLocalTiersCopy(t *testing.T) {
	lt, _, _ := testTiers(t)
	ctx := context.Background()

	if err := lt.Put(ctx, "hot", testKey, bytes.NewBufferString("archive me"), "image/gif"); err != nil {
		t.Fatalf("put: %v", err)
	}
	if err := lt.Copy(ctx, "hot", "cold", testKey); err != nil {
		t.Fatalf("copy: %v", err)
	}
	if got := readAll(t, lt, "cold", testKey); got != "archive me" {
		t.Fatalf("expected copied payload, got %q", got)
	}
	info, err := lt.Stat(ctx, "cold", testKey)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.ContentType != "image/gif" {
		t.Fatalf("expected content type carried over, got %q", info.ContentType)
	}

	if err := lt.Copy(ctx, "hot", "cold", "deadbeef"); !errors.Is(err, ErrObjectNotFound) {
		t.Fatalf("expected ErrObjectNotFound for missing source, got %v", err)
	}
}

func TestLocalTiersRejectsBadInput(t *testing.T) {
	lt, _, _ := testTiers(t)
	ctx := context.Background()

	if err := lt.Put(ctx, "warm", testKey, bytes.NewBufferString("x"), ""); !errors.Is(err, ErrUnknownTier) {
		t.Fatalf("expected ErrUnknownTier, got %v", err)
	}
	for _, key := range []string{"", "../etc", "a/b", "x" + metaSuffix} {
		if err := lt.Put(ctx, "hot", key, bytes.NewBufferString("x"), ""); err == nil {
			t.Fatalf("expected error for key %q", key)
		}
	}
	if _, err := NewLocalTiers(TierConfig{Name: "hot", Root: t.TempDir()}, TierConfig{Name: "hot", Root: t.TempDir()}); err == nil {
		t.Fatal("expected duplicate tier error")
	}
}

func TestLocalTiersBuckets(t *testing.T) {
	lt, _, _ := testTiers(t)
	got := lt.Buckets()
	if len(got) != 2 || got[0] != "cold" || got[1] != "hot" {
		t.Fatalf("unexpected buckets: %v", got)
	}
}

func TestNewLocalTiersRejectsOverlappingRoots(t *testing.T) {
	base := t.TempDir()
	cases := []struct {
		name string
		hot  string
		cold string
	}{
		{"same root", filepath.Join(base, "objects"), filepath.Join(base, "objects")},
		{"same root after clean", filepath.Join(base, "objects"), filepath.Join(base, "objects", "x", "..")},
		{"cold inside hot", filepath.Join(base, "objects"), filepath.Join(base, "objects", "cold")},
		{"hot inside cold", filepath.Join(base, "archive", "hot"), filepath.Join(base, "archive")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := NewLocalTiers(
				TierConfig{Name: "hot", Root: tc.hot},
				TierConfig{Name: "cold", Root: tc.cold, Compress: true},
			)
			if err == nil || !strings.Contains(err.Error(), "overlaps") {
				t.Fatalf("expected overlap error, got %v", err)
			}
		})
	}

	if _, err := NewLocalTiers(
		TierConfig{Name: "hot", Root: filepath.Join(base, "hot")},
		TierConfig{Name: "cold", Root: filepath.Join(base, "hotter")},
	); err != nil {
		t.Fatalf("sibling roots with a shared prefix must be accepted: %v", err)
	}
}

func TestLocalTiersMissingSidecarUsesTierEncoding(t *testing.T) {
	lt, _, coldRoot := testTiers(t)
	ctx := context.Background()
	payload := strings.Repeat("frames ", 256)

	if err := lt.Put(ctx, "cold", testKey, strings.NewReader(payload), "video/mp4"); err != nil {
		t.Fatalf("put: %v", err)
	}
	objectPath := filepath.Join(coldRoot, "9f", "86", testKey)
	if _, err := os.Stat(objectPath + metaSuffix); err != nil {
		t.Fatalf("expected sidecar next to object: %v", err)
	}
	if err := os.Remove(objectPath + metaSuffix); err != nil {
		t.Fatalf("remove sidecar: %v", err)
	}

	if got := readAll(t, lt, "cold", testKey); got != payload {
		t.Fatal("expected decoded payload without sidecar")
	}
	info, err := lt.Stat(ctx, "cold", testKey)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Encoding != EncodingZstd {
		t.Fatalf("expected zstd encoding from tier, got %q", info.Encoding)
	}
}

func TestLocalTiersPutLeavesNoTempFiles(t *testing.T) {
	lt, hotRoot, _ := testTiers(t)
	if err := lt.Put(context.Background(), "hot", testKey, bytes.NewBufferString("x"), "image/png"); err != nil {
		t.Fatalf("put: %v", err)
	}
	entries, err := os.ReadDir(filepath.Join(hotRoot, "9f", "86"))
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Fatalf("unexpected temp file %s", e.Name())
		}
	}
	if len(entries) != 2 {
		t.Fatalf("expected object and sidecar, got %d entries", len(entries))
	}
}
