package blobstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// Encoding is the at-rest encoding of an object.
type Encoding string

const (
	EncodingIdentity Encoding = "identity"
	EncodingZstd     Encoding = "zstd"
)

const metaSuffix = ".meta.json"

// TierConfig configures one bucket.
type TierConfig struct {
	Name     string
	Root     string
	Compress bool
}

type tier struct {
	name     string
	root     string
	encoding Encoding
}

// objectMeta is the sidecar written next to each object.
type objectMeta struct {
	ContentType string   `json:"content_type"`
	SizeBytes   int64    `json:"size_bytes"`
	Encoding    Encoding `json:"encoding"`
}

// LocalTiers stores objects in per-bucket local trees laid out as
// aa/bb/<key>. Compressed tiers hold zstd frames.
type LocalTiers struct {
	tiers       map[string]*tier
	encoderPool sync.Pool
}

// NewLocalTiers creates the configured bucket roots.
func NewLocalTiers(configs ...TierConfig) (*LocalTiers, error) {
	if len(configs) == 0 {
		return nil, fmt.Errorf("at least one tier is required")
	}
	lt := &LocalTiers{tiers: make(map[string]*tier, len(configs))}
	for _, cfg := range configs {
		name := strings.TrimSpace(cfg.Name)
		if name == "" {
			return nil, fmt.Errorf("tier name is required")
		}
		if _, dup := lt.tiers[name]; dup {
			return nil, fmt.Errorf("duplicate tier %q", name)
		}
		root := strings.TrimSpace(cfg.Root)
		if root == "" {
			return nil, fmt.Errorf("tier %q root is required", name)
		}
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, err
		}
		for _, other := range lt.tiers {
			if nestedRoots(other.root, abs) {
				return nil, fmt.Errorf("tier %q root %s overlaps tier %q root %s", name, abs, other.name, other.root)
			}
		}
		if err := os.MkdirAll(filepath.Join(abs, "tmp"), 0o755); err != nil {
			return nil, err
		}
		encoding := EncodingIdentity
		if cfg.Compress {
			encoding = EncodingZstd
		}
		lt.tiers[name] = &tier{name: name, root: abs, encoding: encoding}
	}
	lt.encoderPool = sync.Pool{
		New: func() any {
			enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
			return enc
		},
	}
	return lt, nil
}

// Buckets lists the configured bucket names.
func (lt *LocalTiers) Buckets() []string {
	names := make([]string, 0, len(lt.tiers))
	for name := range lt.tiers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Put stores r under key in bucket, replacing any existing object.
func (lt *LocalTiers) Put(ctx context.Context, bucket, key string, r io.Reader, contentType string) error {
	if r == nil {
		return fmt.Errorf("reader is required")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	t, dst, err := lt.resolve(bucket, key)
	if err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Join(t.root, "tmp"), "put-*")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	cleanup := func() {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
	}

	counter := &countingReader{r: r}
	if err := lt.encodeTo(tmp, counter, t.encoding); err != nil {
		cleanup()
		return err
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return err
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		cleanup()
		return err
	}
	// The sidecar lands first so a visible object always has its encoding recorded.
	if err := writeMeta(dst, objectMeta{
		ContentType: contentType,
		SizeBytes:   counter.n,
		Encoding:    t.encoding,
	}); err != nil {
		cleanup()
		return err
	}
	if err := os.Rename(tmpPath, dst); err != nil {
		cleanup()
		return err
	}
	return nil
}

// Open returns a reader over the decoded object bytes.
func (lt *LocalTiers) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	t, path, err := lt.resolve(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return nil, err
	}

	meta, err := t.readMeta(path)
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if meta.Encoding != EncodingZstd {
		return f, nil
	}
	dec, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	return &zstdReadCloser{dec: dec, file: f}, nil
}

// Stat returns object metadata.
func (lt *LocalTiers) Stat(ctx context.Context, bucket, key string) (ObjectInfo, error) {
	var zero ObjectInfo
	if err := ctx.Err(); err != nil {
		return zero, err
	}
	t, path, err := lt.resolve(bucket, key)
	if err != nil {
		return zero, err
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return zero, fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return zero, err
	}
	meta, err := t.readMeta(path)
	if err != nil {
		return zero, err
	}
	return ObjectInfo{
		Bucket:      bucket,
		Key:         key,
		ContentType: meta.ContentType,
		SizeBytes:   meta.SizeBytes,
		Encoding:    meta.Encoding,
	}, nil
}

// Delete removes an object and its sidecar.
func (lt *LocalTiers) Delete(ctx context.Context, bucket, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, path, err := lt.resolve(bucket, key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%s/%s: %w", bucket, key, ErrObjectNotFound)
		}
		return err
	}
	if err := os.Remove(path + metaSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// Copy writes the object under key from srcBucket into dstBucket,
// re-encoding for the destination tier.
func (lt *LocalTiers) Copy(ctx context.Context, srcBucket, dstBucket, key string) error {
	info, err := lt.Stat(ctx, srcBucket, key)
	if err != nil {
		return err
	}
	rc, err := lt.Open(ctx, srcBucket, key)
	if err != nil {
		return err
	}
	defer rc.Close()
	return lt.Put(ctx, dstBucket, key, rc, info.ContentType)
}

func (lt *LocalTiers) encodeTo(w io.Writer, r io.Reader, encoding Encoding) error {
	if encoding != EncodingZstd {
		_, err := io.Copy(w, r)
		return err
	}
	enc, ok := lt.encoderPool.Get().(*zstd.Encoder)
	if !ok || enc == nil {
		return fmt.Errorf("zstd encoder unavailable")
	}
	defer lt.encoderPool.Put(enc)
	enc.Reset(w)
	if _, err := io.Copy(enc, r); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

func (lt *LocalTiers) resolve(bucket, key string) (*tier, string, error) {
	t, ok := lt.tiers[bucket]
	if !ok {
		return nil, "", fmt.Errorf("%q: %w", bucket, ErrUnknownTier)
	}
	path, err := t.pathFromKey(key)
	if err != nil {
		return nil, "", err
	}
	return t, path, nil
}

func (t *tier) pathFromKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("object key is required")
	}
	if strings.ContainsAny(key, `/\`) || strings.Contains(key, "..") {
		return "", fmt.Errorf("invalid object key %q", key)
	}
	if strings.HasSuffix(key, metaSuffix) || key == "tmp" {
		return "", fmt.Errorf("reserved object key %q", key)
	}
	if len(key) < 4 {
		return filepath.Join(t.root, key), nil
	}
	return filepath.Join(t.root, key[0:2], key[2:4], key), nil
}

func writeMeta(objectPath string, meta objectMeta) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	tmp := objectPath + metaSuffix + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, objectPath+metaSuffix)
}

// readMeta falls back to the tier's own encoding when the sidecar is missing.
func (t *tier) readMeta(objectPath string) (objectMeta, error) {
	meta := objectMeta{Encoding: t.encoding}
	data, err := os.ReadFile(objectPath + metaSuffix)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return meta, nil
		}
		return meta, err
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("decode object meta: %w", err)
	}
	if meta.Encoding == "" {
		meta.Encoding = EncodingIdentity
	}
	return meta, nil
}

func nestedRoots(a, b string) bool {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		rel, err := filepath.Rel(pair[0], pair[1])
		if err != nil {
			continue
		}
		if rel == "." || (rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))) {
			return true
		}
	}
	return false
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}

type zstdReadCloser struct {
	dec  *zstd.Decoder
	file *os.File
}

func (z *zstdReadCloser) Read(p []byte) (int, error) {
	return z.dec.Read(p)
}

func (z *zstdReadCloser) Close() error {
	z.dec.Close()
	return z.file.Close()
}
