package ingest

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"golang.org/x/crypto/blake2b"
)

const (
	HashSHA256  = "sha256"
	HashBlake2b = "blake2b"
)

// Hasher computes content ids. Both algorithms yield 64 lowercase hex chars.
type Hasher struct {
	algorithm string
	newHash   func() (hash.Hash, error)
}

// NewHasher returns a hasher for algorithm ("sha256" or "blake2b").
func NewHasher(algorithm string) (*Hasher, error) {
	switch strings.ToLower(strings.TrimSpace(algorithm)) {
	case "", HashSHA256:
		return &Hasher{algorithm: HashSHA256, newHash: func() (hash.Hash, error) { return sha256.New(), nil }}, nil
	case HashBlake2b:
		return &Hasher{algorithm: HashBlake2b, newHash: func() (hash.Hash, error) { return blake2b.New256(nil) }}, nil
	default:
		return nil, fmt.Errorf("unsupported hash algorithm %q", algorithm)
	}
}

// Algorithm reports the configured algorithm name.
func (h *Hasher) Algorithm() string {
	return h.algorithm
}

// Sum streams r and returns the hex digest and the byte count.
func (h *Hasher) Sum(r io.Reader) (string, int64, error) {
	digest, err := h.newHash()
	if err != nil {
		return "", 0, err
	}
	n, err := io.Copy(digest, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(digest.Sum(nil)), n, nil
}

// HashFile hashes the file at path.
func (h *Hasher) HashFile(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	return h.Sum(f)
}
