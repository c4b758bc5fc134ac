package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"hoard/internal/models"
	"hoard/internal/store"
)

func testStore(t *testing.T) *store.Store {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "hoard.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func insertRecord(t *testing.T, st store.RecordStore, id string, level models.Level, length int64, created time.Time) {
	t.Helper()
	require.NoError(t, st.Insert(context.Background(), &models.BlobRecord{
		ID:             id,
		ContentType:    "image/jpeg",
		CreatedAt:      created,
		LastModifiedAt: created,
		Length:         length,
		Level:          level,
		Paths:          []string{"seed/" + id + ".jpg"},
		Dirs:           []string{"seed"},
		Bucket:         "hot",
	}))
}

// writeFile creates root/rel with data, making parent directories.
func writeFile(t *testing.T, root, rel string, data []byte) string {
	t.Helper()
	full := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
	require.NoError(t, os.WriteFile(full, data, 0o644))
	return full
}

func fileExists(t *testing.T, p string) bool {
	t.Helper()
	_, err := os.Stat(p)
	if os.IsNotExist(err) {
		return false
	}
	require.NoError(t, err)
	return true
}
