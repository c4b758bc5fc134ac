package ingest

import (
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// walkResult holds the regular files under a source root and the
// subdirectories that could not be read.
type walkResult struct {
	Files      []string // source-relative, slash separated
	Unreadable map[string]error
}

// walkSource lists regular files below root with an explicit stack, so deep
// trees do not grow the goroutine stack. Symlinks and other special files are
// skipped. The result is sorted case-insensitively with the exact path as
// tie-breaker.
func walkSource(root string) (walkResult, error) {
	res := walkResult{Unreadable: map[string]error{}}
	if _, err := os.ReadDir(root); err != nil {
		return res, err
	}

	stack := []string{"."}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			res.Unreadable[rel] = err
			continue
		}
		for _, entry := range entries {
			child := path.Join(rel, entry.Name())
			switch {
			case entry.IsDir():
				stack = append(stack, child)
			case entry.Type().IsRegular():
				res.Files = append(res.Files, child)
			}
		}
	}

	sortPaths(res.Files)
	return res, nil
}

func sortPaths(paths []string) {
	sort.Slice(paths, func(i, j int) bool {
		a, b := strings.ToLower(paths[i]), strings.ToLower(paths[j])
		if a != b {
			return a < b
		}
		return paths[i] < paths[j]
	})
}

// countRegularFiles counts regular files directly inside dir.
func countRegularFiles(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, entry := range entries {
		if entry.Type().IsRegular() {
			n++
		}
	}
	return n, nil
}

// statRegular reports the size of a regular file, or ok=false for anything else.
func statRegular(p string) (size int64, ok bool, err error) {
	info, err := os.Lstat(p)
	if err != nil {
		return 0, false, err
	}
	if info.Mode()&fs.ModeType != 0 {
		return 0, false, nil
	}
	return info.Size(), true, nil
}
