package ingest

import (
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// pruneEmptyParents removes dir and its ancestors while they are empty,
// stopping below root. dir is source-relative.
func pruneEmptyParents(root, dir string) int {
	removed := 0
	for dir != "." && dir != "" && dir != "/" {
		err := os.Remove(filepath.Join(root, filepath.FromSlash(dir)))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			// Not empty, or not removable; ancestors are not empty either.
			return removed
		}
		if err == nil {
			removed++
		}
		dir = path.Dir(dir)
	}
	return removed
}

// pruneEmptyDirs removes every empty directory below root, deepest first,
// so directories that only held empty directories go too. root is kept.
func pruneEmptyDirs(root string) int {
	var dirs []string
	stack := []string{"."}
	for len(stack) > 0 {
		rel := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		entries, err := os.ReadDir(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				child := path.Join(rel, entry.Name())
				dirs = append(dirs, child)
				stack = append(stack, child)
			}
		}
	}

	sort.Slice(dirs, func(i, j int) bool {
		di, dj := strings.Count(dirs[i], "/"), strings.Count(dirs[j], "/")
		if di != dj {
			return di > dj
		}
		return dirs[i] < dirs[j]
	})

	removed := 0
	for _, dir := range dirs {
		if err := os.Remove(filepath.Join(root, filepath.FromSlash(dir))); err == nil {
			removed++
		}
	}
	return removed
}
