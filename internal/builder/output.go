package builder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/zeebo/xxh3"

	"github.com/pbaity/folio/internal/ignore"
)

// output is a fully rendered file waiting to be written.
type output struct {
	source
	data []byte
	sum  uint64
}

// writeIfChanged writes o unless its destination already holds the same bytes.
func writeIfChanged(o output) (bool, error) {
	existing, err := os.ReadFile(o.dest)
	switch {
	case err == nil:
		if len(existing) == len(o.data) && xxh3.Hash(existing) == o.sum {
			return false, nil
		}
	case !errors.Is(err, fs.ErrNotExist):
		return false, fmt.Errorf("failed to read output '%s': %w", o.dest, err)
	}

	if err := writeAtomic(o.dest, o.data); err != nil {
		return false, err
	}
	return true, nil
}

// writeAtomic writes data to a temp file next to dest and renames it into place.
func writeAtomic(dest string, data []byte) error {
	dir := filepath.Dir(dest)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory '%s': %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".folio-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in '%s': %w", dir, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write temp file '%s': %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file '%s': %w", tmpName, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("failed to set permissions on '%s': %w", tmpName, err)
	}
	if err := os.Rename(tmpName, dest); err != nil {
		return fmt.Errorf("failed to move output into place '%s': %w", dest, err)
	}
	return nil
}

// prune removes files under root that are not in keep, then any directories
// left empty. Ignored paths such as .git are never touched. It returns the
// removed files relative to root.
func prune(root string, keep map[string]bool, matcher *ignore.Matcher) ([]string, error) {
	var removed, dirs []string

	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if p == root {
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		if matcher.Ignored(rel) {
			if d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			dirs = append(dirs, p)
			return nil
		}
		if keep[p] {
			return nil
		}
		if err := os.Remove(p); err != nil {
			return fmt.Errorf("failed to remove stale output '%s': %w", p, err)
		}
		removed = append(removed, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return removed, err
	}

	// WalkDir lists parents before children, so walking backwards empties leaves first.
	for i := len(dirs) - 1; i >= 0; i-- {
		entries, err := os.ReadDir(dirs[i])
		if err == nil && len(entries) == 0 {
			if err := os.Remove(dirs[i]); err != nil {
				return removed, fmt.Errorf("failed to remove empty directory '%s': %w", dirs[i], err)
			}
		}
	}
	return removed, nil
}
