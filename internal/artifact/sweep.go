package artifact

import (
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// SweepTemp removes files under the scratch root that are older than
// maxAge (zero removes everything). Cleanup is best-effort: individual
// failures are skipped, empty job directories are removed when
// possible, and the root itself is left in place. Returns the number
// of files removed.
func SweepTemp(root string, maxAge time.Duration) int {
	cutoff := time.Now().Add(-maxAge)
	removed := 0

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil || path == root || d.IsDir() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if maxAge > 0 && info.ModTime().After(cutoff) {
			return nil
		}
		if os.Remove(path) == nil {
			removed++
		}
		return nil
	})

	// Drop now-empty job directories; Remove fails on non-empty ones,
	// which is the behavior we want.
	if entries, err := os.ReadDir(root); err == nil {
		for _, e := range entries {
			if e.IsDir() {
				_ = os.Remove(filepath.Join(root, e.Name()))
			}
		}
	}

	return removed
}
