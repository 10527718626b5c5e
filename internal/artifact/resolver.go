// Package artifact turns the unpredictable on-disk output of the
// external tool into a single canonical file, and owns the filesystem
// concerns around it: candidate search, plausibility checks, rename
// under lock contention, traversal-safe serving paths and scratch
// cleanup.
package artifact

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/sethvargo/go-retry"
)

// ErrNotFound is returned when no output file can be located for a
// finished fetch.
var ErrNotFound = errors.New("artifact: no output file found")

// TooSmallError marks the selected candidate as implausibly small,
// i.e. truncated or corrupt.
type TooSmallError struct {
	Path string
	Size int64
	Min  int64
}

func (e *TooSmallError) Error() string {
	return fmt.Sprintf("artifact: file too small: %s (%d bytes, minimum %d)", e.Path, e.Size, e.Min)
}

// Resolver locates and publishes finished downloads under Root.
type Resolver struct {
	// Root is the canonical output directory.
	Root string
	// MinBytes is the plausibility floor; smaller candidates are
	// rejected as truncated duplicates.
	MinBytes int64
	// SettleDelay is how long to wait after the tool returns for the
	// transcoder to release file handles.
	SettleDelay time.Duration
	// Rename contention policy: bounded attempts with constant backoff.
	RenameAttempts uint64
	RenameBackoff  time.Duration

	Logger *slog.Logger
}

// Request identifies one job's output namespace.
type Request struct {
	// Stem is the job-scoped output filename stem the tool was given.
	Stem string
	// TempDir is the job-scoped scratch directory.
	TempDir string
	// CanonicalName is the final filename the artifact should carry.
	CanonicalName string
}

// Result is the published artifact.
type Result struct {
	Path string
	Name string
	Size int64
}

type candidate struct {
	path    string
	size    int64
	modTime time.Time
}

// Resolve finds the single file produced for the request, validates it
// and renames it to the canonical name. Search runs in priority tiers:
// the job-stem pattern in the output root, then the job temp directory
// recursively, and only when both job-scoped tiers are empty, the
// newest mp4 anywhere in the root. The last tier can race another
// job's in-flight output under heavy load; it is kept because it is
// the only recovery path when the tool renames output unexpectedly.
func (r *Resolver) Resolve(req Request) (Result, error) {
	if r.SettleDelay > 0 {
		time.Sleep(r.SettleDelay)
	}

	cands := globCandidates(filepath.Join(r.Root, req.Stem+"_*.mp4"))
	if len(cands) == 0 {
		cands = walkCandidates(req.TempDir)
	}
	if len(cands) == 0 {
		cands = globCandidates(filepath.Join(r.Root, "*.mp4"))
	}
	if len(cands) == 0 {
		return Result{}, ErrNotFound
	}

	best := cands[0]
	for _, c := range cands[1:] {
		if c.modTime.After(best.modTime) ||
			(c.modTime.Equal(best.modTime) && c.size > best.size) {
			best = c
		}
	}

	if best.size < r.MinBytes {
		return Result{}, &TooSmallError{Path: best.path, Size: best.size, Min: r.MinBytes}
	}

	return r.publish(best, req.CanonicalName), nil
}

// publish renames the candidate into the canonical location. Rename
// failures are non-fatal: after the retry budget the artifact is
// exposed under its resolved name instead, since a byte-valid file
// exists either way.
func (r *Resolver) publish(best candidate, canonicalName string) Result {
	target := filepath.Join(r.Root, canonicalName)
	if best.path == target {
		return Result{Path: target, Name: canonicalName, Size: best.size}
	}

	backoff := retry.WithMaxRetries(r.RenameAttempts, retry.NewConstant(r.RenameBackoff))
	err := retry.Do(context.Background(), backoff, func(ctx context.Context) error {
		if err := os.Rename(best.path, target); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})
	if err != nil {
		if r.Logger != nil {
			r.Logger.Warn("rename contention, serving original path",
				"from", best.path, "to", target, "error", err)
		}
		return Result{Path: best.path, Name: filepath.Base(best.path), Size: best.size}
	}

	return Result{Path: target, Name: canonicalName, Size: best.size}
}

func globCandidates(pattern string) []candidate {
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil
	}
	out := make([]candidate, 0, len(matches))
	for _, m := range matches {
		if info, err := os.Stat(m); err == nil && !info.IsDir() {
			out = append(out, candidate{path: m, size: info.Size(), modTime: info.ModTime()})
		}
	}
	return out
}

func walkCandidates(dir string) []candidate {
	var out []candidate
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || filepath.Ext(path) != ".mp4" {
			return nil
		}
		if info, err := d.Info(); err == nil {
			out = append(out, candidate{path: path, size: info.Size(), modTime: info.ModTime()})
		}
		return nil
	})
	return out
}
