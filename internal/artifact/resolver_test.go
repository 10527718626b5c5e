package artifact

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestResolver(root string) *Resolver {
	return &Resolver{
		Root:           root,
		MinBytes:       500,
		SettleDelay:    0,
		RenameAttempts: 2,
		RenameBackoff:  time.Millisecond,
	}
}

func writeFile(t *testing.T, path string, size int, mtime time.Time) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(path, make([]byte, size), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	if err := os.Chtimes(path, mtime, mtime); err != nil {
		t.Fatalf("chtimes %s: %v", path, err)
	}
}

func TestResolve_PicksNewestLargestAndRenames(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	// A stale truncated duplicate and the real output.
	writeFile(t, filepath.Join(root, "YouTube_100_a.mp4"), 500, now.Add(-time.Minute))
	writeFile(t, filepath.Join(root, "YouTube_100_b.mp4"), 50*1024, now)

	r := newTestResolver(root)
	res, err := r.Resolve(Request{
		Stem:          "YouTube_100",
		TempDir:       filepath.Join(root, ".temp", "YouTube_100"),
		CanonicalName: "YouTube_clip_b.mp4",
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "YouTube_clip_b.mp4" {
		t.Fatalf("expected canonical name, got %q", res.Name)
	}
	if res.Size != 50*1024 {
		t.Fatalf("selected the wrong candidate: %d bytes", res.Size)
	}
	if _, err := os.Stat(filepath.Join(root, "YouTube_clip_b.mp4")); err != nil {
		t.Fatalf("canonical file missing: %v", err)
	}
}

func TestResolve_SameMtimePrefersLarger(t *testing.T) {
	root := t.TempDir()
	ts := time.Now().Truncate(time.Second)

	writeFile(t, filepath.Join(root, "TikTok_7_a.mp4"), 600, ts)
	writeFile(t, filepath.Join(root, "TikTok_7_b.mp4"), 9000, ts)

	r := newTestResolver(root)
	res, err := r.Resolve(Request{Stem: "TikTok_7", TempDir: filepath.Join(root, "none"), CanonicalName: "TikTok_x_b.mp4"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Size != 9000 {
		t.Fatalf("tie-break should favor the larger file, got %d", res.Size)
	}
}

func TestResolve_FallsBackToTempDir(t *testing.T) {
	root := t.TempDir()
	tempDir := filepath.Join(root, ".temp", "Instagram_5")

	// Nothing matches the stem in the root; output is still nested in
	// the job scratch dir.
	writeFile(t, filepath.Join(tempDir, "nested", "raw.mp4"), 4096, time.Now())

	r := newTestResolver(root)
	res, err := r.Resolve(Request{Stem: "Instagram_5", TempDir: tempDir, CanonicalName: "Instagram_pic_5.mp4"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Name != "Instagram_pic_5.mp4" {
		t.Fatalf("expected canonical name, got %q", res.Name)
	}
	if _, err := os.Stat(filepath.Join(root, "Instagram_pic_5.mp4")); err != nil {
		t.Fatalf("artifact not published into root: %v", err)
	}
}

func TestResolve_GlobalFallbackOnlyWhenJobTiersEmpty(t *testing.T) {
	root := t.TempDir()
	now := time.Now()

	// Another job's newer file in the shared root plus this job's own
	// older output. The job-scoped tier must win.
	writeFile(t, filepath.Join(root, "X_9_mine.mp4"), 2048, now.Add(-time.Minute))
	writeFile(t, filepath.Join(root, "Facebook_8_other.mp4"), 4096, now)

	r := newTestResolver(root)
	res, err := r.Resolve(Request{Stem: "X_9", TempDir: filepath.Join(root, "none"), CanonicalName: "X_post_9.mp4"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Size != 2048 {
		t.Fatalf("job-scoped candidate should win over the global fallback, got %d bytes", res.Size)
	}
}

func TestResolve_NoCandidates(t *testing.T) {
	root := t.TempDir()
	r := newTestResolver(root)

	_, err := r.Resolve(Request{Stem: "YouTube_1", TempDir: filepath.Join(root, "none"), CanonicalName: "x.mp4"})
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResolve_RejectsImplausiblySmall(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "YouTube_2_a.mp4"), 100, time.Now())

	r := newTestResolver(root)
	_, err := r.Resolve(Request{Stem: "YouTube_2", TempDir: filepath.Join(root, "none"), CanonicalName: "x.mp4"})

	var tooSmall *TooSmallError
	if !errors.As(err, &tooSmall) {
		t.Fatalf("expected TooSmallError, got %v", err)
	}
	if tooSmall.Size != 100 || tooSmall.Min != 500 {
		t.Fatalf("unexpected error detail: %+v", tooSmall)
	}
}

func TestResolve_AlreadyCanonical(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "YouTube_3_abc.mp4"), 2048, time.Now())

	r := newTestResolver(root)
	res, err := r.Resolve(Request{Stem: "YouTube_3", TempDir: filepath.Join(root, "none"), CanonicalName: "YouTube_3_abc.mp4"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if res.Path != filepath.Join(root, "YouTube_3_abc.mp4") {
		t.Fatalf("unexpected path %q", res.Path)
	}
}

func TestSweepTemp(t *testing.T) {
	root := t.TempDir()
	old := time.Now().Add(-2 * time.Hour)

	writeFile(t, filepath.Join(root, "job_a", "frag.part"), 10, old)
	writeFile(t, filepath.Join(root, "job_b", "fresh.mp4"), 10, time.Now())

	// Age-bounded sweep keeps the fresh file.
	if n := SweepTemp(root, time.Hour); n != 1 {
		t.Fatalf("expected 1 file swept, got %d", n)
	}
	if _, err := os.Stat(filepath.Join(root, "job_b", "fresh.mp4")); err != nil {
		t.Fatalf("fresh file should survive an age-bounded sweep: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "job_a")); !os.IsNotExist(err) {
		t.Fatalf("emptied job dir should be removed")
	}

	// Unbounded sweep clears the rest.
	if n := SweepTemp(root, 0); n != 1 {
		t.Fatalf("expected 1 file swept on full sweep, got %d", n)
	}
}
