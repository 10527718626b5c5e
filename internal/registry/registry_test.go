package registry

import (
	"fmt"
	"sync"
	"testing"

	"vidfetch/internal/model"
)

func ptr[T any](v T) *T { return &v }

func TestCreate_RejectsDuplicateID(t *testing.T) {
	r := New()
	job := model.Job{ID: "dl_1", Status: model.StatusStarting}

	if err := r.Create(job); err != nil {
		t.Fatalf("first create failed: %v", err)
	}
	if err := r.Create(job); err == nil {
		t.Fatalf("expected error creating duplicate id")
	}
}

func TestUpdate_UnknownID(t *testing.T) {
	r := New()
	if err := r.Update("missing", Patch{Progress: ptr(10)}); err == nil {
		t.Fatalf("expected error updating unknown id")
	}
}

func TestUpdate_MergesFieldsWithoutClobbering(t *testing.T) {
	r := New()
	if err := r.Create(model.Job{ID: "dl_1", Status: model.StatusStarting}); err != nil {
		t.Fatalf("create: %v", err)
	}

	// Metadata patch first, as the worker does after probing.
	info := model.VideoInfo{Title: "clip", Uploader: "user", Platform: model.PlatformYouTube, VideoID: "abc"}
	err := r.Update("dl_1", Patch{
		Status:   ptr(model.StatusDownloading),
		Filename: ptr("YouTube_clip_abc.mp4"),
		Info:     &info,
	})
	if err != nil {
		t.Fatalf("metadata patch: %v", err)
	}

	// A telemetry-only patch must not touch metadata fields.
	err = r.Update("dl_1", Patch{
		Progress:   ptr(42),
		Speed:      ptr("1.2 MB/s"),
		Downloaded: ptr("4.2 MB"),
		Total:      ptr("10.0 MB"),
	})
	if err != nil {
		t.Fatalf("telemetry patch: %v", err)
	}

	job, ok := r.Get("dl_1")
	if !ok {
		t.Fatalf("job disappeared")
	}
	if job.Filename != "YouTube_clip_abc.mp4" {
		t.Fatalf("telemetry patch clobbered filename: %q", job.Filename)
	}
	if job.Info == nil || job.Info.Title != "clip" {
		t.Fatalf("telemetry patch clobbered info: %+v", job.Info)
	}
	if job.Progress != 42 || job.Speed != "1.2 MB/s" {
		t.Fatalf("telemetry fields not merged: %+v", job)
	}
}

func TestUpdate_ProgressNeverDecreases(t *testing.T) {
	r := New()
	if err := r.Create(model.Job{ID: "dl_1", Status: model.StatusDownloading}); err != nil {
		t.Fatalf("create: %v", err)
	}

	for _, p := range []int{10, 55, 30, 55, 95} {
		if err := r.Update("dl_1", Patch{Progress: ptr(p)}); err != nil {
			t.Fatalf("update: %v", err)
		}
	}

	job, _ := r.Get("dl_1")
	if job.Progress != 95 {
		t.Fatalf("expected progress 95 after out-of-order patches, got %d", job.Progress)
	}
}

func TestGet_ReturnsCopy(t *testing.T) {
	r := New()
	info := model.VideoInfo{Title: "original"}
	if err := r.Create(model.Job{ID: "dl_1", Info: &info}); err != nil {
		t.Fatalf("create: %v", err)
	}

	job, _ := r.Get("dl_1")
	job.Status = model.StatusError
	job.Info.Title = "mutated"

	again, _ := r.Get("dl_1")
	if again.Status == model.StatusError || again.Info.Title == "mutated" {
		t.Fatalf("Get leaked a mutable reference: %+v", again)
	}
}

func TestConcurrentWritersAndReaders(t *testing.T) {
	r := New()
	const jobs = 16
	const patches = 50

	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("dl_%d", i)
		if err := r.Create(model.Job{ID: id, Status: model.StatusStarting}); err != nil {
			t.Fatalf("create %s: %v", id, err)
		}
	}

	var wg sync.WaitGroup
	for i := 0; i < jobs; i++ {
		id := fmt.Sprintf("dl_%d", i)
		wg.Add(2)

		// One writer per job (the single-writer rule).
		go func() {
			defer wg.Done()
			for p := 1; p <= patches; p++ {
				_ = r.Update(id, Patch{Progress: ptr(p * 2)})
			}
			_ = r.Update(id, Patch{Status: ptr(model.StatusComplete), Progress: ptr(100)})
		}()

		// A polling reader racing the writer.
		go func() {
			defer wg.Done()
			for p := 0; p < patches; p++ {
				if job, ok := r.Get(id); ok && job.Progress > 100 {
					t.Errorf("impossible progress %d", job.Progress)
				}
			}
		}()
	}
	wg.Wait()

	for i := 0; i < jobs; i++ {
		job, ok := r.Get(fmt.Sprintf("dl_%d", i))
		if !ok {
			t.Fatalf("job %d lost", i)
		}
		if job.Status != model.StatusComplete || job.Progress != 100 {
			t.Fatalf("job %d lost updates: status=%s progress=%d", i, job.Status, job.Progress)
		}
	}

	if r.Len() != jobs {
		t.Fatalf("expected %d tracked jobs, got %d", jobs, r.Len())
	}
}
