// Package registry holds the mutable state of every download job. It
// is the only shared mutable resource between the scheduler workers
// (one writer per job) and the HTTP pollers (any number of readers).
// All access goes through one mutex-guarded map; updates merge
// individual fields so a progress patch can never clobber metadata set
// by an earlier patch.
package registry

import (
	"fmt"
	"sync"
	"time"

	"vidfetch/internal/model"
)

// Registry is a synchronized job-id -> job-record store. Construct it
// once in main and pass it to the scheduler and the HTTP layer; it is
// never package-global. Records are not evicted; process restart is
// the retention policy.
type Registry struct {
	mu   sync.RWMutex
	jobs map[string]*model.Job
}

// Patch is a field-level merge applied by Update. Nil fields are left
// untouched, so concurrent writers of disjoint fields cannot lose each
// other's values. Progress merges are clamped non-decreasing.
type Patch struct {
	Status      *model.Status
	Progress    *int
	Speed       *string
	Downloaded  *string
	Total       *string
	Filename    *string
	Filesize    *string
	DownloadURL *string
	Info        *model.VideoInfo
	Error       *string
}

func New() *Registry {
	return &Registry{jobs: make(map[string]*model.Job)}
}

// Create inserts a new job record. The id must not already be present.
func (r *Registry) Create(job model.Job) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[job.ID]; ok {
		return fmt.Errorf("registry: job %s already exists", job.ID)
	}

	now := time.Now()
	job.CreatedAt = now
	job.UpdatedAt = now
	r.jobs[job.ID] = &job
	return nil
}

// Update merges the non-nil fields of the patch into an existing
// record. It fails if the id is unknown.
func (r *Registry) Update(id string, p Patch) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	job, ok := r.jobs[id]
	if !ok {
		return fmt.Errorf("registry: job %s not found", id)
	}

	if p.Status != nil {
		job.Status = *p.Status
	}
	if p.Progress != nil && *p.Progress > job.Progress {
		job.Progress = *p.Progress
	}
	if p.Speed != nil {
		job.Speed = *p.Speed
	}
	if p.Downloaded != nil {
		job.Downloaded = *p.Downloaded
	}
	if p.Total != nil {
		job.Total = *p.Total
	}
	if p.Filename != nil {
		job.Filename = *p.Filename
	}
	if p.Filesize != nil {
		job.Filesize = *p.Filesize
	}
	if p.DownloadURL != nil {
		job.DownloadURL = *p.DownloadURL
	}
	if p.Info != nil {
		info := *p.Info
		job.Info = &info
	}
	if p.Error != nil {
		job.Error = *p.Error
	}
	job.UpdatedAt = time.Now()
	return nil
}

// Get returns a copy of the record so callers can read it without
// holding the lock.
func (r *Registry) Get(id string) (model.Job, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return model.Job{}, false
	}
	out := *job
	if job.Info != nil {
		info := *job.Info
		out.Info = &info
	}
	return out, true
}

// Len reports the number of tracked jobs. Exposed as a gauge so the
// unbounded growth of the registry stays observable.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.jobs)
}
