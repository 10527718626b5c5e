// Package scheduler runs submitted downloads on a fixed-size worker
// pool. Submission is fast and synchronous (validate, create the
// registry record, enqueue); everything slow happens on a worker.
// Each worker owns exactly one job at a time and is that job's only
// writer; all communication goes through the registry's field-merge
// updates.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"vidfetch/internal/artifact"
	"vidfetch/internal/config"
	"vidfetch/internal/extract"
	"vidfetch/internal/metrics"
	"vidfetch/internal/model"
	"vidfetch/internal/platform"
	"vidfetch/internal/registry"
)

// Progress reported to pollers is capped here until fetch returns,
// because the transcode step after transfer emits no progress.
const maxTransferPercent = 95

// Error messages longer than this are truncated before they reach the
// registry.
const maxErrorLen = 100

var (
	// ErrInvalidURL rejects submissions that are not well-formed
	// HTTP(S) URLs. No job record is created for these.
	ErrInvalidURL = errors.New("valid HTTP or HTTPS URL required")
	// ErrQueueFull rejects submissions when the pending queue is at
	// capacity.
	ErrQueueFull = errors.New("too many pending downloads, try again shortly")
)

// Extractor is the probe/fetch surface of the extraction adapter.
type Extractor interface {
	Probe(ctx context.Context, url string, opts extract.Options) (*model.VideoInfo, error)
	Fetch(ctx context.Context, url string, opts extract.Options, onProgress extract.ProgressFunc) error
}

// Resolver finalizes the on-disk artifact after a successful fetch.
type Resolver interface {
	Resolve(req artifact.Request) (artifact.Result, error)
}

type task struct {
	id  string
	url string
}

// Scheduler accepts submissions and executes them in the background.
type Scheduler struct {
	cfg    *config.Config
	reg    *registry.Registry
	ext    Extractor
	res    Resolver
	logger *slog.Logger
	queue  chan task
}

func New(cfg *config.Config, reg *registry.Registry, ext Extractor, res Resolver, logger *slog.Logger) *Scheduler {
	queueSize := cfg.Downloads.QueueSize
	if queueSize <= 0 {
		queueSize = 64
	}
	return &Scheduler{
		cfg:    cfg,
		reg:    reg,
		ext:    ext,
		res:    res,
		logger: logger,
		queue:  make(chan task, queueSize),
	}
}

// Start launches the worker pool. Workers exit when ctx is cancelled;
// in-flight jobs run to their terminal status.
func (s *Scheduler) Start(ctx context.Context) {
	workers := s.cfg.Downloads.MaxConcurrentJobs
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		go s.worker(ctx)
	}
}

func (s *Scheduler) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case t := <-s.queue:
			s.run(ctx, t)
		}
	}
}

// Submit validates the URL, creates the job record in `starting` and
// enqueues it. It never blocks on job execution; job ids are
// time-ordered and never reused.
func (s *Scheduler) Submit(rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)

	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", ErrInvalidURL
	}

	id := fmt.Sprintf("dl_%d_%s", time.Now().UnixMilli(), uuid.NewString()[:8])
	job := model.Job{
		ID:         id,
		URL:        rawURL,
		Platform:   platform.Detect(rawURL),
		Status:     model.StatusStarting,
		Progress:   0,
		Downloaded: "0 B",
		Total:      "?",
	}
	if err := s.reg.Create(job); err != nil {
		return "", err
	}

	select {
	case s.queue <- task{id: id, url: rawURL}:
		return id, nil
	default:
		// The record already exists, so close it out rather than
		// leaving it stuck in `starting` forever.
		s.fail(id, job.Platform, ErrQueueFull.Error())
		return "", ErrQueueFull
	}
}

// run drives one job through classify -> probe -> fetch -> resolve.
// Any failure, including a panic in a stage, becomes a terminal error
// status; a job can never be left non-terminal.
func (s *Scheduler) run(ctx context.Context, t task) {
	job, ok := s.reg.Get(t.id)
	if !ok {
		return
	}
	p := job.Platform

	defer func() {
		if r := recover(); r != nil {
			s.fail(t.id, p, fmt.Sprintf("internal error: %v", r))
		}
	}()

	// Job-scoped namespace: the id already carries the timestamp plus
	// a unique suffix, so deriving the stem from it keeps concurrent
	// same-platform jobs out of each other's temp dirs and output
	// globs.
	stem := fmt.Sprintf("%s_%s", p, strings.TrimPrefix(t.id, "dl_"))
	tempDir := filepath.Join(s.cfg.Downloads.TempDir(), stem)
	if err := os.MkdirAll(tempDir, 0o755); err != nil {
		s.fail(t.id, p, "cannot create temp directory: "+err.Error())
		return
	}
	defer func() { _ = os.RemoveAll(tempDir) }() // best-effort; sweep covers the rest

	opts := s.options(p, stem, tempDir)

	info, err := s.ext.Probe(ctx, t.url, opts)
	if err != nil {
		s.fail(t.id, p, err.Error())
		return
	}
	info.Platform = p
	info.Title = clip(info.Title, 60)
	info.Uploader = clip(info.Uploader, 30)

	canonical := artifact.CanonicalName(p, info.Title, info.VideoID)
	status := model.StatusDownloading
	if err := s.reg.Update(t.id, registry.Patch{
		Status:   &status,
		Filename: &canonical,
		Info:     info,
	}); err != nil {
		return
	}

	s.logger.Info("downloading", "id", t.id, "platform", p, "title", info.Title)

	if err := s.ext.Fetch(ctx, t.url, opts, func(pr extract.Progress) {
		s.recordProgress(t.id, pr)
	}); err != nil {
		s.fail(t.id, p, err.Error())
		return
	}

	res, err := s.res.Resolve(artifact.Request{
		Stem:          stem,
		TempDir:       tempDir,
		CanonicalName: canonical,
	})
	if err != nil {
		s.fail(t.id, p, err.Error())
		return
	}

	done := model.StatusComplete
	progress := 100
	filesize := model.FormatBytes(res.Size)
	downloadURL := "/download/" + res.Name
	_ = s.reg.Update(t.id, registry.Patch{
		Status:      &done,
		Progress:    &progress,
		Filename:    &res.Name,
		Filesize:    &filesize,
		DownloadURL: &downloadURL,
	})

	metrics.RecordDownload(string(p), string(model.StatusComplete))
	metrics.RecordDownloadBytes(string(p), res.Size)
	s.logger.Info("complete", "id", t.id, "file", res.Name, "size", res.Size)
}

// options builds the tool invocation for a platform. Authenticated
// platforms attach the cookie store and a browser User-Agent when the
// store exists; its absence silently falls back to anonymous access.
func (s *Scheduler) options(p model.Platform, stem, tempDir string) extract.Options {
	y := s.cfg.Ytdlp
	opts := extract.Options{
		Format:              platform.FormatSelector(p),
		OutputTemplate:      filepath.Join(s.cfg.Downloads.Dir, stem+"_%(id)s.%(ext)s"),
		TempDir:             tempDir,
		SocketTimeoutSec:    y.SocketTimeoutSec,
		Retries:             y.Retries,
		FragmentRetries:     y.FragmentRetries,
		ConcurrentFragments: y.ConcurrentFragments,
	}

	if platform.NeedsAuth(p) {
		if _, err := os.Stat(y.CookiesFile); err == nil {
			opts.CookiesFile = y.CookiesFile
		}
		opts.UserAgent = y.UserAgent
	}
	return opts
}

// recordProgress translates a transfer sample into a telemetry patch.
// Failures to record are swallowed: progress is best-effort and must
// never fail the job.
func (s *Scheduler) recordProgress(id string, pr extract.Progress) {
	if pr.Total <= 0 {
		return
	}

	percent := int(float64(pr.Downloaded) / float64(pr.Total) * 100)
	if percent > maxTransferPercent {
		percent = maxTransferPercent
	}
	speed := model.FormatBytes(int64(pr.Rate)) + "/s"
	downloaded := model.FormatBytes(pr.Downloaded)
	total := model.FormatBytes(pr.Total)

	_ = s.reg.Update(id, registry.Patch{
		Progress:   &percent,
		Speed:      &speed,
		Downloaded: &downloaded,
		Total:      &total,
	})
}

func (s *Scheduler) fail(id string, p model.Platform, msg string) {
	msg = clip(msg, maxErrorLen)
	status := model.StatusError
	_ = s.reg.Update(id, registry.Patch{Status: &status, Error: &msg})

	metrics.RecordDownload(string(p), string(model.StatusError))
	s.logger.Error("download failed", "id", id, "platform", p, "error", msg)
}

func clip(s string, max int) string {
	if len(s) > max {
		return s[:max]
	}
	return s
}
