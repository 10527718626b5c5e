// Package extract wraps the external yt-dlp tool behind a small
// probe/fetch API. Probe resolves metadata without transferring bytes;
// Fetch performs the download plus the mp4 recode and feeds transfer
// progress to a caller-supplied callback. The tool is always pointed
// at a job-scoped temp directory so concurrent jobs can never touch
// each other's intermediate files.
package extract

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/lrstanley/go-ytdlp"
	"github.com/sethvargo/go-retry"

	"vidfetch/internal/model"
)

// Options is the per-job invocation policy, assembled by the scheduler
// from the platform classification and configuration.
type Options struct {
	// Format is the yt-dlp format selector for the platform.
	Format string
	// OutputTemplate is the job-stem output path template, e.g.
	// "<root>/<stem>_%(id)s.%(ext)s".
	OutputTemplate string
	// TempDir is the job-scoped scratch directory the tool writes
	// fragments and intermediates into.
	TempDir string
	// CookiesFile, when non-empty, is attached for authenticated
	// platforms. UserAgent is sent alongside it.
	CookiesFile string
	UserAgent   string

	SocketTimeoutSec    int
	Retries             int
	FragmentRetries     int
	ConcurrentFragments int
}

// Progress is one transfer-progress sample. Total may be an estimate
// and zero before the tool knows it; Rate is bytes per second.
type Progress struct {
	Downloaded int64
	Total      int64
	Rate       float64
}

// ProgressFunc receives progress samples during Fetch. The contract is
// strictly best-effort: implementations must not block, and any fault
// they raise is discarded rather than failing the transfer.
type ProgressFunc func(Progress)

// Error is a probe or fetch failure surfaced from the external tool.
type Error struct {
	Op  string // "probe" or "fetch"
	Err error
}

func (e *Error) Error() string { return "extract " + e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// Client invokes yt-dlp. One client is shared by all workers; every
// call builds a fresh command from its Options.
type Client struct {
	progressInterval time.Duration
	probeRetries     uint64
	probeBackoff     time.Duration
}

func NewClient(progressInterval time.Duration) *Client {
	if progressInterval <= 0 {
		progressInterval = 500 * time.Millisecond
	}
	return &Client{
		progressInterval: progressInterval,
		probeRetries:     2,
		probeBackoff:     2 * time.Second,
	}
}

// command builds the shared flag set for probe and fetch.
func (o Options) command() *ytdlp.Command {
	dl := ytdlp.New().
		Format(o.Format).
		Output(o.OutputTemplate).
		Paths("temp:"+o.TempDir).
		NoPlaylist().
		NoWarnings().
		SocketTimeout(float64(o.SocketTimeoutSec)).
		Retries(strconv.Itoa(o.Retries)).
		FragmentRetries(strconv.Itoa(o.FragmentRetries)).
		ConcurrentFragments(o.ConcurrentFragments).
		RecodeVideo("mp4")

	if o.CookiesFile != "" {
		dl = dl.Cookies(o.CookiesFile)
	}
	if o.UserAgent != "" {
		dl = dl.AddHeaders("User-Agent:" + o.UserAgent)
	}
	return dl
}

// Probe resolves metadata for the URL without downloading media. It
// retries transient failures a bounded number of times before
// surfacing *Error; each attempt is bounded by the socket timeout.
func (c *Client) Probe(ctx context.Context, url string, opts Options) (*model.VideoInfo, error) {
	var info *model.VideoInfo

	backoff := retry.WithMaxRetries(c.probeRetries, retry.NewConstant(c.probeBackoff))
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		res, err := opts.command().SkipDownload().Run(ctx, url)
		if err != nil {
			return retry.RetryableError(err)
		}
		parsed, err := parseInfo(res)
		if err != nil {
			// The tool answered but produced no usable metadata;
			// retrying will not change that.
			return err
		}
		info = parsed
		return nil
	})
	if err != nil {
		return nil, &Error{Op: "probe", Err: err}
	}
	return info, nil
}

// Fetch downloads and recodes the URL. onProgress is invoked with
// monotone downloaded-byte samples during transfer; the recode step
// after transfer emits no progress, so callers should cap reported
// percent below 100 until Fetch returns.
func (c *Client) Fetch(ctx context.Context, url string, opts Options, onProgress ProgressFunc) error {
	dl := opts.command().ForceOverwrites()

	if onProgress != nil {
		dl.ProgressFunc(c.progressInterval, func(up ytdlp.ProgressUpdate) {
			defer func() { _ = recover() }() // non-propagating by contract

			p := Progress{
				Downloaded: int64(up.DownloadedBytes),
				Total:      int64(up.TotalBytes),
			}
			if !up.Started.IsZero() {
				if elapsed := time.Since(up.Started).Seconds(); elapsed > 0 {
					p.Rate = float64(p.Downloaded) / elapsed
				}
			}
			onProgress(p)
		})
	}

	if _, err := dl.Run(ctx, url); err != nil {
		return &Error{Op: "fetch", Err: err}
	}
	return nil
}

func parseInfo(res *ytdlp.Result) (*model.VideoInfo, error) {
	infos, err := res.GetExtractedInfo()
	if err != nil {
		return nil, err
	}
	if len(infos) == 0 {
		return nil, errors.New("no video info found")
	}

	in := infos[0]
	out := &model.VideoInfo{VideoID: in.ID}
	if in.Title != nil {
		out.Title = *in.Title
	}
	if in.Uploader != nil && *in.Uploader != "" {
		out.Uploader = *in.Uploader
	} else if in.Channel != nil {
		out.Uploader = *in.Channel
	}
	if in.Duration != nil {
		out.Duration = int(*in.Duration)
	}
	return out, nil
}
