package model

import (
	"fmt"
	"time"
)

// Status is the lifecycle state of a download job. Jobs move
// starting -> downloading -> complete|error and never leave a
// terminal state. StatusExpired is never stored; it is the wire
// value returned when a job id is unknown.
type Status string

const (
	StatusStarting    Status = "starting"
	StatusDownloading Status = "downloading"
	StatusComplete    Status = "complete"
	StatusError       Status = "error"
	StatusExpired     Status = "expired"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	return s == StatusComplete || s == StatusError
}

// Platform identifies the source site of a submitted URL. It selects
// the format policy, the auth policy, and the output name prefix.
type Platform string

const (
	PlatformInstagram Platform = "Instagram"
	PlatformFacebook  Platform = "Facebook"
	PlatformYouTube   Platform = "YouTube"
	PlatformTikTok    Platform = "TikTok"
	PlatformX         Platform = "X"
	PlatformGeneric   Platform = "Generic"
)

// VideoInfo is the probe metadata shown to the client while the
// download is still in flight.
type VideoInfo struct {
	Title    string   `json:"title"`
	Uploader string   `json:"uploader"`
	Duration int      `json:"duration"`
	Platform Platform `json:"platform"`
	VideoID  string   `json:"video_id"`
}

// Job is the registry record for one submitted URL. The JSON shape is
// the poll payload served by GET /status/:id. Speed, Downloaded and
// Total are best-effort human-readable transfer telemetry and may be
// empty before the first progress signal; Filename, Filesize and
// DownloadURL are set only on success; Error only on failure.
type Job struct {
	ID          string     `json:"-"`
	URL         string     `json:"url"`
	Platform    Platform   `json:"platform,omitempty"`
	Status      Status     `json:"status"`
	Progress    int        `json:"progress"`
	Speed       string     `json:"speed,omitempty"`
	Downloaded  string     `json:"downloaded,omitempty"`
	Total       string     `json:"total,omitempty"`
	Filename    string     `json:"filename,omitempty"`
	Filesize    string     `json:"filesize,omitempty"`
	DownloadURL string     `json:"download_url,omitempty"`
	Info        *VideoInfo `json:"info,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"-"`
	UpdatedAt   time.Time  `json:"-"`
}

// FormatBytes renders a byte count the way the status payload expects
// ("12.3 MB"). Used for transfer telemetry and final file sizes.
func FormatBytes(n int64) string {
	size := float64(n)
	for _, unit := range []string{"B", "KB", "MB"} {
		if size < 1024 {
			return fmt.Sprintf("%.1f %s", size, unit)
		}
		size /= 1024
	}
	return fmt.Sprintf("%.1f GB", size)
}
