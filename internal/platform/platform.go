// Package platform maps submitted URLs to a source platform and holds
// the per-platform download policy: format selector, auth requirements
// and output naming prefix. Classification is a pure substring match on
// the URL text; it never touches the network.
package platform

import (
	"strings"

	"vidfetch/internal/model"
)

// Format selectors passed to yt-dlp. Instagram and Facebook ship split
// audio/video streams, so they get a 1080p merge; YouTube prefers a
// single mp4 capped at 720p; short-form platforms allow 1080p because
// their files are small.
const (
	formatInstagram = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"
	formatFacebook  = "bestvideo[height<=1080]+bestaudio/best[height<=1080]/best"
	formatYouTube   = "best[height<=720][ext=mp4]/best[ext=mp4]/best"
	formatTikTok    = "best[height<=1080]/best"
	formatX         = "best[height<=1080]/best"
	formatGeneric   = "best[height<=720]/best"
)

// Detect classifies a URL into one of the known platforms. Unmatched
// URLs classify as Generic.
func Detect(url string) model.Platform {
	lower := strings.ToLower(url)

	switch {
	case contains(lower, "instagram.com", "instagr.am"):
		return model.PlatformInstagram
	case contains(lower, "facebook.com", "fb.watch"):
		return model.PlatformFacebook
	case contains(lower, "youtube.com", "youtu.be"):
		return model.PlatformYouTube
	case contains(lower, "tiktok.com"):
		return model.PlatformTikTok
	case contains(lower, "twitter.com", "x.com"):
		return model.PlatformX
	}
	return model.PlatformGeneric
}

// FormatSelector returns the yt-dlp format policy for a platform.
func FormatSelector(p model.Platform) string {
	switch p {
	case model.PlatformInstagram:
		return formatInstagram
	case model.PlatformFacebook:
		return formatFacebook
	case model.PlatformYouTube:
		return formatYouTube
	case model.PlatformTikTok:
		return formatTikTok
	case model.PlatformX:
		return formatX
	}
	return formatGeneric
}

// NeedsAuth reports whether downloads from the platform should attach
// the cookie store and a browser User-Agent when available. Absence of
// the cookie store is not an error; the fetch falls back to
// unauthenticated access.
func NeedsAuth(p model.Platform) bool {
	return p == model.PlatformInstagram || p == model.PlatformFacebook
}

func contains(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
