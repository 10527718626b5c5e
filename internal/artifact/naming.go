package artifact

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"vidfetch/internal/model"
)

const maxTitleLen = 40

// ErrUnsafeName rejects filenames that would escape the artifact root.
var ErrUnsafeName = errors.New("artifact: unsafe filename")

// SanitizeTitle strips characters that are unsafe in filenames and
// caps the length so canonical names stay portable.
func SanitizeTitle(title string) string {
	sanitized := strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*', '\n', '\t':
			return '_'
		}
		return r
	}, title)

	if len(sanitized) > maxTitleLen {
		sanitized = sanitized[:maxTitleLen]
	}
	return sanitized
}

// CanonicalName derives the published filename for a finished job:
// platform prefix, sanitized title, canonical video id.
func CanonicalName(p model.Platform, title, videoID string) string {
	t := SanitizeTitle(title)
	if t == "" {
		t = "video"
	}
	return fmt.Sprintf("%s_%s_%s.mp4", p, t, videoID)
}

// SafeJoin resolves a client-supplied filename against the artifact
// root, rejecting anything that points outside it.
func SafeJoin(root, name string) (string, error) {
	if name == "" {
		return "", ErrUnsafeName
	}
	// A served name is a bare filename; any separator means an
	// attempted traversal.
	if strings.ContainsAny(name, `/\`) {
		return "", ErrUnsafeName
	}
	cleaned := filepath.Clean(name)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "..") {
		return "", ErrUnsafeName
	}

	path := filepath.Join(root, cleaned)
	rootAbs := filepath.Clean(root)
	if path != rootAbs && !strings.HasPrefix(path, rootAbs+string(filepath.Separator)) {
		return "", ErrUnsafeName
	}
	return path, nil
}
