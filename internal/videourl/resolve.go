// Package videourl maps video references used by site content to playable
// URLs. It is the contract boundary in front of the streaming gateway: only
// references carrying the store prefix are routed through /api/video; known
// third-party URLs normalize to their embeddable form, and anything else
// passes through untouched.
package videourl

import (
	"net/url"
	"regexp"
	"strings"
)

// StorePrefix marks a reference as a key in the object store.
const StorePrefix = "store:"

var (
	youtubeWatch = regexp.MustCompile(`(?:youtube\.com/(?:watch\?v=|shorts/)|youtu\.be/)([A-Za-z0-9_-]{6,})`)
	vimeoVideo   = regexp.MustCompile(`vimeo\.com/(?:video/)?(\d+)`)
	driveFile    = regexp.MustCompile(`drive\.google\.com/file/d/([A-Za-z0-9_-]+)`)
)

// Resolve turns a content reference into a playable URL.
//
// Store keys become gateway paths with the key percent-encoded, so keys
// containing slashes or spaces survive routing. The gateway receives the
// literal store key with no prefix.
func Resolve(ref string) string {
	if key, ok := strings.CutPrefix(ref, StorePrefix); ok {
		return "/api/video/" + url.PathEscape(key)
	}
	if m := youtubeWatch.FindStringSubmatch(ref); m != nil {
		return "https://www.youtube.com/embed/" + m[1]
	}
	if m := vimeoVideo.FindStringSubmatch(ref); m != nil {
		return "https://player.vimeo.com/video/" + m[1]
	}
	if m := driveFile.FindStringSubmatch(ref); m != nil {
		return "https://drive.google.com/file/d/" + m[1] + "/preview"
	}
	return ref
}

// IsStoreRef reports whether the reference addresses the object store.
func IsStoreRef(ref string) bool {
	return strings.HasPrefix(ref, StorePrefix)
}
