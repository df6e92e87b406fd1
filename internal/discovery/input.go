package discovery

import (
	"net/url"
	"regexp"
	"strings"
)

type InputKind string

const (
	KindVideo    InputKind = "VIDEO"
	KindPlaylist InputKind = "PLAYLIST"
	KindChannel  InputKind = "CHANNEL"
	KindHandle   InputKind = "HANDLE"
	// KindURL is a non-YouTube address handed to the engine as is.
	KindURL      InputKind = "URL"
)

type Input struct {
	Kind         InputKind `json:"kind"`
	CanonicalURL string    `json:"canonical_url"`
	Raw          string    `json:"raw"`
}

var (
	reVideoID   = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)
	reListID    = regexp.MustCompile(`^[A-Za-z0-9_-]{10,}$`)
	reChannelID = regexp.MustCompile(`^UC[A-Za-z0-9_-]{22}$`)
	reHandle    = regexp.MustCompile(`^@[A-Za-z0-9._-]{3,30}$`)
)

const youtubeBase = "https://www.youtube.com"

// ParseInput recognizes the YouTube URL shapes users paste and returns a
// canonical form. ok is false for anything else.
func ParseInput(raw string) (Input, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Input{}, false
	}
	if reHandle.MatchString(s) {
		return Input{Kind: KindHandle, CanonicalURL: youtubeBase + "/" + strings.ToLower(s) + "/videos", Raw: raw}, true
	}

	candidate := s
	if !strings.Contains(candidate, "://") {
		candidate = "https://" + candidate
	}
	u, err := url.Parse(candidate)
	if err != nil {
		return Input{}, false
	}
	host := strings.ToLower(u.Hostname())
	segments := strings.FieldsFunc(u.Path, func(r rune) bool { return r == '/' })

	switch host {
	case "youtu.be":
		if len(segments) >= 1 && reVideoID.MatchString(segments[0]) {
			return Input{Kind: KindVideo, CanonicalURL: youtubeBase + "/watch?v=" + segments[0], Raw: raw}, true
		}
		return Input{}, false
	case "youtube.com", "www.youtube.com", "m.youtube.com":
	default:
		return Input{}, false
	}
	if len(segments) == 0 {
		return Input{}, false
	}

	switch {
	case strings.EqualFold(segments[0], "watch") && len(segments) == 1:
		if v := u.Query().Get("v"); reVideoID.MatchString(v) {
			return Input{Kind: KindVideo, CanonicalURL: youtubeBase + "/watch?v=" + v, Raw: raw}, true
		}
	case strings.EqualFold(segments[0], "shorts") && len(segments) >= 2:
		if reVideoID.MatchString(segments[1]) {
			return Input{Kind: KindVideo, CanonicalURL: youtubeBase + "/shorts/" + segments[1], Raw: raw}, true
		}
	case strings.EqualFold(segments[0], "playlist") && len(segments) == 1:
		if list := u.Query().Get("list"); reListID.MatchString(list) {
			return Input{Kind: KindPlaylist, CanonicalURL: youtubeBase + "/playlist?list=" + list, Raw: raw}, true
		}
	case strings.EqualFold(segments[0], "channel") && len(segments) >= 2:
		if reChannelID.MatchString(segments[1]) {
			return Input{Kind: KindChannel, CanonicalURL: youtubeBase + "/channel/" + segments[1] + "/" + channelTab(segments[2:]), Raw: raw}, true
		}
	case reHandle.MatchString(segments[0]):
		handle := strings.ToLower(segments[0])
		return Input{Kind: KindHandle, CanonicalURL: youtubeBase + "/" + handle + "/" + channelTab(segments[1:]), Raw: raw}, true
	}
	return Input{}, false
}

// channelTab keeps an explicit shorts or streams tab and defaults to videos.
func channelTab(rest []string) string {
	if len(rest) > 0 {
		switch tab := strings.ToLower(rest[0]); tab {
		case "shorts", "streams":
			return tab
		}
	}
	return "videos"
}

// Canonicalize returns the canonical URL when the input is recognized and
// the trimmed input otherwise.
func Canonicalize(raw string) string {
	if in, ok := ParseInput(raw); ok {
		return in.CanonicalURL
	}
	return strings.TrimSpace(raw)
}
