package segments

import (
	"net/url"
	"strings"
)

// SourceID extracts the video id from a youtu.be or youtube.com watch link.
func SourceID(raw string) (string, bool) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", false
	}
	switch strings.ToLower(u.Hostname()) {
	case "youtu.be":
		id := strings.Trim(u.Path, "/")
		return id, id != ""
	case "www.youtube.com", "youtube.com", "m.youtube.com":
		id := u.Query().Get("v")
		return id, id != ""
	default:
		return "", false
	}
}
