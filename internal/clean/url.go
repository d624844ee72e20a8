package clean

import (
	"net/url"
	"strings"
)

// URL normalizes a URL pasted into chat: trims whitespace, strips one
// wrapping <...> pair, and unwraps Facebook redirect links down to
// their `u` query parameter. Idempotent on already-clean URLs.
func URL(raw string) string {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	if strings.Contains(s, "facebook.com/l") {
		if parsed, err := url.Parse(s); err == nil {
			if u := parsed.Query().Get("u"); u != "" && isHTTPURL(u) {
				s = u
			}
		}
	}
	return s
}

func isHTTPURL(s string) bool {
	parsed, err := url.Parse(s)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}
