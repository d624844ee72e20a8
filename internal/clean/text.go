// Package clean holds the pure text/URL normalizers applied to raw
// chat input before it enters a draft.
package clean

import (
	"strings"

	"github.com/kyokomi/emoji/v2"
)

// Text substitutes :shortcode: emoji and strips platform markup from a
// raw chat message. Running it on already-clean text is a no-op.
func Text(s, platform string) string {
	s = emoji.Sprint(s)
	if platform == "slack" {
		// Slack wraps URLs and mentions in angle brackets.
		s = strings.ReplaceAll(s, "<", "")
		s = strings.ReplaceAll(s, ">", "")
	}
	return strings.TrimSpace(s)
}
