package tmplkit

import (
	"sync"

	"github.com/microcosm-cc/bluemonday"
)

// TruncateChars keeps the first n characters (runes, not bytes) of s.
// A non-positive n yields the empty string.
func TruncateChars(s string, n int) string {
	if n <= 0 {
		return ""
	}
	for i := range s {
		if n == 0 {
			return s[:i]
		}
		n--
	}
	return s
}

var ugcPolicy = sync.OnceValue(bluemonday.UGCPolicy)

// Sanitize strips markup that is unsafe to embed in a page (scripts, event
// handlers, javascript: URLs) and keeps common formatting elements. Engines
// expose it as the "sanitize" filter/helper and mark its result as safe.
func Sanitize(html string) string {
	return ugcPolicy().Sanitize(html)
}
