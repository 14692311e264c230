package social

import (
	"fmt"
	"regexp"
)

var statusIDPattern = regexp.MustCompile(`/status(?:es)?/(\d+)`)

// TweetID extracts the numeric post ID from any twitter.com/x.com status URL
// shape. It returns false for profile pages and other non-status links.
func TweetID(rawURL string) (string, bool) {
	m := statusIDPattern.FindStringSubmatch(rawURL)
	if m == nil {
		return "", false
	}
	return m[1], true
}

// CanonicalURL is the stable status URL form used for browser navigation.
func CanonicalURL(id string) string {
	return fmt.Sprintf("https://x.com/i/status/%s", id)
}
