// Package source classifies memo links into fetcher classes.
package source

import (
	"net/url"
	"strings"
)

// Class is the fetcher class a URL resolves to.
type Class string

// Fetcher classes, in order of specificity.
const (
	SocialPost  Class = "social_post"
	Video       Class = "video"
	RawFile     Class = "raw_file"
	GenericPage Class = "generic_page"
)

var socialHosts = map[string]bool{
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
	"x.com":              true,
	"www.x.com":          true,
	"mobile.x.com":       true,
}

var videoHosts = map[string]bool{
	"youtube.com":   true,
	"m.youtube.com": true,
	"youtu.be":      true,
}

// Classify maps a URL to the fetcher class that should handle it. Unknown or
// unparseable URLs fall through to GenericPage; the generic fetcher owns the
// failure reporting for those.
func Classify(rawURL string) Class {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || u.Host == "" {
		return GenericPage
	}
	host := strings.ToLower(u.Hostname())

	if socialHosts[host] {
		return SocialPost
	}
	if videoHosts[host] || strings.HasSuffix(host, ".youtube.com") {
		return Video
	}
	if (host == "github.com" || host == "www.github.com") && strings.Contains(u.Path, "/blob/") {
		return RawFile
	}
	return GenericPage
}

// RequiresPlatformAPI reports whether the URL's host can only be read through
// its platform API, meaning there is no browser-rendering fallback when the
// API path fails. Callers surface a manual-paste message for these.
func RequiresPlatformAPI(rawURL string) bool {
	return Classify(rawURL) == Video
}
