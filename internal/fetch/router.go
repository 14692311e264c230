package fetch

import "github.com/onebitebitcoin/zentel/internal/source"

// Router picks the fetcher for a URL by its source class. Concrete fetchers
// are wired in at startup; a missing slot falls back to Generic.
type Router struct {
	Social  Fetcher
	Video   Fetcher
	RawFile Fetcher
	Generic Fetcher
}

// For returns the fetcher responsible for the URL, along with the class name
// used for logging and metrics labels.
func (r Router) For(rawURL string) (Fetcher, string) {
	class := source.Classify(rawURL)
	switch class {
	case source.SocialPost:
		if r.Social != nil {
			return r.Social, string(class)
		}
	case source.Video:
		if r.Video != nil {
			return r.Video, string(class)
		}
	case source.RawFile:
		if r.RawFile != nil {
			return r.RawFile, string(class)
		}
	}
	return r.Generic, string(source.GenericPage)
}
