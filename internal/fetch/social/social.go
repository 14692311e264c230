// Package social fetches posts from twitter.com/x.com through an ordered
// strategy chain: the public syndication CDN first, a stealth browser
// session when the post needs a rendered page.
package social

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
)

var shortLinkPattern = regexp.MustCompile(`https://t\.co/\w+`)

// strategy is one way of reading a post. Strategies run in order; an
// escalationError moves the chain to the next one, any other error or a
// result ends it.
type strategy interface {
	name() string
	attempt(ctx context.Context, tweetID, rawURL string) (fetch.Result, error)
}

// Config wires the social fetcher. Username and Password enable the
// on-demand login flow when the rendered post sits behind a login wall.
type Config struct {
	SyndicationBase string
	HTTPClient      *http.Client
	Browser         *browser.Manager
	Username        string
	Password        string
	Logger          *zap.Logger
}

// Fetcher implements fetch.Fetcher for social post URLs.
type Fetcher struct {
	chain  []strategy
	logger *zap.Logger
}

// New builds the fetcher with its strategy chain. A nil Browser drops the
// escalation strategy, leaving syndication-only fetching for tests and
// constrained deployments.
func New(cfg Config) *Fetcher {
	if cfg.SyndicationBase == "" {
		cfg.SyndicationBase = DefaultSyndicationBase
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.Named("social")

	chain := []strategy{
		&syndicationStrategy{base: cfg.SyndicationBase, client: cfg.HTTPClient, logger: logger},
	}
	if cfg.Browser != nil {
		chain = append(chain, &browserStrategy{
			browser:  cfg.Browser,
			username: cfg.Username,
			password: cfg.Password,
			logger:   logger,
		})
	}
	return &Fetcher{chain: chain, logger: logger}
}

// Fetch resolves the post ID and walks the strategy chain.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	id, ok := TweetID(rawURL)
	if !ok {
		return fetch.Failure("link is not a post URL"), nil
	}

	var lastErr error
	for _, s := range f.chain {
		res, err := s.attempt(ctx, id, rawURL)
		if err == nil {
			f.logger.Debug("social fetch succeeded", zap.String("strategy", s.name()), zap.String("id", id))
			return res, nil
		}
		var esc *escalationError
		if errors.As(err, &esc) {
			f.logger.Info("escalating social fetch",
				zap.String("strategy", s.name()),
				zap.String("reason", esc.reason))
			lastErr = err
			continue
		}
		return fetch.Result{}, fmt.Errorf("social fetch via %s: %w", s.name(), err)
	}
	if lastErr != nil {
		return fetch.Failure("could not read the post: " + lastErr.Error()), nil
	}
	return fetch.Failure("could not read the post"), nil
}

// isBareLink reports whether the post text is nothing but a link, which
// means the real content lives behind the redirect.
func isBareLink(text string) bool {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return false
	}
	return (strings.HasPrefix(trimmed, "http://") || strings.HasPrefix(trimmed, "https://")) &&
		!strings.ContainsAny(trimmed, " \n\t")
}
