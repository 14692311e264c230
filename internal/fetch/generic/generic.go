// Package generic fetches arbitrary web pages, escalating from a plain HTTP
// GET through a JS render to the anti-bot bypass until readable main content
// comes out.
package generic

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	readability "github.com/go-shiori/go-readability"
	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/onebitebitcoin/zentel/internal/fetch"
	"github.com/onebitebitcoin/zentel/internal/fetch/browser"
	"github.com/onebitebitcoin/zentel/internal/fetch/bypass"
)

// MinContentLen is the smallest extraction considered real content; below
// it the page is assumed to be a JS shell or an interstitial.
const MinContentLen = 200

const (
	requestTimeout = 15 * time.Second
	defaultUA      = "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"
)

// Config wires the generic fetcher. Browser and Bypass are optional; without
// them the chain stops after the plain GET.
type Config struct {
	UserAgent string
	Browser   *browser.Manager
	Bypass    *bypass.Bypass
	Logger    *zap.Logger
}

// Fetcher implements fetch.Fetcher for everything without a dedicated
// handler.
type Fetcher struct {
	collector *colly.Collector
	browser   *browser.Manager
	bypass    *bypass.Bypass
	logger    *zap.Logger
}

// New builds the fetcher and its base collector. Per-fetch state lives on
// collector clones.
func New(cfg Config) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = defaultUA
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	c := colly.NewCollector(
		colly.UserAgent(cfg.UserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(requestTimeout)
	return &Fetcher{
		collector: c,
		browser:   cfg.Browser,
		bypass:    cfg.Bypass,
		logger:    logger.Named("generic"),
	}
}

// Fetch walks the escalation chain until one stage yields enough content.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (fetch.Result, error) {
	if isNaverBlog(rawURL) {
		if res, ok := f.fetchNaver(ctx, rawURL); ok {
			return res, nil
		}
		f.logger.Debug("naver extraction found no post body, falling back", zap.String("url", rawURL))
	}

	html, err := f.plainGet(ctx, rawURL)
	if err != nil {
		f.logger.Debug("plain fetch failed", zap.String("url", rawURL), zap.Error(err))
	}
	if res, ok := f.extract(html, rawURL); ok {
		return res, nil
	}

	blocked := pageBlocked(html)
	if f.browser != nil && !blocked {
		rendered, err := f.render(ctx, rawURL)
		if err != nil {
			f.logger.Debug("js render failed", zap.String("url", rawURL), zap.Error(err))
		} else {
			if res, ok := f.extract(rendered, rawURL); ok {
				return res, nil
			}
			blocked = pageBlocked(rendered)
		}
	}

	if blocked && f.bypass != nil {
		bypassed, _, err := f.bypass.Render(ctx, rawURL)
		if err != nil {
			f.logger.Warn("bypass failed", zap.String("url", rawURL), zap.Error(err))
			return fetch.Failure(fetch.ManualPasteMessage), fmt.Errorf("generic fetch: %w", err)
		}
		if res, ok := f.extract(bypassed, rawURL); ok {
			return res, nil
		}
	}

	if blocked {
		return fetch.Failure(fetch.ManualPasteMessage), fetch.ErrChallengeBlocked
	}
	return fetch.Failure(fetch.ManualPasteMessage), nil
}

// plainGet runs one colly request and returns the response body.
func (f *Fetcher) plainGet(ctx context.Context, rawURL string) (string, error) {
	c := f.collector.Clone()

	var (
		body     []byte
		fetchErr error
	)
	c.OnResponse(func(r *colly.Response) {
		body = r.Body
	})
	c.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := c.Visit(rawURL); err != nil && fetchErr == nil {
			fetchErr = err
		}
		c.Wait()
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return "", fmt.Errorf("fetch canceled: %w", ctx.Err())
	}
	if fetchErr != nil {
		return "", fmt.Errorf("visit: %w", fetchErr)
	}
	return string(body), nil
}

// render loads the page in a stealth tab and returns the settled DOM.
func (f *Fetcher) render(ctx context.Context, rawURL string) (string, error) {
	var html string
	err := f.browser.RunInTab(ctx, func(tabCtx context.Context) error {
		navCtx, cancel := context.WithTimeout(tabCtx, f.browser.NavigationTimeout())
		defer cancel()
		return chromedp.Run(navCtx,
			chromedp.Navigate(rawURL),
			chromedp.WaitReady("body", chromedp.ByQuery),
			chromedp.Sleep(time.Second),
			chromedp.OuterHTML("html", &html, chromedp.ByQuery),
		)
	})
	if err != nil {
		return "", fmt.Errorf("render: %w", err)
	}
	return html, nil
}

// extract pulls main content out of the HTML, falling back to stripped text
// when the readability pass finds nothing usable.
func (f *Fetcher) extract(html, rawURL string) (fetch.Result, bool) {
	if strings.TrimSpace(html) == "" {
		return fetch.Result{}, false
	}
	var (
		content string
		title   string
		image   string
	)
	if parsed, err := url.Parse(rawURL); err == nil {
		if article, err := readability.FromReader(strings.NewReader(html), parsed); err == nil {
			content = strings.TrimSpace(article.TextContent)
			title = article.Title
			image = article.Image
		}
	}
	if len([]rune(content)) < MinContentLen {
		if stripped := stripTags(html); len([]rune(stripped)) > len([]rune(content)) {
			content = stripped
		}
	}
	if len([]rune(content)) < MinContentLen || pageBlocked(html) {
		return fetch.Result{}, false
	}
	return fetch.Result{
		Content: fetch.Truncate(content),
		Title:   title,
		Image:   image,
		Success: true,
	}, true
}

var (
	scriptPattern = regexp.MustCompile(`(?is)<(script|style|noscript)[^>]*>.*?</\s*(script|style|noscript)\s*>`)
	tagPattern    = regexp.MustCompile(`(?s)<[^>]*>`)
	spacePattern  = regexp.MustCompile(`[ \t]+`)
	linesPattern  = regexp.MustCompile(`\n{3,}`)
)

func stripTags(html string) string {
	text := scriptPattern.ReplaceAllString(html, " ")
	text = tagPattern.ReplaceAllString(text, "\n")
	text = spacePattern.ReplaceAllString(text, " ")
	text = linesPattern.ReplaceAllString(text, "\n\n")
	return strings.TrimSpace(text)
}

func pageBlocked(html string) bool {
	if html == "" {
		return false
	}
	title := ""
	if m := titlePattern.FindStringSubmatch(html); m != nil {
		title = m[1]
	}
	return bypass.IsChallenge(title, stripTags(html))
}

var titlePattern = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)
